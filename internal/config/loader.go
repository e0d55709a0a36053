package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/nabu-app/nabu/internal/tools"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result. The
// document is decoded over [Default], so absent fields keep their default
// values and an empty document yields the full default config.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Storage
	if cfg.Storage.Driver != "" && !cfg.Storage.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: sqlite, postgres, memory", cfg.Storage.Driver))
	}
	if cfg.Storage.Driver == DriverSQLite && cfg.Storage.SQLitePath == "" {
		errs = append(errs, fmt.Errorf("storage.sqlite_path is required when storage.driver is sqlite"))
	}
	if cfg.Storage.Driver == DriverPostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("storage.postgres_dsn is required when storage.driver is postgres"))
	}
	if cfg.Storage.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("storage.embedding_dimensions must not be negative"))
	} else if cfg.Providers.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions == 0 {
		errs = append(errs, fmt.Errorf("storage.embedding_dimensions must be positive when providers.embeddings is configured"))
	}
	if cfg.Storage.Backup.Enabled {
		if cfg.Storage.Backup.Interval <= 0 {
			errs = append(errs, fmt.Errorf("storage.backup.interval must be positive when backups are enabled"))
		}
		if cfg.Storage.Backup.MaxBackups < 1 {
			errs = append(errs, fmt.Errorf("storage.backup.max_backups must be at least 1"))
		}
		if cfg.Storage.Driver != DriverSQLite {
			slog.Warn("storage.backup is enabled but only the sqlite driver supports backups",
				"driver", cfg.Storage.Driver)
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.FallbackLLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Provider availability
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no generation provider configured; tutoring turns cannot run")
	}
	if cfg.Providers.FallbackLLM.Name != "" && cfg.Providers.LLM.Name == "" {
		errs = append(errs, fmt.Errorf("providers.fallback_llm is configured but providers.llm is not"))
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.Driver != DriverPostgres {
		slog.Warn("providers.embeddings is configured but embeddings are only used by the postgres driver",
			"driver", cfg.Storage.Driver)
	}

	// Learning constants
	l := cfg.Learning
	if l.Alpha <= 0 || l.Alpha > 1 {
		errs = append(errs, fmt.Errorf("learning.alpha %v is outside (0, 1]", l.Alpha))
	}
	if l.Beta <= 0 || l.Beta > 1 {
		errs = append(errs, fmt.Errorf("learning.beta %v is outside (0, 1]", l.Beta))
	}
	if l.CorrectStep <= 0 || l.CorrectStep > 1 {
		errs = append(errs, fmt.Errorf("learning.correct_step %v is outside (0, 1]", l.CorrectStep))
	}
	if l.IncorrectStep <= 0 || l.IncorrectStep > 1 {
		errs = append(errs, fmt.Errorf("learning.incorrect_step %v is outside (0, 1]", l.IncorrectStep))
	} else if l.IncorrectStep > l.CorrectStep {
		errs = append(errs, fmt.Errorf("learning.incorrect_step %v must not exceed learning.correct_step %v", l.IncorrectStep, l.CorrectStep))
	}
	if l.InitialMasteryCorrect < 0 || l.InitialMasteryCorrect > 1 {
		errs = append(errs, fmt.Errorf("learning.initial_mastery_correct %v is outside [0, 1]", l.InitialMasteryCorrect))
	}
	if l.InitialMasteryIncorrect < 0 || l.InitialMasteryIncorrect > 1 {
		errs = append(errs, fmt.Errorf("learning.initial_mastery_incorrect %v is outside [0, 1]", l.InitialMasteryIncorrect))
	}
	if l.ReviewThreshold < 0 || l.ReviewThreshold > 1 {
		errs = append(errs, fmt.Errorf("learning.review_threshold %v is outside [0, 1]", l.ReviewThreshold))
	}
	if l.MaxVocabPerTurn < 1 {
		errs = append(errs, fmt.Errorf("learning.max_vocab_per_turn must be at least 1"))
	}
	if l.MaxContextWords < 1 {
		errs = append(errs, fmt.Errorf("learning.max_context_words must be at least 1"))
	}
	if l.MaxActiveVocab < 0 {
		errs = append(errs, fmt.Errorf("learning.max_active_vocab must not be negative"))
	}
	if l.MinProficiency >= l.MaxProficiency {
		errs = append(errs, fmt.Errorf("learning.min_proficiency %v must be below learning.max_proficiency %v", l.MinProficiency, l.MaxProficiency))
	}
	if len(l.BandThresholds) != 4 {
		errs = append(errs, fmt.Errorf("learning.band_thresholds must list exactly 4 values (got %d)", len(l.BandThresholds)))
	} else {
		prev := l.MinProficiency
		for i, t := range l.BandThresholds {
			if t <= prev || t >= l.MaxProficiency {
				errs = append(errs, fmt.Errorf("learning.band_thresholds[%d] (%v) must lie strictly between %v and %v in ascending order", i, t, prev, l.MaxProficiency))
				break
			}
			prev = t
		}
	}

	// Session
	if cfg.Session.MaxHistory < 1 {
		errs = append(errs, fmt.Errorf("session.max_history must be at least 1"))
	}
	if cfg.Session.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("session.timeout must be positive"))
	}

	// Analysis
	if cfg.Analysis.Temperature < 0 || cfg.Analysis.Temperature > 2 {
		errs = append(errs, fmt.Errorf("analysis.temperature %v is outside [0, 2]", cfg.Analysis.Temperature))
	}
	if cfg.Analysis.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("analysis.max_tokens must be at least 1"))
	}

	// Curriculum
	for i, f := range cfg.Curriculum.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("curriculum.files[%d] is empty", i))
		}
	}

	// MCP server duplicate name detection
	serverNamesSeen := make(map[string]int, len(cfg.Tools.MCPServers))

	// MCP servers
	for i, srv := range cfg.Tools.MCPServers {
		prefix := fmt.Sprintf("tools.mcp_servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := serverNamesSeen[srv.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of tools.mcp_servers[%d]", prefix, srv.Name, prev))
			}
			serverNamesSeen[srv.Name] = i
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == tools.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == tools.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
