// Package app wires all nabu subsystems into a running tutoring server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and the maintenance scheduler, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithNotesStore, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/nabu-app/nabu/internal/analysis"
	"github.com/nabu-app/nabu/internal/api"
	"github.com/nabu-app/nabu/internal/config"
	"github.com/nabu-app/nabu/internal/curriculum"
	"github.com/nabu-app/nabu/internal/difficulty"
	"github.com/nabu-app/nabu/internal/engine"
	"github.com/nabu-app/nabu/internal/feedback"
	"github.com/nabu-app/nabu/internal/health"
	"github.com/nabu-app/nabu/internal/maintenance"
	"github.com/nabu-app/nabu/internal/notes"
	"github.com/nabu-app/nabu/internal/observe"
	"github.com/nabu-app/nabu/internal/persona"
	"github.com/nabu-app/nabu/internal/resilience"
	"github.com/nabu-app/nabu/internal/session"
	"github.com/nabu-app/nabu/internal/srs"
	"github.com/nabu-app/nabu/internal/tools"
	"github.com/nabu-app/nabu/internal/turnctx"
	"github.com/nabu-app/nabu/internal/vocabdetect"
	"github.com/nabu-app/nabu/pkg/learner"
	"github.com/nabu-app/nabu/pkg/learner/postgres"
	"github.com/nabu-app/nabu/pkg/learner/sqlite"
	"github.com/nabu-app/nabu/pkg/provider/embeddings"
	"github.com/nabu-app/nabu/pkg/provider/llm"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM         llm.Provider
	FallbackLLM llm.Provider
	Embeddings  embeddings.Provider
}

// App owns all subsystem lifetimes and serves the nabu tutoring API.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	store     learner.Store
	semantic  learner.SemanticIndex // postgres driver only
	backupper maintenance.Backupper // sqlite driver only
	ping      func(context.Context) error
	notes     notes.Store
	personas  *persona.Registry
	catalog   *curriculum.Catalog
	toolHost  *tools.Host
	metrics   *observe.Metrics
	sessions  *session.Manager
	engine    *engine.Pipeline
	sched     *maintenance.Scheduler
	server    *http.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a learner store instead of creating one from config.
func WithStore(s learner.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSemanticIndex injects a semantic index to pair with an injected store.
func WithSemanticIndex(idx learner.SemanticIndex) Option {
	return func(a *App) { a.semantic = idx }
}

// WithNotesStore injects a note store instead of opening a search index.
func WithNotesStore(s notes.Store) Option {
	return func(a *App) { a.notes = s }
}

// WithCatalog injects a pre-populated curriculum catalog instead of loading
// word lists from config.
func WithCatalog(c *curriculum.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: store connection and
// migration, note index opening, persona and word-list loading, tool server
// registration, and pipeline assembly. The returned App is ready for Run.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Learner store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Note index ────────────────────────────────────────────────────
	if err := a.initNotes(); err != nil {
		return nil, fmt.Errorf("app: init notes: %w", err)
	}

	// ── 3. Personas ──────────────────────────────────────────────────────
	if err := a.initPersonas(); err != nil {
		return nil, fmt.Errorf("app: init personas: %w", err)
	}

	// ── 4. Curriculum catalog ────────────────────────────────────────────
	if err := a.initCurriculum(); err != nil {
		return nil, fmt.Errorf("app: init curriculum: %w", err)
	}

	// ── 5. Tool host ─────────────────────────────────────────────────────
	if err := a.initTools(ctx); err != nil {
		return nil, fmt.Errorf("app: init tools: %w", err)
	}

	// ── 6. Metrics ───────────────────────────────────────────────────────
	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}
	a.metrics = m

	// ── 7. Tutoring pipeline ─────────────────────────────────────────────
	if err := a.initEngine(); err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}

	// ── 8. Maintenance scheduler ─────────────────────────────────────────
	a.initMaintenance()

	// ── 9. HTTP server ───────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens the learner store selected by the storage config. The
// postgres driver additionally provides the semantic index, the sqlite driver
// the backup hook.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	switch a.cfg.Storage.Driver {
	case config.DriverMemory:
		a.store = learner.NewMemStore()

	case config.DriverSQLite:
		store, err := sqlite.NewStore(ctx, a.cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		a.store = store
		a.backupper = store
		a.ping = store.Ping
		a.closers = append(a.closers, store.Close)

	case config.DriverPostgres:
		store, err := postgres.NewStore(ctx, a.cfg.Storage.PostgresDSN, a.cfg.Storage.EmbeddingDimensions)
		if err != nil {
			return err
		}
		a.store = store
		a.semantic = store
		a.ping = store.Ping
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})

	default:
		return fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}

	slog.Info("learner store ready", "driver", a.cfg.Storage.Driver)
	return nil
}

// initNotes opens the note search index and wraps it in the guard that keeps
// index failures from breaking tutoring turns.
func (a *App) initNotes() error {
	if a.notes != nil || !a.cfg.Notes.Enabled {
		return nil
	}

	var (
		idx *notes.Index
		err error
	)
	if path := a.cfg.Notes.IndexPath; path != "" {
		idx, err = notes.NewDiskIndex(path)
	} else {
		idx, err = notes.NewMemoryIndex()
	}
	if err != nil {
		return err
	}

	guard := notes.NewIndexGuard(idx)
	a.notes = guard
	a.closers = append(a.closers, guard.Close)
	return nil
}

// initPersonas loads the persona file, if configured, and selects the default
// persona for sessions that do not name one.
func (a *App) initPersonas() error {
	reg := persona.NewRegistry()

	if path := a.cfg.Personas.File; path != "" {
		loaded, err := persona.LoadFile(path)
		if err != nil {
			return err
		}
		for _, p := range loaded {
			if err := reg.Add(p); err != nil {
				return err
			}
		}
		slog.Info("loaded personas", "path", path, "count", len(loaded))
	}

	if name := a.cfg.Personas.Default; name != "" {
		if p, ok := reg.Get(name); ok {
			if err := reg.SetDefault(p); err != nil {
				return err
			}
		} else {
			slog.Warn("default persona not found, using built-in fallback", "name", name)
		}
	}

	a.personas = reg
	return nil
}

// initCurriculum loads the configured word lists into the catalog.
func (a *App) initCurriculum() error {
	if a.catalog == nil {
		a.catalog = &curriculum.Catalog{}
	}

	for _, path := range a.cfg.Curriculum.Files {
		list, err := curriculum.LoadListFile(path)
		if err != nil {
			return err
		}
		if err := a.catalog.Add(*list); err != nil {
			return fmt.Errorf("add word list %q: %w", path, err)
		}
		slog.Info("loaded word list", "path", path, "language", list.Language, "words", len(list.Words))
	}

	return nil
}

// initTools sets up the tool host with the built-in curriculum and note tools
// plus any configured MCP servers.
func (a *App) initTools(ctx context.Context) error {
	host := tools.NewHost()
	a.toolHost = host
	a.closers = append(a.closers, host.Close)

	builtins := tools.CurriculumTools(a.catalog)
	if a.notes != nil {
		builtins = append(builtins, tools.NoteTools(a.notes)...)
	}
	for _, b := range builtins {
		if err := host.RegisterBuiltin(b); err != nil {
			return fmt.Errorf("register builtin %q: %w", b.Definition.Name, err)
		}
	}

	for _, srv := range a.cfg.Tools.MCPServers {
		serverCfg := tools.ServerConfig{
			Name:      srv.Name,
			Transport: srv.Transport,
			Command:   srv.Command,
			URL:       srv.URL,
			Env:       srv.Env,
		}
		if err := host.RegisterServer(ctx, serverCfg); err != nil {
			return fmt.Errorf("register mcp server %q: %w", srv.Name, err)
		}
		slog.Info("registered MCP server", "name", srv.Name)
	}

	return nil
}

// initEngine builds the full turn pipeline: scheduler, difficulty adapter,
// analyzer, feedback integrator, context assembler, session manager, and the
// engine that drives them.
func (a *App) initEngine() error {
	if a.providers.LLM == nil {
		return errors.New("providers.llm is required")
	}

	gen := a.providers.LLM
	if a.providers.FallbackLLM != nil {
		fb := resilience.NewLLMFallback(gen, a.cfg.Providers.LLM.Name, resilience.FallbackConfig{})
		fb.AddFallback(a.cfg.Providers.FallbackLLM.Name, a.providers.FallbackLLM)
		gen = fb
		slog.Info("generation fallback enabled",
			"primary", a.cfg.Providers.LLM.Name,
			"fallback", a.cfg.Providers.FallbackLLM.Name)
	}

	adapter, err := difficulty.New(difficultyParams(a.cfg.Learning))
	if err != nil {
		return fmt.Errorf("difficulty adapter: %w", err)
	}

	scheduler := srs.New(a.store, srs.WithReviewThreshold(a.cfg.Learning.ReviewThreshold))

	var feedbackOpts []feedback.Option
	if path := a.cfg.Learning.AuditLog; path != "" {
		feedbackOpts = append(feedbackOpts, feedback.WithAudit(feedback.NewAuditLog(path)))
		slog.Info("turn audit log enabled", "path", path)
	}
	integrator, err := feedback.New(a.store, adapter, feedbackParams(a.cfg.Learning), feedbackOpts...)
	if err != nil {
		return fmt.Errorf("feedback integrator: %w", err)
	}

	analyzer := analysis.NewLLM(gen,
		analysis.WithTemperature(a.cfg.Analysis.Temperature),
		analysis.WithMaxTokens(a.cfg.Analysis.MaxTokens),
		analysis.WithDifficultyBounds(a.cfg.Learning.MinProficiency, a.cfg.Learning.MaxProficiency),
	)

	assemblerOpts := []turnctx.Option{
		turnctx.WithMaxVocab(a.cfg.Learning.MaxVocabPerTurn),
		turnctx.WithMaxContextWords(a.cfg.Learning.MaxContextWords),
	}
	if a.semantic != nil && a.providers.Embeddings != nil {
		assemblerOpts = append(assemblerOpts, turnctx.WithSemanticRetrieval(a.semantic, a.providers.Embeddings))
		slog.Info("semantic vocabulary retrieval enabled", "model", a.providers.Embeddings.ModelID())
	}
	assembler := turnctx.New(scheduler, a.store, adapter, assemblerOpts...)

	var summariser session.Summariser
	if a.cfg.Session.Summarise {
		summariser = session.NewLLMSummariser(gen)
	}
	a.sessions = session.NewManager(session.ManagerConfig{
		Timeout:      time.Duration(a.cfg.Session.Timeout),
		MaxExchanges: a.cfg.Session.MaxHistory,
		Summariser:   summariser,
	})

	engineOpts := []engine.Option{
		engine.WithToolHost(a.toolHost),
		engine.WithPersonas(a.personas),
		engine.WithVocabularyScan(a.store, vocabdetect.New()),
		engine.WithMetrics(a.metrics),
	}
	if a.cfg.Learning.MaxActiveVocab > 0 {
		engineOpts = append(engineOpts, engine.WithMaxActiveVocab(a.cfg.Learning.MaxActiveVocab))
	}

	eng, err := engine.New(engine.Config{
		Sessions:  a.sessions,
		Assembler: assembler,
		Provider:  gen,
		Analyzer:  analyzer,
		Feedback:  integrator,
	}, engineOpts...)
	if err != nil {
		return err
	}
	a.engine = eng
	return nil
}

// initMaintenance assembles the background scheduler: session reaping always,
// note generation, embedding backfill, and SQLite backups when their
// subsystems are configured.
func (a *App) initMaintenance() {
	var opts []maintenance.Option
	if a.notes != nil {
		opts = append(opts, maintenance.WithNotes(a.notes))
	}
	if a.semantic != nil && a.providers.Embeddings != nil {
		opts = append(opts, maintenance.WithEmbeddingBackfill(a.semantic, a.providers.Embeddings))
	}
	if b := a.cfg.Storage.Backup; b.Enabled && a.backupper != nil {
		opts = append(opts, maintenance.WithSQLiteBackup(
			a.backupper,
			a.cfg.Storage.SQLitePath,
			time.Duration(b.Interval),
			b.MaxBackups,
		))
	}
	a.sched = maintenance.New(a.sessions, opts...)
}

// initHTTP builds the API server and readiness checks.
func (a *App) initHTTP() {
	var checkers []health.Checker
	if a.ping != nil {
		checkers = append(checkers, health.Checker{Name: "storage", Check: a.ping})
	}

	apiOpts := []api.Option{
		api.WithHealth(health.New(checkers...)),
		api.WithCurriculum(a.catalog),
	}
	if a.notes != nil {
		apiOpts = append(apiOpts, api.WithNotes(a.notes))
	}

	srv := api.New(a.engine, a.sessions, a.store, a.metrics, apiOpts...)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the maintenance scheduler and the HTTP server, then blocks until
// ctx is cancelled or the server fails. On cancellation Run returns
// context.Canceled; call Shutdown to tear the subsystems down.
func (a *App) Run(ctx context.Context) error {
	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("app: start maintenance: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if tc := a.cfg.Server.TLS; tc != nil {
			err = a.server.ListenAndServeTLS(tc.CertFile, tc.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	slog.Info("app running",
		"addr", a.cfg.Server.ListenAddr,
		"tls", a.cfg.Server.TLS != nil,
		"driver", a.cfg.Storage.Driver,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Stop accepting HTTP traffic first so in-flight turns can finish.
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}
		if a.sched != nil {
			a.sched.Stop()
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// difficultyParams converts the learning config to difficulty adapter
// parameters. Validate guarantees exactly four band thresholds.
func difficultyParams(l config.LearningConfig) difficulty.Params {
	p := difficulty.Params{
		Alpha:          l.Alpha,
		Beta:           l.Beta,
		MinProficiency: l.MinProficiency,
		MaxProficiency: l.MaxProficiency,
	}
	copy(p.BandThresholds[:], l.BandThresholds)
	return p
}

// feedbackParams converts the learning config to feedback integrator
// parameters.
func feedbackParams(l config.LearningConfig) feedback.Params {
	return feedback.Params{
		CorrectStep:             l.CorrectStep,
		IncorrectStep:           l.IncorrectStep,
		InitialMasteryCorrect:   l.InitialMasteryCorrect,
		InitialMasteryIncorrect: l.InitialMasteryIncorrect,
	}
}
