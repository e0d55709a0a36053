package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; structural changes
// (storage driver, providers, MCP servers) require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// LearningChanged is true if any learning constant changed. The engine
	// reads learning constants at construction, so applying them needs a
	// restart; the watcher only reports the change.
	LearningChanged bool

	// PersonasChanged is true if the persona file path or default persona
	// changed.
	PersonasChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.LearningChanged || d.PersonasChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !learningEqual(old.Learning, new.Learning) {
		d.LearningChanged = true
	}

	if old.Personas != new.Personas {
		d.PersonasChanged = true
	}

	return d
}

// learningEqual compares two learning blocks field by field. LearningConfig
// holds a slice, so it is not directly comparable.
func learningEqual(a, b LearningConfig) bool {
	return a.Alpha == b.Alpha &&
		a.Beta == b.Beta &&
		a.CorrectStep == b.CorrectStep &&
		a.IncorrectStep == b.IncorrectStep &&
		a.InitialMasteryCorrect == b.InitialMasteryCorrect &&
		a.InitialMasteryIncorrect == b.InitialMasteryIncorrect &&
		a.ReviewThreshold == b.ReviewThreshold &&
		a.MaxVocabPerTurn == b.MaxVocabPerTurn &&
		a.MaxContextWords == b.MaxContextWords &&
		a.MaxActiveVocab == b.MaxActiveVocab &&
		a.MinProficiency == b.MinProficiency &&
		a.MaxProficiency == b.MaxProficiency &&
		slices.Equal(a.BandThresholds, b.BandThresholds)
}
