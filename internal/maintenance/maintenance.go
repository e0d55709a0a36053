// Package maintenance runs the background jobs that keep a nabu deployment
// tidy: reaping idle sessions into study notes, backfilling vocabulary
// embeddings, and rotating SQLite backups.
//
// Jobs are registered on a gocron scheduler by [Scheduler.Start] and run
// until [Scheduler.Stop]. Which jobs run depends on the options: the session
// reaper is always on, the embedding backfill needs a semantic index and an
// embeddings provider (postgres deployments), and the backup job needs a
// SQLite database. Every job tolerates concurrent turn traffic; writes go
// through the stores' own transactional surfaces.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/nabu-app/nabu/internal/notes"
	"github.com/nabu-app/nabu/internal/session"
	"github.com/nabu-app/nabu/pkg/learner"
	"github.com/nabu-app/nabu/pkg/provider/embeddings"
)

const (
	// reapInterval is how often idle sessions are swept.
	reapInterval = time.Minute

	// backfillInterval is how often missing embeddings are filled in.
	backfillInterval = time.Hour

	// jobTimeout bounds a single run of any job.
	jobTimeout = 10 * time.Minute
)

// SessionReaper yields summaries of sessions that idled past their timeout.
// *session.Manager satisfies it.
type SessionReaper interface {
	ReapIdle() []*session.Summary
}

// Backupper writes a consistent snapshot of the database to destPath.
// The SQLite store satisfies it via VACUUM INTO.
type Backupper interface {
	Backup(ctx context.Context, destPath string) error
}

// Scheduler owns the background jobs. Construct with [New], then [Start].
type Scheduler struct {
	cron     *gocron.Scheduler
	sessions SessionReaper
	notes    notes.Store

	semantic learner.SemanticIndex
	embedder embeddings.Provider

	backup         Backupper
	backupPath     string
	backupInterval time.Duration
	backupKeep     int

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithNotes routes summaries of reaped sessions into the note store, so a
// learner who walked away mid-conversation still gets their study notes.
func WithNotes(store notes.Store) Option {
	return func(s *Scheduler) { s.notes = store }
}

// WithEmbeddingBackfill enables the hourly job that embeds vocabulary items
// missing a vector. Only useful with a store that implements
// [learner.SemanticIndex].
func WithEmbeddingBackfill(idx learner.SemanticIndex, provider embeddings.Provider) Option {
	return func(s *Scheduler) {
		s.semantic = idx
		s.embedder = provider
	}
}

// WithSQLiteBackup enables periodic database snapshots written as timestamped
// siblings of dbPath, pruned to keep files. Interval and keep fall back to
// 24h and 7 when non-positive.
func WithSQLiteBackup(db Backupper, dbPath string, interval time.Duration, keep int) Option {
	return func(s *Scheduler) {
		s.backup = db
		s.backupPath = dbPath
		if interval > 0 {
			s.backupInterval = interval
		}
		if keep > 0 {
			s.backupKeep = keep
		}
	}
}

// New creates a [Scheduler] for the given session source. Jobs beyond the
// session reaper are enabled through options.
func New(sessions SessionReaper, opts ...Option) *Scheduler {
	s := &Scheduler{
		sessions:       sessions,
		backupInterval: 24 * time.Hour,
		backupKeep:     7,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = gocron.NewScheduler(time.UTC)
	return s
}

// Start registers the enabled jobs and launches the scheduler. The context
// bounds every job run; cancelling it (or calling [Scheduler.Stop]) stops
// the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.Every(reapInterval).SingletonMode().Do(s.runReap); err != nil {
		return fmt.Errorf("maintenance: schedule session reaper: %w", err)
	}
	jobs := 1

	if s.semantic != nil && s.embedder != nil {
		if _, err := s.cron.Every(backfillInterval).SingletonMode().Do(func() { s.runBackfill(s.ctx) }); err != nil {
			return fmt.Errorf("maintenance: schedule embedding backfill: %w", err)
		}
		jobs++
	}

	if s.backup != nil && s.backupPath != "" {
		if _, err := s.cron.Every(s.backupInterval).SingletonMode().Do(func() { s.runBackup(s.ctx) }); err != nil {
			return fmt.Errorf("maintenance: schedule backup: %w", err)
		}
		jobs++
	}

	s.cron.StartAsync()
	slog.Info("maintenance: scheduler started", "jobs", jobs)
	return nil
}

// Stop halts the scheduler and cancels any in-flight job contexts.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	slog.Info("maintenance: scheduler stopped")
}

// runReap ends idle sessions and writes study notes for any that had actual
// conversation. Zero-turn sessions are dropped silently; there is nothing to
// study.
func (s *Scheduler) runReap() {
	summaries := s.sessions.ReapIdle()
	if len(summaries) == 0 || s.notes == nil {
		return
	}
	for _, sum := range summaries {
		if sum.Turns == 0 {
			continue
		}
		generated := notes.Generate(sum)
		if err := s.notes.SaveAll(generated); err != nil {
			slog.Error("maintenance: saving notes for reaped session failed",
				"session_id", sum.SessionID,
				"error", err,
			)
			continue
		}
		slog.Info("maintenance: study notes written for reaped session",
			"session_id", sum.SessionID,
			"learner_id", sum.LearnerID,
			"notes", len(generated),
		)
	}
}
