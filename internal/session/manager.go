package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session ID does not name a live session.
var ErrNotFound = errors.New("session: not found")

// recentCap bounds how many ended-session summaries the manager retains in
// memory for statistics.
const recentCap = 100

// learnerKey identifies the one-active-session-per-learner+language slot.
type learnerKey struct {
	learnerID string
	language  string
}

// Manager is the concurrent registry of live tutoring sessions.
//
// At most one session is active per learner+language pair: starting a new
// session implicitly ends the previous one. Sessions idle past the configured
// timeout are ended by [Manager.ReapIdle], which the maintenance scheduler
// calls periodically.
type Manager struct {
	timeout      time.Duration
	maxExchanges int
	summariser   Summariser

	mu        sync.Mutex
	sessions  map[string]*Session
	byLearner map[learnerKey]string
	recent    []*Summary
	total     int
}

// ManagerConfig configures a [Manager].
type ManagerConfig struct {
	// Timeout is how long a session may sit idle before ReapIdle ends it.
	// Defaults to 30 minutes if zero.
	Timeout time.Duration

	// MaxExchanges caps each session's retained history. Defaults to 10 if
	// zero.
	MaxExchanges int

	// Summariser compresses history when the cap is exceeded. May be nil to
	// drop oldest exchanges instead.
	Summariser Summariser
}

// NewManager creates a [Manager] with the given configuration.
func NewManager(cfg ManagerConfig) *Manager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxExchanges := cfg.MaxExchanges
	if maxExchanges <= 0 {
		maxExchanges = defaultMaxExchanges
	}
	return &Manager{
		timeout:      timeout,
		maxExchanges: maxExchanges,
		summariser:   cfg.Summariser,
		sessions:     make(map[string]*Session),
		byLearner:    make(map[learnerKey]string),
	}
}

// StartRequest carries the inputs to [Manager.Start].
type StartRequest struct {
	// LearnerID and Language are required.
	LearnerID string
	Language  string

	// NativeLanguage is the learner's own language. Optional.
	NativeLanguage string

	// Mode describes the session style. Defaults to "conversation".
	Mode string

	// Persona names the tutor persona. Optional; the engine falls back to
	// its default persona.
	Persona string
}

// Start opens a new session for the given learner and language. If that pair
// already has an active session it is ended first and its summary discarded
// from the caller's view (it still counts toward statistics).
func (m *Manager) Start(req StartRequest) (*Session, error) {
	if strings.TrimSpace(req.LearnerID) == "" || strings.TrimSpace(req.Language) == "" {
		return nil, errors.New("session: learner id and language are required")
	}
	mode := req.Mode
	if mode == "" {
		mode = "conversation"
	}

	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.New().String(),
		LearnerID:      req.LearnerID,
		Language:       req.Language,
		NativeLanguage: req.NativeLanguage,
		Mode:           mode,
		Persona:        req.Persona,
		StartedAt:      now,
		history:        NewHistory(m.maxExchanges, m.summariser),
		lastActivity:   now,
		practicedSet:   make(map[string]struct{}),
		newWordSet:     make(map[string]struct{}),
		topicSet:       make(map[string]struct{}),
	}

	key := learnerKey{learnerID: req.LearnerID, language: req.Language}

	m.mu.Lock()
	if prevID, ok := m.byLearner[key]; ok {
		if prev, live := m.sessions[prevID]; live {
			m.endLocked(prev, now)
			slog.Info("session: superseded by new session",
				"session_id", prevID,
				"learner_id", req.LearnerID,
				"language", req.Language,
			)
		}
	}
	m.sessions[s.ID] = s
	m.byLearner[key] = s.ID
	m.mu.Unlock()

	slog.Info("session: started",
		"session_id", s.ID,
		"learner_id", s.LearnerID,
		"language", s.Language,
		"mode", s.Mode,
	)
	return s, nil
}

// Get returns the live session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Active returns the live session for a learner+language pair, or nil when
// none is active.
func (m *Manager) Active(learnerID, language string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byLearner[learnerKey{learnerID: learnerID, language: language}]
	if !ok {
		return nil
	}
	return m.sessions[id]
}

// End closes the session with the given ID and returns its summary.
func (m *Manager) End(id string) (*Summary, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sum := m.endLocked(s, now)
	m.mu.Unlock()

	slog.Info("session: ended",
		"session_id", id,
		"learner_id", sum.LearnerID,
		"language", sum.Language,
		"duration", sum.Duration,
		"turns", sum.Turns,
	)
	return sum, nil
}

// ReapIdle ends every session idle past the manager's timeout and returns
// their summaries, so callers can generate study notes for abandoned
// conversations.
func (m *Manager) ReapIdle() []*Summary {
	now := time.Now().UTC()
	cutoff := now.Add(-m.timeout)

	m.mu.Lock()
	var reaped []*Summary
	for _, s := range m.sessions {
		if s.LastActivity().After(cutoff) {
			continue
		}
		reaped = append(reaped, m.endLocked(s, now))
	}
	m.mu.Unlock()

	for _, sum := range reaped {
		slog.Info("session: reaped idle session",
			"session_id", sum.SessionID,
			"learner_id", sum.LearnerID,
			"idle_timeout", m.timeout,
		)
	}
	return reaped
}

// endLocked removes s from the registry and records its summary. Must be
// called with m.mu held.
func (m *Manager) endLocked(s *Session, now time.Time) *Summary {
	s.mu.Lock()
	sum := s.summary(now)
	s.mu.Unlock()

	delete(m.sessions, s.ID)
	key := learnerKey{learnerID: s.LearnerID, language: s.Language}
	if m.byLearner[key] == s.ID {
		delete(m.byLearner, key)
	}

	m.total++
	m.recent = append(m.recent, sum)
	if len(m.recent) > recentCap {
		m.recent = m.recent[len(m.recent)-recentCap:]
	}
	return sum
}

// Stats aggregates session activity for dashboards and health reporting.
type Stats struct {
	// TotalSessions counts sessions ended since the manager was created.
	TotalSessions int

	// ActiveSessions counts currently live sessions.
	ActiveSessions int

	// SessionsToday counts sessions (live or ended) started today, UTC.
	SessionsToday int

	// AverageEngagement is the mean engagement across recently ended
	// sessions with at least one turn.
	AverageEngagement float64

	// AverageDuration is the mean duration of recently ended sessions.
	AverageDuration time.Duration

	// TotalDuration sums the duration of recently ended sessions.
	TotalDuration time.Duration
}

// Stats returns aggregate statistics over live and recently ended sessions.
func (m *Manager) Stats() Stats {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		TotalSessions:  m.total,
		ActiveSessions: len(m.sessions),
	}
	for _, s := range m.sessions {
		if !s.StartedAt.Before(today) {
			st.SessionsToday++
		}
	}

	var engagementSum float64
	var engaged int
	for _, sum := range m.recent {
		if !sum.StartedAt.Before(today) {
			st.SessionsToday++
		}
		st.TotalDuration += sum.Duration
		if sum.Turns > 0 {
			engagementSum += sum.AverageEngagement
			engaged++
		}
	}
	if engaged > 0 {
		st.AverageEngagement = engagementSum / float64(engaged)
	}
	if len(m.recent) > 0 {
		st.AverageDuration = st.TotalDuration / time.Duration(len(m.recent))
	}
	return st
}
