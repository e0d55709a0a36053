// Package api exposes the tutoring engine over HTTP.
//
// The surface is a small JSON API: sessions are started and ended, turns are
// posted against a session, and vocabulary, profiles, and study notes are
// read back. Every route is wrapped in [observe.Middleware] for tracing,
// request logging, and latency metrics; errors come back as a JSON object
// with a stable machine-readable code.
//
// The package holds no learning logic. Handlers translate between wire
// shapes and the engine, session manager, and stores they front.
package api

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nabu-app/nabu/internal/curriculum"
	"github.com/nabu-app/nabu/internal/engine"
	"github.com/nabu-app/nabu/internal/health"
	"github.com/nabu-app/nabu/internal/notes"
	"github.com/nabu-app/nabu/internal/observe"
	"github.com/nabu-app/nabu/internal/session"
	"github.com/nabu-app/nabu/pkg/learner"
)

// maxBodyBytes caps request body size. Turn utterances are short; anything
// near this limit is not a legitimate request.
const maxBodyBytes = 1 << 20

// Server owns the HTTP handlers and their dependencies.
type Server struct {
	engine   engine.TurnEngine
	sessions *session.Manager
	store    learner.Store
	notes    notes.Store
	catalog  *curriculum.Catalog
	health   *health.Handler
	metrics  *observe.Metrics

	// inFlight tracks sessions with a turn mid-pipeline, so overlapping
	// turns on one session are rejected instead of queued.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a [Server].
type Option func(*Server)

// WithNotes enables the note search route and note persistence on session
// end.
func WithNotes(store notes.Store) Option {
	return func(s *Server) { s.notes = store }
}

// WithHealth registers the /healthz and /readyz routes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithCurriculum enables the vocabulary seed route, which copies a catalog
// word list into a learner's tracked vocabulary.
func WithCurriculum(catalog *curriculum.Catalog) Option {
	return func(s *Server) { s.catalog = catalog }
}

// New creates a [Server] for the given engine, session manager, and learner
// store.
func New(eng engine.TurnEngine, sessions *session.Manager, store learner.Store, metrics *observe.Metrics, opts ...Option) *Server {
	s := &Server{
		engine:   eng,
		sessions: sessions,
		store:    store,
		metrics:  metrics,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the full route table wrapped in the observability middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/sessions", s.handleStartSession)
	mux.HandleFunc("POST /v1/sessions/{id}/turns", s.handleTurn)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleEndSession)

	mux.HandleFunc("GET /v1/learners/{learner}/languages/{lang}/vocabulary", s.handleVocabulary)
	mux.HandleFunc("GET /v1/learners/{learner}/languages/{lang}/profile", s.handleProfile)
	if s.catalog != nil {
		mux.HandleFunc("POST /v1/learners/{learner}/languages/{lang}/vocabulary/seed", s.handleSeedVocabulary)
	}

	if s.notes != nil {
		mux.HandleFunc("GET /v1/notes/search", s.handleNoteSearch)
	}
	if s.health != nil {
		s.health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// beginTurn marks a session as processing a turn. It reports false when a
// turn is already in flight for that session.
func (s *Server) beginTurn(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

// endTurn clears the in-flight mark for a session.
func (s *Server) endTurn(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sessionID)
}
