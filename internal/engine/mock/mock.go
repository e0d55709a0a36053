// Package mock provides an in-memory mock implementation of [engine.TurnEngine]
// for use in unit tests.
//
// The mock records every call and allows the test to configure return values
// via exported fields. It is safe for concurrent use.
//
// Example:
//
//	e := &mock.TurnEngine{
//	    ProcessTurnResult: &engine.TurnResult{
//	        Reply: "¡Muy bien! ¿Qué comiste hoy?",
//	    },
//	}
//	res, err := e.ProcessTurn(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/nabu-app/nabu/internal/engine"
)

// Compile-time interface assertion.
var _ engine.TurnEngine = (*TurnEngine)(nil)

// ProcessTurnCall records the arguments of a single [TurnEngine.ProcessTurn] call.
type ProcessTurnCall struct {
	// Req is the turn request passed to ProcessTurn.
	Req engine.TurnRequest
}

// TurnEngine is a mock implementation of [engine.TurnEngine].
// The exported Result and Error fields control return values; Calls
// accumulates invocation records.
type TurnEngine struct {
	mu sync.Mutex

	// ProcessTurnResult is returned by [TurnEngine.ProcessTurn] (may be nil).
	ProcessTurnResult *engine.TurnResult

	// ProcessTurnError is the error returned by [TurnEngine.ProcessTurn].
	ProcessTurnError error

	// ProcessTurnFunc, when set, overrides ProcessTurnResult and
	// ProcessTurnError entirely. The call is still recorded.
	ProcessTurnFunc func(ctx context.Context, req engine.TurnRequest) (*engine.TurnResult, error)

	// ProcessTurnCalls records all ProcessTurn invocations.
	ProcessTurnCalls []ProcessTurnCall
}

// ProcessTurn implements [engine.TurnEngine].
func (t *TurnEngine) ProcessTurn(ctx context.Context, req engine.TurnRequest) (*engine.TurnResult, error) {
	t.mu.Lock()
	t.ProcessTurnCalls = append(t.ProcessTurnCalls, ProcessTurnCall{Req: req})
	fn := t.ProcessTurnFunc
	res, err := t.ProcessTurnResult, t.ProcessTurnError
	t.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return res, err
}

// Calls returns a copy of the recorded invocations.
func (t *TurnEngine) Calls() []ProcessTurnCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ProcessTurnCall, len(t.ProcessTurnCalls))
	copy(out, t.ProcessTurnCalls)
	return out
}
