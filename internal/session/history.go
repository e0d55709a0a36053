package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/nabu-app/nabu/pkg/provider/llm"
)

// History is the bounded conversation history of one session.
//
// It holds an ordered list of [llm.Message] values, appended one exchange
// (user + assistant pair) at a time. When the number of retained exchanges
// exceeds the cap, the oldest half is compressed into a summary by the
// configured [Summariser] and replaced with a compact system message. This
// keeps long sessions inside the prompt budget while preserving what the
// learner has covered.
//
// All methods are safe for concurrent use.
type History struct {
	maxExchanges int
	summariser   Summariser

	mu        sync.Mutex
	messages  []llm.Message
	summaries []string
}

// NewHistory creates a [History] capped at maxExchanges exchanges. If
// maxExchanges is zero or negative the default of 10 is used. summariser may
// be nil, in which case the oldest exchanges are dropped instead of
// summarised when the cap is exceeded.
func NewHistory(maxExchanges int, summariser Summariser) *History {
	if maxExchanges <= 0 {
		maxExchanges = defaultMaxExchanges
	}
	return &History{
		maxExchanges: maxExchanges,
		summariser:   summariser,
	}
}

// Append records one completed exchange. If the history now exceeds its cap,
// the oldest half of the retained exchanges is folded into a summary.
//
// A summarisation failure leaves the history intact (over cap) and is
// reported to the caller; the next Append retries.
func (h *History) Append(ctx context.Context, user, assistant llm.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, user, assistant)

	if len(h.messages) <= h.maxExchanges*2 {
		return nil
	}
	if err := h.foldOldest(ctx); err != nil {
		return fmt.Errorf("history fold: %w", err)
	}
	return nil
}

// Messages returns the conversation history ready for a prompt: accumulated
// summaries as leading system messages, then the retained exchanges in order.
func (h *History) Messages() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]llm.Message, 0, len(h.summaries)+len(h.messages))
	for _, s := range h.summaries {
		result = append(result, llm.Message{
			Role:    "system",
			Content: fmt.Sprintf("[Previous conversation summary]: %s", s),
		})
	}
	result = append(result, h.messages...)
	return result
}

// Exchanges returns the number of retained (unsummarised) exchanges.
func (h *History) Exchanges() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages) / 2
}

// foldOldest compresses the oldest half of the retained messages into a
// summary. Must be called with h.mu held.
func (h *History) foldOldest(ctx context.Context) error {
	half := len(h.messages) / 2
	// Keep user/assistant pairs intact.
	half += half % 2
	if half >= len(h.messages) {
		half = len(h.messages) - 2
	}
	if half <= 0 {
		return nil
	}

	if h.summariser == nil {
		h.messages = append(h.messages[:0], h.messages[half:]...)
		return nil
	}

	toSummarise := make([]llm.Message, half)
	copy(toSummarise, h.messages[:half])

	// Release the lock for the (potentially slow) LLM call.
	h.mu.Unlock()
	summary, err := h.summariser.Summarise(ctx, toSummarise)
	h.mu.Lock()
	if err != nil {
		return err
	}

	h.messages = append(h.messages[:0], h.messages[half:]...)
	h.summaries = append(h.summaries, summary)
	return nil
}
