package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nabu-app/nabu/pkg/provider/llm"
	llmmock "github.com/nabu-app/nabu/pkg/provider/llm/mock"
)

func TestLLMSummariser_Summarise(t *testing.T) {
	t.Run("empty messages returns empty string", func(t *testing.T) {
		p := &llmmock.Provider{}
		s := NewLLMSummariser(p)

		result, err := s.Summarise(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
		if len(p.CompleteCalls) != 0 {
			t.Errorf("expected no LLM calls for empty input, got %d", len(p.CompleteCalls))
		}
	})

	t.Run("summarises messages via LLM", func(t *testing.T) {
		p := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{
				Content: "Practised food vocabulary; corrected ser/estar confusion.",
			},
		}
		s := NewLLMSummariser(p)

		msgs := []llm.Message{
			{Role: "user", Content: "Me gusta la comida española."},
			{Role: "assistant", Content: "¡Qué bien! ¿Cuál es tu plato favorito?"},
		}

		result, err := s.Summarise(context.Background(), msgs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "Practised food vocabulary; corrected ser/estar confusion." {
			t.Errorf("unexpected result: %q", result)
		}

		if len(p.CompleteCalls) != 1 {
			t.Fatalf("expected 1 Complete call, got %d", len(p.CompleteCalls))
		}

		call := p.CompleteCalls[0]
		if call.Req.SystemPrompt != summarisationPrompt {
			t.Errorf("expected summarisation prompt, got %q", call.Req.SystemPrompt)
		}
		if call.Req.Temperature != summarisationTemperature {
			t.Errorf("expected temperature %v, got %v", summarisationTemperature, call.Req.Temperature)
		}
		if len(call.Req.Messages) != 1 {
			t.Fatalf("expected 1 message in request, got %d", len(call.Req.Messages))
		}
		if call.Req.Messages[0].Role != "user" {
			t.Errorf("expected user role, got %q", call.Req.Messages[0].Role)
		}
		if !strings.Contains(call.Req.Messages[0].Content, "comida española") {
			t.Errorf("transcript missing learner text: %q", call.Req.Messages[0].Content)
		}
	})

	t.Run("uses Name over Role when formatting", func(t *testing.T) {
		p := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "summary"},
		}
		s := NewLLMSummariser(p)

		msgs := []llm.Message{
			{Role: "user", Name: "Lena", Content: "Hola, ¿cómo estás?"},
		}

		_, err := s.Summarise(context.Background(), msgs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		call := p.CompleteCalls[0]
		if !strings.Contains(call.Req.Messages[0].Content, "[Lena]") {
			t.Errorf("expected speaker name Lena in content, got %q", call.Req.Messages[0].Content)
		}
	})

	t.Run("propagates LLM errors", func(t *testing.T) {
		p := &llmmock.Provider{
			CompleteErr: errors.New("model overloaded"),
		}
		s := NewLLMSummariser(p)

		msgs := []llm.Message{
			{Role: "user", Content: "Hola"},
		}

		_, err := s.Summarise(context.Background(), msgs)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "model overloaded") {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})
}
