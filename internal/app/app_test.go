package app_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nabu-app/nabu/internal/app"
	"github.com/nabu-app/nabu/internal/config"
	"github.com/nabu-app/nabu/internal/curriculum"
	learnermock "github.com/nabu-app/nabu/pkg/learner/mock"
	llmmock "github.com/nabu-app/nabu/pkg/provider/llm/mock"
)

// testConfig returns a config that runs entirely in process memory.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Storage.Driver = config.DriverMemory
	return cfg
}

// testProviders returns providers with a mock generation backend.
func testProviders() *app.Providers {
	return &app.Providers{
		LLM: &llmmock.Provider{},
	}
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	catalog := &curriculum.Catalog{}
	err := catalog.Add(curriculum.WordList{
		Name:     "Basics",
		Language: "es",
		Words: []curriculum.WordEntry{
			{Word: "hola", Translation: "hello", Level: curriculum.LevelA1},
		},
	})
	if err != nil {
		t.Fatalf("catalog.Add() error: %v", err)
	}

	application, err := app.New(
		context.Background(),
		testConfig(),
		testProviders(),
		app.WithStore(&learnermock.Store{}),
		app.WithCatalog(catalog),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application == nil {
		t.Fatal("New() returned nil app")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	})
}

func TestNew_RequiresLLM(t *testing.T) {
	t.Parallel()

	_, err := app.New(context.Background(), testConfig(), &app.Providers{})
	if err == nil {
		t.Fatal("expected error when no generation provider is configured")
	}
	if !strings.Contains(err.Error(), "providers.llm") {
		t.Errorf("error should name the missing provider, got: %v", err)
	}
}

func TestNew_LoadsWordLists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "basics.yaml")
	content := `list:
  name: "Spanish basics"
  language: es
words:
  - word: hola
    translation: hello
    level: A1
  - word: gato
    translation: cat
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write word list: %v", err)
	}

	cfg := testConfig()
	cfg.Curriculum.Files = []string{path}

	application, err := app.New(context.Background(), cfg, testProviders())
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	})

	// A missing list file surfaces as an init error.
	bad := testConfig()
	bad.Curriculum.Files = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := app.New(context.Background(), bad, testProviders()); err == nil {
		t.Fatal("expected error for missing word-list file")
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	application, err := app.New(context.Background(), testConfig(), testProviders())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	// A second Shutdown is a no-op.
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	application, err := app.New(context.Background(), testConfig(), testProviders())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Run in background.
	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	// Give Run a moment to start the listener and scheduler.
	time.Sleep(50 * time.Millisecond)

	// Cancel context to trigger shutdown.
	cancel()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}
