package curriculum_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nabu-app/nabu/internal/curriculum"
	"github.com/nabu-app/nabu/pkg/learner"
	learnermock "github.com/nabu-app/nabu/pkg/learner/mock"
)

func TestImporter_Seed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := learner.NewMemStore()

	// The learner already knows one list word well.
	if err := store.UpsertVocabulary(ctx, learner.VocabularyItem{
		LearnerID: "lena", Language: "es", Word: "hola",
		MasteryLevel: 0.8, TimesSeen: 12, TimesUsed: 7,
	}); err != nil {
		t.Fatalf("setup UpsertVocabulary: %v", err)
	}

	imp := curriculum.NewImporter(store)
	list := basicsList()
	list.Words = append(list.Words, curriculum.WordEntry{Word: " Sol ", Translation: "sun"})

	created, err := imp.Seed(ctx, "lena", list)
	if err != nil {
		t.Fatalf("Seed: unexpected error: %v", err)
	}
	if created != 3 {
		t.Errorf("created = %d, want 3 (hola already existed)", created)
	}

	// Existing item untouched.
	hola, err := store.GetWord(ctx, "lena", "es", "hola")
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}
	if hola.MasteryLevel != 0.8 || hola.TimesSeen != 12 {
		t.Errorf("existing item was modified: %+v", hola)
	}

	// New items start at mastery 0 with the list translation.
	gato, err := store.GetWord(ctx, "lena", "es", "gato")
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}
	if gato == nil {
		t.Fatal("gato was not seeded")
	}
	if gato.MasteryLevel != 0 || gato.TimesSeen != 0 || gato.TimesUsed != 0 {
		t.Errorf("seeded item should start untouched: %+v", gato)
	}
	if gato.Translation != "cat" {
		t.Errorf("translation = %q, want cat", gato.Translation)
	}

	// Words are normalised to their storage key form.
	sol, err := store.GetWord(ctx, "lena", "es", "sol")
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}
	if sol == nil {
		t.Fatal("Sol should be seeded lowercase as sol")
	}
}

func TestImporter_SeedRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	imp := curriculum.NewImporter(learner.NewMemStore())

	if _, err := imp.Seed(ctx, "", basicsList()); err == nil {
		t.Error("Seed: expected error for empty learner id")
	}
	if _, err := imp.Seed(ctx, "lena", curriculum.WordList{Language: "es"}); err == nil {
		t.Error("Seed: expected error for invalid list")
	}
}

func TestImporter_SeedPropagatesStoreError(t *testing.T) {
	t.Parallel()

	store := &learnermock.Store{
		SeedVocabularyErr: learner.ErrStorageUnavailable,
	}
	imp := curriculum.NewImporter(store)

	_, err := imp.Seed(context.Background(), "lena", basicsList())
	if !errors.Is(err, learner.ErrStorageUnavailable) {
		t.Fatalf("Seed: expected ErrStorageUnavailable, got %v", err)
	}
}
