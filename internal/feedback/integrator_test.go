package feedback_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nabu-app/nabu/internal/difficulty"
	"github.com/nabu-app/nabu/internal/feedback"
	"github.com/nabu-app/nabu/pkg/learner"
	"github.com/nabu-app/nabu/pkg/learner/mock"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newIntegrator(t *testing.T, store learner.Store, opts ...feedback.Option) *feedback.Integrator {
	t.Helper()
	adapter, err := difficulty.New(difficulty.DefaultParams())
	if err != nil {
		t.Fatalf("difficulty.New: unexpected error: %v", err)
	}
	in, err := feedback.New(store, adapter, feedback.DefaultParams(), opts...)
	if err != nil {
		t.Fatalf("feedback.New: unexpected error: %v", err)
	}
	return in
}

func seedVocab(t *testing.T, store *learner.MemStore, items ...learner.VocabularyItem) {
	t.Helper()
	for _, it := range items {
		if err := store.UpsertVocabulary(context.Background(), it); err != nil {
			t.Fatalf("UpsertVocabulary(%q): unexpected error: %v", it.Word, err)
		}
	}
}

func getWord(t *testing.T, store *learner.MemStore, word string) learner.VocabularyItem {
	t.Helper()
	item, err := store.GetWord(context.Background(), "lena", "es", word)
	if err != nil {
		t.Fatalf("GetWord(%q): unexpected error: %v", word, err)
	}
	if item == nil {
		t.Fatalf("GetWord(%q): item does not exist", word)
	}
	return *item
}

// validAnalysis returns an analysis with scores that pass adapter validation
// and no word judgements.
func validAnalysis() learner.TurnAnalysis {
	return learner.TurnAnalysis{
		EngagementScore:    0.5,
		DifficultyObserved: 2.0,
	}
}

func TestApply_CorrectUseStepsMastery(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	prior := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seedVocab(t, store, learner.VocabularyItem{
		LearnerID:    "lena",
		Language:     "es",
		Word:         "casa",
		Translation:  "house",
		MasteryLevel: 0.3,
		TimesSeen:    2,
		TimesUsed:    1,
		LastSeenAt:   &prior,
	})

	in := newIntegrator(t, store)
	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{{Word: "casa", UsedCorrectly: true}}

	_, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena",
		Language:  "es",
		Analysis:  analysis,
	})
	if err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	got := getWord(t, store, "casa")
	if !approxEqual(got.MasteryLevel, 0.4) {
		t.Errorf("MasteryLevel = %v, want 0.4", got.MasteryLevel)
	}
	if got.TimesUsed != 2 {
		t.Errorf("TimesUsed = %d, want 2", got.TimesUsed)
	}
	if got.TimesSeen != 2 {
		t.Errorf("TimesSeen = %d, want 2 (unchanged: casa was not shown)", got.TimesSeen)
	}
	if got.LastUsedAt == nil || time.Since(*got.LastUsedAt) > 5*time.Second {
		t.Errorf("LastUsedAt = %v, want recent timestamp", got.LastUsedAt)
	}
	if got.LastSeenAt == nil || !got.LastSeenAt.Equal(prior) {
		t.Errorf("LastSeenAt = %v, want unchanged %v", got.LastSeenAt, prior)
	}
	if got.Translation != "house" {
		t.Errorf("Translation = %q, want preserved %q", got.Translation, "house")
	}
}

func TestApply_IncorrectUseStepsDown(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	seedVocab(t, store, learner.VocabularyItem{
		LearnerID: "lena", Language: "es", Word: "perro", MasteryLevel: 0.5,
	})

	in := newIntegrator(t, store)
	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{{Word: "perro", UsedCorrectly: false}}

	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena", Language: "es", Analysis: analysis,
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	got := getWord(t, store, "perro")
	if !approxEqual(got.MasteryLevel, 0.45) {
		t.Errorf("MasteryLevel = %v, want 0.45", got.MasteryLevel)
	}
	if got.TimesUsed != 1 {
		t.Errorf("TimesUsed = %d, want 1", got.TimesUsed)
	}
}

func TestApply_MasteryBounds(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	seedVocab(t, store,
		learner.VocabularyItem{LearnerID: "lena", Language: "es", Word: "pan", MasteryLevel: 0.95},
		learner.VocabularyItem{LearnerID: "lena", Language: "es", Word: "sol", MasteryLevel: 0.03},
	)

	in := newIntegrator(t, store)
	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{
		{Word: "pan", UsedCorrectly: true},
		{Word: "sol", UsedCorrectly: false},
	}

	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena", Language: "es", Analysis: analysis,
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	if got := getWord(t, store, "pan"); !approxEqual(got.MasteryLevel, 1.0) {
		t.Errorf("pan MasteryLevel = %v, want capped 1.0", got.MasteryLevel)
	}
	if got := getWord(t, store, "sol"); !approxEqual(got.MasteryLevel, 0.0) {
		t.Errorf("sol MasteryLevel = %v, want floored 0.0", got.MasteryLevel)
	}
}

func TestApply_ShownItemsGainExposure(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	item := learner.VocabularyItem{
		LearnerID: "lena", Language: "es", Word: "agua",
		Translation: "water", MasteryLevel: 0.2, TimesSeen: 3,
	}
	seedVocab(t, store, item)

	in := newIntegrator(t, store)
	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena",
		Language:  "es",
		Shown:     []learner.VocabularyItem{item},
		Analysis:  validAnalysis(),
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	got := getWord(t, store, "agua")
	if got.TimesSeen != 4 {
		t.Errorf("TimesSeen = %d, want 4", got.TimesSeen)
	}
	if got.TimesUsed != 0 {
		t.Errorf("TimesUsed = %d, want 0 (agua was shown, not used)", got.TimesUsed)
	}
	if !approxEqual(got.MasteryLevel, 0.2) {
		t.Errorf("MasteryLevel = %v, want unchanged 0.2 (exposure alone moves no mastery)", got.MasteryLevel)
	}
	if got.LastSeenAt == nil || time.Since(*got.LastSeenAt) > 5*time.Second {
		t.Errorf("LastSeenAt = %v, want recent timestamp", got.LastSeenAt)
	}
}

func TestApply_ShownAndUsedSameWord(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	item := learner.VocabularyItem{
		LearnerID: "lena", Language: "es", Word: "casa", MasteryLevel: 0.3, TimesSeen: 1, TimesUsed: 1,
	}
	seedVocab(t, store, item)

	in := newIntegrator(t, store)
	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{{Word: "casa", UsedCorrectly: true}}

	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena",
		Language:  "es",
		Shown:     []learner.VocabularyItem{item},
		Analysis:  analysis,
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	got := getWord(t, store, "casa")
	if got.TimesSeen != 2 {
		t.Errorf("TimesSeen = %d, want 2", got.TimesSeen)
	}
	if got.TimesUsed != 2 {
		t.Errorf("TimesUsed = %d, want 2", got.TimesUsed)
	}
	if !approxEqual(got.MasteryLevel, 0.4) {
		t.Errorf("MasteryLevel = %v, want 0.4", got.MasteryLevel)
	}
	if got.LastSeenAt == nil || got.LastUsedAt == nil {
		t.Errorf("timestamps = (%v, %v), want both set", got.LastSeenAt, got.LastUsedAt)
	}
}

func TestApply_CreatesUnknownWords(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	in := newIntegrator(t, store)

	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{
		{Word: "leche", UsedCorrectly: true},
		{Word: "queso", UsedCorrectly: false},
	}

	res, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena", Language: "es", Analysis: analysis,
	})
	if err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}
	if want := []string{"leche", "queso"}; !slices.Equal(res.CreatedWords, want) {
		t.Errorf("CreatedWords = %v, want %v", res.CreatedWords, want)
	}
	if res.Proficiency <= 0 {
		t.Errorf("Proficiency = %v, want positive estimate", res.Proficiency)
	}

	leche := getWord(t, store, "leche")
	if !approxEqual(leche.MasteryLevel, 0.3) {
		t.Errorf("leche MasteryLevel = %v, want initial 0.3 for correct first use", leche.MasteryLevel)
	}
	if leche.TimesUsed != 1 || leche.TimesSeen != 0 {
		t.Errorf("leche counters = (seen %d, used %d), want (0, 1)", leche.TimesSeen, leche.TimesUsed)
	}
	if leche.LastSeenAt != nil {
		t.Errorf("leche LastSeenAt = %v, want nil (never shown)", leche.LastSeenAt)
	}
	if leche.LastUsedAt == nil {
		t.Error("leche LastUsedAt = nil, want set")
	}

	queso := getWord(t, store, "queso")
	if !approxEqual(queso.MasteryLevel, 0.1) {
		t.Errorf("queso MasteryLevel = %v, want initial 0.1 for incorrect first use", queso.MasteryLevel)
	}
}

func TestApply_ProfileSmoothing(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	if err := store.UpsertProfile(context.Background(), learner.Profile{
		LearnerID:           "lena",
		Language:            "es",
		ProficiencyEstimate: 2.0,
		EngagementScore:     0.5,
	}); err != nil {
		t.Fatalf("UpsertProfile: unexpected error: %v", err)
	}

	in := newIntegrator(t, store)
	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena",
		Language:  "es",
		Analysis: learner.TurnAnalysis{
			EngagementScore:    1.0,
			DifficultyObserved: 4.0,
		},
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	prof, err := store.GetProfile(context.Background(), "lena", "es")
	if err != nil {
		t.Fatalf("GetProfile: unexpected error: %v", err)
	}
	if prof == nil {
		t.Fatal("GetProfile: profile does not exist")
	}
	// alpha 0.1: 2.0 + 0.1*(4.0-2.0) = 2.2; beta 0.3: 0.3*1.0 + 0.7*0.5 = 0.65.
	if !approxEqual(prof.ProficiencyEstimate, 2.2) {
		t.Errorf("ProficiencyEstimate = %v, want 2.2", prof.ProficiencyEstimate)
	}
	if !approxEqual(prof.EngagementScore, 0.65) {
		t.Errorf("EngagementScore = %v, want 0.65", prof.EngagementScore)
	}
	if prof.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero, want set")
	}
}

func TestApply_CreatesProfileOnFirstTurn(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	in := newIntegrator(t, store)

	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena",
		Language:  "es",
		Analysis: learner.TurnAnalysis{
			EngagementScore:    0.6,
			DifficultyObserved: 2.0,
		},
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	prof, err := store.GetProfile(context.Background(), "lena", "es")
	if err != nil {
		t.Fatalf("GetProfile: unexpected error: %v", err)
	}
	if prof == nil {
		t.Fatal("GetProfile: profile does not exist after first turn")
	}
	// Seeded at the scale floor 1.0, then smoothed: 1.0 + 0.1*(2.0-1.0) = 1.1.
	if !approxEqual(prof.ProficiencyEstimate, 1.1) {
		t.Errorf("ProficiencyEstimate = %v, want 1.1", prof.ProficiencyEstimate)
	}
	if !approxEqual(prof.EngagementScore, 0.18) {
		t.Errorf("EngagementScore = %v, want 0.18", prof.EngagementScore)
	}
	if prof.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, want set")
	}
}

func TestApply_IsCumulative(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	seedVocab(t, store, learner.VocabularyItem{
		LearnerID: "lena", Language: "es", Word: "casa", MasteryLevel: 0.3, TimesUsed: 1,
	})

	in := newIntegrator(t, store)
	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{{Word: "casa", UsedCorrectly: true}}
	req := feedback.ApplyRequest{LearnerID: "lena", Language: "es", Analysis: analysis}

	for i := 0; i < 2; i++ {
		if _, err := in.Apply(context.Background(), req); err != nil {
			t.Fatalf("Apply #%d: unexpected error: %v", i+1, err)
		}
	}

	got := getWord(t, store, "casa")
	if !approxEqual(got.MasteryLevel, 0.5) {
		t.Errorf("MasteryLevel = %v, want 0.5 (two correct uses, no deduplication)", got.MasteryLevel)
	}
	if got.TimesUsed != 3 {
		t.Errorf("TimesUsed = %d, want 3", got.TimesUsed)
	}
}

func TestApply_NormalisesAnalysisWords(t *testing.T) {
	t.Parallel()

	store := learner.NewMemStore()
	seedVocab(t, store, learner.VocabularyItem{
		LearnerID: "lena", Language: "es", Word: "casa", MasteryLevel: 0.3,
	})

	in := newIntegrator(t, store)
	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{{Word: "  CASA ", UsedCorrectly: true}}

	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena", Language: "es", Analysis: analysis,
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	got := getWord(t, store, "casa")
	if !approxEqual(got.MasteryLevel, 0.4) {
		t.Errorf("MasteryLevel = %v, want 0.4 (judgement folded into stored casa)", got.MasteryLevel)
	}

	all, err := store.GetVocabulary(context.Background(), "lena", "es")
	if err != nil {
		t.Fatalf("GetVocabulary: unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("store holds %d items, want 1 (no duplicate from unnormalised word)", len(all))
	}
}

func TestApply_EmptyIdentifiersRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		learnerID string
		language  string
	}{
		{"empty learner id", "", "es"},
		{"empty language", "lena", ""},
		{"both empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &mock.Store{}
			in := newIntegrator(t, store)

			_, err := in.Apply(context.Background(), feedback.ApplyRequest{
				LearnerID: tt.learnerID,
				Language:  tt.language,
				Analysis:  validAnalysis(),
			})
			if !errors.Is(err, difficulty.ErrInvalidInput) {
				t.Fatalf("Apply: error = %v, want ErrInvalidInput", err)
			}
			if got := store.CallCount("ApplyTurn"); got != 0 {
				t.Errorf("ApplyTurn called %d times, want 0", got)
			}
		})
	}
}

func TestApply_InvalidAnalysisScoresRejected(t *testing.T) {
	t.Parallel()

	store := &mock.Store{}
	in := newIntegrator(t, store)

	_, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena",
		Language:  "es",
		Analysis: learner.TurnAnalysis{
			EngagementScore:    0.5,
			DifficultyObserved: 9.9,
		},
	})
	if !errors.Is(err, difficulty.ErrInvalidInput) {
		t.Fatalf("Apply: error = %v, want ErrInvalidInput", err)
	}
	if got := store.CallCount("ApplyTurn"); got != 0 {
		t.Errorf("ApplyTurn called %d times, want 0 (nothing commits on invalid scores)", got)
	}
}

func TestApply_StorageReadErrorPropagates(t *testing.T) {
	t.Parallel()

	store := &mock.Store{GetVocabularyErr: learner.ErrStorageUnavailable}
	in := newIntegrator(t, store)

	_, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena", Language: "es", Analysis: validAnalysis(),
	})
	if !errors.Is(err, learner.ErrStorageUnavailable) {
		t.Fatalf("Apply: error = %v, want ErrStorageUnavailable", err)
	}
	if got := store.CallCount("ApplyTurn"); got != 0 {
		t.Errorf("ApplyTurn called %d times, want 0", got)
	}
}

func TestApply_CommitsThroughSingleStoreCall(t *testing.T) {
	t.Parallel()

	store := &mock.Store{}
	in := newIntegrator(t, store)

	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{{Word: "casa", UsedCorrectly: true}}

	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena", Language: "es", Analysis: analysis,
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	if got := store.CallCount("ApplyTurn"); got != 1 {
		t.Errorf("ApplyTurn called %d times, want 1", got)
	}
	// Individual upserts would break per-turn atomicity.
	if got := store.CallCount("UpsertVocabulary"); got != 0 {
		t.Errorf("UpsertVocabulary called %d times, want 0", got)
	}
	if got := store.CallCount("UpsertProfile"); got != 0 {
		t.Errorf("UpsertProfile called %d times, want 0", got)
	}
}

func TestApply_CommitFailureLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	store := &mock.Store{ApplyTurnErr: learner.ErrStorageUnavailable}
	in := newIntegrator(t, store)

	_, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena", Language: "es", Analysis: validAnalysis(),
	})
	if !errors.Is(err, learner.ErrStorageUnavailable) {
		t.Fatalf("Apply: error = %v, want ErrStorageUnavailable", err)
	}
}

func TestApply_AuditRecordsAppliedTurns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "turns.jsonl")
	store := learner.NewMemStore()
	in := newIntegrator(t, store, feedback.WithAudit(feedback.NewAuditLog(path)))

	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{{Word: "casa", UsedCorrectly: true}}
	analysis.Topics = []string{"home"}

	item := learner.VocabularyItem{LearnerID: "lena", Language: "es", Word: "agua", MasteryLevel: 0.2}
	seedVocab(t, store, item)

	req := feedback.ApplyRequest{
		LearnerID: "lena",
		Language:  "es",
		Shown:     []learner.VocabularyItem{item},
		Analysis:  analysis,
	}
	for i := 0; i < 2; i++ {
		if _, err := in.Apply(context.Background(), req); err != nil {
			t.Fatalf("Apply #%d: unexpected error: %v", i+1, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit log has %d lines, want 2:\n%s", len(lines), data)
	}

	var rec feedback.Record
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("Unmarshal audit line: %v", err)
	}
	if rec.LearnerID != "lena" || rec.Language != "es" {
		t.Errorf("record identity = %q/%q, want lena/es", rec.LearnerID, rec.Language)
	}
	if len(rec.WordsShown) != 1 || rec.WordsShown[0] != "agua" {
		t.Errorf("WordsShown = %v, want [agua]", rec.WordsShown)
	}
	if len(rec.WordsUsed) != 1 || rec.WordsUsed[0].Word != "casa" || !rec.WordsUsed[0].Correct {
		t.Errorf("WordsUsed = %v, want casa judged correct", rec.WordsUsed)
	}
	if !approxEqual(rec.DifficultyObserved, 2.0) {
		t.Errorf("DifficultyObserved = %v, want 2.0", rec.DifficultyObserved)
	}
	if rec.Timestamp.IsZero() {
		t.Error("Timestamp is zero, want set")
	}
}

func TestApply_AuditFailureDoesNotFailTurn(t *testing.T) {
	t.Parallel()

	// Parent directory does not exist, so every append fails.
	path := filepath.Join(t.TempDir(), "missing", "turns.jsonl")
	store := learner.NewMemStore()
	in := newIntegrator(t, store, feedback.WithAudit(feedback.NewAuditLog(path)))

	analysis := validAnalysis()
	analysis.WordsUsed = []learner.WordUsage{{Word: "casa", UsedCorrectly: true}}

	if _, err := in.Apply(context.Background(), feedback.ApplyRequest{
		LearnerID: "lena", Language: "es", Analysis: analysis,
	}); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}

	// The turn itself must have committed.
	got := getWord(t, store, "casa")
	if got.TimesUsed != 1 {
		t.Errorf("TimesUsed = %d, want 1 despite audit failure", got.TimesUsed)
	}
}

func TestNew_RejectsInvalidParams(t *testing.T) {
	t.Parallel()

	adapter, err := difficulty.New(difficulty.DefaultParams())
	if err != nil {
		t.Fatalf("difficulty.New: unexpected error: %v", err)
	}

	params := feedback.DefaultParams()
	params.CorrectStep = 0
	if _, err := feedback.New(learner.NewMemStore(), adapter, params); err == nil {
		t.Fatal("New: expected error for zero correct step, got nil")
	}

	params = feedback.DefaultParams()
	params.IncorrectStep = 0.5
	params.CorrectStep = 0.1
	if _, err := feedback.New(learner.NewMemStore(), adapter, params); err == nil {
		t.Fatal("New: expected error for incorrect step above correct step, got nil")
	}
}
