package learner_test

import (
	"testing"

	"github.com/nabu-app/nabu/pkg/learner"
)

func TestVocabularyItemValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		item    learner.VocabularyItem
		wantErr bool
	}{
		{
			name: "valid item",
			item: learner.VocabularyItem{LearnerID: "ana", Language: "es", Word: "casa", MasteryLevel: 0.3},
		},
		{
			name:    "empty word",
			item:    learner.VocabularyItem{LearnerID: "ana", Language: "es"},
			wantErr: true,
		},
		{
			name:    "mastery above one",
			item:    learner.VocabularyItem{LearnerID: "ana", Language: "es", Word: "casa", MasteryLevel: 1.01},
			wantErr: true,
		},
		{
			name:    "negative counter",
			item:    learner.VocabularyItem{LearnerID: "ana", Language: "es", Word: "casa", TimesUsed: -1},
			wantErr: true,
		},
		{
			name: "used more than seen is legal",
			item: learner.VocabularyItem{LearnerID: "ana", Language: "es", Word: "casa", TimesSeen: 1, TimesUsed: 5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.item.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("Validate: expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate: unexpected error: %v", err)
			}
		})
	}
}

func TestProfileAddDifficulty(t *testing.T) {
	t.Parallel()

	p := learner.Profile{LearnerID: "ana", Language: "es"}
	p.AddDifficulty("past-tense")
	p.AddDifficulty("past-tense")
	p.AddDifficulty("")
	p.AddDifficulty("gendered-articles")

	if len(p.Difficulties) != 2 {
		t.Fatalf("AddDifficulty: expected set semantics, got %v", p.Difficulties)
	}
}

func TestTurnCommitValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		commit  learner.TurnCommit
		wantErr bool
	}{
		{
			name: "valid commit",
			commit: learner.TurnCommit{
				LearnerID: "ana",
				Language:  "es",
				Items: []learner.VocabularyItem{
					{LearnerID: "ana", Language: "es", Word: "casa", MasteryLevel: 0.4},
				},
				Profile: &learner.Profile{LearnerID: "ana", Language: "es", ProficiencyEstimate: 2.0},
			},
		},
		{
			name:    "missing learner id",
			commit:  learner.TurnCommit{Language: "es"},
			wantErr: true,
		},
		{
			name: "profile identity mismatch",
			commit: learner.TurnCommit{
				LearnerID: "ana",
				Language:  "es",
				Profile:   &learner.Profile{LearnerID: "ana", Language: "fr"},
			},
			wantErr: true,
		},
		{
			name: "empty commit is valid",
			commit: learner.TurnCommit{
				LearnerID: "ana",
				Language:  "es",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.commit.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("Validate: expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate: unexpected error: %v", err)
			}
		})
	}
}
