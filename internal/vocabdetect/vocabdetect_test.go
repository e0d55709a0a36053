package vocabdetect_test

import (
	"testing"

	"github.com/nabu-app/nabu/internal/vocabdetect"
)

func TestDetect_ExactMatch(t *testing.T) {
	t.Parallel()

	d := vocabdetect.New()
	vocab := vocabdetect.Prepare([]string{"casa", "perro", "gato"})

	hits := d.Detect("mi casa es muy grande", vocab)
	if len(hits) != 1 {
		t.Fatalf("Detect: expected 1 hit, got %d (%+v)", len(hits), hits)
	}
	if hits[0].Word != "casa" || !hits[0].Exact || hits[0].Confidence != 1.0 {
		t.Errorf("Detect: expected exact casa hit with confidence 1.0, got %+v", hits[0])
	}
}

func TestDetect_DiacriticAndPunctuationFolding(t *testing.T) {
	t.Parallel()

	d := vocabdetect.New()
	vocab := vocabdetect.Prepare([]string{"está", "casa"})

	// "esta" spoken without the accent and wrapped in punctuation should still
	// match the stored "está" exactly after folding.
	hits := d.Detect("¿Dónde esta mi casa?", vocab)
	if len(hits) != 2 {
		t.Fatalf("Detect: expected 2 hits, got %d (%+v)", len(hits), hits)
	}
	for _, h := range hits {
		if !h.Exact {
			t.Errorf("Detect: expected exact match after folding, got %+v", h)
		}
	}
	if hits[0].Word != "está" || hits[1].Word != "casa" {
		t.Errorf("Detect: expected transcript order [está casa], got %+v", hits)
	}
}

func TestDetect_PhoneticMatch(t *testing.T) {
	t.Parallel()

	d := vocabdetect.New()
	vocab := vocabdetect.Prepare([]string{"gracias", "adiós"})

	// A typical STT mangling: "grasias" shares phonetic codes and a high
	// string similarity with "gracias".
	hits := d.Detect("muchas grasias por todo", vocab)
	if len(hits) != 1 {
		t.Fatalf("Detect: expected 1 hit, got %d (%+v)", len(hits), hits)
	}
	if hits[0].Word != "gracias" {
		t.Errorf("Detect: expected gracias, got %+v", hits[0])
	}
	if hits[0].Exact {
		t.Error("Detect: expected a non-exact match for mangled input")
	}
	if hits[0].Confidence < 0.7 {
		t.Errorf("Detect: confidence=%f, want >= 0.7", hits[0].Confidence)
	}
	if hits[0].Spoken != "grasias" {
		t.Errorf("Detect: expected spoken form %q, got %q", "grasias", hits[0].Spoken)
	}
}

func TestDetect_LongestWindowWins(t *testing.T) {
	t.Parallel()

	d := vocabdetect.New()
	vocab := vocabdetect.Prepare([]string{"buenos días", "días"})

	// The two-token phrase must take precedence and consume its tokens, so
	// the single word "días" is not also reported.
	hits := d.Detect("buenos días profesor", vocab)
	if len(hits) != 1 {
		t.Fatalf("Detect: expected 1 hit, got %d (%+v)", len(hits), hits)
	}
	if hits[0].Word != "buenos días" {
		t.Errorf("Detect: expected multi-word hit, got %+v", hits[0])
	}
}

func TestDetect_DeduplicatesRepeatedWords(t *testing.T) {
	t.Parallel()

	d := vocabdetect.New()
	vocab := vocabdetect.Prepare([]string{"casa"})

	hits := d.Detect("casa casa casa", vocab)
	if len(hits) != 1 {
		t.Fatalf("Detect: expected 1 deduplicated hit, got %d (%+v)", len(hits), hits)
	}
}

func TestDetect_NoFalsePositives(t *testing.T) {
	t.Parallel()

	d := vocabdetect.New()
	vocab := vocabdetect.Prepare([]string{"casa", "perro"})

	hits := d.Detect("the weather is lovely today", vocab)
	if hits == nil {
		t.Fatal("Detect: expected non-nil empty slice")
	}
	if len(hits) != 0 {
		t.Fatalf("Detect: expected no hits, got %+v", hits)
	}
}

func TestDetect_ShortWordsMatchExactlyOnly(t *testing.T) {
	t.Parallel()

	d := vocabdetect.New()
	vocab := vocabdetect.Prepare([]string{"el", "sol"})

	t.Run("exact short word matches", func(t *testing.T) {
		t.Parallel()
		hits := d.Detect("el sol brilla", vocab)
		if len(hits) != 2 {
			t.Fatalf("Detect: expected 2 hits, got %+v", hits)
		}
	})

	t.Run("near miss on short word does not match", func(t *testing.T) {
		t.Parallel()
		hits := d.Detect("al mar", vocab)
		if len(hits) != 0 {
			t.Fatalf("Detect: expected no hits for short near-misses, got %+v", hits)
		}
	})
}

func TestDetect_EmptyInputs(t *testing.T) {
	t.Parallel()

	d := vocabdetect.New()

	t.Run("empty transcript", func(t *testing.T) {
		t.Parallel()
		hits := d.Detect("", vocabdetect.Prepare([]string{"casa"}))
		if hits == nil || len(hits) != 0 {
			t.Fatalf("Detect: expected non-nil empty slice, got %v", hits)
		}
	})

	t.Run("empty vocabulary", func(t *testing.T) {
		t.Parallel()
		hits := d.Detect("mi casa es grande", vocabdetect.Prepare(nil))
		if hits == nil || len(hits) != 0 {
			t.Fatalf("Detect: expected non-nil empty slice, got %v", hits)
		}
	})

	t.Run("nil prepared vocabulary", func(t *testing.T) {
		t.Parallel()
		hits := d.Detect("mi casa es grande", nil)
		if hits == nil || len(hits) != 0 {
			t.Fatalf("Detect: expected non-nil empty slice, got %v", hits)
		}
	})
}

func TestPrepare_DropsBlankEntries(t *testing.T) {
	t.Parallel()

	vocab := vocabdetect.Prepare([]string{"casa", "", "   ", "perro"})
	if vocab.Len() != 2 {
		t.Fatalf("Prepare: expected 2 prepared words, got %d", vocab.Len())
	}
}

func TestDetect_StricterThresholdRejectsLooseMatch(t *testing.T) {
	t.Parallel()

	strict := vocabdetect.New(
		vocabdetect.WithPhoneticThreshold(0.99),
		vocabdetect.WithFuzzyThreshold(0.99),
	)
	vocab := vocabdetect.Prepare([]string{"gracias"})

	hits := strict.Detect("muchas grasias por todo", vocab)
	if len(hits) != 0 {
		t.Fatalf("Detect: expected thresholds to reject the loose match, got %+v", hits)
	}
}
