// Package difficulty maps learner proficiency onto conversational difficulty
// bands and folds per-turn observations back into the learner profile.
//
// Both operations are pure: Recommend is a threshold lookup and Update
// returns a new profile value, leaving its input untouched. All rates and
// bounds come from [Params] so deployments can tune adaptation speed without
// code changes.
package difficulty

import (
	"errors"
	"fmt"
	"math"

	"github.com/nabu-app/nabu/pkg/learner"
)

// ErrInvalidInput indicates an observation outside its valid range. The
// profile is returned unchanged.
var ErrInvalidInput = errors.New("difficulty: invalid input")

// Band is a coarse conversational difficulty level, ordered from
// [BandBeginner] to [BandFluent].
type Band string

const (
	BandBeginner     Band = "beginner"
	BandElementary   Band = "elementary"
	BandIntermediate Band = "intermediate"
	BandAdvanced     Band = "advanced"
	BandFluent       Band = "fluent"
)

// Bands lists all bands in ascending order.
func Bands() []Band {
	return []Band{BandBeginner, BandElementary, BandIntermediate, BandAdvanced, BandFluent}
}

// Params holds the tunable constants of the adapter.
type Params struct {
	// Alpha is the EWMA rate moving ProficiencyEstimate toward observed
	// difficulty. Must be in (0, 1].
	Alpha float64

	// Beta is the EWMA rate moving EngagementScore toward the observed
	// engagement. Must be in (0, 1].
	Beta float64

	// MinProficiency and MaxProficiency bound the proficiency scale.
	MinProficiency float64
	MaxProficiency float64

	// BandThresholds are the four ascending proficiency boundaries between
	// the five bands: an estimate below BandThresholds[0] is beginner, below
	// [1] elementary, and so on; at or above [3] is fluent.
	BandThresholds [4]float64
}

// DefaultParams returns the stock tuning: gentle adaptation on a 1.0–5.0
// proficiency scale.
func DefaultParams() Params {
	return Params{
		Alpha:          0.1,
		Beta:           0.3,
		MinProficiency: 1.0,
		MaxProficiency: 5.0,
		BandThresholds: [4]float64{1.8, 2.6, 3.4, 4.2},
	}
}

// Validate reports every constraint violation in the params as a joined error.
func (p Params) Validate() error {
	var errs []error
	if p.Alpha <= 0 || p.Alpha > 1 {
		errs = append(errs, fmt.Errorf("alpha %v outside (0, 1]", p.Alpha))
	}
	if p.Beta <= 0 || p.Beta > 1 {
		errs = append(errs, fmt.Errorf("beta %v outside (0, 1]", p.Beta))
	}
	if p.MinProficiency >= p.MaxProficiency {
		errs = append(errs, fmt.Errorf("min proficiency %v must be below max %v", p.MinProficiency, p.MaxProficiency))
	}
	prev := p.MinProficiency
	for i, t := range p.BandThresholds {
		if t <= prev || t >= p.MaxProficiency {
			errs = append(errs, fmt.Errorf("band threshold %d (%v) must lie strictly between %v and max %v in ascending order", i, t, prev, p.MaxProficiency))
			break
		}
		prev = t
	}
	return errors.Join(errs...)
}

// Adapter recommends difficulty bands and updates learner profiles.
type Adapter struct {
	params Params
}

// New returns an Adapter using the given params.
func New(params Params) (*Adapter, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("difficulty: invalid params: %w", err)
	}
	return &Adapter{params: params}, nil
}

// Recommend maps the profile's proficiency estimate onto a [Band]. A fresh
// profile with a zero estimate maps below every threshold and therefore to
// [BandBeginner].
func (a *Adapter) Recommend(profile learner.Profile) Band {
	bands := Bands()
	for i, threshold := range a.params.BandThresholds {
		if profile.ProficiencyEstimate < threshold {
			return bands[i]
		}
	}
	return bands[len(bands)-1]
}

// Update folds one turn's observations into the profile and returns the
// updated copy:
//
//	proficiency' = proficiency + alpha * (observed - proficiency)
//	engagement'  = beta * observedEngagement + (1 - beta) * engagement
//
// Both results are clamped to their scales. An observed difficulty outside
// [MinProficiency, MaxProficiency] or an engagement outside [0, 1] is
// rejected with [ErrInvalidInput] and the profile is returned unchanged.
//
// Update is deliberately not idempotent: applying the same observation twice
// moves the estimate twice.
func (a *Adapter) Update(profile learner.Profile, observed, engagement float64) (learner.Profile, error) {
	if math.IsNaN(observed) || observed < a.params.MinProficiency || observed > a.params.MaxProficiency {
		return profile, fmt.Errorf("%w: observed difficulty %v outside [%v, %v]",
			ErrInvalidInput, observed, a.params.MinProficiency, a.params.MaxProficiency)
	}
	if math.IsNaN(engagement) || engagement < 0 || engagement > 1 {
		return profile, fmt.Errorf("%w: engagement %v outside [0, 1]", ErrInvalidInput, engagement)
	}

	p := profile.ProficiencyEstimate + a.params.Alpha*(observed-profile.ProficiencyEstimate)
	profile.ProficiencyEstimate = clamp(p, a.params.MinProficiency, a.params.MaxProficiency)

	e := a.params.Beta*engagement + (1-a.params.Beta)*profile.EngagementScore
	profile.EngagementScore = clamp(e, 0, 1)

	return profile, nil
}

// Params returns the adapter's tuning.
func (a *Adapter) Params() Params {
	return a.params
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
