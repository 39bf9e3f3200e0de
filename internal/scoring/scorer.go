// Package scoring applies the active weight version to category sub-scores.
package scoring

import (
	"fmt"
	"math"

	"github.com/aegisrisk/weightd/internal/registry"
)

// #region active-source

// ActiveSource yields the currently active weight version.
type ActiveSource interface {
	GetActive() (registry.WeightVersion, error)
}

// #endregion

// #region scorer

// Scorer computes composite risk scores. The active version is read per
// request, never cached, so a fresh activation is visible immediately.
type Scorer struct {
	src ActiveSource
}

// NewScorer creates a scorer over the given active-version source.
func NewScorer(src ActiveSource) *Scorer {
	return &Scorer{src: src}
}

// Score computes Σ (category score × category weight) against the active
// version, rounded to two decimals. Category scores are expected on a
// common numeric range (0–100).
func (s *Scorer) Score(categoryScores map[string]float64) (float64, registry.WeightVersion, error) {
	active, err := s.src.GetActive()
	if err != nil {
		return 0, registry.WeightVersion{}, err
	}
	return Composite(categoryScores, active.Weights), active, nil
}

// #endregion

// #region composite

// Composite is the pure weighted sum. Categories missing from either map
// contribute nothing.
func Composite(categoryScores, w map[string]float64) float64 {
	total := 0.0
	for cat, score := range categoryScores {
		total += score * w[cat]
	}
	return round2(total)
}

// #endregion

// #region blend

// Blend mixes the learned composite with an externally derived contract-term
// score. The ratio is the composite's share and must come from the caller;
// there is no default blend.
func Blend(composite, contractTerm, ratio float64) (float64, error) {
	if ratio < 0 || ratio > 1 {
		return 0, fmt.Errorf("blend ratio must be in [0,1], got %v", ratio)
	}
	return round2(composite*ratio + contractTerm*(1-ratio)), nil
}

// #endregion

// #region band

// Band buckets a composite score into a risk band: low below 40, medium
// below 70, high at or above 70.
func Band(score float64) string {
	switch {
	case score < 40:
		return "low"
	case score < 70:
		return "medium"
	default:
		return "high"
	}
}

// #endregion

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
