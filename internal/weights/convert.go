// Package weights converts per-feature classifier importances into a
// normalized category-weight distribution. Everything here is pure: no
// side effects, no randomness.
package weights

import (
	"fmt"
	"math"
	"sort"
)

// #region constants

// Epsilon is the tolerance on the sum-to-one invariant.
const Epsilon = 1e-6

// DefaultImportanceFloor zeroes categories whose share falls below it, then
// renormalizes the rest. Set to 0 to disable.
const DefaultImportanceFloor = 0.01

// #endregion

// #region mapping

// Mapping rolls raw feature names up into weight categories. Several
// features may share one category. Features absent from the mapping are
// contextual extras and do not contribute to any weight.
type Mapping map[string]string

// Categories returns the sorted distinct category names of the mapping.
func (m Mapping) Categories() []string {
	set := make(map[string]bool)
	for _, cat := range m {
		set[cat] = true
	}
	cats := make([]string, 0, len(set))
	for cat := range set {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

// DefaultCategories is the standard risk-category scheme.
var DefaultCategories = []string{
	"financial", "legal", "esg", "geopolitical",
	"operational", "pricing", "social", "performance",
}

// DefaultMapping maps "<category>_score" to each default category.
func DefaultMapping() Mapping {
	m := make(Mapping, len(DefaultCategories))
	for _, cat := range DefaultCategories {
		m[cat+"_score"] = cat
	}
	return m
}

// #endregion

// #region convert

// Convert turns an importance vector into a category-weight distribution:
// each category's weight is the sum of its features' importances divided by
// the total. Zero total importance falls back to equal weights. Categories
// below floor are zeroed and the remainder renormalized; they stay in the
// result with weight 0.
func Convert(importances map[string]float64, mapping Mapping, floor float64) (map[string]float64, error) {
	cats := mapping.Categories()
	if len(cats) == 0 {
		return nil, fmt.Errorf("convert: empty category mapping")
	}

	sums := make(map[string]float64, len(cats))
	total := 0.0
	for feature, imp := range importances {
		cat, ok := mapping[feature]
		if !ok {
			continue
		}
		if imp < 0 || math.IsNaN(imp) || math.IsInf(imp, 0) {
			return nil, fmt.Errorf("convert: invalid importance %v for feature %q", imp, feature)
		}
		sums[cat] += imp
		total += imp
	}

	out := make(map[string]float64, len(cats))
	if total == 0 {
		return Equal(cats), nil
	}
	for _, cat := range cats {
		out[cat] = sums[cat] / total
	}

	if floor > 0 {
		kept := 0.0
		for _, cat := range cats {
			if out[cat] < floor {
				out[cat] = 0
			} else {
				kept += out[cat]
			}
		}
		if kept == 0 {
			return Equal(cats), nil
		}
		for _, cat := range cats {
			out[cat] /= kept
		}
	}

	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion

// #region equal

// Equal distributes weight uniformly across the given categories.
func Equal(categories []string) map[string]float64 {
	out := make(map[string]float64, len(categories))
	w := 1.0 / float64(len(categories))
	for _, cat := range categories {
		out[cat] = w
	}
	return out
}

// #endregion

// #region validate

// Validate checks the distribution invariant: every weight non-negative and
// the sum within Epsilon of 1.
func Validate(w map[string]float64) error {
	if len(w) == 0 {
		return fmt.Errorf("weights: empty distribution")
	}
	sum := 0.0
	for cat, v := range w {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weights: invalid weight %v for category %q", v, cat)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > Epsilon {
		return fmt.Errorf("weights: sum %v outside 1.0 ± %v", sum, Epsilon)
	}
	return nil
}

// #endregion
