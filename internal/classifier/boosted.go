package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

// #region strategy

// BoostedStrategy fits a gradient-boosted ensemble of shallow trees on
// log-loss pseudo-residuals.
type BoostedStrategy struct{}

func (BoostedStrategy) Family() Family { return FamilyGradientBoosted }

const (
	boostedRounds   = 100
	boostedMaxDepth = 3
	boostedMinLeaf  = 2
	boostedRate     = 0.1
)

// #endregion

// #region model

// BoostedModel is a fitted gradient-boosted ensemble.
type BoostedModel struct {
	Baseline    float64     `json:"baseline"`
	Rate        float64     `json:"rate"`
	Trees       []*treeNode `json:"trees"`
	FeatureImp  []float64   `json:"feature_importance"`
	NumFeatures int         `json:"num_features"`
}

// #endregion

// #region fit

// Fit trains the ensemble. Each round fits a shallow tree to the current
// pseudo-residuals (label minus predicted probability) and shrinks its
// contribution by the learning rate.
func (BoostedStrategy) Fit(ds Dataset, seed int64) (Fitted, error) {
	n := ds.Len()
	if n == 0 {
		return nil, fmt.Errorf("boosted fit: empty dataset")
	}
	d := len(ds.FeatureNames)
	rng := rand.New(rand.NewSource(seed))

	nPos := 0
	for _, y := range ds.Y {
		if y == 1 {
			nPos++
		}
	}
	if nPos == 0 || nPos == n {
		return nil, fmt.Errorf("boosted fit: single-class targets")
	}

	// Baseline is the log-odds of the positive class.
	baseline := math.Log(float64(nPos) / float64(n-nPos))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = baseline
	}

	allRows := make([]int, n)
	for i := range allRows {
		allRows[i] = i
	}

	cfg := treeConfig{maxDepth: boostedMaxDepth, minLeaf: boostedMinLeaf}
	importances := make([]float64, d)
	residuals := make([]float64, n)
	trees := make([]*treeNode, 0, boostedRounds)

	for round := 0; round < boostedRounds; round++ {
		for i := range residuals {
			residuals[i] = float64(ds.Y[i]) - sigmoid(scores[i])
		}
		tree := buildTree(ds.X, residuals, allRows, cfg, rng, importances)
		trees = append(trees, tree)
		for i, x := range ds.X {
			scores[i] += boostedRate * tree.predict(x)
		}
	}

	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("boosted fit: optimization diverged")
		}
	}

	for j := range importances {
		importances[j] /= float64(boostedRounds)
	}

	return &BoostedModel{
		Baseline:    baseline,
		Rate:        boostedRate,
		Trees:       trees,
		FeatureImp:  importances,
		NumFeatures: d,
	}, nil
}

// #endregion

// #region predict

// Score returns the probability of the positive class.
func (m *BoostedModel) Score(x []float64) float64 {
	z := m.Baseline
	for _, t := range m.Trees {
		z += m.Rate * t.predict(x)
	}
	return sigmoid(z)
}

// Importances returns accumulated split gains per feature.
func (m *BoostedModel) Importances() []float64 {
	out := make([]float64, len(m.FeatureImp))
	copy(out, m.FeatureImp)
	return out
}

// Encode serializes the fitted model as an opaque blob.
func (m *BoostedModel) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// #endregion
