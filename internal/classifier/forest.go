package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

// #region strategy

// ForestStrategy fits a random forest of variance-split trees over
// bootstrap resamples with per-split feature subsampling.
type ForestStrategy struct{}

func (ForestStrategy) Family() Family { return FamilyRandomForest }

const (
	forestTrees    = 100
	forestMaxDepth = 10
	forestMinLeaf  = 1
)

// #endregion

// #region model

// ForestModel is a fitted random forest.
type ForestModel struct {
	Trees       []*treeNode `json:"trees"`
	FeatureImp  []float64   `json:"feature_importance"`
	NumFeatures int         `json:"num_features"`
}

// #endregion

// #region fit

// Fit trains the forest. All randomness (bootstrap draws, feature
// subsampling) flows from the seed.
func (ForestStrategy) Fit(ds Dataset, seed int64) (Fitted, error) {
	n := ds.Len()
	if n == 0 {
		return nil, fmt.Errorf("forest fit: empty dataset")
	}
	d := len(ds.FeatureNames)
	rng := rand.New(rand.NewSource(seed))

	targets := make([]float64, n)
	for i, y := range ds.Y {
		targets[i] = float64(y)
	}

	mtry := int(math.Ceil(math.Sqrt(float64(d))))
	cfg := treeConfig{maxDepth: forestMaxDepth, minLeaf: forestMinLeaf, mtry: mtry}

	importances := make([]float64, d)
	trees := make([]*treeNode, 0, forestTrees)

	for b := 0; b < forestTrees; b++ {
		boot := make([]int, n)
		for i := range boot {
			boot[i] = rng.Intn(n)
		}
		trees = append(trees, buildTree(ds.X, targets, boot, cfg, rng, importances))
	}

	for j := range importances {
		importances[j] /= float64(forestTrees)
	}

	return &ForestModel{Trees: trees, FeatureImp: importances, NumFeatures: d}, nil
}

// #endregion

// #region predict

// Score averages tree outputs; each tree's leaf value is the positive
// fraction of its bootstrap slice, so the mean is a probability.
func (m *ForestModel) Score(x []float64) float64 {
	if len(m.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range m.Trees {
		sum += t.predict(x)
	}
	p := sum / float64(len(m.Trees))
	return clamp01(p)
}

// Importances returns accumulated split gains per feature.
func (m *ForestModel) Importances() []float64 {
	out := make([]float64, len(m.FeatureImp))
	copy(out, m.FeatureImp)
	return out
}

// Encode serializes the fitted model as an opaque blob.
func (m *ForestModel) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// #endregion
