package classifier

import "fmt"

// #region family

// Family identifies a classifier strategy.
type Family string

const (
	FamilyLogistic        Family = "logistic"
	FamilyRandomForest    Family = "random_forest"
	FamilyGradientBoosted Family = "gradient_boosted"
)

// ParseFamily validates a family tag received from outside.
func ParseFamily(s string) (Family, error) {
	switch Family(s) {
	case FamilyLogistic, FamilyRandomForest, FamilyGradientBoosted:
		return Family(s), nil
	default:
		return "", fmt.Errorf("unsupported classifier family %q", s)
	}
}

// #endregion

// #region dataset

// Dataset is an ordered feature matrix with binary targets.
// Row i of X aligns with Y[i]; column j aligns with FeatureNames[j].
type Dataset struct {
	FeatureNames []string
	X            [][]float64
	Y            []int
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.X) }

// Subset returns the dataset restricted to the given row indices.
func (d Dataset) Subset(idx []int) Dataset {
	sub := Dataset{FeatureNames: d.FeatureNames}
	sub.X = make([][]float64, len(idx))
	sub.Y = make([]int, len(idx))
	for i, j := range idx {
		sub.X[i] = d.X[j]
		sub.Y[i] = d.Y[j]
	}
	return sub
}

// #endregion

// #region interfaces

// Fitted is a trained model. Score returns the probability of the positive
// (unfavorable) class; Importances returns one non-negative value per
// feature, aligned with the training dataset's FeatureNames.
type Fitted interface {
	Score(x []float64) float64
	Importances() []float64
	Encode() ([]byte, error)
}

// Strategy fits a model of one family. Implementations must be deterministic
// for a fixed dataset and seed.
type Strategy interface {
	Family() Family
	Fit(ds Dataset, seed int64) (Fitted, error)
}

// ForFamily returns the strategy implementing the given family.
func ForFamily(f Family) (Strategy, error) {
	switch f {
	case FamilyLogistic:
		return &LogisticStrategy{}, nil
	case FamilyRandomForest:
		return &ForestStrategy{}, nil
	case FamilyGradientBoosted:
		return &BoostedStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported classifier family %q", f)
	}
}

// #endregion
