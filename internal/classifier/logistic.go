package classifier

import (
	"encoding/json"
	"fmt"
	"math"
)

// #region strategy

// LogisticStrategy fits a regularized logistic regression by gradient
// descent on standardized features, with inverse-frequency class weights.
type LogisticStrategy struct{}

func (LogisticStrategy) Family() Family { return FamilyLogistic }

const (
	logisticIters  = 500
	logisticRate   = 0.1
	logisticLambda = 0.01
)

// #endregion

// #region model

// LogisticModel is a fitted logistic regression.
type LogisticModel struct {
	Coef  []float64 `json:"coef"`
	Bias  float64   `json:"bias"`
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// #endregion

// #region fit

// Fit trains the model. The seed is accepted to satisfy Strategy but unused:
// the optimization is already deterministic.
func (LogisticStrategy) Fit(ds Dataset, seed int64) (Fitted, error) {
	n := ds.Len()
	if n == 0 {
		return nil, fmt.Errorf("logistic fit: empty dataset")
	}
	d := len(ds.FeatureNames)

	means, stds := standardizeParams(ds.X, d)
	scaled := applyStandardize(ds.X, means, stds)

	// Inverse-frequency class weights keep imbalanced pools from collapsing
	// onto the majority class.
	nPos, nNeg := 0, 0
	for _, y := range ds.Y {
		if y == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	wPos, wNeg := 1.0, 1.0
	if nPos > 0 && nNeg > 0 {
		wPos = float64(n) / (2 * float64(nPos))
		wNeg = float64(n) / (2 * float64(nNeg))
	}

	coef := make([]float64, d)
	bias := 0.0

	for iter := 0; iter < logisticIters; iter++ {
		grad := make([]float64, d)
		gradBias := 0.0
		for i, x := range scaled {
			z := bias
			for j := 0; j < d; j++ {
				z += coef[j] * x[j]
			}
			p := sigmoid(z)
			w := wNeg
			if ds.Y[i] == 1 {
				w = wPos
			}
			delta := w * (p - float64(ds.Y[i]))
			for j := 0; j < d; j++ {
				grad[j] += delta * x[j]
			}
			gradBias += delta
		}
		inv := 1.0 / float64(n)
		for j := 0; j < d; j++ {
			coef[j] -= logisticRate * (grad[j]*inv + logisticLambda*coef[j])
		}
		bias -= logisticRate * gradBias * inv
	}

	for _, c := range coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("logistic fit: optimization diverged")
		}
	}
	if math.IsNaN(bias) || math.IsInf(bias, 0) {
		return nil, fmt.Errorf("logistic fit: optimization diverged")
	}

	return &LogisticModel{Coef: coef, Bias: bias, Means: means, Stds: stds}, nil
}

// #endregion

// #region predict

// Score returns the probability of the positive class.
func (m *LogisticModel) Score(x []float64) float64 {
	z := m.Bias
	for j := range m.Coef {
		if j >= len(x) {
			break
		}
		z += m.Coef[j] * (x[j] - m.Means[j]) / m.Stds[j]
	}
	return sigmoid(z)
}

// Importances returns coefficient magnitudes.
func (m *LogisticModel) Importances() []float64 {
	imp := make([]float64, len(m.Coef))
	for j, c := range m.Coef {
		imp[j] = math.Abs(c)
	}
	return imp
}

// Encode serializes the fitted model as an opaque blob.
func (m *LogisticModel) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// #endregion

// #region scaling

func standardizeParams(x [][]float64, d int) (means, stds []float64) {
	means = make([]float64, d)
	stds = make([]float64, d)
	n := float64(len(x))
	for j := 0; j < d; j++ {
		sum := 0.0
		for _, row := range x {
			sum += row[j]
		}
		means[j] = sum / n
		varSum := 0.0
		for _, row := range x {
			diff := row[j] - means[j]
			varSum += diff * diff
		}
		stds[j] = math.Sqrt(varSum / n)
		if stds[j] == 0 {
			stds[j] = 1 // constant feature, leave centered at zero
		}
	}
	return means, stds
}

func applyStandardize(x [][]float64, means, stds []float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled := make([]float64, len(means))
		for j := range means {
			scaled[j] = (row[j] - means[j]) / stds[j]
		}
		out[i] = scaled
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// #endregion
