package training

import (
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/aegisrisk/weightd/internal/classifier"
	"github.com/aegisrisk/weightd/internal/sample"
)

// #region result

// Result bundles the immutable run record with the fitted model so the
// caller can archive the model blob. The orchestrator itself persists
// nothing and never touches the version registry.
type Result struct {
	Run    TrainingRun
	Fitted classifier.Fitted
}

// #endregion

// #region train

// Train splits the samples, fits the requested classifier family, computes
// holdout and cross-validation metrics, and extracts feature importances.
// Identical samples, family, and seed produce identical output.
func Train(samples []sample.LabeledSample, family classifier.Family, cfg Config) (Result, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	strategy, err := classifier.ForFamily(family)
	if err != nil {
		return Result{}, err
	}

	ds := buildDataset(samples)
	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	trainIdx, testIdx := stratifiedSplit(ds.Y, cfg.TestFraction, rng)

	trainDS := ds.Subset(trainIdx)
	testDS := ds.Subset(testIdx)

	fitted, err := strategy.Fit(trainDS, cfg.RandomSeed)
	if err != nil {
		return Result{}, &TrainingFailedError{Family: family, Cause: err}
	}

	testScores := make([]float64, testDS.Len())
	for i, x := range testDS.X {
		testScores[i] = fitted.Score(x)
	}
	acc := accuracy(testDS.Y, testScores)
	auc := rocAUC(testDS.Y, testScores)

	cvScore, err := crossValidate(ds, strategy, cfg, rng)
	if err != nil {
		return Result{}, &TrainingFailedError{Family: family, Cause: err}
	}

	importances := fitted.Importances()
	impMap := make(map[string]float64, len(ds.FeatureNames))
	for j, name := range ds.FeatureNames {
		impMap[name] = importances[j]
	}

	sampleIDs := make([]string, len(samples))
	for i, s := range samples {
		sampleIDs[i] = s.ID
	}

	run := TrainingRun{
		ID:                uuid.New().String(),
		Family:            family,
		SampleIDs:         sampleIDs,
		SampleCount:       len(samples),
		TestFraction:      cfg.TestFraction,
		RandomSeed:        cfg.RandomSeed,
		CVFolds:           cfg.CVFolds,
		Accuracy:          acc,
		AUC:               auc,
		CrossValScore:     cvScore,
		FeatureImportance: impMap,
		CreatedAt:         time.Now().UTC(),
	}

	log.Printf("[TRAIN] family=%s samples=%d accuracy=%.3f auc=%.3f cv=%.3f",
		family, len(samples), acc, auc, cvScore)

	return Result{Run: run, Fitted: fitted}, nil
}

// #endregion

// #region cross-validate

// crossValidate runs stratified k-fold CV over the full sample set and
// returns the mean fold accuracy. AUC is undefined on single-class fold
// slices at these sample sizes, so accuracy is the robustness metric.
func crossValidate(ds classifier.Dataset, strategy classifier.Strategy, cfg Config, rng *rand.Rand) (float64, error) {
	folds := stratifiedFolds(ds.Y, cfg.CVFolds, rng)

	total := 0.0
	counted := 0
	for f, holdout := range folds {
		if len(holdout) == 0 {
			continue
		}
		inFold := make(map[int]bool, len(holdout))
		for _, i := range holdout {
			inFold[i] = true
		}
		var trainIdx []int
		for i := range ds.Y {
			if !inFold[i] {
				trainIdx = append(trainIdx, i)
			}
		}

		fitted, err := strategy.Fit(ds.Subset(trainIdx), cfg.RandomSeed+int64(f)+1)
		if err != nil {
			return 0, err
		}

		holdDS := ds.Subset(holdout)
		scores := make([]float64, holdDS.Len())
		for i, x := range holdDS.X {
			scores[i] = fitted.Score(x)
		}
		total += accuracy(holdDS.Y, scores)
		counted++
	}
	if counted == 0 {
		return 0, nil
	}
	return total / float64(counted), nil
}

// #endregion
