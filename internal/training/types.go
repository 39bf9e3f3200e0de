package training

import (
	"fmt"
	"time"

	"github.com/aegisrisk/weightd/internal/classifier"
)

// #region config

const (
	DefaultTestFraction = 0.2
	DefaultRandomSeed   = 42
	DefaultCVFolds      = 5
)

// Config carries the recognized training options. Zero values are filled
// with the defaults above.
type Config struct {
	TestFraction float64
	RandomSeed   int64
	CVFolds      int
}

// WithDefaults returns the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.TestFraction == 0 {
		c.TestFraction = DefaultTestFraction
	}
	if c.RandomSeed == 0 {
		c.RandomSeed = DefaultRandomSeed
	}
	if c.CVFolds == 0 {
		c.CVFolds = DefaultCVFolds
	}
	return c
}

// Validate rejects out-of-range options.
func (c Config) Validate() error {
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("test_fraction must be in (0,1), got %v", c.TestFraction)
	}
	if c.CVFolds < 2 {
		return fmt.Errorf("cv_folds must be >= 2, got %d", c.CVFolds)
	}
	return nil
}

// #endregion

// #region training-run

// TrainingRun is the immutable record of one orchestrator execution.
type TrainingRun struct {
	ID                string
	Family            classifier.Family
	SampleIDs         []string
	SampleCount       int
	TestFraction      float64
	RandomSeed        int64
	CVFolds           int
	Accuracy          float64
	AUC               float64
	CrossValScore     float64
	FeatureImportance map[string]float64
	CreatedAt         time.Time
}

// #endregion

// #region training-failed

// TrainingFailedError reports a classifier fit that did not converge or
// raised internally. No partial TrainingRun accompanies it.
type TrainingFailedError struct {
	Family classifier.Family
	Cause  error
}

func (e *TrainingFailedError) Error() string {
	return fmt.Sprintf("training failed for family %q: %v", e.Family, e.Cause)
}

func (e *TrainingFailedError) Unwrap() error {
	return e.Cause
}

// #endregion
