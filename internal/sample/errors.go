package sample

import "fmt"

// #region insufficient-data

// InsufficientDataError reports too few labeled samples to train on.
type InsufficientDataError struct {
	Count int
	Min   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %d labeled samples (minimum %d)", e.Count, e.Min)
}

// #endregion

// #region degenerate-label

// DegenerateLabelError reports that every gathered sample shares one outcome.
// A classifier fit on a single class yields meaningless importances, so this
// is rejected before training starts.
type DegenerateLabelError struct {
	Label Outcome
	Count int
}

func (e *DegenerateLabelError) Error() string {
	return fmt.Sprintf("degenerate labels: all %d samples have outcome %q", e.Count, e.Label)
}

// #endregion
