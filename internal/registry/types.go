package registry

import "time"

// #region state

// State is the lifecycle state of a weight version.
type State string

const (
	StateTrained  State = "trained"
	StateApproved State = "approved"
	StateActive   State = "active"
	StateRetired  State = "retired"
)

// ParseState validates a state tag received from outside. Empty is allowed
// (no filter).
func ParseState(s string) (State, bool) {
	switch State(s) {
	case "", StateTrained, StateApproved, StateActive, StateRetired:
		return State(s), true
	default:
		return "", false
	}
}

// #endregion

// #region weight-version

// WeightVersion is the consumable artifact: a normalized category-weight
// distribution with its lifecycle state and the training metrics it came
// from. Metrics are zero and RunID empty for a hand-authored baseline.
// Versions are never deleted; retired versions stay queryable for audit and
// rollback.
type WeightVersion struct {
	ID            string
	Label         string
	State         State
	Weights       map[string]float64
	RunID         string
	Family        string
	SampleCount   int
	Accuracy      float64
	AUC           float64
	CrossValScore float64
	CreatedAt     time.Time
	ApprovedAt    time.Time
	LastActiveAt  time.Time
}

// #endregion

// #region transition

// Transition is one append-only audit row for a lifecycle change.
type Transition struct {
	VersionID string
	From      State
	To        State
	Note      string
	CreatedAt time.Time
}

// #endregion

// #region comparison

// WeightDiff is the per-category delta between two versions.
type WeightDiff struct {
	A         float64
	B         float64
	Diff      float64
	PctChange float64
}

// Comparison holds two versions side by side. Pure read.
type Comparison struct {
	A     WeightVersion
	B     WeightVersion
	Diffs map[string]WeightDiff
}

// #endregion
