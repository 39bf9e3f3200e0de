package sample

import "time"

// #region outcome

// Outcome is the recorded final result of a historical counterparty record.
type Outcome string

const (
	OutcomeFavorable   Outcome = "favorable"
	OutcomeUnfavorable Outcome = "unfavorable"
)

// #endregion

// #region labeled-sample

// LabeledSample is one historical record: a named numeric feature vector and
// its binary outcome. Immutable once recorded.
type LabeledSample struct {
	ID              string
	CounterpartyRef string
	Features        map[string]float64
	Outcome         Outcome
	RecordedAt      time.Time
}

// Label returns the binary target: 1 for an unfavorable outcome, 0 otherwise.
// Unfavorable is the positive class; it is what training predicts.
func (s LabeledSample) Label() int {
	if s.Outcome == OutcomeUnfavorable {
		return 1
	}
	return 0
}

// #endregion

// #region source

// Source abstracts the data-access collaborator that yields labeled samples.
type Source interface {
	LabeledSamples() ([]LabeledSample, error)
}

// #endregion
