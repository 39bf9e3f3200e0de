package sample

// #region defaults

const (
	// DefaultMinSamples is the hard floor below which training is refused.
	DefaultMinSamples = 10
	// RecommendedSamples is the soft threshold surfaced in readiness reports.
	RecommendedSamples = 20
)

// #endregion

// #region gatherer

// Gatherer collects labeled samples eligible for training and applies the
// hard vetoes (minimum count, two distinct outcome classes) before any data
// reaches the orchestrator.
type Gatherer struct {
	src Source
	min int
}

// NewGatherer creates a gatherer over the given source.
// minSamples <= 0 falls back to DefaultMinSamples.
func NewGatherer(src Source, minSamples int) *Gatherer {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Gatherer{src: src, min: minSamples}
}

// Min returns the configured minimum sample count.
func (g *Gatherer) Min() int {
	return g.min
}

// #endregion

// #region gather

// Gather returns all samples with a known outcome, or a typed error if the
// set is too small or single-class.
func (g *Gatherer) Gather() ([]LabeledSample, error) {
	samples, err := g.src.LabeledSamples()
	if err != nil {
		return nil, err
	}

	if len(samples) < g.min {
		return nil, &InsufficientDataError{Count: len(samples), Min: g.min}
	}

	fav, unfav := countOutcomes(samples)
	if fav == 0 {
		return nil, &DegenerateLabelError{Label: OutcomeUnfavorable, Count: len(samples)}
	}
	if unfav == 0 {
		return nil, &DegenerateLabelError{Label: OutcomeFavorable, Count: len(samples)}
	}

	return samples, nil
}

// #endregion

// #region readiness

// Readiness summarizes whether the current sample pool can support training.
type Readiness struct {
	SampleCount int
	Favorable   int
	Unfavorable int
	MinRequired int
	Recommended int
	Trainable   bool
	Reason      string
}

// Readiness inspects the sample pool without training. Pure read.
func (g *Gatherer) Readiness() (Readiness, error) {
	samples, err := g.src.LabeledSamples()
	if err != nil {
		return Readiness{}, err
	}

	fav, unfav := countOutcomes(samples)
	r := Readiness{
		SampleCount: len(samples),
		Favorable:   fav,
		Unfavorable: unfav,
		MinRequired: g.min,
		Recommended: RecommendedSamples,
		Trainable:   true,
	}

	switch {
	case len(samples) < g.min:
		r.Trainable = false
		r.Reason = (&InsufficientDataError{Count: len(samples), Min: g.min}).Error()
	case fav == 0 || unfav == 0:
		r.Trainable = false
		label := OutcomeFavorable
		if fav == 0 {
			label = OutcomeUnfavorable
		}
		r.Reason = (&DegenerateLabelError{Label: label, Count: len(samples)}).Error()
	case len(samples) < RecommendedSamples:
		r.Reason = "trainable, but below the recommended sample count"
	}

	return r, nil
}

// #endregion

// #region helpers

func countOutcomes(samples []LabeledSample) (fav, unfav int) {
	for _, s := range samples {
		if s.Outcome == OutcomeUnfavorable {
			unfav++
		} else {
			fav++
		}
	}
	return fav, unfav
}

// #endregion
