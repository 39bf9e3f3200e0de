package sample

import (
	"errors"
	"testing"
)

type fakeSource struct {
	samples []LabeledSample
	err     error
}

func (f *fakeSource) LabeledSamples() ([]LabeledSample, error) {
	return f.samples, f.err
}

func makeSamples(fav, unfav int) []LabeledSample {
	var out []LabeledSample
	for i := 0; i < fav; i++ {
		out = append(out, LabeledSample{
			ID:       "fav",
			Features: map[string]float64{"financial_score": 20},
			Outcome:  OutcomeFavorable,
		})
	}
	for i := 0; i < unfav; i++ {
		out = append(out, LabeledSample{
			ID:       "unfav",
			Features: map[string]float64{"financial_score": 80},
			Outcome:  OutcomeUnfavorable,
		})
	}
	return out
}

func TestGatherInsufficientData(t *testing.T) {
	g := NewGatherer(&fakeSource{samples: makeSamples(3, 3)}, 10)

	_, err := g.Gather()
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Count != 6 || insufficient.Min != 10 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}
}

func TestGatherDegenerateLabels(t *testing.T) {
	g := NewGatherer(&fakeSource{samples: makeSamples(12, 0)}, 10)

	_, err := g.Gather()
	var degenerate *DegenerateLabelError
	if !errors.As(err, &degenerate) {
		t.Fatalf("expected DegenerateLabelError, got %v", err)
	}
	if degenerate.Label != OutcomeFavorable {
		t.Fatalf("expected favorable label, got %s", degenerate.Label)
	}
}

func TestGatherOK(t *testing.T) {
	g := NewGatherer(&fakeSource{samples: makeSamples(6, 6)}, 10)

	samples, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(samples) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(samples))
	}
}

func TestGatherDefaultMin(t *testing.T) {
	g := NewGatherer(&fakeSource{samples: makeSamples(4, 5)}, 0)

	_, err := g.Gather()
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError at default min, got %v", err)
	}
	if insufficient.Min != DefaultMinSamples {
		t.Fatalf("expected default min %d, got %d", DefaultMinSamples, insufficient.Min)
	}
}

func TestReadiness(t *testing.T) {
	cases := []struct {
		name      string
		fav       int
		unfav     int
		trainable bool
	}{
		{"too few", 3, 3, false},
		{"single class", 15, 0, false},
		{"below recommended", 7, 7, true},
		{"healthy", 12, 13, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGatherer(&fakeSource{samples: makeSamples(tc.fav, tc.unfav)}, 10)
			r, err := g.Readiness()
			if err != nil {
				t.Fatalf("Readiness: %v", err)
			}
			if r.Trainable != tc.trainable {
				t.Fatalf("expected trainable=%v, got %+v", tc.trainable, r)
			}
			if r.Favorable != tc.fav || r.Unfavorable != tc.unfav {
				t.Fatalf("wrong label counts: %+v", r)
			}
			if !tc.trainable && r.Reason == "" {
				t.Fatal("expected a reason for untrainable pool")
			}
		})
	}
}
