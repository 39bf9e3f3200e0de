package service

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/aegisrisk/weightd/internal/artifact"
	"github.com/aegisrisk/weightd/internal/classifier"
	"github.com/aegisrisk/weightd/internal/registry"
	"github.com/aegisrisk/weightd/internal/sample"
	"github.com/aegisrisk/weightd/internal/training"
	"github.com/aegisrisk/weightd/internal/weights"
)

type env struct {
	svc     *Service
	reg     *registry.Store
	samples *sample.Store
	runs    *training.RunStore
	art     *artifact.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	reg, err := registry.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	samples, err := sample.NewStore(reg.DB())
	if err != nil {
		t.Fatalf("sample store: %v", err)
	}
	runs, err := training.NewRunStore(reg.DB())
	if err != nil {
		t.Fatalf("run store: %v", err)
	}
	art, err := artifact.NewStore(reg.DB())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}

	gatherer := sample.NewGatherer(samples, 0)
	svc := New(gatherer, runs, reg, art, nil, -1)
	return &env{svc: svc, reg: reg, samples: samples, runs: runs, art: art}
}

func (e *env) addSamples(t *testing.T, fav, unfav int) {
	t.Helper()
	add := func(i int, outcome sample.Outcome, base float64) {
		_, err := e.samples.Add(sample.LabeledSample{
			Outcome: outcome,
			Features: map[string]float64{
				"financial_score":    base + float64(i%7),
				"legal_score":        base - 5 + float64(i%5),
				"esg_score":          40 + float64(i%9),
				"geopolitical_score": 35 + float64(i%6),
				"operational_score":  base/2 + float64(i%4),
				"pricing_score":      45 + float64(i%8),
				"social_score":       30 + float64(i%5),
				"performance_score":  base/2 + 10 + float64(i%3),
			},
		})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	for i := 0; i < fav; i++ {
		add(i, sample.OutcomeFavorable, 20)
	}
	for i := 0; i < unfav; i++ {
		add(i, sample.OutcomeUnfavorable, 75)
	}
}

func trainReq(family classifier.Family) TrainRequest {
	return TrainRequest{
		Family: family,
		Config: training.Config{TestFraction: 0.2, RandomSeed: 42, CVFolds: 5},
	}
}

func TestTrainPipeline(t *testing.T) {
	e := newEnv(t)

	baseline, seeded, err := e.svc.SeedBaseline("")
	if err != nil {
		t.Fatalf("SeedBaseline: %v", err)
	}
	if !seeded || baseline.State != registry.StateActive {
		t.Fatalf("baseline not seeded active: %+v", baseline)
	}

	e.addSamples(t, 12, 13)

	version, run, err := e.svc.Train(trainReq(classifier.FamilyGradientBoosted))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if version.State != registry.StateTrained {
		t.Fatalf("new version state = %s, want trained", version.State)
	}
	if version.RunID != run.ID || version.SampleCount != 25 {
		t.Fatalf("version bookkeeping: %+v", version)
	}
	if err := weights.Validate(version.Weights); err != nil {
		t.Fatalf("learned weights invalid: %v", err)
	}
	if len(version.Weights) != len(weights.DefaultCategories) {
		t.Fatalf("expected %d categories, got %d", len(weights.DefaultCategories), len(version.Weights))
	}

	// run and artifact were persisted
	if _, err := e.runs.Get(run.ID); err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	family, blob, err := e.art.Get(run.ID)
	if err != nil {
		t.Fatalf("artifact not persisted: %v", err)
	}
	if family != string(classifier.FamilyGradientBoosted) || len(blob) == 0 {
		t.Fatalf("artifact contents: family=%s len=%d", family, len(blob))
	}

	// baseline stays active until the new version is approved and activated
	cur, err := e.reg.GetActive()
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if cur.ID != baseline.ID {
		t.Fatalf("training mutated the active pointer: %s", cur.ID)
	}

	if _, err := e.reg.Approve(version.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := e.reg.Activate(version.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	old, _ := e.reg.Get(baseline.ID)
	if old.State != registry.StateRetired {
		t.Fatalf("baseline not retired: %s", old.State)
	}
}

func TestTrainInsufficientDataPersistsNothing(t *testing.T) {
	e := newEnv(t)
	e.addSamples(t, 3, 2)

	_, _, err := e.svc.Train(trainReq(classifier.FamilyLogistic))
	var insufficient *sample.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}

	versions, err := e.reg.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("failed training persisted %d versions", len(versions))
	}
	runs, err := e.runs.List(10)
	if err != nil {
		t.Fatalf("List runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("failed training persisted %d runs", len(runs))
	}
}

func TestTrainDegenerateLabelsRejected(t *testing.T) {
	e := newEnv(t)
	e.addSamples(t, 12, 0)

	_, _, err := e.svc.Train(trainReq(classifier.FamilyLogistic))
	var degenerate *sample.DegenerateLabelError
	if !errors.As(err, &degenerate) {
		t.Fatalf("expected DegenerateLabelError, got %v", err)
	}
}

func TestTrainDeterministicWeights(t *testing.T) {
	a := newEnv(t)
	b := newEnv(t)
	a.addSamples(t, 12, 13)
	b.addSamples(t, 12, 13)

	va, _, err := a.svc.Train(trainReq(classifier.FamilyRandomForest))
	if err != nil {
		t.Fatalf("train a: %v", err)
	}
	vb, _, err := b.svc.Train(trainReq(classifier.FamilyRandomForest))
	if err != nil {
		t.Fatalf("train b: %v", err)
	}

	for cat, wa := range va.Weights {
		if math.Abs(wa-vb.Weights[cat]) > 1e-9 {
			t.Fatalf("weights differ for %s: %v vs %v", cat, wa, vb.Weights[cat])
		}
	}
}

func TestTrainDefaultLabel(t *testing.T) {
	e := newEnv(t)
	e.addSamples(t, 12, 13)

	v, run, err := e.svc.Train(trainReq(classifier.FamilyLogistic))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	want := fmt.Sprintf("learned weights (%s, %d samples)", run.Family, run.SampleCount)
	if v.Label != want {
		t.Fatalf("label = %q, want %q", v.Label, want)
	}
}

func TestSeedBaselineOnlyOnce(t *testing.T) {
	e := newEnv(t)

	if _, seeded, err := e.svc.SeedBaseline("baseline"); err != nil || !seeded {
		t.Fatalf("first seed: seeded=%v err=%v", seeded, err)
	}
	if _, seeded, err := e.svc.SeedBaseline("baseline"); err != nil || seeded {
		t.Fatalf("second seed: seeded=%v err=%v", seeded, err)
	}

	versions, _ := e.reg.List("")
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
}

func TestWeightEvolutionOldestFirst(t *testing.T) {
	e := newEnv(t)
	if _, _, err := e.svc.SeedBaseline("baseline"); err != nil {
		t.Fatalf("SeedBaseline: %v", err)
	}
	e.addSamples(t, 12, 13)
	if _, _, err := e.svc.Train(trainReq(classifier.FamilyLogistic)); err != nil {
		t.Fatalf("Train: %v", err)
	}

	points, err := e.svc.WeightEvolution()
	if err != nil {
		t.Fatalf("WeightEvolution: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Label != "baseline" {
		t.Fatalf("expected baseline first, got %q", points[0].Label)
	}
	if points[1].CreatedAt.Before(points[0].CreatedAt) {
		t.Fatal("evolution not in creation order")
	}
}

func TestReadiness(t *testing.T) {
	e := newEnv(t)
	e.addSamples(t, 6, 6)

	r, err := e.svc.Readiness()
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if !r.Trainable {
		t.Fatalf("expected trainable with 12 samples: %+v", r)
	}
	if r.SampleCount != 12 || r.Favorable != 6 || r.Unfavorable != 6 {
		t.Fatalf("readiness counts: %+v", r)
	}
	if r.Reason == "" {
		t.Fatal("expected below-recommended note")
	}
}
