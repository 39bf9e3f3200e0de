// Package service wires the training pipeline: gather samples, train, convert
// importances to weights, and register the resulting version.
package service

import (
	"fmt"
	"log"
	"time"

	"github.com/aegisrisk/weightd/internal/artifact"
	"github.com/aegisrisk/weightd/internal/classifier"
	"github.com/aegisrisk/weightd/internal/registry"
	"github.com/aegisrisk/weightd/internal/sample"
	"github.com/aegisrisk/weightd/internal/training"
	"github.com/aegisrisk/weightd/internal/weights"
)

// #region service

// Service coordinates one bounded, synchronous training request and exposes
// the registry reads the API needs. It never mutates the active pointer;
// activation is a separate human-triggered step.
type Service struct {
	gatherer  *sample.Gatherer
	runs      *training.RunStore
	registry  *registry.Store
	artifacts *artifact.Store
	mapping   weights.Mapping
	floor     float64
}

// New wires a service. mapping defaults to the standard category scheme and
// floor to the default importance floor when negative.
func New(g *sample.Gatherer, runs *training.RunStore, reg *registry.Store, art *artifact.Store, mapping weights.Mapping, floor float64) *Service {
	if mapping == nil {
		mapping = weights.DefaultMapping()
	}
	if floor < 0 {
		floor = weights.DefaultImportanceFloor
	}
	return &Service{
		gatherer:  g,
		runs:      runs,
		registry:  reg,
		artifacts: art,
		mapping:   mapping,
		floor:     floor,
	}
}

// Registry exposes the version registry for lifecycle operations.
func (s *Service) Registry() *registry.Store {
	return s.registry
}

// #endregion

// #region train-request

// TrainRequest is one training invocation from outside.
type TrainRequest struct {
	Family classifier.Family
	Config training.Config
	Label  string
}

// #endregion

// #region train

// Train runs the full pipeline and registers a new version in state
// trained. All-or-nothing: any gathering or fitting error aborts before
// anything is persisted.
func (s *Service) Train(req TrainRequest) (registry.WeightVersion, training.TrainingRun, error) {
	samples, err := s.gatherer.Gather()
	if err != nil {
		return registry.WeightVersion{}, training.TrainingRun{}, err
	}

	res, err := training.Train(samples, req.Family, req.Config)
	if err != nil {
		return registry.WeightVersion{}, training.TrainingRun{}, err
	}
	run := res.Run

	w, err := weights.Convert(run.FeatureImportance, s.mapping, s.floor)
	if err != nil {
		return registry.WeightVersion{}, training.TrainingRun{}, &training.TrainingFailedError{Family: req.Family, Cause: err}
	}

	if err := s.runs.Put(run); err != nil {
		return registry.WeightVersion{}, training.TrainingRun{}, fmt.Errorf("persist run: %w", err)
	}

	blob, err := res.Fitted.Encode()
	if err != nil {
		return registry.WeightVersion{}, training.TrainingRun{}, fmt.Errorf("encode model: %w", err)
	}
	if err := s.artifacts.Put(run.ID, string(run.Family), blob); err != nil {
		return registry.WeightVersion{}, training.TrainingRun{}, fmt.Errorf("archive model: %w", err)
	}

	label := req.Label
	if label == "" {
		label = fmt.Sprintf("learned weights (%s, %d samples)", run.Family, run.SampleCount)
	}

	version, err := s.registry.Create(registry.WeightVersion{
		Label:         label,
		State:         registry.StateTrained,
		Weights:       w,
		RunID:         run.ID,
		Family:        string(run.Family),
		SampleCount:   run.SampleCount,
		Accuracy:      run.Accuracy,
		AUC:           run.AUC,
		CrossValScore: run.CrossValScore,
	})
	if err != nil {
		return registry.WeightVersion{}, training.TrainingRun{}, err
	}

	log.Printf("[SERVICE] trained version %s from run %s", version.ID, run.ID)
	return version, run, nil
}

// #endregion

// #region readiness

// Readiness reports whether the sample pool can support training. Pure read.
func (s *Service) Readiness() (sample.Readiness, error) {
	return s.gatherer.Readiness()
}

// #endregion

// #region evolution

// EvolutionPoint is one version's weights in creation order.
type EvolutionPoint struct {
	VersionID string
	Label     string
	State     registry.State
	CreatedAt time.Time
	Weights   map[string]float64
}

// WeightEvolution returns the weight history across all versions, oldest
// first.
func (s *Service) WeightEvolution() ([]EvolutionPoint, error) {
	versions, err := s.registry.List("")
	if err != nil {
		return nil, err
	}
	// List is newest first; reverse into creation order.
	points := make([]EvolutionPoint, len(versions))
	for i, v := range versions {
		points[len(versions)-1-i] = EvolutionPoint{
			VersionID: v.ID,
			Label:     v.Label,
			State:     v.State,
			CreatedAt: v.CreatedAt,
			Weights:   v.Weights,
		}
	}
	return points, nil
}

// #endregion

// #region seed-baseline

// SeedBaseline creates an equal-weight baseline version directly in state
// active, if and only if the registry is empty. Returns the baseline, or
// the zero version if one already existed.
func (s *Service) SeedBaseline(label string) (registry.WeightVersion, bool, error) {
	existing, err := s.registry.List("")
	if err != nil {
		return registry.WeightVersion{}, false, err
	}
	if len(existing) > 0 {
		return registry.WeightVersion{}, false, nil
	}
	if label == "" {
		label = "equal-weight baseline"
	}
	v, err := s.registry.Create(registry.WeightVersion{
		Label:   label,
		State:   registry.StateActive,
		Weights: weights.Equal(s.mapping.Categories()),
	})
	if err != nil {
		return registry.WeightVersion{}, false, err
	}
	log.Printf("[SERVICE] seeded baseline version %s", v.ID)
	return v, true, nil
}

// #endregion
