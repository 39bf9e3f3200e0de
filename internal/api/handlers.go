package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aegisrisk/weightd/internal/classifier"
	"github.com/aegisrisk/weightd/internal/registry"
	"github.com/aegisrisk/weightd/internal/sample"
	"github.com/aegisrisk/weightd/internal/scoring"
	"github.com/aegisrisk/weightd/internal/service"
	"github.com/aegisrisk/weightd/internal/training"
)

// #region handlers

type handlers struct {
	svc     *service.Service
	scorer  *scoring.Scorer
	runs    *training.RunStore
	samples *sample.Store
}

// #endregion

// #region payloads

type trainRequest struct {
	ClassifierFamily string  `json:"classifier_family"`
	TestFraction     float64 `json:"test_fraction"`
	RandomSeed       int64   `json:"random_seed"`
	CVFolds          int     `json:"cv_folds"`
	Label            string  `json:"label"`
}

type versionPayload struct {
	VersionID         string             `json:"version_id"`
	Label             string             `json:"label"`
	State             string             `json:"state"`
	ClassifierFamily  string             `json:"classifier_family,omitempty"`
	SampleCount       int                `json:"sample_count"`
	Accuracy          float64            `json:"accuracy"`
	AUC               float64            `json:"auc"`
	CrossValScore     float64            `json:"cross_val_score"`
	Weights           map[string]float64 `json:"weights"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

type errorPayload struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// #endregion

// #region error-mapping

func writeError(c echo.Context, err error) error {
	var (
		insufficient *sample.InsufficientDataError
		degenerate   *sample.DegenerateLabelError
		failed       *training.TrainingFailedError
		invalid      *registry.InvalidStateTransitionError
		concurrent   *registry.ConcurrentActivationError
		unknown      *registry.UnknownVersionError
	)
	switch {
	case errors.As(err, &insufficient):
		return c.JSON(http.StatusUnprocessableEntity, errorPayload{"insufficient_data", err.Error()})
	case errors.As(err, &degenerate):
		return c.JSON(http.StatusUnprocessableEntity, errorPayload{"degenerate_labels", err.Error()})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusConflict, errorPayload{"invalid_state_transition", err.Error()})
	case errors.As(err, &concurrent):
		return c.JSON(http.StatusConflict, errorPayload{"concurrent_activation", err.Error()})
	case errors.As(err, &unknown):
		return c.JSON(http.StatusNotFound, errorPayload{"unknown_version", err.Error()})
	case errors.Is(err, registry.ErrNoActiveVersion):
		return c.JSON(http.StatusNotFound, errorPayload{"no_active_version", err.Error()})
	case errors.As(err, &failed):
		return c.JSON(http.StatusInternalServerError, errorPayload{"training_failed", err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorPayload{"internal", err.Error()})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorPayload{"bad_request", msg})
}

// #endregion

// #region version-rendering

func (h *handlers) renderVersion(v registry.WeightVersion) versionPayload {
	p := versionPayload{
		VersionID:        v.ID,
		Label:            v.Label,
		State:            string(v.State),
		ClassifierFamily: v.Family,
		SampleCount:      v.SampleCount,
		Accuracy:         v.Accuracy,
		AUC:              v.AUC,
		CrossValScore:    v.CrossValScore,
		Weights:          v.Weights,
		CreatedAt:        v.CreatedAt,
	}
	if v.RunID != "" {
		if run, err := h.runs.Get(v.RunID); err == nil {
			p.FeatureImportance = run.FeatureImportance
		}
	}
	return p
}

// #endregion

// #region train

func (h *handlers) train(c echo.Context) error {
	var req trainRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	family, err := classifier.ParseFamily(req.ClassifierFamily)
	if err != nil {
		return badRequest(c, err.Error())
	}

	version, _, err := h.svc.Train(service.TrainRequest{
		Family: family,
		Config: training.Config{
			TestFraction: req.TestFraction,
			RandomSeed:   req.RandomSeed,
			CVFolds:      req.CVFolds,
		},
		Label: req.Label,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, h.renderVersion(version))
}

// #endregion

// #region lifecycle

func (h *handlers) approve(c echo.Context) error {
	v, err := h.svc.Registry().Approve(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.renderVersion(v))
}

func (h *handlers) activate(c echo.Context) error {
	v, err := h.svc.Registry().Activate(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.renderVersion(v))
}

func (h *handlers) rollback(c echo.Context) error {
	v, err := h.svc.Registry().Rollback(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.renderVersion(v))
}

// #endregion

// #region reads

func (h *handlers) getVersion(c echo.Context) error {
	v, err := h.svc.Registry().Get(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.renderVersion(v))
}

func (h *handlers) getActive(c echo.Context) error {
	v, err := h.svc.Registry().GetActive()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.renderVersion(v))
}

func (h *handlers) listVersions(c echo.Context) error {
	filter, ok := registry.ParseState(c.QueryParam("state"))
	if !ok {
		return badRequest(c, "unknown state filter")
	}
	versions, err := h.svc.Registry().List(filter)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]versionPayload, len(versions))
	for i, v := range versions {
		out[i] = h.renderVersion(v)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) compare(c echo.Context) error {
	a, b := c.QueryParam("a"), c.QueryParam("b")
	if a == "" || b == "" {
		return badRequest(c, "query params a and b are required")
	}
	cmp, err := h.svc.Registry().Compare(a, b)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version_a":          h.renderVersion(cmp.A),
		"version_b":          h.renderVersion(cmp.B),
		"weight_differences": cmp.Diffs,
		"performance_improvement": map[string]float64{
			"accuracy": cmp.B.Accuracy - cmp.A.Accuracy,
			"auc":      cmp.B.AUC - cmp.A.AUC,
		},
	})
}

func (h *handlers) evolution(c echo.Context) error {
	points, err := h.svc.WeightEvolution()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, points)
}

func (h *handlers) readiness(c echo.Context) error {
	r, err := h.svc.Readiness()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sample_count": r.SampleCount,
		"favorable":    r.Favorable,
		"unfavorable":  r.Unfavorable,
		"min_required": r.MinRequired,
		"recommended":  r.Recommended,
		"trainable":    r.Trainable,
		"reason":       r.Reason,
	})
}

// #endregion

// #region score

type scoreRequest struct {
	CategoryScores    map[string]float64 `json:"category_scores"`
	ContractTermScore *float64           `json:"contract_term_score"`
	BlendRatio        *float64           `json:"blend_ratio"`
}

func (h *handlers) score(c echo.Context) error {
	var req scoreRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if len(req.CategoryScores) == 0 {
		return badRequest(c, "category_scores is required")
	}
	if (req.ContractTermScore == nil) != (req.BlendRatio == nil) {
		return badRequest(c, "contract_term_score and blend_ratio must be supplied together")
	}

	composite, active, err := h.scorer.Score(req.CategoryScores)
	if err != nil {
		return writeError(c, err)
	}

	resp := map[string]interface{}{
		"composite":  composite,
		"band":       scoring.Band(composite),
		"version_id": active.ID,
	}
	if req.ContractTermScore != nil {
		blended, err := scoring.Blend(composite, *req.ContractTermScore, *req.BlendRatio)
		if err != nil {
			return badRequest(c, err.Error())
		}
		resp["blended"] = blended
		resp["blend_ratio"] = *req.BlendRatio
	}
	return c.JSON(http.StatusOK, resp)
}

// #endregion

// #region samples

type samplePayload struct {
	CounterpartyRef string             `json:"counterparty_ref"`
	Features        map[string]float64 `json:"features"`
	Outcome         string             `json:"outcome"`
}

func (h *handlers) addSample(c echo.Context) error {
	var req samplePayload
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if len(req.Features) == 0 {
		return badRequest(c, "features is required")
	}
	rec, err := h.samples.Add(sample.LabeledSample{
		CounterpartyRef: req.CounterpartyRef,
		Features:        req.Features,
		Outcome:         sample.Outcome(req.Outcome),
	})
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"sample_id": rec.ID})
}

// #endregion
