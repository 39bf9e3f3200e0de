package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/aegisrisk/weightd/internal/artifact"
	"github.com/aegisrisk/weightd/internal/registry"
	"github.com/aegisrisk/weightd/internal/sample"
	"github.com/aegisrisk/weightd/internal/scoring"
	"github.com/aegisrisk/weightd/internal/service"
	"github.com/aegisrisk/weightd/internal/training"
)

type testServer struct {
	e       *echo.Echo
	svc     *service.Service
	reg     *registry.Store
	samples *sample.Store
}

func newTestServer(t *testing.T) *testServer {
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

	svc := service.New(sample.NewGatherer(samples, 0), runs, reg, art, nil, -1)
	scorer := scoring.NewScorer(reg)
	return &testServer{
		e:       BuildServer(svc, scorer, runs, samples),
		svc:     svc,
		reg:     reg,
		samples: samples,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (ts *testServer) loadSamples(t *testing.T, fav, unfav int) {
	t.Helper()
	add := func(i int, outcome string, base float64) {
		body := fmt.Sprintf(`{
			"counterparty_ref": "cp-%d",
			"outcome": %q,
			"features": {
				"financial_score": %v, "legal_score": %v, "esg_score": %v,
				"geopolitical_score": %v, "operational_score": %v,
				"pricing_score": %v, "social_score": %v, "performance_score": %v
			}
		}`, i, outcome,
			base+float64(i%7), base-5+float64(i%5), 40+float64(i%9),
			35+float64(i%6), base/2+float64(i%4),
			45+float64(i%8), 30+float64(i%5), base/2+10+float64(i%3))
		rec := ts.do(t, http.MethodPost, "/api/samples", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("add sample: %d %s", rec.Code, rec.Body.String())
		}
	}
	for i := 0; i < fav; i++ {
		add(i, "favorable", 20)
	}
	for i := 0; i < unfav; i++ {
		add(i, "unfavorable", 75)
	}
}

const trainBody = `{"classifier_family":"gradient_boosted","test_fraction":0.2,"random_seed":42,"cv_folds":5}`

func TestTrainEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.loadSamples(t, 12, 13)

	rec := ts.do(t, http.MethodPost, "/api/weights/train", trainBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("train: %d %s", rec.Code, rec.Body.String())
	}

	var v versionPayload
	decode(t, rec, &v)
	if v.VersionID == "" || v.State != "trained" {
		t.Fatalf("train response: %+v", v)
	}
	if v.SampleCount != 25 || len(v.Weights) != 8 {
		t.Fatalf("train response bookkeeping: %+v", v)
	}
	if len(v.FeatureImportance) != 8 {
		t.Fatalf("expected importances in response, got %d", len(v.FeatureImportance))
	}
}

func TestTrainInsufficientDataReturns422(t *testing.T) {
	ts := newTestServer(t)
	ts.loadSamples(t, 2, 2)

	rec := ts.do(t, http.MethodPost, "/api/weights/train", trainBody)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var e errorPayload
	decode(t, rec, &e)
	if e.Kind != "insufficient_data" {
		t.Fatalf("error kind = %q", e.Kind)
	}
}

func TestTrainDegenerateLabelsReturns422(t *testing.T) {
	ts := newTestServer(t)
	ts.loadSamples(t, 12, 0)

	rec := ts.do(t, http.MethodPost, "/api/weights/train", trainBody)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var e errorPayload
	decode(t, rec, &e)
	if e.Kind != "degenerate_labels" {
		t.Fatalf("error kind = %q", e.Kind)
	}
}

func TestTrainUnknownFamilyReturns400(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/weights/train", `{"classifier_family":"svm"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)
	if _, _, err := ts.svc.SeedBaseline(""); err != nil {
		t.Fatalf("SeedBaseline: %v", err)
	}
	ts.loadSamples(t, 12, 13)

	rec := ts.do(t, http.MethodPost, "/api/weights/train", trainBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("train: %d %s", rec.Code, rec.Body.String())
	}
	var v versionPayload
	decode(t, rec, &v)

	// activation before approval is a state-machine violation
	rec = ts.do(t, http.MethodPost, "/api/weights/versions/"+v.VersionID+"/activate", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var e errorPayload
	decode(t, rec, &e)
	if e.Kind != "invalid_state_transition" {
		t.Fatalf("error kind = %q", e.Kind)
	}

	rec = ts.do(t, http.MethodPost, "/api/weights/versions/"+v.VersionID+"/approve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/weights/versions/"+v.VersionID+"/activate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/weights/versions/active", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get active: %d", rec.Code)
	}
	var active versionPayload
	decode(t, rec, &active)
	if active.VersionID != v.VersionID {
		t.Fatalf("active = %s, want %s", active.VersionID, v.VersionID)
	}
}

func TestUnknownVersionReturns404(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/weights/versions/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var e errorPayload
	decode(t, rec, &e)
	if e.Kind != "unknown_version" {
		t.Fatalf("error kind = %q", e.Kind)
	}

	rec = ts.do(t, http.MethodPost, "/api/weights/versions/no-such-id/approve", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on approve, got %d", rec.Code)
	}
}

func TestGetActiveWithoutVersionsReturns404(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/weights/versions/active", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var e errorPayload
	decode(t, rec, &e)
	if e.Kind != "no_active_version" {
		t.Fatalf("error kind = %q", e.Kind)
	}
}

func TestListVersionsFilter(t *testing.T) {
	ts := newTestServer(t)
	if _, _, err := ts.svc.SeedBaseline(""); err != nil {
		t.Fatalf("SeedBaseline: %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/api/weights/versions?state=active", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var got []versionPayload
	decode(t, rec, &got)
	if len(got) != 1 || got[0].State != "active" {
		t.Fatalf("filtered list: %+v", got)
	}

	rec = ts.do(t, http.MethodGet, "/api/weights/versions?state=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad filter, got %d", rec.Code)
	}
}

func TestScoreEndpoint(t *testing.T) {
	ts := newTestServer(t)
	if _, err := ts.reg.Create(registry.WeightVersion{
		Label:   "fixed",
		State:   registry.StateActive,
		Weights: map[string]float64{"financial": 0.1, "legal": 0.5, "operational": 0.4},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := ts.do(t, http.MethodPost, "/api/weights/score",
		`{"category_scores":{"financial":20,"legal":80,"operational":50}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("score: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Composite float64 `json:"composite"`
		Band      string  `json:"band"`
		VersionID string  `json:"version_id"`
	}
	decode(t, rec, &resp)
	if resp.Composite != 62 || resp.Band != "medium" || resp.VersionID == "" {
		t.Fatalf("score response: %+v", resp)
	}
}

func TestScoreBlended(t *testing.T) {
	ts := newTestServer(t)
	if _, err := ts.reg.Create(registry.WeightVersion{
		Label:   "fixed",
		State:   registry.StateActive,
		Weights: map[string]float64{"financial": 1},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := ts.do(t, http.MethodPost, "/api/weights/score",
		`{"category_scores":{"financial":60},"contract_term_score":40,"blend_ratio":0.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("score: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Composite float64 `json:"composite"`
		Blended   float64 `json:"blended"`
	}
	decode(t, rec, &resp)
	if resp.Composite != 60 || resp.Blended != 50 {
		t.Fatalf("blended response: %+v", resp)
	}

	// blend inputs must come as a pair
	rec = ts.do(t, http.MethodPost, "/api/weights/score",
		`{"category_scores":{"financial":60},"contract_term_score":40}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for lone contract score, got %d", rec.Code)
	}
}

func TestScoreWithoutActiveReturns404(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/weights/score", `{"category_scores":{"financial":60}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCompareEndpoint(t *testing.T) {
	ts := newTestServer(t)
	a, err := ts.reg.Create(registry.WeightVersion{Label: "a", Weights: map[string]float64{"financial": 0.5, "legal": 0.5}})
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	b, err := ts.reg.Create(registry.WeightVersion{Label: "b", Weights: map[string]float64{"financial": 0.25, "legal": 0.75}})
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/api/weights/versions/compare?a="+a.ID+"&b="+b.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("compare: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Diffs map[string]struct {
			Diff float64 `json:"Diff"`
		} `json:"weight_differences"`
	}
	decode(t, rec, &resp)
	if resp.Diffs["financial"].Diff != -0.25 {
		t.Fatalf("financial diff: %+v", resp.Diffs)
	}

	rec = ts.do(t, http.MethodGet, "/api/weights/versions/compare?a="+a.ID, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing b, got %d", rec.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.loadSamples(t, 3, 2)

	rec := ts.do(t, http.MethodGet, "/api/weights/readiness", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readiness: %d", rec.Code)
	}
	var resp struct {
		SampleCount int    `json:"sample_count"`
		Trainable   bool   `json:"trainable"`
		Reason      string `json:"reason"`
	}
	decode(t, rec, &resp)
	if resp.SampleCount != 5 || resp.Trainable || resp.Reason == "" {
		t.Fatalf("readiness response: %+v", resp)
	}
}

func TestEvolutionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	if _, _, err := ts.svc.SeedBaseline("baseline"); err != nil {
		t.Fatalf("SeedBaseline: %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/api/weights/evolution", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("evolution: %d", rec.Code)
	}
	var points []struct {
		Label string `json:"Label"`
	}
	decode(t, rec, &points)
	if len(points) != 1 || points[0].Label != "baseline" {
		t.Fatalf("evolution: %+v", points)
	}
}

func TestAddSampleValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/samples", `{"outcome":"favorable"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing features, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/samples",
		`{"outcome":"sideways","features":{"financial_score":10}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown outcome, got %d", rec.Code)
	}
}
