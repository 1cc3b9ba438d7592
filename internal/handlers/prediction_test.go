package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinflow/risk-inference-service/internal/booster"
	"github.com/clinflow/risk-inference-service/internal/models"
	"github.com/clinflow/risk-inference-service/internal/repository"
	"github.com/clinflow/risk-inference-service/internal/services"
)

type memRepo struct {
	logs []*models.PredictionLog
}

func (r *memRepo) Prediction() repository.PredictionRepositoryInterface { return r }
func (r *memRepo) Event() repository.EventRepositoryInterface          { return r }

func (r *memRepo) LogPrediction(ctx context.Context, entry *models.PredictionLog) error {
	r.logs = append(r.logs, entry)
	return nil
}

func (r *memRepo) GetPredictionLogs(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	if limit > len(r.logs) {
		limit = len(r.logs)
	}
	return r.logs[:limit], nil
}

func (r *memRepo) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	return nil
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	bundle := `{
	  "feature_names": ["AGE", "SEX", "GLUCOSE"],
	  "metadata": {"model_name": "risk", "format_version": "1.0", "objective": "binary:logistic"},
	  "model": {
	    "format": "gbtree", "version": 1, "num_features": 3, "base_margin": 0,
	    "trees": [
	      {"nodes": [
	        {"feature": 0, "threshold": 45, "left": 1, "right": 2, "missing": 1, "cover": 10},
	        {"feature": -1, "value": -0.4, "cover": 6},
	        {"feature": -1, "value": 0.8, "cover": 4}
	      ]}
	    ]
	  }
	}`
	path := filepath.Join(t.TempDir(), "model.bundle.json")
	require.NoError(t, os.WriteFile(path, []byte(bundle), 0o644))
	model, err := booster.Load(booster.Source{Format: booster.FormatBundle, BundlePath: path})
	require.NoError(t, err)

	svc := services.NewPredictionService(model, &memRepo{}, 0.5, 10)
	mux := http.NewServeMux()
	NewPredictionHandler(svc).RegisterRoutes(mux)
	return mux
}

func TestHandlePredict(t *testing.T) {
	mux := newTestMux(t)

	body := `{"features": {"AGE": 50, "SEX": 1, "GLUCOSE": 5.6}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(body))
	req.Header.Set("X-Trace-ID", "trace-42")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp services.PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ReqID) // assigned when the client sends none
	assert.Greater(t, resp.Probability, 0.0)
	assert.Less(t, resp.Probability, 1.0)
	assert.Equal(t, "high", resp.RiskLevel)
	require.NotNil(t, resp.Attribution)
	assert.Equal(t, "explainer", resp.Attribution.Method)
}

func TestHandlePredictInvalidRecord(t *testing.T) {
	mux := newTestMux(t)

	body := `{"features": {"AGE": 50}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp services.PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestHandlePredictMalformedJSON(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(`{"features":`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePredictMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/predictions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSchema(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		FeatureNames []string `json:"feature_names"`
		ModelName    string   `json:"model_name"`
		Architecture string   `json:"architecture"`
		Capabilities []string `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"AGE", "SEX", "GLUCOSE"}, resp.FeatureNames)
	assert.Equal(t, "risk", resp.ModelName)
	assert.Equal(t, "gbtree", resp.Architecture)
	assert.NotEmpty(t, resp.Capabilities)
}

func TestHandleHealth(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHandleLogs(t *testing.T) {
	mux := newTestMux(t)

	// Seed one prediction, then read it back through the telemetry route.
	body := `{"features": {"AGE": 50, "SEX": 1, "GLUCOSE": 5.6}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/logs?limit=10", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var logs []*models.PredictionLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs, 1)
}
