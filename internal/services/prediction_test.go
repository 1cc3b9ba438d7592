package services

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinflow/risk-inference-service/internal/booster"
	"github.com/clinflow/risk-inference-service/internal/models"
	"github.com/clinflow/risk-inference-service/internal/repository"
)

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	logs   []*models.PredictionLog
	events []string
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
	r.events = append(r.events, code)
	return nil
}

const riskBundle = `{
  "feature_names": ["AGE", "SEX", "GLUCOSE"],
  "metadata": {"model_name": "risk", "format_version": "1.0", "objective": "binary:logistic"},
  "model": {
    "format": "gbtree", "version": 1, "num_features": 3, "base_margin": 0,
    "trees": [
      {"nodes": [
        {"feature": 0, "threshold": 45, "left": 1, "right": 2, "missing": 1, "cover": 10},
        {"feature": -1, "value": -0.4, "cover": 6},
        {"feature": -1, "value": 0.8, "cover": 4}
      ]},
      {"nodes": [
        {"feature": 1, "threshold": 0.5, "left": 1, "right": 2, "missing": 1, "cover": 10},
        {"feature": -1, "value": -0.2, "cover": 5},
        {"feature": -1, "value": 0.3, "cover": 5}
      ]},
      {"nodes": [
        {"feature": 2, "threshold": 6.5, "left": 1, "right": 2, "missing": 1, "cover": 10},
        {"feature": -1, "value": -0.6, "cover": 7},
        {"feature": -1, "value": 1.2, "cover": 3}
      ]}
    ]
  }
}`

func loadModel(t *testing.T, bundle string) *booster.Model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.bundle.json")
	require.NoError(t, os.WriteFile(path, []byte(bundle), 0o644))
	m, err := booster.Load(booster.Source{Format: booster.FormatBundle, BundlePath: path})
	require.NoError(t, err)
	return m
}

func newTestService(t *testing.T, bundle string) (*PredictionService, *memRepo) {
	t.Helper()
	repo := &memRepo{}
	return NewPredictionService(loadModel(t, bundle), repo, 0.5, 10), repo
}

func TestProcessPredictionHighRisk(t *testing.T) {
	svc, repo := newTestService(t, riskBundle)

	resp, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
		ReqID:    "req-1",
		Features: map[string]float64{"AGE": 50, "SEX": 1, "GLUCOSE": 5.6},
	}, "test", "direct", "w1")
	require.NoError(t, err)

	// margin = 0.8 + 0.3 - 0.6 = 0.5
	assert.InDelta(t, 1.0/(1.0+math.Exp(-0.5)), resp.Probability, 1e-9)
	assert.Equal(t, "high", resp.RiskLevel)
	assert.Empty(t, resp.Error)

	require.NotNil(t, resp.Attribution)
	assert.Equal(t, "explainer", resp.Attribution.Method)
	assert.Len(t, resp.Attribution.Contributions, 3)
	assert.Empty(t, resp.AttributionError)

	require.Len(t, repo.logs, 1)
	assert.Equal(t, "ok", repo.logs[0].Status)
	assert.Equal(t, "explainer", repo.logs[0].AttributionMethod)
	assert.Equal(t, 3, repo.logs[0].FeatureCount)
}

func TestProcessPredictionLowRisk(t *testing.T) {
	svc, _ := newTestService(t, riskBundle)

	resp, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
		ReqID:    "req-2",
		Features: map[string]float64{"AGE": 30, "SEX": 0, "GLUCOSE": 5.0},
	}, "test", "direct", "w1")
	require.NoError(t, err)

	// margin = -0.4 - 0.2 - 0.6 = -1.2
	assert.Less(t, resp.Probability, 0.5)
	assert.Equal(t, "low", resp.RiskLevel)
}

func TestProcessPredictionIdempotent(t *testing.T) {
	svc, _ := newTestService(t, riskBundle)
	features := map[string]float64{"AGE": 62, "SEX": 1, "GLUCOSE": 7.1}

	first, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
		ReqID: "a", Features: features,
	}, "test", "direct", "w1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		resp, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
			ReqID: "b", Features: features,
		}, "test", "direct", "w1")
		require.NoError(t, err)
		assert.Equal(t, first.Probability, resp.Probability)
		assert.Equal(t, first.RiskLevel, resp.RiskLevel)
		require.NotNil(t, resp.Attribution)
		for j, c := range resp.Attribution.Contributions {
			assert.Equal(t, first.Attribution.Contributions[j].Contribution, c.Contribution)
		}
	}
}

func TestProcessPredictionRejectsWrongKeySet(t *testing.T) {
	svc, repo := newTestService(t, riskBundle)

	cases := map[string]map[string]float64{
		"missing feature": {"AGE": 50, "SEX": 1},
		"unknown feature": {"AGE": 50, "SEX": 1, "HBA1C": 6.0},
		"extra feature":   {"AGE": 50, "SEX": 1, "GLUCOSE": 5.6, "BMI": 22},
		"empty record":    {},
	}
	for name, features := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
				ReqID: "r", Features: features,
			}, "test", "direct", "w1")
			require.Error(t, err)
			assert.NotEmpty(t, resp.Error)
			assert.Zero(t, resp.Probability)
		})
	}

	for _, entry := range repo.logs {
		assert.Equal(t, "invalid_input", entry.Status)
	}
}

func TestProcessPredictionRejectsNonFiniteValues(t *testing.T) {
	svc, _ := newTestService(t, riskBundle)

	for name, v := range map[string]float64{
		"NaN":  math.NaN(),
		"+Inf": math.Inf(1),
		"-Inf": math.Inf(-1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
				ReqID:    "r",
				Features: map[string]float64{"AGE": 50, "SEX": 1, "GLUCOSE": v},
			}, "test", "direct", "w1")
			assert.Error(t, err)
		})
	}
}

func TestProcessPredictionFallsBackToTreeExplainer(t *testing.T) {
	// A bare model document: no wrapper metadata survives loading, so the
	// general explainer rejects it and the tree-level path takes over.
	bare := `{
	  "format": "gbtree", "version": 1, "num_features": 1, "base_margin": 0,
	  "feature_names": ["AGE"],
	  "trees": [{"nodes": [
	    {"feature": 0, "threshold": 45, "left": 1, "right": 2, "missing": 1, "cover": 10},
	    {"feature": -1, "value": -0.4, "cover": 6},
	    {"feature": -1, "value": 0.8, "cover": 4}
	  ]}]
	}`
	svc, repo := newTestService(t, bare)

	resp, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
		ReqID:    "req-3",
		Features: map[string]float64{"AGE": 50},
	}, "test", "direct", "w1")
	require.NoError(t, err)

	require.NotNil(t, resp.Attribution)
	assert.Equal(t, "tree", resp.Attribution.Method)
	assert.Empty(t, resp.AttributionError)
	assert.Greater(t, resp.Probability, 0.5)

	require.Len(t, repo.logs, 1)
	assert.Equal(t, "tree", repo.logs[0].AttributionMethod)
}

func TestProcessPredictionSurvivesAttributionFailure(t *testing.T) {
	// No cover statistics anywhere: both attribution tiers fail, but the
	// score must still come back.
	noCovers := `{
	  "format": "gbtree", "version": 1, "num_features": 1, "base_margin": 0,
	  "feature_names": ["AGE"],
	  "trees": [{"nodes": [{"feature": -1, "value": 0.5}]}]
	}`
	svc, repo := newTestService(t, noCovers)

	resp, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
		ReqID:    "req-4",
		Features: map[string]float64{"AGE": 50},
	}, "test", "direct", "w1")
	require.NoError(t, err)

	assert.InDelta(t, 1.0/(1.0+math.Exp(-0.5)), resp.Probability, 1e-9)
	assert.Nil(t, resp.Attribution)
	assert.NotEmpty(t, resp.AttributionError)
	assert.Empty(t, resp.Error)

	require.Len(t, repo.logs, 1)
	assert.Equal(t, "ok", repo.logs[0].Status)
	assert.Equal(t, "none", repo.logs[0].AttributionMethod)
}

func TestGetPredictionLogs(t *testing.T) {
	svc, _ := newTestService(t, riskBundle)

	for i := 0; i < 3; i++ {
		_, err := svc.ProcessPrediction(context.Background(), PredictionRequest{
			ReqID:    "r",
			Features: map[string]float64{"AGE": 50, "SEX": 1, "GLUCOSE": 5.6},
		}, "test", "direct", "w1")
		require.NoError(t, err)
	}

	logs, err := svc.GetPredictionLogs(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
