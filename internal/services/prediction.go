package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/clinflow/risk-inference-service/internal/booster"
	"github.com/clinflow/risk-inference-service/internal/explain"
	"github.com/clinflow/risk-inference-service/internal/models"
	"github.com/clinflow/risk-inference-service/internal/repository"
)

type PredictionRequest struct {
	TraceID  string             `json:"trace_id,omitempty"`
	ReqID    string             `json:"req_id"`
	Features map[string]float64 `json:"features"`
	ReplyTo  string             `json:"reply_to,omitempty"`
}

type PredictionResponse struct {
	ReqID            string               `json:"req_id"`
	Probability      float64              `json:"probability"`
	RiskLevel        string               `json:"risk_level"`
	Attribution      *explain.Attribution `json:"attribution,omitempty"`
	AttributionError string               `json:"attribution_error,omitempty"`
	DurationMs       int64                `json:"duration_ms"`
	Error            string               `json:"error,omitempty"`
}

// PredictionService scores single input records against the loaded model
// and explains each score through a two-tier attribution chain. The model
// is injected once at startup and never reloaded or mutated.
type PredictionService struct {
	model         *booster.Model
	repo          repository.Repository
	riskThreshold float64
	maxDisplay    int
}

func NewPredictionService(model *booster.Model, repo repository.Repository, riskThreshold float64, maxDisplay int) *PredictionService {
	return &PredictionService{
		model:         model,
		repo:          repo,
		riskThreshold: riskThreshold,
		maxDisplay:    maxDisplay,
	}
}

// FeatureNames exposes the ordered feature schema for the UI collaborator.
func (s *PredictionService) FeatureNames() []string {
	return s.model.FeatureNames()
}

// Model returns the loaded model for introspection.
func (s *PredictionService) Model() *booster.Model {
	return s.model
}

// GetRepository returns the repository for use by other services
func (s *PredictionService) GetRepository() repository.Repository {
	return s.repo
}

func (s *PredictionService) ProcessPrediction(ctx context.Context, req PredictionRequest, source string, replyTo string, workerID string) (response *PredictionResponse, err error) {
	start := time.Now()

	// Add service-level crash recovery
	defer func() {
		if r := recover(); r != nil {
			duration := time.Since(start)
			errStr := fmt.Sprintf("service panic: %v", r)

			traceID := req.TraceID
			if traceID == "" {
				traceID = req.ReqID
			}

			panicLog := &models.PredictionLog{
				Timestamp:    start,
				TraceID:      traceID,
				ReqID:        req.ReqID,
				WorkerID:     workerID,
				Source:       source,
				ReplyTo:      replyTo,
				FeaturesJSON: toJSON(req.Features),
				FeatureCount: len(req.Features),
				DurationMs:   float64(duration.Milliseconds()),
				Status:       "panic",
				Error:        errStr,
			}
			s.repo.Prediction().LogPrediction(ctx, panicLog)

			response = &PredictionResponse{
				ReqID:      req.ReqID,
				DurationMs: duration.Milliseconds(),
				Error:      errStr,
			}
			err = fmt.Errorf("service panic: %v", r)
		}
	}()

	traceID := req.TraceID
	if traceID == "" {
		traceID = req.ReqID
	}

	vec, err := s.vectorize(req.Features)
	if err != nil {
		duration := time.Since(start)
		s.logPrediction(ctx, start, traceID, req, workerID, source, replyTo, 0, "", "none", duration, "invalid_input", err.Error())
		return &PredictionResponse{
			ReqID:      req.ReqID,
			DurationMs: duration.Milliseconds(),
			Error:      err.Error(),
		}, err
	}

	probability, err := s.model.PredictProba(vec)
	if err != nil {
		duration := time.Since(start)
		s.logPrediction(ctx, start, traceID, req, workerID, source, replyTo, 0, "", "none", duration, "error", err.Error())
		return &PredictionResponse{
			ReqID:      req.ReqID,
			DurationMs: duration.Milliseconds(),
			Error:      err.Error(),
		}, err
	}

	riskLevel := "low"
	if probability > s.riskThreshold {
		riskLevel = "high"
	}

	// Attribution degrades independently of the score: a failure here is
	// reported alongside a still-valid prediction.
	attribution, attErr := s.explainRecord(vec)
	method := "none"
	attErrStr := ""
	if attribution != nil {
		method = attribution.Method
	}
	if attErr != nil {
		attErrStr = attErr.Error()
		slog.Warn("Attribution failed; prediction still served",
			"req_id", req.ReqID,
			"error", attErr)
	}

	duration := time.Since(start)
	s.logPrediction(ctx, start, traceID, req, workerID, source, replyTo, probability, riskLevel, method, duration, "ok", attErrStr)

	return &PredictionResponse{
		ReqID:            req.ReqID,
		Probability:      probability,
		RiskLevel:        riskLevel,
		Attribution:      attribution,
		AttributionError: attErrStr,
		DurationMs:       duration.Milliseconds(),
	}, nil
}

// vectorize checks the input record against the feature schema and lays
// the values out in schema order. The key set must match exactly.
func (s *PredictionService) vectorize(features map[string]float64) ([]float64, error) {
	names := s.model.FeatureNames()
	if len(features) != len(names) {
		return nil, fmt.Errorf("input record has %d features, schema expects %d", len(features), len(names))
	}
	vec := make([]float64, len(names))
	for i, name := range names {
		v, ok := features[name]
		if !ok {
			return nil, fmt.Errorf("input record missing feature %q", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %q has non-finite value", name)
		}
		vec[i] = v
	}
	return vec, nil
}

// explainRecord runs the ordered two-tier attribution chain: the general
// explainer first, then the tree-level fallback when, and only when, the
// general path reports the recognized incompatibility signal.
func (s *PredictionService) explainRecord(vec []float64) (*explain.Attribution, error) {
	general, err := explain.NewExplainer(s.model)
	if err == nil {
		general.SetMaxDisplay(s.maxDisplay)
		attribution, exErr := general.Explain(vec)
		if exErr == nil {
			return attribution, nil
		}
		if !errors.Is(exErr, explain.ErrIncompatibleModel) {
			return nil, exErr
		}
		err = exErr
	} else if !errors.Is(err, explain.ErrIncompatibleModel) {
		return nil, err
	}

	slog.Warn("General explainer rejected model state, trying tree explainer", "error", err)

	// The lower-level representation does not always retain feature names;
	// re-attach the schema before explaining on it.
	raw := s.model.Booster()
	if setErr := raw.SetFeatureNames(s.model.FeatureNames()); setErr != nil {
		return nil, fmt.Errorf("attaching schema to raw ensemble: %w", setErr)
	}
	fallback, fbErr := explain.NewTreeExplainer(raw)
	if fbErr != nil {
		return nil, fmt.Errorf("attribution failed: %v (general explainer: %v)", fbErr, err)
	}
	fallback.MaxDisplay = s.maxDisplay

	attribution, fbErr := fallback.Explain(vec)
	if fbErr != nil {
		return nil, fmt.Errorf("attribution failed: %v (general explainer: %v)", fbErr, err)
	}
	return attribution, nil
}

func (s *PredictionService) logPrediction(ctx context.Context, start time.Time, traceID string, req PredictionRequest, workerID, source, replyTo string, probability float64, riskLevel, method string, duration time.Duration, status, errStr string) {
	entry := &models.PredictionLog{
		Timestamp:         start,
		TraceID:           traceID,
		ReqID:             req.ReqID,
		WorkerID:          workerID,
		Source:            source,
		ReplyTo:           replyTo,
		FeaturesJSON:      toJSON(req.Features),
		FeatureCount:      len(req.Features),
		Probability:       probability,
		RiskLevel:         riskLevel,
		AttributionMethod: method,
		DurationMs:        float64(duration.Milliseconds()),
		Status:            status,
		Error:             errStr,
	}
	s.repo.Prediction().LogPrediction(ctx, entry)
}

// GetPredictionLogs retrieves telemetry rows through the repository
func (s *PredictionService) GetPredictionLogs(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	return s.repo.Prediction().GetPredictionLogs(ctx, limit)
}

func toJSON(v interface{}) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
