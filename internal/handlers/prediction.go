package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/clinflow/risk-inference-service/internal/capabilities"
	"github.com/clinflow/risk-inference-service/internal/services"
)

// PredictionHandler is the HTTP adapter the web form talks to: it collects
// one input record per predict action and hands back the probability plus
// the attribution artifact.
type PredictionHandler struct {
	predictionService *services.PredictionService
	detector          *capabilities.AutoCapabilityDetector
}

func NewPredictionHandler(predictionService *services.PredictionService) *PredictionHandler {
	return &PredictionHandler{
		predictionService: predictionService,
		detector:          capabilities.NewAutoCapabilityDetector(),
	}
}

func (h *PredictionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/predictions", h.handlePredict)
	mux.HandleFunc("/v1/schema", h.handleSchema)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/logs", h.handleLogs)
}

func (h *PredictionHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleSchema exposes the ordered feature list the form renders inputs
// for, plus model identity and detected capabilities.
func (h *PredictionHandler) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	model := h.predictionService.Model()
	caps := h.detector.DetectCapabilities(model)

	resp := map[string]interface{}{
		"feature_names": model.FeatureNames(),
		"model_name":    model.Metadata().ModelName,
		"architecture":  model.Architecture(),
		"capabilities":  h.detector.GetCapabilityStrings(caps),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *PredictionHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req services.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.ReqID == "" {
		req.ReqID = ulid.Make().String()
	}

	if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
		req.TraceID = traceID
	}

	response, err := h.predictionService.ProcessPrediction(r.Context(), req, "http.prediction", "direct", "http-worker")
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(response)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (h *PredictionHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	logs, err := h.predictionService.GetPredictionLogs(r.Context(), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get logs: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(logs)
}
