package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clinflow/risk-inference-service/internal/capabilities"
	"github.com/clinflow/risk-inference-service/internal/handlers"
	"github.com/clinflow/risk-inference-service/internal/services"
)

type Server struct {
	httpAddr          string
	predictionService *services.PredictionService
}

func NewServer(httpAddr string, predictionService *services.PredictionService) *Server {
	return &Server{
		httpAddr:          httpAddr,
		predictionService: predictionService,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	model := s.predictionService.Model()
	detector := capabilities.NewAutoCapabilityDetector()
	detected := detector.DetectCapabilities(model)

	slog.Info("Starting server with detected capabilities",
		"model", model.Metadata().ModelName,
		"architecture", model.Architecture(),
		"capabilities", detector.GetCapabilitiesSummary(detected))

	registered := 0
	for _, cap := range detected {
		switch cap.Type {
		case capabilities.CapabilityRiskScoring:
			predictionHandler := handlers.NewPredictionHandler(s.predictionService)
			predictionHandler.RegisterRoutes(mux)
			slog.Info("Registered prediction endpoints",
				"endpoints", []string{"/v1/predictions", "/v1/schema", "/healthz", "/logs"})
			registered++

		case capabilities.CapabilityAttribution:
			// Attribution rides on the prediction endpoint; nothing extra
			// to register, but surface it in the startup log.
			slog.Info("Attribution capability active", "chart_kinds", []string{"waterfall", "bar"})

		case capabilities.CapabilitySchemaIntrospection:
			// Served by the prediction handler's /v1/schema route.
		}
	}

	// A model without scoring capability cannot serve anything useful;
	// still expose health so operators can probe the process.
	if registered == 0 {
		slog.Warn("No scoring capability detected, registering health endpoint only")
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model unavailable", http.StatusServiceUnavailable)
		})
	}

	slog.Info("HTTP server starting",
		"addr", s.httpAddr,
		"total_capabilities", len(detected))

	return http.ListenAndServe(s.httpAddr, mux)
}
