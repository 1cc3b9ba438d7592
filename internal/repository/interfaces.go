package repository

import (
	"context"

	"github.com/clinflow/risk-inference-service/internal/models"
)

// Repository aggregates all repository interfaces
type Repository interface {
	Prediction() PredictionRepositoryInterface
	Event() EventRepositoryInterface
}

// PredictionRepositoryInterface defines prediction telemetry operations
type PredictionRepositoryInterface interface {
	LogPrediction(ctx context.Context, entry *models.PredictionLog) error
	GetPredictionLogs(ctx context.Context, limit int) ([]*models.PredictionLog, error)
}

// EventRepositoryInterface defines event logging operations
type EventRepositoryInterface interface {
	LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error
}
