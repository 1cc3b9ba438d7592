package repository

import (
	"context"
	"time"

	"github.com/clinflow/risk-inference-service/internal/models"
	"github.com/clinflow/risk-inference-service/internal/store"
)

// SQLiteRepository implements Repository interface using SQLite
type SQLiteRepository struct {
	db             *store.DB
	predictionRepo PredictionRepositoryInterface
	eventRepo      EventRepositoryInterface
}

func NewSQLiteRepository(db *store.DB) Repository {
	return &SQLiteRepository{
		db:             db,
		predictionRepo: &SQLitePredictionRepository{db: db},
		eventRepo:      &SQLiteEventRepository{db: db},
	}
}

func (r *SQLiteRepository) Prediction() PredictionRepositoryInterface {
	return r.predictionRepo
}

func (r *SQLiteRepository) Event() EventRepositoryInterface {
	return r.eventRepo
}

// SQLitePredictionRepository handles prediction telemetry
type SQLitePredictionRepository struct {
	db *store.DB
}

func (r *SQLitePredictionRepository) LogPrediction(ctx context.Context, entry *models.PredictionLog) error {
	r.db.Prediction(
		entry.Timestamp,
		entry.TraceID,
		entry.ReqID,
		entry.WorkerID,
		entry.Source,
		entry.ReplyTo,
		entry.FeaturesJSON,
		entry.FeatureCount,
		entry.Probability,
		entry.RiskLevel,
		entry.AttributionMethod,
		time.Duration(entry.DurationMs)*time.Millisecond,
		entry.Status,
		entry.Error,
	)
	return nil
}

func (r *SQLitePredictionRepository) GetPredictionLogs(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	rows, err := r.db.Query(`SELECT ts,trace_id,req_id,worker_id,source,reply_to,features_json,feature_count,probability,risk_level,attribution_method,dur_ms,status,error FROM predictions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.PredictionLog
	for rows.Next() {
		var entry models.PredictionLog
		var tsFloat float64

		if err := rows.Scan(
			&tsFloat, &entry.TraceID, &entry.ReqID, &entry.WorkerID, &entry.Source,
			&entry.ReplyTo, &entry.FeaturesJSON, &entry.FeatureCount, &entry.Probability,
			&entry.RiskLevel, &entry.AttributionMethod, &entry.DurationMs,
			&entry.Status, &entry.Error,
		); err == nil {
			entry.Timestamp = time.Unix(0, int64(tsFloat*1e9))
			logs = append(logs, &entry)
		}
	}

	return logs, nil
}

// SQLiteEventRepository handles event logging
type SQLiteEventRepository struct {
	db *store.DB
}

func (r *SQLiteEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	r.db.Event(level, code, msg, meta)
	return nil
}
