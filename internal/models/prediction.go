package models

import "time"

// PredictionLog is the operational audit row written for every scored
// request. It is telemetry about the service, not part of the clinical
// data model: the prediction flow itself is stateless per request.
type PredictionLog struct {
	Timestamp         time.Time `json:"ts"`
	TraceID           string    `json:"trace_id"`
	ReqID             string    `json:"req_id"`
	WorkerID          string    `json:"worker_id"`
	Source            string    `json:"source"`
	ReplyTo           string    `json:"reply_to"`
	FeaturesJSON      string    `json:"features_json"`
	FeatureCount      int       `json:"feature_count"`
	Probability       float64   `json:"probability"`
	RiskLevel         string    `json:"risk_level"`
	AttributionMethod string    `json:"attribution_method"`
	DurationMs        float64   `json:"dur_ms"`
	Status            string    `json:"status"`
	Error             string    `json:"error"`
}
