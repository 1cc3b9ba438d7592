package client

import "time"

// PredictionRequest is one input record submitted for scoring
type PredictionRequest struct {
	ReqID    string             `json:"req_id"`
	TraceID  string             `json:"trace_id,omitempty"`
	Features map[string]float64 `json:"features"`
	ReplyTo  string             `json:"reply_to,omitempty"`
}

// Contribution is one feature's signed contribution to a prediction
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// ChartItem is one rendered row of the attribution chart
type ChartItem struct {
	Label        string  `json:"label"`
	Contribution float64 `json:"contribution"`
	Cumulative   float64 `json:"cumulative,omitempty"`
}

// Chart is the display artifact accompanying an attribution
type Chart struct {
	Kind       string      `json:"kind"`
	BaseValue  float64     `json:"base_value"`
	FinalValue float64     `json:"final_value"`
	Items      []ChartItem `json:"items"`
	Legend     string      `json:"legend"`
}

// Attribution explains one prediction
type Attribution struct {
	Method        string         `json:"method"`
	BaseValue     float64        `json:"base_value"`
	Margin        float64        `json:"margin"`
	Contributions []Contribution `json:"contributions"`
	Chart         *Chart         `json:"chart"`
}

// PredictionResponse is the service's answer for one record
type PredictionResponse struct {
	ReqID            string       `json:"req_id"`
	Probability      float64      `json:"probability"`
	RiskLevel        string       `json:"risk_level"`
	Attribution      *Attribution `json:"attribution,omitempty"`
	AttributionError string       `json:"attribution_error,omitempty"`
	DurationMs       int64        `json:"duration_ms"`
	Error            string       `json:"error,omitempty"`
}

// HealthStatus represents model health information
type HealthStatus struct {
	ModelName    string    `json:"model_name"`
	Status       string    `json:"status"`
	LastActivity time.Time `json:"last_activity"`
	Capabilities []string  `json:"capabilities"`
	FeatureCount int       `json:"feature_count"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
}
