package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/clinflow/risk-inference-service/internal/booster"
	"github.com/clinflow/risk-inference-service/internal/capabilities"
	"github.com/clinflow/risk-inference-service/internal/config"
)

// HealthService answers health probes for this model and publishes
// periodic heartbeats carrying the detected capabilities.
type HealthService struct {
	nats     *nats.Conn
	config   *config.Config
	model    *booster.Model
	detector *capabilities.AutoCapabilityDetector
}

type HealthStatus struct {
	ModelName    string    `json:"model_name"`
	Status       string    `json:"status"` // online, offline, busy
	LastActivity time.Time `json:"last_activity"`
	Capabilities []string  `json:"capabilities"`
	FeatureCount int       `json:"feature_count"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
}

func NewHealthService(natsConn *nats.Conn, cfg *config.Config, model *booster.Model) *HealthService {
	return &HealthService{
		nats:     natsConn,
		config:   cfg,
		model:    model,
		detector: capabilities.NewAutoCapabilityDetector(),
	}
}

func (h *HealthService) Start(ctx context.Context) error {
	// Subscribe to health check requests for this model
	healthTopic := fmt.Sprintf("models.%s.health", h.config.ModelName)

	_, err := h.nats.Subscribe(healthTopic, func(msg *nats.Msg) {
		status := h.getHealthStatus()

		statusData, err := json.Marshal(status)
		if err != nil {
			slog.Error("Failed to marshal health status", "error", err)
			return
		}

		// Probes either use core request/reply or name an explicit reply
		// subject in the payload.
		var req struct {
			ReplyTo string `json:"reply_to"`
		}
		_ = json.Unmarshal(msg.Data, &req)

		switch {
		case req.ReplyTo != "":
			if err := h.nats.Publish(req.ReplyTo, statusData); err != nil {
				slog.Error("Failed to respond to health check", "error", err)
			}
		case msg.Reply != "":
			if err := msg.Respond(statusData); err != nil {
				slog.Error("Failed to respond to health check", "error", err)
			}
		}
	})

	if err != nil {
		return fmt.Errorf("failed to subscribe to health topic: %w", err)
	}

	// Discovery requests carry the reply subject in the payload rather
	// than the NATS reply field.
	_, err = h.nats.Subscribe("models.discovery", func(msg *nats.Msg) {
		var req struct {
			ReplyTo string `json:"reply_to"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.ReplyTo == "" {
			return
		}

		resp, err := json.Marshal(map[string]interface{}{
			"models": []string{h.config.ModelName},
		})
		if err != nil {
			return
		}
		if err := h.nats.Publish(req.ReplyTo, resp); err != nil {
			slog.Warn("Failed to answer discovery request", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to discovery topic: %w", err)
	}

	slog.Info("Health service started", "topic", healthTopic)

	go h.publishHeartbeats(ctx)

	return nil
}

func (h *HealthService) publishHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	heartbeatTopic := fmt.Sprintf("monitoring.models.heartbeat.%s", h.config.ModelName)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := h.getHealthStatus()
			statusData, err := json.Marshal(status)
			if err != nil {
				continue
			}

			if err := h.nats.Publish(heartbeatTopic, statusData); err != nil {
				slog.Warn("Failed to publish heartbeat", "error", err)
			}
		}
	}
}

func (h *HealthService) getHealthStatus() HealthStatus {
	caps := h.detector.DetectCapabilities(h.model)

	return HealthStatus{
		ModelName:    h.config.ModelName,
		Status:       "online",
		LastActivity: time.Now(),
		Capabilities: h.detector.GetCapabilityStrings(caps),
		FeatureCount: h.model.NumFeatures(),
		Endpoint:     fmt.Sprintf("http://localhost%s", h.config.HTTPAddr),
		NATSTopic:    h.config.Subject,
		Version:      h.model.Metadata().FormatVersion,
	}
}
