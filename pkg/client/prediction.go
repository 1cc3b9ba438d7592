package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// PredictionClient provides a client interface for the risk service
type PredictionClient interface {
	// Scoring
	Predict(ctx context.Context, model string, features map[string]float64) (*PredictionResponse, error)

	// Health and discovery
	CheckHealth(ctx context.Context, model string) (*HealthStatus, error)
	ListModels(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}

// NATSPredictionClient implements PredictionClient over plain NATS
// request/reply with explicit reply subjects
type NATSPredictionClient struct {
	conn     *nats.Conn
	clientID string
	timeout  time.Duration
}

// NewNATSClient creates a new NATS-based prediction client
func NewNATSClient(natsURL, clientID string) (PredictionClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if clientID == "" {
		clientID = "prediction-client"
	}

	return &NATSPredictionClient{
		conn:     conn,
		clientID: clientID,
		timeout:  30 * time.Second,
	}, nil
}

// Predict submits one input record for scoring and attribution
func (c *NATSPredictionClient) Predict(ctx context.Context, model string, features map[string]float64) (*PredictionResponse, error) {
	topic := fmt.Sprintf("prediction.request.%s", model)

	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("prediction.reply.%s.%s", c.clientID, reqID)

	request := PredictionRequest{
		ReqID:    reqID,
		Features: features,
		ReplyTo:  replySubject,
	}

	return c.sendRequest(ctx, topic, replySubject, request)
}

func (c *NATSPredictionClient) sendRequest(ctx context.Context, topic, replySubject string, request PredictionRequest) (*PredictionResponse, error) {
	slog.Debug("Sending prediction request",
		"topic", topic,
		"req_id", request.ReqID,
		"reply_subject", replySubject)

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Subscribe to the reply subject before publishing
	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(replySubject, func(msg *nats.Msg) {
		replyChan <- msg
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.Publish(topic, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	select {
	case msg := <-replyChan:
		var response PredictionResponse
		if err := json.Unmarshal(msg.Data, &response); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return &response, nil

	case <-time.After(c.timeout):
		return nil, fmt.Errorf("request timeout after %v", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CheckHealth checks if a model is available and healthy
func (c *NATSPredictionClient) CheckHealth(ctx context.Context, model string) (*HealthStatus, error) {
	healthTopic := fmt.Sprintf("models.%s.health", model)

	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("health.response.%s.%s", c.clientID, reqID)

	healthReq := map[string]interface{}{
		"req_id":   reqID,
		"reply_to": replySubject,
	}

	requestBytes, err := json.Marshal(healthReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal health request: %w", err)
	}

	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(replySubject, func(msg *nats.Msg) {
		replyChan <- msg
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to health reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.Publish(healthTopic, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish health request: %w", err)
	}

	select {
	case msg := <-replyChan:
		var health HealthStatus
		if err := json.Unmarshal(msg.Data, &health); err != nil {
			return nil, fmt.Errorf("failed to parse health response: %w", err)
		}
		return &health, nil

	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("health check timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ListModels discovers available models via NATS
func (c *NATSPredictionClient) ListModels(ctx context.Context) ([]string, error) {
	discoveryTopic := "models.discovery"

	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("discovery.response.%s.%s", c.clientID, reqID)

	request := map[string]interface{}{
		"req_id":   reqID,
		"reply_to": replySubject,
	}

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal discovery request: %w", err)
	}

	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(replySubject, func(msg *nats.Msg) {
		replyChan <- msg
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to discovery reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.Publish(discoveryTopic, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish discovery request: %w", err)
	}

	select {
	case msg := <-replyChan:
		var response map[string]interface{}
		if err := json.Unmarshal(msg.Data, &response); err != nil {
			return nil, fmt.Errorf("failed to parse discovery response: %w", err)
		}

		if models, ok := response["models"].([]interface{}); ok {
			modelNames := make([]string, 0, len(models))
			for _, model := range models {
				if modelName, ok := model.(string); ok {
					modelNames = append(modelNames, modelName)
				}
			}
			return modelNames, nil
		}
		return nil, fmt.Errorf("unexpected discovery response format")

	case <-time.After(c.timeout):
		return nil, fmt.Errorf("discovery timeout after %v", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down the NATS connection
func (c *NATSPredictionClient) Close() error {
	c.conn.Close()
	return nil
}
