package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NatsURL)
	assert.Equal(t, "RISK", cfg.Stream)
	assert.Equal(t, "prediction.request.default", cfg.Subject)
	assert.Equal(t, ":8084", cfg.HTTPAddr)
	assert.Equal(t, "bundle", cfg.ModelFormat)
	assert.Equal(t, 0.5, cfg.RiskThreshold)
	assert.Equal(t, 10, cfg.MaxDisplay)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MODEL_FORMAT", "split")
	t.Setenv("MODEL_META_PATH", "/models/m.meta.yaml")
	t.Setenv("MODEL_WEIGHTS_PATH", "/models/m.weights.json")
	t.Setenv("RISK_THRESHOLD", "0.7")
	t.Setenv("CHART_MAX_DISPLAY", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "split", cfg.ModelFormat)
	assert.Equal(t, "/models/m.meta.yaml", cfg.MetaPath)
	assert.Equal(t, "/models/m.weights.json", cfg.WeightsPath)
	assert.Equal(t, 0.7, cfg.RiskThreshold)
	assert.Equal(t, 5, cfg.MaxDisplay)
}

func TestLoadRejectsUnknownModelFormat(t *testing.T) {
	t.Setenv("MODEL_FORMAT", "pickle")

	_, err := Load("")
	assert.ErrorContains(t, err, "MODEL_FORMAT")
}

func TestLoadRejectsRiskThresholdOutOfRange(t *testing.T) {
	for _, v := range []string{"0", "1", "1.5", "-0.2"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("RISK_THRESHOLD", v)
			_, err := Load("")
			assert.ErrorContains(t, err, "RISK_THRESHOLD")
		})
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	// loadDotEnv writes into the process environment; register the keys so
	// the test framework restores them afterwards.
	t.Setenv("MODEL_NAME", "")
	t.Setenv("HTTP_ADDR", "")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nMODEL_NAME=diabetes-risk\n\nHTTP_ADDR = :9090\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "diabetes-risk", cfg.ModelName)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestGetEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("QUEUE_MAX_MSGS", "not-a-number")
	t.Setenv("ACK_WAIT", "not-a-duration")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.MaxMsgs)
	assert.Equal(t, cfg.AckWait.String(), "30s")
}
