package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// NATS Configuration
	NatsURL        string
	Stream         string
	Subject        string
	Durable        string
	QueueGroup     string
	ResponsePrefix string
	MaxMsgs        int
	MaxAge         time.Duration
	AckWait        time.Duration
	MaxDeliver     int
	MaxAckPending  int
	Concurrency    int

	// Monitoring Configuration
	MonitoringTopic       string
	BackpressureThreshold int64

	// HTTP Configuration
	HTTPAddr string

	// Model Configuration
	ModelName   string
	ModelFormat string
	BundlePath  string
	MetaPath    string
	WeightsPath string

	// Prediction Configuration
	RiskThreshold float64
	MaxDisplay    int

	// Database Configuration
	DBPath string

	// Logging Configuration
	LogLevel  string
	LogFormat string
	LogFile   string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	cfg := &Config{
		NatsURL:               getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		Stream:                getEnv("STREAM_NAME", "RISK"),
		Subject:               getEnv("SUBJECT", "prediction.request.default"),
		Durable:               getEnv("QUEUE_DURABLE", "risk-wq"),
		QueueGroup:            getEnv("QUEUE_GROUP", "workers"),
		ResponsePrefix:        getEnv("RESPONSE_PREFIX", "prediction.reply"),
		MaxMsgs:               getEnvInt("QUEUE_MAX_MSGS", 2000),
		MaxAge:                getEnvDuration("QUEUE_MAX_AGE", "30s"),
		AckWait:               getEnvDuration("ACK_WAIT", "30s"),
		MaxDeliver:            getEnvInt("MAX_DELIVER", 5),
		MaxAckPending:         getEnvInt("MAX_ACK_PENDING", 64),
		Concurrency:           getEnvInt("WORKER_CONCURRENCY", 2),
		MonitoringTopic:       getEnv("MONITORING_TOPIC", "monitoring.models.backpressure"),
		BackpressureThreshold: int64(getEnvInt("BACKPRESSURE_THRESHOLD", 100)),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8084"),
		ModelName:             getEnv("MODEL_NAME", "default"),
		ModelFormat:           getEnv("MODEL_FORMAT", "bundle"),
		BundlePath:            getEnv("MODEL_BUNDLE_PATH", "data/models/risk_model.bundle.json"),
		MetaPath:              getEnv("MODEL_META_PATH", "data/models/risk_model.meta.yaml"),
		WeightsPath:           getEnv("MODEL_WEIGHTS_PATH", "data/models/risk_model.weights.json"),
		RiskThreshold:         getEnvFloat("RISK_THRESHOLD", 0.5),
		MaxDisplay:            getEnvInt("CHART_MAX_DISPLAY", 10),
		DBPath:                getEnv("DB_PATH", "data/worker.sqlite"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		LogFile:               getEnv("LOG_FILE", ""),
	}

	if cfg.ModelFormat != "bundle" && cfg.ModelFormat != "split" {
		return nil, fmt.Errorf("MODEL_FORMAT must be bundle or split, got %q", cfg.ModelFormat)
	}
	if cfg.RiskThreshold <= 0 || cfg.RiskThreshold >= 1 {
		return nil, fmt.Errorf("RISK_THRESHOLD must be inside (0,1), got %v", cfg.RiskThreshold)
	}

	return cfg, nil
}

func loadDotEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}
