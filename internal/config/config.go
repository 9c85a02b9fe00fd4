package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Classifier: remote inference endpoint, or a local model artifact
	InferenceURL  string `yaml:"inference_url"`
	ModelArtifact string `yaml:"model_artifact"`
	FeatureWidth  int    `yaml:"feature_width"`

	// Ingestion pipeline
	PollInterval      time.Duration `yaml:"poll_interval"`
	BatchSize         int           `yaml:"batch_size"`
	MaxAttempts       int           `yaml:"max_attempts"`
	MaxQueueDepth     int           `yaml:"max_queue_depth"`
	IdempotencyWindow time.Duration `yaml:"idempotency_window"`
	PipelineEnabled   bool          `yaml:"pipeline_enabled"`

	// Alerting
	DedupWindow time.Duration `yaml:"dedup_window"`

	// Canary
	CanaryEnabled        bool   `yaml:"canary_enabled"`
	CanaryModelPath      string `yaml:"canary_model_path"`
	CanaryTrafficPercent int    `yaml:"canary_traffic_percent"`

	// Drift
	DriftWindowEvents   int     `yaml:"drift_window_events"`
	DriftAlertThreshold float64 `yaml:"drift_alert_threshold"`

	// Notifications
	WebhookURL          string        `yaml:"webhook_url"`
	SlackWebhookURL     string        `yaml:"slack_webhook_url"`
	NotificationTimeout time.Duration `yaml:"notification_timeout"`
	NATSURL             string        `yaml:"nats_url"`
	NATSSubject         string        `yaml:"nats_subject"`

	// HTTP server
	ListenAddr string `yaml:"listen_addr"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables, optionally overlaid
// on a YAML file named by CENTERBACK_CONFIG. Environment variables win.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CENTERBACK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "centerback",
		SurrealDBDatabase:  "ids",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		FeatureWidth: 78,

		PollInterval:      2 * time.Second,
		BatchSize:         100,
		MaxAttempts:       5,
		MaxQueueDepth:     5000,
		IdempotencyWindow: 30 * time.Minute,
		PipelineEnabled:   true,

		DedupWindow: 10 * time.Minute,

		CanaryTrafficPercent: 5,

		DriftWindowEvents:   500,
		DriftAlertThreshold: 0.2,

		NotificationTimeout: 5 * time.Second,
		NATSSubject:         "centerback.alerts",

		ListenAddr: ":8080",

		LogLevel: slog.LevelInfo,
	}
}

func applyEnv(cfg *Config) {
	setStr(&cfg.SurrealDBURL, "SURREALDB_URL")
	setStr(&cfg.SurrealDBNamespace, "SURREALDB_NAMESPACE")
	setStr(&cfg.SurrealDBDatabase, "SURREALDB_DATABASE")
	setStr(&cfg.SurrealDBUser, "SURREALDB_USER")
	setStr(&cfg.SurrealDBPass, "SURREALDB_PASS")
	setStr(&cfg.SurrealDBAuthLevel, "SURREALDB_AUTH_LEVEL")

	setStr(&cfg.InferenceURL, "CENTERBACK_INFERENCE_URL")
	setStr(&cfg.ModelArtifact, "CENTERBACK_MODEL_ARTIFACT")
	setInt(&cfg.FeatureWidth, "CENTERBACK_FEATURE_WIDTH")

	setDuration(&cfg.PollInterval, "INGEST_POLL_INTERVAL")
	setInt(&cfg.BatchSize, "INGEST_BATCH_SIZE")
	setInt(&cfg.MaxAttempts, "INGEST_MAX_ATTEMPTS")
	setInt(&cfg.MaxQueueDepth, "INGEST_MAX_QUEUE_DEPTH")
	setDuration(&cfg.IdempotencyWindow, "INGEST_IDEMPOTENCY_WINDOW")
	setBool(&cfg.PipelineEnabled, "INGEST_PIPELINE_ENABLED")

	setDuration(&cfg.DedupWindow, "ALERT_DEDUP_WINDOW")

	setBool(&cfg.CanaryEnabled, "CANARY_ENABLED")
	setStr(&cfg.CanaryModelPath, "CANARY_MODEL_PATH")
	setInt(&cfg.CanaryTrafficPercent, "CANARY_TRAFFIC_PERCENT")

	setInt(&cfg.DriftWindowEvents, "DRIFT_WINDOW_EVENTS")
	setFloat(&cfg.DriftAlertThreshold, "DRIFT_ALERT_THRESHOLD")

	setStr(&cfg.WebhookURL, "NOTIFICATION_WEBHOOK_URL")
	setStr(&cfg.SlackWebhookURL, "NOTIFICATION_SLACK_WEBHOOK_URL")
	setDuration(&cfg.NotificationTimeout, "NOTIFICATION_TIMEOUT")
	setStr(&cfg.NATSURL, "NOTIFICATION_NATS_URL")
	setStr(&cfg.NATSSubject, "NOTIFICATION_NATS_SUBJECT")

	setStr(&cfg.ListenAddr, "CENTERBACK_LISTEN_ADDR")

	setStr(&cfg.LogFile, "CENTERBACK_LOG_FILE")
	if val := os.Getenv("CENTERBACK_LOG_LEVEL"); val != "" {
		cfg.LogLevel = parseLogLevel(val)
	}
}

func setStr(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val == "true" || val == "1"
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
