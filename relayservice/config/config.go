package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const (
	ProviderGCM = "gcm"
	ProviderFCM = "fcm"

	defaultRedisAddr       = "localhost:6379"
	defaultMonitorInterval = 5 * time.Second
	defaultGatewayTimeout  = 10 * time.Second
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyTTL of zero keeps cached keys forever.
	KeyTTL          time.Duration
	MonitorInterval time.Duration
}

type GatewayConfig struct {
	Provider string
	Endpoint string
	Timeout  time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ListenAddr string
	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Gateway    GatewayConfig

	// Queue ingress is optional; it is enabled by setting SubscriptionID.
	ProjectID              string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	PubsubConsumerConfig   *messagepipeline.GooglePubsubConsumerConfig
}

// PipelineEnabled reports whether requests should also be consumed from Pub/Sub.
func (c *Config) PipelineEnabled() bool {
	return c.SubscriptionID != ""
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		logger.Debug("Overriding config value", "key", "REDIS_ADDR", "source", "env")
		cfg.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		db, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", val, err)
		}
		cfg.Redis.DB = db
	}
	if val := os.Getenv("REDIS_KEY_TTL"); val != "" {
		ttl, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_KEY_TTL %q: %w", val, err)
		}
		logger.Debug("Overriding config value", "key", "REDIS_KEY_TTL", "source", "env")
		cfg.Redis.KeyTTL = ttl
	}

	// Gateway Overrides
	if val := os.Getenv("GATEWAY_PROVIDER"); val != "" {
		logger.Debug("Overriding config value", "key", "GATEWAY_PROVIDER", "source", "env")
		cfg.Gateway.Provider = strings.ToLower(val)
	}
	if val := os.Getenv("GCM_ENDPOINT"); val != "" {
		logger.Debug("Overriding config value", "key", "GCM_ENDPOINT", "source", "env")
		cfg.Gateway.Endpoint = val
	}
	if val := os.Getenv("GATEWAY_TIMEOUT"); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT %q: %w", val, err)
		}
		cfg.Gateway.Timeout = timeout
	}

	// Pub/Sub Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Defaults & Final Validation
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaultRedisAddr
	}
	if cfg.Redis.MonitorInterval <= 0 {
		cfg.Redis.MonitorInterval = defaultMonitorInterval
	}
	if cfg.Gateway.Provider == "" {
		cfg.Gateway.Provider = ProviderGCM
	}
	if cfg.Gateway.Provider != ProviderGCM && cfg.Gateway.Provider != ProviderFCM {
		return nil, fmt.Errorf("gateway provider %q is not one of %q, %q", cfg.Gateway.Provider, ProviderGCM, ProviderFCM)
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = defaultGatewayTimeout
	}

	if cfg.PipelineEnabled() {
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("project_id is required when subscription_id is set (set via YAML or PROJECT_ID env var)")
		}
		if cfg.NumPipelineWorkers <= 0 {
			cfg.NumPipelineWorkers = 1
		}
		if cfg.PubsubConsumerConfig == nil {
			cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
		}
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
