package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	KeyTTL          string `yaml:"key_ttl"`
	MonitorInterval string `yaml:"monitor_interval"`
}

type YamlGatewayConfig struct {
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ListenAddr             string            `yaml:"listen_addr"`
	CorsConfig             YamlCorsConfig    `yaml:"cors"`
	RedisConfig            YamlRedisConfig   `yaml:"redis"`
	GatewayConfig          YamlGatewayConfig `yaml:"gateway"`
	ProjectID              string            `yaml:"project_id"`
	TopicID                string            `yaml:"topic_id"`
	SubscriptionID         string            `yaml:"subscription_id"`
	SubscriptionDLQTopicID string            `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int               `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	keyTTL, err := parseOptionalDuration("redis.key_ttl", baseCfg.RedisConfig.KeyTTL)
	if err != nil {
		return nil, err
	}
	monitorInterval, err := parseOptionalDuration("redis.monitor_interval", baseCfg.RedisConfig.MonitorInterval)
	if err != nil {
		return nil, err
	}
	timeout, err := parseOptionalDuration("gateway.timeout", baseCfg.GatewayConfig.Timeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddr: baseCfg.ListenAddr,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:            baseCfg.RedisConfig.Addr,
			Password:        baseCfg.RedisConfig.Password,
			DB:              baseCfg.RedisConfig.DB,
			KeyTTL:          keyTTL,
			MonitorInterval: monitorInterval,
		},
		Gateway: GatewayConfig{
			Provider: baseCfg.GatewayConfig.Provider,
			Endpoint: baseCfg.GatewayConfig.Endpoint,
			Timeout:  timeout,
		},
		ProjectID:              baseCfg.ProjectID,
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"listen_addr", cfg.ListenAddr,
		"redis_addr", cfg.Redis.Addr,
		"gateway_provider", cfg.Gateway.Provider,
		"subscription_id", cfg.SubscriptionID,
	)

	return cfg, nil
}

func parseOptionalDuration(field, val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, val, err)
	}
	return d, nil
}
