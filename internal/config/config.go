package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Auth      AuthConfig       `mapstructure:"auth"`
	CORS      CORSConfig       `mapstructure:"cors"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Supabase  SupabaseConfig   `mapstructure:"supabase"`
	Push      PushConfig       `mapstructure:"push"`
	Segments  SegmentsConfig   `mapstructure:"segments"`
	Queue     QueueConfig      `mapstructure:"queue"`
	Dispatch  DispatchConfig   `mapstructure:"dispatch"`
	TestSend  TestSendConfig   `mapstructure:"test_send"`
	Reaper    ReaperConfigYAML `mapstructure:"reaper"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SupabaseConfig holds the document store project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// PushConfig holds push gateway settings.
type PushConfig struct {
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
}

// SegmentsConfig holds the upstream CRM segments API settings.
type SegmentsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// QueueConfig holds async queue settings for scheduled dispatch.
type QueueConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxRetry    int `mapstructure:"max_retry"`
}

// DispatchConfig holds dispatch orchestration settings.
// StrictReconcile aborts a send when the pre-dispatch partial update fails;
// the default is best-effort, where that failure is logged and the send
// proceeds with the content the admin is looking at.
type DispatchConfig struct {
	StrictReconcile bool `mapstructure:"strict_reconcile"`
}

// TestSendConfig holds per-device test-send rate limiting settings.
type TestSendConfig struct {
	MaxPerHour int `mapstructure:"max_per_hour"`
}

// ReaperConfigYAML holds overdue-sweep settings (durations as seconds for YAML/env compat).
type ReaperConfigYAML struct {
	IntervalSec         int `mapstructure:"interval_sec"`
	OverdueThresholdSec int `mapstructure:"overdue_threshold_sec"`
	BatchSize           int `mapstructure:"batch_size"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the PUSHDESK_ prefix and underscore separators.
// Example: PUSHDESK_SERVER_PORT overrides server.port in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	v.SetEnvPrefix("PUSHDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8082)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.max_retry", 5)
	v.SetDefault("dispatch.strict_reconcile", false)
	v.SetDefault("test_send.max_per_hour", 10)
	v.SetDefault("reaper.interval_sec", 300)
	v.SetDefault("reaper.overdue_threshold_sec", 120)
	v.SetDefault("reaper.batch_size", 50)

	// Config file is optional — env vars can provide everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Handle comma-separated API keys from env var
	if apiKeysStr := v.GetString("auth.api_keys"); apiKeysStr != "" && len(cfg.Auth.APIKeys) == 0 {
		keys := strings.Split(apiKeysStr, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Auth.APIKeys = keys
	}

	return &cfg, nil
}
