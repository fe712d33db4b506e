// Package config is the static YAML bootstrap configuration for the
// engine: bus connection, document-store connection, the REST surface's
// listen address, logging, Prometheus/CloudWatch metrics, and the tunables
// for each long-lived component (ConfigManager's cache, DepthAnalyzer's
// sweep, Router's breakers, Publisher's retry policy, the heartbeat
// interval). Loaded once at startup by cmd/strategies/main.go.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Bus        BusConfig        `yaml:"bus"`
	Store      StoreConfig      `yaml:"store"`
	API        APIConfig        `yaml:"api"`
	ConfigMgr  ConfigMgrConfig  `yaml:"config_manager"`
	Depth      DepthConfig      `yaml:"depth_analyzer"`
	Router     RouterConfig     `yaml:"router"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// BusConfig configures the inbound NATS consumer and outbound publisher.
// Both sides of the bus share a connection URL by default; Topic/Consumer
// naming is kept separate so the consumer's queue group and the
// publisher's outbound subject can be tuned independently.
type BusConfig struct {
	URL      string         `yaml:"url"`
	Consumer ConsumerConfig `yaml:"consumer"`
	Publish  PublishConfig  `yaml:"publish"`
}

type ConsumerConfig struct {
	Topic            string        `yaml:"topic"`
	ConsumerName     string        `yaml:"consumer_name"`
	QueueGroup       string        `yaml:"queue_group"`
	ReconnectWait    time.Duration `yaml:"reconnect_wait"`
	MaxReconnects    int           `yaml:"max_reconnects"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}

type PublishConfig struct {
	Topic           string        `yaml:"topic"`
	ClientName      string        `yaml:"client_name"`
	ReconnectWait   time.Duration `yaml:"reconnect_wait"`
	MaxReconnects   int           `yaml:"max_reconnects"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	QueueSize       int           `yaml:"queue_size"`
}

// StoreConfig configures the MongoDB document store backing the
// ConfigManager's symbol/global config tiers and audit trail.
type StoreConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type APIConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ConfigMgrConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type DepthConfig struct {
	MetricsTTL    time.Duration `yaml:"metrics_ttl"`
	MaxSymbols    int           `yaml:"max_symbols"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RouterConfig struct {
	BreakerFailureThreshold int           `yaml:"breaker_failure_threshold"`
	BreakerRecoveryTimeout  time.Duration `yaml:"breaker_recovery_timeout"`
	BaseQuantity            string        `yaml:"base_quantity"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// LoadConfig reads and validates the YAML bootstrap config at path,
// applying environment-variable overrides for the bus URL and store URI so
// secrets never need to live in the checked-in YAML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Config{
		Bus: BusConfig{
			Consumer: ConsumerConfig{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second},
		},
		ConfigMgr: ConfigMgrConfig{CacheTTL: time.Minute, RefreshInterval: time.Minute},
		Depth:     DepthConfig{MetricsTTL: 5 * time.Minute, MaxSymbols: 500, SweepInterval: time.Minute},
		Router:    RouterConfig{BreakerFailureThreshold: 5, BreakerRecoveryTimeout: 30 * time.Second, BaseQuantity: "1"},
		Heartbeat: HeartbeatConfig{Interval: 30 * time.Second},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Bus.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Store.URI = strings.TrimSpace(v)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// validateConfig fails fast on the first invalid field, matching the
// teacher's own error-reporting style.
func validateConfig(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if cfg.Service.Version == "" {
		return fmt.Errorf("service.version is required")
	}
	if cfg.Bus.URL == "" {
		return fmt.Errorf("bus.url is required")
	}
	if cfg.Bus.Consumer.Topic == "" {
		return fmt.Errorf("bus.consumer.topic is required")
	}
	if cfg.Bus.Publish.Topic == "" {
		return fmt.Errorf("bus.publish.topic is required")
	}
	if cfg.Store.URI == "" {
		return fmt.Errorf("store.uri is required")
	}
	if cfg.Store.Database == "" {
		return fmt.Errorf("store.database is required")
	}
	if cfg.ConfigMgr.CacheTTL <= 0 {
		return fmt.Errorf("config_manager.cache_ttl must be greater than 0")
	}
	if cfg.Depth.MaxSymbols <= 0 {
		return fmt.Errorf("depth_analyzer.max_symbols must be greater than 0")
	}
	if cfg.Router.BreakerFailureThreshold <= 0 {
		return fmt.Errorf("router.breaker_failure_threshold must be greater than 0")
	}
	return nil
}
