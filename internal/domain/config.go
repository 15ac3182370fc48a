package domain

import (
	"time"
)

// Config holds the complete Kite runtime configuration.
// The business policy (RulesConfig) lives in its own document and is loaded
// separately; Config only wires infrastructure.
type Config struct {
	// Server settings (serve mode only)
	Server ServerConfig `json:"server"`

	// Tier determines infrastructure defaults
	Tier Tier `json:"tier"`

	// AdapterMode selects collaborator implementations at construction time.
	// The orchestrator itself never branches on it.
	AdapterMode AdapterMode `json:"adapterMode"`

	// RulesPath is the policy document location.
	RulesPath string `json:"rulesPath"`

	// DataDir holds fixture files for mock adapters.
	DataDir string `json:"dataDir"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Collaborator endpoints (live mode)
	Marketplace AdapterConfig `json:"marketplace"`
	Supplier    AdapterConfig `json:"supplier"`

	// Notification targets
	Notify NotifyConfig `json:"notify"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// AdapterMode selects which collaborator implementations main constructs.
type AdapterMode string

const (
	// ModeMock reads fixtures from DataDir and acknowledges applies locally.
	ModeMock AdapterMode = "mock"

	// ModeLive talks to the configured marketplace/supplier HTTP endpoints.
	ModeLive AdapterMode = "live"
)

// AdapterConfig holds the endpoint settings for a live collaborator.
type AdapterConfig struct {
	BaseURL        string `json:"baseUrl"`
	Token          string `json:"token"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// NotifyConfig holds notification delivery settings.
type NotifyConfig struct {
	// LogPath is the local append-only notification log.
	LogPath string `json:"logPath"`

	// WebhookURL is a Slack-compatible incoming webhook. Empty disables it.
	WebhookURL string `json:"webhookUrl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:        TierCommunity,
		AdapterMode: ModeMock,
		RulesPath:   "./rules.json",
		DataDir:     "./data",
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kite.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     30 * time.Second,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Notify: NotifyConfig{
			LogPath: "./state/notifications.log",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kite",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kite",
	}
	cfg.Cache = CacheConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
