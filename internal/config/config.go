package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	xerrors "TreasurySweep/internal/errors"
	"TreasurySweep/pkg/logger"
)

// Config is the root document loaded at process start.
type Config struct {
	Network  NetworkConfig  `json:"network"`
	Custody  CustodyConfig  `json:"custody"`
	Sweep    SweepConfig    `json:"sweep"`
	Guard    GuardConfig    `json:"guard"`
	Events   EventsConfig   `json:"events"`
	Server   ServerConfig   `json:"server"`
	Metrics  MetricsConfig  `json:"metrics"`
	Logger   logger.Config  `json:"logger"`
	Alerting AlertingConfig `json:"alerting"`
}

// NetworkConfig selects the chain to operate on. Definitions for every known
// network live in a separate YAML catalogue so one binary serves all
// environments.
type NetworkConfig struct {
	Name            string `json:"name"`
	DefinitionsPath string `json:"definitions_path"`
}

// CustodyConfig describes the custody backend API. The key itself is read
// from the environment variable named by APIKeyEnv so it never lands in a
// config file.
type CustodyConfig struct {
	BaseURL        string `json:"base_url"`
	APIKeyEnv      string `json:"api_key_env"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SweepConfig fixes the consolidation policy. Amounts are human decimal
// strings: Threshold in token units, MinGasReserve in native units.
type SweepConfig struct {
	TokenAddress          string `json:"token_address"`
	DestinationAddress    string `json:"destination_address"`
	DestinationHandle     string `json:"destination_handle"`
	Threshold             string `json:"threshold"`
	MinGasReserve         string `json:"min_gas_reserve"`
	Schedule              string `json:"schedule"`
	IntervalSeconds       int    `json:"interval_seconds"`
	Confirmations         uint64 `json:"confirmations"`
	ConfirmTimeoutSeconds int    `json:"confirm_timeout_seconds"`
	RestrictionName       string `json:"restriction_name"`
}

// GuardConfig selects the single-flight guard implementation: "memory" for a
// single instance, "redis" when several sweepers share one account set.
type GuardConfig struct {
	Driver string           `json:"driver"`
	Redis  RedisGuardConfig `json:"redis"`
}

// RedisGuardConfig mirrors the shared guard connection parameters.
type RedisGuardConfig struct {
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Key        string `json:"key"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// EventsConfig selects the iteration event sink: "log" by default, "rabbitmq"
// to feed downstream consumers.
type EventsConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig mirrors the broker connection for event publishing.
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// ServerConfig controls the operational API listener.
type ServerConfig struct {
	Address string `json:"address"`
}

// MetricsConfig controls the standalone metrics listener. Empty address
// disables it.
type MetricsConfig struct {
	Address string `json:"address"`
}

// AlertingConfig wires the optional notification channels.
type AlertingConfig struct {
	Webhook  WebhookConfig  `json:"webhook"`
	Telegram TelegramConfig `json:"telegram"`
}

// WebhookConfig points alerts at a generic JSON endpoint.
type WebhookConfig struct {
	URL string `json:"url"`
}

// TelegramConfig points alerts at a Telegram chat. The bot token is read from
// the environment variable named by TokenEnv.
type TelegramConfig struct {
	TokenEnv string `json:"token_env"`
	ChatID   int64  `json:"chat_id"`
}

// Load parses the JSON config file at path and applies defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, xerrors.New(xerrors.CodeConfigError, "config file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigError, err, "open config file",
			xerrors.WithMetadata("path", path))
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigError, err, "read config file")
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigError, err, "parse config file")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Network.DefinitionsPath == "" {
		c.Network.DefinitionsPath = "configs/networks.yaml"
	}
	if c.Custody.TimeoutSeconds <= 0 {
		c.Custody.TimeoutSeconds = 30
	}
	if c.Sweep.MinGasReserve == "" {
		c.Sweep.MinGasReserve = "0.0005"
	}
	if c.Sweep.Threshold == "" {
		c.Sweep.Threshold = "0"
	}
	if c.Sweep.Schedule == "" {
		interval := c.Sweep.IntervalSeconds
		if interval <= 0 {
			interval = 300
		}
		c.Sweep.Schedule = fmt.Sprintf("@every %ds", interval)
	}
	if c.Sweep.Confirmations == 0 {
		c.Sweep.Confirmations = 1
	}
	if c.Sweep.ConfirmTimeoutSeconds <= 0 {
		c.Sweep.ConfirmTimeoutSeconds = 120
	}
	if c.Sweep.RestrictionName == "" {
		c.Sweep.RestrictionName = "sweep-to-treasury"
	}
	if c.Guard.Driver == "" {
		c.Guard.Driver = "memory"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "log"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
}

// Validate rejects configurations that cannot produce a working sweeper.
func (c *Config) Validate() error {
	if c.Network.Name == "" {
		return xerrors.New(xerrors.CodeConfigError, "network.name is required")
	}
	if c.Custody.BaseURL == "" {
		return xerrors.New(xerrors.CodeConfigError, "custody.base_url is required")
	}
	if c.Custody.APIKeyEnv == "" {
		return xerrors.New(xerrors.CodeConfigError, "custody.api_key_env is required")
	}
	switch strings.ToLower(c.Guard.Driver) {
	case "memory":
	case "redis":
		if c.Guard.Redis.Address == "" {
			return xerrors.New(xerrors.CodeConfigError, "guard.redis.address is required for the redis driver")
		}
	default:
		return xerrors.New(xerrors.CodeConfigError, "unknown guard driver",
			xerrors.WithMetadata("driver", c.Guard.Driver))
	}
	switch strings.ToLower(c.Events.Driver) {
	case "log":
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			return xerrors.New(xerrors.CodeConfigError, "events.rabbitmq.url is required for the rabbitmq driver")
		}
	default:
		return xerrors.New(xerrors.CodeConfigError, "unknown events driver",
			xerrors.WithMetadata("driver", c.Events.Driver))
	}
	return nil
}
