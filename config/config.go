package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres" toml:"postgres"`
	NATS          NATSConfig          `yaml:"nats" toml:"nats"`
	JWT           JWTConfig           `yaml:"jwt" toml:"jwt"`
	Observability ObservabilityConfig `yaml:"observability" toml:"observability"`
	Raffle        RaffleConfig        `yaml:"raffle" toml:"raffle"`
	Oracle        OracleConfig        `yaml:"oracle" toml:"oracle"`
	Upkeep        UpkeepConfig        `yaml:"upkeep" toml:"upkeep"`
	HTTP          HTTPConfig          `yaml:"http" toml:"http"`
	EventBus      EventBusConfig      `yaml:"event_bus" toml:"event_bus"`
	Storage       StorageConfig       `yaml:"storage" toml:"storage"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn" toml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL        string `yaml:"url" toml:"url"`
	NKeySeed   string `yaml:"nkey_seed" toml:"nkey_seed"`
	QueueGroup string `yaml:"queue_group" toml:"queue_group"`
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret string `yaml:"secret" toml:"secret"`
	Issuer string `yaml:"issuer" toml:"issuer"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address" toml:"metrics_address"`
	LogLevel       string `yaml:"log_level" toml:"log_level"`
	LogFormat      string `yaml:"log_format" toml:"log_format"` // json|text
	Environment    string `yaml:"environment" toml:"environment"`
}

// RaffleConfig holds the round parameters. They only apply when the round
// record is first created.
type RaffleConfig struct {
	ID          string   `yaml:"id" toml:"id"`
	EntranceFee int64    `yaml:"entrance_fee" toml:"entrance_fee"`
	Interval    Duration `yaml:"interval" toml:"interval"`
}

// OracleConfig configures the randomness coordinator.
type OracleConfig struct {
	Driver               string   `yaml:"driver" toml:"driver"` // local|bus
	KeyHash              string   `yaml:"key_hash" toml:"key_hash"`
	SubscriptionID       uint64   `yaml:"subscription_id" toml:"subscription_id"`
	MinimumConfirmations uint16   `yaml:"minimum_confirmations" toml:"minimum_confirmations"`
	CallbackGasLimit     uint32   `yaml:"callback_gas_limit" toml:"callback_gas_limit"`
	NumWords             uint32   `yaml:"num_words" toml:"num_words"`
	AutoFulfill          bool     `yaml:"auto_fulfill" toml:"auto_fulfill"`
	FulfillDelay         Duration `yaml:"fulfill_delay" toml:"fulfill_delay"`
	RequestTimeout       Duration `yaml:"request_timeout" toml:"request_timeout"`
	VerifyKey            string   `yaml:"verify_key" toml:"verify_key"` // hex BLS public key; empty skips proof checks
}

// UpkeepConfig configures the periodic upkeep job.
type UpkeepConfig struct {
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Address        string  `yaml:"address" toml:"address"`
	EntryRateLimit float64 `yaml:"entry_rate_limit" toml:"entry_rate_limit"` // entries per second per player
	EntryBurst     int     `yaml:"entry_burst" toml:"entry_burst"`
}

// EventBusConfig selects the message transport.
type EventBusConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // memory|nats
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // postgres|memory
}

// Defaults.
const (
	DefaultRaffleID         = "default"
	DefaultEntranceFee      = int64(10_000_000_000_000_000) // 0.01 ETH in wei
	DefaultInterval         = 30 * time.Second
	DefaultPollInterval     = 5 * time.Second
	DefaultCallbackGasLimit = uint32(500_000)
	DefaultConfirmations    = uint16(3)
	DefaultKeyHash          = "0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc"
	DefaultQueueGroup       = "raffle"
	DefaultEntryRateLimit   = 1.0
	DefaultEntryBurst       = 5
)

// LoadConfig loads the configuration from a YAML or TOML file. When the
// file cannot be read the configuration comes from the environment alone.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return loadConfigFromEnv()
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if cfg.Storage.Driver == "" && cfg.Postgres.DSN == "" {
		cfg.Storage.Driver = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_NKEY_SEED"); v != "" {
		cfg.NATS.NKeySeed = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("RAFFLE_ID"); v != "" {
		cfg.Raffle.ID = v
	}
	if v := os.Getenv("RAFFLE_ENTRANCE_FEE"); v != "" {
		fee, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid RAFFLE_ENTRANCE_FEE value: %w", err)
		}
		cfg.Raffle.EntranceFee = fee
	}
	if v := os.Getenv("RAFFLE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RAFFLE_INTERVAL value: %w", err)
		}
		cfg.Raffle.Interval = Duration(d)
	}
	if v := os.Getenv("ORACLE_DRIVER"); v != "" {
		cfg.Oracle.Driver = v
	}
	if v := os.Getenv("ORACLE_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ORACLE_REQUEST_TIMEOUT value: %w", err)
		}
		cfg.Oracle.RequestTimeout = Duration(d)
	}
	if v := os.Getenv("ORACLE_AUTO_FULFILL"); v != "" {
		cfg.Oracle.AutoFulfill = v == "true"
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("EVENT_BUS_DRIVER"); v != "" {
		cfg.EventBus.Driver = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	return nil
}

// Validate fills defaults and rejects settings the raffle cannot run with.
func (c *Config) Validate() error {
	if c.Raffle.ID == "" {
		c.Raffle.ID = DefaultRaffleID
	}
	if c.Raffle.EntranceFee == 0 {
		c.Raffle.EntranceFee = DefaultEntranceFee
	}
	if c.Raffle.EntranceFee < 0 {
		return fmt.Errorf("raffle.entrance_fee must be positive, got %d", c.Raffle.EntranceFee)
	}
	if c.Raffle.Interval == 0 {
		c.Raffle.Interval = Duration(DefaultInterval)
	}
	if c.Raffle.Interval < 0 {
		return fmt.Errorf("raffle.interval must be positive, got %s", c.Raffle.Interval)
	}

	if c.Oracle.Driver == "" {
		c.Oracle.Driver = "local"
	}
	if c.Oracle.Driver != "local" && c.Oracle.Driver != "bus" {
		return fmt.Errorf("oracle.driver must be local or bus, got %q", c.Oracle.Driver)
	}
	if c.Oracle.KeyHash == "" {
		c.Oracle.KeyHash = DefaultKeyHash
	}
	if c.Oracle.NumWords == 0 {
		c.Oracle.NumWords = 1
	}
	if c.Oracle.CallbackGasLimit == 0 {
		c.Oracle.CallbackGasLimit = DefaultCallbackGasLimit
	}
	if c.Oracle.MinimumConfirmations == 0 {
		c.Oracle.MinimumConfirmations = DefaultConfirmations
	}
	if c.Oracle.RequestTimeout < 0 {
		return errors.New("oracle.request_timeout must not be negative")
	}

	if c.Upkeep.PollInterval <= 0 {
		c.Upkeep.PollInterval = Duration(DefaultPollInterval)
	}

	if c.HTTP.EntryRateLimit <= 0 {
		c.HTTP.EntryRateLimit = DefaultEntryRateLimit
	}
	if c.HTTP.EntryBurst <= 0 {
		c.HTTP.EntryBurst = DefaultEntryBurst
	}

	if c.NATS.QueueGroup == "" {
		c.NATS.QueueGroup = DefaultQueueGroup
	}
	if c.EventBus.Driver == "" {
		if c.NATS.URL != "" {
			c.EventBus.Driver = "nats"
		} else {
			c.EventBus.Driver = "memory"
		}
	}
	if c.EventBus.Driver == "nats" && c.NATS.URL == "" {
		return errors.New("nats.url is required for the nats event bus")
	}
	if c.Oracle.Driver == "bus" && c.EventBus.Driver != "nats" {
		return errors.New("oracle.driver bus requires the nats event bus")
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for postgres storage")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}

	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	return nil
}

// Duration is a time.Duration that decodes from strings such as "30s" in
// both YAML and TOML.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}
