package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for parambridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Adapters  AdaptersConfig  `yaml:"adapters"`
	Sync      SyncConfig      `yaml:"sync"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig describes the remote control server whose parameter trees are
// bridged into the local namespace.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// APIPrefix is the URL prefix of the parameter-tree API on the remote
	// server (e.g. "api/0.1").
	APIPrefix string `yaml:"api_prefix"`

	// RequestTimeout bounds every HTTP request to the server (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// AdaptersConfig controls which remote adapters are bridged.
type AdaptersConfig struct {
	// Discover enables adapter discovery via the server's adapter listing.
	Discover bool `yaml:"discover"`

	// Include restricts discovery to the named adapters. Empty means all.
	Include []string `yaml:"include"`

	// Static names adapters to bridge without discovery. These are merged
	// with discovered adapters, so a partially-broken listing endpoint does
	// not hide known adapters.
	Static []string `yaml:"static"`
}

// SyncConfig contains polling and reconciliation settings.
type SyncConfig struct {
	// PollInterval is the discovery+poll cycle interval (seconds).
	PollInterval int `yaml:"poll_interval"`

	// WriteTimeout is how long a dispatched write may wait for confirmation
	// before being reported as failed (seconds).
	WriteTimeout int `yaml:"write_timeout"`

	// MaxMissedGenerations is how many consecutive poll cycles a parameter
	// may be absent before it is removed from the registry.
	MaxMissedGenerations int `yaml:"max_missed_generations"`

	// Backoff controls per-adapter retry behaviour after poll failures.
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig contains exponential backoff settings for failed adapters.
type BackoffConfig struct {
	// InitialDelay is the backoff after the first failure (seconds).
	InitialDelay int `yaml:"initial_delay"`

	// MaxDelay caps the exponential backoff (seconds).
	MaxDelay int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The MQTT event stream is optional; when disabled, parameter events are only
// available over the WebSocket API.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains settings for the SQLite schema cache.
// The cache persists the last confirmed parameter metadata per adapter so a
// restart can present the known mapping before the first poll completes.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PARAMBRIDGE_SECTION_KEY
// For example: PARAMBRIDGE_SERVER_HOST, PARAMBRIDGE_API_PORT
//
// The returned Config is immutable by convention: it is constructed once at
// startup and passed explicitly into every component that needs it.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8888,
			APIPrefix:      "api/0.1",
			RequestTimeout: 5,
		},
		Adapters: AdaptersConfig{
			Discover: true,
		},
		Sync: SyncConfig{
			PollInterval:         2,
			WriteTimeout:         10,
			MaxMissedGenerations: 3,
			Backoff: BackoffConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "parambridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/parambridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PARAMBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Remote server
	if v := os.Getenv("PARAMBRIDGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PARAMBRIDGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// API
	if v := os.Getenv("PARAMBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PARAMBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("PARAMBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PARAMBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PARAMBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("PARAMBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Remote server validation
	if c.Server.Host == "" {
		errs = append(errs, "server.host is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeout < 1 {
		errs = append(errs, "server.request_timeout must be at least 1 second")
	}

	// Adapter validation: with discovery off, at least one static adapter is
	// needed or the bridge has nothing to do.
	if !c.Adapters.Discover && len(c.Adapters.Static) == 0 {
		errs = append(errs, "adapters.static is required when adapters.discover is false")
	}

	// Sync validation
	if c.Sync.PollInterval < 1 {
		errs = append(errs, "sync.poll_interval must be at least 1 second")
	}
	if c.Sync.MaxMissedGenerations < 1 {
		errs = append(errs, "sync.max_missed_generations must be at least 1")
	}
	if c.Sync.Backoff.InitialDelay < 1 {
		errs = append(errs, "sync.backoff.initial_delay must be at least 1 second")
	}
	if c.Sync.Backoff.MaxDelay < c.Sync.Backoff.InitialDelay {
		errs = append(errs, "sync.backoff.max_delay must be >= sync.backoff.initial_delay")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// MQTT validation (only when enabled)
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	// Database validation (only when enabled)
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ServerBaseURL returns the base URL of the remote control server.
func (c *Config) ServerBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// GetRequestTimeout returns the remote request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// GetPollInterval returns the poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Sync.PollInterval) * time.Second
}

// GetWriteTimeout returns the write confirmation timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Sync.WriteTimeout) * time.Second
}

// GetBackoffInitial returns the initial backoff delay as a Duration.
func (c *Config) GetBackoffInitial() time.Duration {
	return time.Duration(c.Sync.Backoff.InitialDelay) * time.Second
}

// GetBackoffMax returns the backoff ceiling as a Duration.
func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Sync.Backoff.MaxDelay) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetAPIWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetAPIWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
