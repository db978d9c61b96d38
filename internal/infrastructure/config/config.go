package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the eva-link daemon.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Transport TransportConfig `yaml:"transport"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig narrows which wearables the daemon talks to.
type DeviceConfig struct {
	// NamePrefix restricts scans to devices whose advertised name starts
	// with this prefix. Empty matches every device carrying the alarm
	// service.
	NamePrefix string `yaml:"name_prefix"`

	// ScanTimeout bounds one discovery pass, in seconds.
	ScanTimeout int `yaml:"scan_timeout"`

	// MTU is the requested attribute MTU, 0 for the transport default.
	MTU int `yaml:"mtu"`
}

// TransportConfig selects the radio implementation.
type TransportConfig struct {
	// Kind is "ble" for real hardware or "memory" for the in-process
	// simulator used in development.
	Kind string `yaml:"kind"`
}

// ReconnectConfig bounds the automatic reconnect cycle.
type ReconnectConfig struct {
	// InitialDelay is the backoff after the first failed attempt, in
	// seconds. Doubles per failure.
	InitialDelay int `yaml:"initial_delay"`

	// MaxDelay caps the backoff, in seconds.
	MaxDelay int `yaml:"max_delay"`

	// MaxAttempts is the number of attempts before the stored device is
	// forgotten.
	MaxAttempts int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite store settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
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

// InfluxDBConfig contains telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: EVALINK_SECTION_KEY
// For example: EVALINK_DATABASE_PATH, EVALINK_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Device: DeviceConfig{
			NamePrefix:  "EVA",
			ScanTimeout: 10,
		},
		Transport: TransportConfig{
			Kind: "ble",
		},
		Reconnect: ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     30,
			MaxAttempts:  5,
		},
		Database: DatabaseConfig{
			Path:        "./data/evalink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "evalink",
			},
			QoS:         1,
			TopicPrefix: "evalink",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
// Environment variables follow the pattern: EVALINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EVALINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("EVALINK_TRANSPORT"); v != "" {
		cfg.Transport.Kind = v
	}
	if v := os.Getenv("EVALINK_DEVICE_NAME_PREFIX"); v != "" {
		cfg.Device.NamePrefix = v
	}
	if v := os.Getenv("EVALINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("EVALINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("EVALINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("EVALINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Transport.Kind) {
	case "ble", "memory":
	default:
		errs = append(errs, "transport.kind must be \"ble\" or \"memory\"")
	}

	if c.Device.ScanTimeout <= 0 {
		errs = append(errs, "device.scan_timeout must be positive")
	}

	if c.Reconnect.InitialDelay <= 0 {
		errs = append(errs, "reconnect.initial_delay must be positive")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		errs = append(errs, "reconnect.max_delay must be >= reconnect.initial_delay")
	}
	if c.Reconnect.MaxAttempts <= 0 {
		errs = append(errs, "reconnect.max_attempts must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetScanTimeout returns the discovery pass bound as a Duration.
func (c *Config) GetScanTimeout() time.Duration {
	return time.Duration(c.Device.ScanTimeout) * time.Second
}

// GetInitialDelay returns the first reconnect backoff as a Duration.
func (c *Config) GetInitialDelay() time.Duration {
	return time.Duration(c.Reconnect.InitialDelay) * time.Second
}

// GetMaxDelay returns the reconnect backoff cap as a Duration.
func (c *Config) GetMaxDelay() time.Duration {
	return time.Duration(c.Reconnect.MaxDelay) * time.Second
}
