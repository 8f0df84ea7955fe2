// Package config loads dashboard configuration from an optional .env (or explicit) file and the
// environment using Viper, then validates it.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// ControlModeCredentials asks the operator for a credential before a reset.
	ControlModeCredentials = "credentials"
	// ControlModeOpen sends the reset without any credential or body.
	ControlModeOpen = "open"
)

type Config struct {
	AppEnv      string     `mapstructure:"APP_ENV"`
	LogLevelRaw string     `mapstructure:"LOG_LEVEL"`
	LogLevel    slog.Level `mapstructure:"-"`
	HTTPAddr    string     `mapstructure:"HTTP_ADDR"`

	// BackendURL is the base URL of the telemetry backend serving /api/get_data and /api/put_reset.
	BackendURL     string        `mapstructure:"BACKEND_URL"`
	PollInterval   time.Duration `mapstructure:"POLL_INTERVAL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ControlMode    string        `mapstructure:"CONTROL_MODE"`

	SQLitePath       string `mapstructure:"SQLITE_PATH"`
	SQLiteDSN        string `mapstructure:"SQLITE_DSN"`
	SQLiteLogQueries bool   `mapstructure:"SQLITE_LOG_QUERIES"`

	// MQTTBroker empty disables the snapshot relay.
	MQTTBroker      string `mapstructure:"MQTT_BROKER"`
	MQTTPort        int    `mapstructure:"MQTT_PORT"`
	MQTTClientID    string `mapstructure:"MQTT_CLIENT_ID"`
	MQTTTopicPrefix string `mapstructure:"MQTT_TOPIC_PREFIX"`

	// ProbeHost empty disables the ICMP reachability probe.
	ProbeHost       string        `mapstructure:"PROBE_HOST"`
	ProbeInterval   time.Duration `mapstructure:"PROBE_INTERVAL"`
	ProbePrivileged bool          `mapstructure:"PROBE_PRIVILEGED"`
}

// Load reads cfgFile when given, otherwise .env in the working directory if present. Environment
// variables override file values. A missing .env is not an error; a missing explicit file is.
func Load(cfgFile string) (Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if filepath.Ext(cfgFile) == "" {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", cfgFile, err)
		}
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("BACKEND_URL", "http://localhost:5000")
	v.SetDefault("POLL_INTERVAL", "5s")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("CONTROL_MODE", ControlModeCredentials)
	v.SetDefault("SQLITE_PATH", "data/tempmon.db")
	v.SetDefault("SQLITE_DSN", "")
	v.SetDefault("SQLITE_LOG_QUERIES", false)
	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_PORT", 1883)
	v.SetDefault("MQTT_CLIENT_ID", "tempmon")
	v.SetDefault("MQTT_TOPIC_PREFIX", "tempmon")
	v.SetDefault("PROBE_HOST", "")
	v.SetDefault("PROBE_INTERVAL", "30s")
	v.SetDefault("PROBE_PRIVILEGED", false)
}

func (c *Config) normalize() error {
	c.AppEnv = strings.TrimSpace(c.AppEnv)
	if c.AppEnv == "" {
		c.AppEnv = "dev"
	}
	switch c.AppEnv {
	case "dev", "prod":
	default:
		return fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", c.AppEnv)
	}

	if strings.TrimSpace(c.LogLevelRaw) == "" {
		c.LogLevelRaw = "info"
	}
	level, err := parseLogLevel(c.LogLevelRaw)
	if err != nil {
		return err
	}
	c.LogLevel = level

	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}

	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid BACKEND_URL %q: %w", c.BackendURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid BACKEND_URL %q (expected http(s)://host[:port])", c.BackendURL)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout)
	}

	c.ControlMode = strings.ToLower(strings.TrimSpace(c.ControlMode))
	switch c.ControlMode {
	case ControlModeCredentials, ControlModeOpen:
	default:
		return fmt.Errorf("invalid CONTROL_MODE %q (allowed: %s, %s)", c.ControlMode, ControlModeCredentials, ControlModeOpen)
	}

	c.SQLitePath = strings.TrimSpace(c.SQLitePath)
	c.SQLiteDSN = strings.TrimSpace(c.SQLiteDSN)
	if c.SQLitePath == "" && c.SQLiteDSN == "" {
		return fmt.Errorf("one of SQLITE_PATH or SQLITE_DSN must be set")
	}

	c.MQTTBroker = strings.TrimSpace(c.MQTTBroker)
	if c.MQTTBroker != "" && (c.MQTTPort <= 0 || c.MQTTPort > 65535) {
		return fmt.Errorf("invalid MQTT_PORT %d", c.MQTTPort)
	}
	c.MQTTTopicPrefix = strings.Trim(strings.TrimSpace(c.MQTTTopicPrefix), "/")
	if c.MQTTTopicPrefix == "" {
		c.MQTTTopicPrefix = "tempmon"
	}

	c.ProbeHost = strings.TrimSpace(c.ProbeHost)
	if c.ProbeHost != "" && c.ProbeInterval <= 0 {
		return fmt.Errorf("PROBE_INTERVAL must be positive, got %v", c.ProbeInterval)
	}

	return nil
}

// MQTTEnabled reports whether a broker is configured.
func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

// ProbeEnabled reports whether a probe target is configured.
func (c Config) ProbeEnabled() bool { return c.ProbeHost != "" }

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
