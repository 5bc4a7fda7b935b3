// Package config loads service settings from configs/config.yml and
// DEHUM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "DEHUM"

type Config struct {
	Port      string          `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Modbus    ModbusConfig    `mapstructure:"modbus"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// Storage backends for the device snapshot and event log.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

type DBConfig struct {
	Path         string `mapstructure:"path"`
	StateBackend string `mapstructure:"state_backend"`
	BoltPath     string `mapstructure:"bolt_path"`

	// EventRetention bounds the event log; zero keeps everything.
	EventRetention time.Duration `mapstructure:"event_retention"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type SimulatorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Tick    time.Duration `mapstructure:"tick"`
}

// ModbusConfig describes the device register block. An empty Endpoint
// disables the poller.
type ModbusConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	UnitID       uint8         `mapstructure:"unit_id"`
	Address      uint16        `mapstructure:"address"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// MQTTConfig enables the state publisher when Broker is set.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("db.state_backend", BackendSQLite)
	v.SetDefault("db.bolt_path", "state.bolt")
	v.SetDefault("db.event_retention", 30*24*time.Hour)
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.tick", time.Second)
	v.SetDefault("modbus.endpoint", "")
	v.SetDefault("modbus.unit_id", 1)
	v.SetDefault("modbus.address", 0)
	v.SetDefault("modbus.timeout", 3*time.Second)
	v.SetDefault("modbus.poll_interval", 5*time.Second)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.prefix", "home")
	v.SetDefault("mqtt.use_tls", false)
	v.SetDefault("auth.signing_key", "")
}

// Load reads config.yml from dir. A missing file is not an error:
// defaults and environment variables still apply.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return errors.New("config: auth.signing_key is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.token_ttl must be > 0")
	}
	if c.Simulator.Enabled && c.Simulator.Tick <= 0 {
		return errors.New("config: simulator.tick must be > 0")
	}
	if c.Modbus.Endpoint != "" && c.Modbus.PollInterval <= 0 {
		return errors.New("config: modbus.poll_interval must be > 0")
	}
	if c.DB.EventRetention < 0 {
		return errors.New("config: db.event_retention must not be negative")
	}
	switch c.DB.StateBackend {
	case "", BackendSQLite:
	case BackendBolt:
		if strings.TrimSpace(c.DB.BoltPath) == "" {
			return errors.New("config: db.bolt_path is required for the bolt backend")
		}
	default:
		return fmt.Errorf("config: unknown db.state_backend %q", c.DB.StateBackend)
	}
	return nil
}
