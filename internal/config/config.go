// Package config loads ulogd's configuration the way the teacher's
// pkg/config does: spf13/viper for layered sources, mitchellh/mapstructure
// decode hooks for human-friendly durations, and go-playground/validator
// struct-tag validation once defaults have been applied.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is ulogd's full configuration. Precedence, highest to lowest: CLI
// flags (applied by the caller after Load), environment variables
// (ULOG_-prefixed), configuration file, defaults.
type Config struct {
	// SocketPath is the UNIX socket the daemon binds and clients dial.
	SocketPath string `mapstructure:"socket_path" validate:"required" yaml:"socket_path"`

	// ServerLogPath is an optional destination for the daemon's own
	// operational log. Empty means stdout.
	ServerLogPath string `mapstructure:"server_log_path" yaml:"server_log_path"`

	// Logging controls the daemon's own structured log output.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// sessions to drain before forcing closure.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// HandshakeBufferSize is the per-read buffer size used while
	// accumulating a pending filepath. It is not a protocol limit —
	// PATH_MAX is the hard cap regardless of this setting.
	HandshakeBufferSize int `mapstructure:"handshake_buffer_size" validate:"required,gt=0" yaml:"handshake_buffer_size"`

	// Metrics configures the optional Prometheus exporter.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls the daemon's own logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load reads configuration from configPath (or the default search path if
// empty), layered over environment variables and defaults, then validates
// the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	applyEnvOverrides(v, cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("ULOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// applyEnvOverrides re-applies viper's bound keys after Unmarshal so that
// ULOG_ environment variables win even when a config file was present.
// AutomaticEnv only affects keys viper already knows about, so we touch
// every field explicitly.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if s := v.GetString("socket_path"); s != "" {
		cfg.SocketPath = s
	}
	if s := v.GetString("server_log_path"); s != "" {
		cfg.ServerLogPath = s
	}
	if s := v.GetString("logging.level"); s != "" {
		cfg.Logging.Level = s
	}
	if s := v.GetString("logging.format"); s != "" {
		cfg.Logging.Format = s
	}
	if d := v.GetDuration("shutdown_timeout"); d != 0 {
		cfg.ShutdownTimeout = d
	}
	if n := v.GetInt("handshake_buffer_size"); n != 0 {
		cfg.HandshakeBufferSize = n
	}
	if v.IsSet("metrics.enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	}
	if n := v.GetInt("metrics.port"); n != 0 {
		cfg.Metrics.Port = n
	}
}

// durationDecodeHook converts config-file strings like "30s" into
// time.Duration, mirroring the teacher's own duration decode hook.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		SocketPath:          "/tmp/ulog.sock",
		ShutdownTimeout:     30 * time.Second,
		HandshakeBufferSize: 4096,
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// ApplyDefaults fills in zero-valued fields after a partial Unmarshal.
func ApplyDefaults(cfg *Config) {
	if cfg.SocketPath == "" {
		cfg.SocketPath = "/tmp/ulog.sock"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HandshakeBufferSize == 0 {
		cfg.HandshakeBufferSize = 4096
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

var validate = validator.New()

// Validate checks struct tags via go-playground/validator. Called after
// ApplyDefaults so required fields that came from defaults still pass.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ulog")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ulog")
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
