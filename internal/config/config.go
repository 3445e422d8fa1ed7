// Package config loads the endpointd host configuration and the service
// manifest.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	errs "endpointd/internal/errors"
	"endpointd/internal/paths"
)

// EnvPrefix prefixes environment overrides, e.g. ENDPOINTD_SERVER_PORT.
const EnvPrefix = "ENDPOINTD"

// Config is the complete host configuration.
type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server" yaml:"server" toml:"server"`
	Manifest ManifestConfig `json:"manifest" mapstructure:"manifest" yaml:"manifest" toml:"manifest"`
	Console  ConsoleConfig  `json:"console" mapstructure:"console" yaml:"console" toml:"console"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging" yaml:"logging" toml:"logging"`
	PIDFile  string         `json:"pidFile" mapstructure:"pidFile" yaml:"pidFile" toml:"pidFile"`
}

// ServerConfig configures the listener.
type ServerConfig struct {
	Port              int    `json:"port" mapstructure:"port" yaml:"port" toml:"port"`
	Host              string `json:"host" mapstructure:"host" yaml:"host" toml:"host"`
	AutoStart         bool   `json:"autoStart" mapstructure:"autoStart" yaml:"autoStart" toml:"autoStart"`
	ReadHeaderTimeout string `json:"readHeaderTimeout" mapstructure:"readHeaderTimeout" yaml:"readHeaderTimeout" toml:"readHeaderTimeout"`
	IdleTimeout       string `json:"idleTimeout" mapstructure:"idleTimeout" yaml:"idleTimeout" toml:"idleTimeout"`
}

// ManifestConfig points at the service manifest.
type ManifestConfig struct {
	Path string `json:"path" mapstructure:"path" yaml:"path" toml:"path"`
}

// ConsoleConfig configures the interactive command console.
type ConsoleConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled" yaml:"enabled" toml:"enabled"`
	Prompt  string `json:"prompt" mapstructure:"prompt" yaml:"prompt" toml:"prompt"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format" yaml:"format" toml:"format"`
	Level      string `json:"level" mapstructure:"level" yaml:"level" toml:"level"`
	File       string `json:"file" mapstructure:"file" yaml:"file" toml:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize" yaml:"maxSize" toml:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups" yaml:"maxBackups" toml:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			AutoStart:         true,
			ReadHeaderTimeout: "10s",
			IdleTimeout:       "60s",
		},
		Console: ConsoleConfig{
			Enabled: true,
			Prompt:  "endpointd> ",
		},
		Logging: LoggingConfig{
			Format:     "text",
			Level:      "info",
			MaxSize:    "10MiB",
			MaxBackups: 3,
		},
	}
}

// LoadResult is a loaded configuration and where it came from.
type LoadResult struct {
	Config *Config
	// ConfigPath is the file that was read, empty when only defaults and
	// environment were used.
	ConfigPath string
}

// Load reads the configuration. An explicit path must exist; otherwise
// endpointd.{yaml,json,toml} is looked up in the working directory and the
// endpointd home, and defaults are used when none is found. Environment
// variables override file values.
func Load(path string) (*LoadResult, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("endpointd")
		v.AddConfigPath(".")
		if home, err := paths.GetHome(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errs.Wrap(errs.InvalidConfig, "read config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.InvalidConfig, "decode config", err)
	}

	used := v.ConfigFileUsed()
	if used != "" {
		dir := filepath.Dir(used)
		cfg.Manifest.Path = paths.ResolveRelative(dir, cfg.Manifest.Path)
		cfg.Logging.File = paths.ResolveRelative(dir, cfg.Logging.File)
		cfg.PIDFile = paths.ResolveRelative(dir, cfg.PIDFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LoadResult{Config: &cfg, ConfigPath: used}, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.autoStart", d.Server.AutoStart)
	v.SetDefault("server.readHeaderTimeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.idleTimeout", d.Server.IdleTimeout)
	v.SetDefault("manifest.path", d.Manifest.Path)
	v.SetDefault("console.enabled", d.Console.Enabled)
	v.SetDefault("console.prompt", d.Console.Prompt)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("pidFile", d.PIDFile)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port", fmt.Sprintf("%d is not a TCP port", c.Server.Port))
	}
	if _, err := c.Server.ReadHeaderTimeoutDuration(); err != nil {
		return invalid("server.readHeaderTimeout", err.Error())
	}
	if _, err := c.Server.IdleTimeoutDuration(); err != nil {
		return invalid("server.idleTimeout", err.Error())
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return invalid("logging.format", fmt.Sprintf("unknown format %q (want text or json)", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error", "off", "none":
	default:
		return invalid("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	if c.Logging.MaxSize != "" {
		if _, err := humanize.ParseBytes(c.Logging.MaxSize); err != nil {
			return invalid("logging.maxSize", err.Error())
		}
	}
	if c.Logging.MaxBackups < 0 {
		return invalid("logging.maxBackups", "must not be negative")
	}
	return nil
}

func invalid(field, message string) error {
	return errs.New(errs.InvalidConfig, field+": "+message).WithDetails(map[string]string{"field": field})
}

// ReadHeaderTimeoutDuration parses ReadHeaderTimeout; empty means 0.
func (s ServerConfig) ReadHeaderTimeoutDuration() (time.Duration, error) {
	return parseDuration(s.ReadHeaderTimeout)
}

// IdleTimeoutDuration parses IdleTimeout; empty means 0.
func (s ServerConfig) IdleTimeoutDuration() (time.Duration, error) {
	return parseDuration(s.IdleTimeout)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := cast.ToDurationE(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s is negative", s)
	}
	return d, nil
}
