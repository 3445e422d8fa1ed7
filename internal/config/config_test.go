package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	errs "endpointd/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.Server.AutoStart {
		t.Error("Server.AutoStart should be true by default")
	}
	if !cfg.Console.Enabled {
		t.Error("Console.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"ephemeral port", func(c *Config) { c.Server.Port = 0 }, false},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad timeout", func(c *Config) { c.Server.IdleTimeout = "soon" }, true},
		{"negative timeout", func(c *Config) { c.Server.ReadHeaderTimeout = "-1s" }, true},
		{"json format", func(c *Config) { c.Logging.Format = "JSON" }, false},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad max size", func(c *Config) { c.Logging.MaxSize = "huge" }, true},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errs.CodeOf(err) != errs.InvalidConfig {
				t.Errorf("CodeOf(err) = %s, want %s", errs.CodeOf(err), errs.InvalidConfig)
			}
		})
	}
}

func TestServerConfig_Durations(t *testing.T) {
	s := ServerConfig{ReadHeaderTimeout: "5s", IdleTimeout: ""}

	rh, err := s.ReadHeaderTimeoutDuration()
	if err != nil || rh != 5*time.Second {
		t.Errorf("ReadHeaderTimeoutDuration() = %v, %v", rh, err)
	}
	idle, err := s.IdleTimeoutDuration()
	if err != nil || idle != 0 {
		t.Errorf("IdleTimeoutDuration() = %v, %v", idle, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENDPOINTD_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	res, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want empty", res.ConfigPath)
	}
	if res.Config.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", res.Config.Server.Port)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "endpointd.yaml",
			content: `server:
  port: 9090
  autoStart: false
manifest:
  path: services.toml
logging:
  level: debug
`,
		},
		{
			name: "toml",
			file: "endpointd.toml",
			content: `[server]
port = 9090
autoStart = false

[manifest]
path = "services.toml"

[logging]
level = "debug"
`,
		},
		{
			name:    "json",
			file:    "endpointd.json",
			content: `{"server": {"port": 9090, "autoStart": false}, "manifest": {"path": "services.toml"}, "logging": {"level": "debug"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			res, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			cfg := res.Config
			if cfg.Server.Port != 9090 {
				t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
			}
			if cfg.Server.AutoStart {
				t.Error("Server.AutoStart should be false per config")
			}
			if cfg.Logging.Level != "debug" {
				t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
			}
			if cfg.Logging.MaxBackups != 3 {
				t.Errorf("Logging.MaxBackups = %d, want default 3", cfg.Logging.MaxBackups)
			}
			if want := filepath.Join(dir, "services.toml"); cfg.Manifest.Path != want {
				t.Errorf("Manifest.Path = %q, want %q", cfg.Manifest.Path, want)
			}
		})
	}
}

func TestLoad_DiscoversWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENDPOINTD_HOME", t.TempDir())
	if err := os.WriteFile(filepath.Join(dir, "endpointd.yaml"), []byte("server:\n  port: 7000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	res, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.Config.Server.Port != 7000 || !strings.HasSuffix(res.ConfigPath, "endpointd.yaml") {
		t.Errorf("port = %d, ConfigPath = %q", res.Config.Server.Port, res.ConfigPath)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpointd.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ENDPOINTD_SERVER_PORT", "9191")
	t.Setenv("ENDPOINTD_LOGGING_LEVEL", "warn")
	t.Setenv("ENDPOINTD_CONSOLE_ENABLED", "false")

	res, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg := res.Config
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191 from env", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn from env", cfg.Logging.Level)
	}
	if cfg.Console.Enabled {
		t.Error("Console.Enabled should be false from env")
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("explicit path missing", func(t *testing.T) {
		if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
			t.Error("expected error for missing explicit config")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if errs.CodeOf(err) != errs.InvalidConfig {
			t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 123456\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); errs.CodeOf(err) != errs.InvalidConfig {
			t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
		}
	})
}

func TestMarshal(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		format string
		want   string
	}{
		{"yaml", "autoStart: true"},
		{"toml", "autoStart = true"},
		{"json", `"autoStart": true`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			data, err := Marshal(cfg, tt.format)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("Marshal(%s) missing %q:\n%s", tt.format, tt.want, data)
			}
		})
	}

	if _, err := Marshal(cfg, "ini"); err == nil {
		t.Error("Marshal(ini) should fail")
	}
}
