package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGetHome(t *testing.T) {
	t.Setenv(HomeEnvVar, "/custom/endpointd")

	home, err := GetHome()
	if err != nil {
		t.Fatalf("GetHome failed: %v", err)
	}
	if home != "/custom/endpointd" {
		t.Errorf("GetHome() = %s, want /custom/endpointd", home)
	}

	t.Setenv(HomeEnvVar, "")
	home, err = GetHome()
	if err != nil {
		t.Fatalf("GetHome failed: %v", err)
	}
	if !strings.HasSuffix(home, ".endpointd") {
		t.Errorf("GetHome() = %s, want suffix .endpointd", home)
	}
}

func TestEnsureHome(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "home")
	t.Setenv(HomeEnvVar, dir)

	got, err := EnsureHome()
	if err != nil {
		t.Fatalf("EnsureHome failed: %v", err)
	}
	if got != dir {
		t.Errorf("EnsureHome() = %s, want %s", got, dir)
	}
}

func TestDefaultFilePaths(t *testing.T) {
	t.Setenv(HomeEnvVar, "/h")

	logPath, err := GetLogPath()
	if err != nil || logPath != filepath.Join("/h", "logs", "endpointd.log") {
		t.Errorf("GetLogPath() = %s, %v", logPath, err)
	}
	pidPath, err := GetPIDPath()
	if err != nil || pidPath != filepath.Join("/h", "endpointd.pid") {
		t.Errorf("GetPIDPath() = %s, %v", pidPath, err)
	}
}

func TestResolveRelative(t *testing.T) {
	tests := []struct {
		base, p, want string
	}{
		{"/etc/endpointd", "services.toml", "/etc/endpointd/services.toml"},
		{"/etc/endpointd", "/abs/services.yaml", "/abs/services.yaml"},
		{"/etc/endpointd", "", ""},
	}
	for _, tt := range tests {
		if got := ResolveRelative(tt.base, tt.p); got != tt.want {
			t.Errorf("ResolveRelative(%q, %q) = %q, want %q", tt.base, tt.p, got, tt.want)
		}
	}
}
