package slogutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"endpointd/internal/config"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"", 0},
		{"invalid", 0},
		{"100", 100},
		{"100B", 100},
		{"1KB", 1000},
		{"1KiB", 1024},
		{"10MB", 10 * 1000 * 1000},
		{"10MiB", 10 * 1024 * 1024},
		{"1 GB", 1000 * 1000 * 1000},
		{"1.5MiB", int64(1.5 * 1024 * 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseSize(tt.input); got != tt.expected {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRotatingFile_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "endpointd.log")

	rf, err := OpenRotatingFile(path, 50, 2)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}

	line := []byte(strings.Repeat("a", 29) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := rf.Write(line); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := rf.Close(); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should exist: %v", filepath.Base(p), err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("only maxBackups generations should be kept")
	}
}

func TestRotatingFile_NoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	rf, err := OpenRotatingFile(path, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()

	_, _ = rf.Write([]byte("0123456789"))
	_, _ = rf.Write([]byte("abc"))

	if rf.Size() != 3 {
		t.Errorf("Size() = %d, want 3 after truncating rotation", rf.Size())
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("no backup should be kept with maxBackups=0")
	}
}

func TestRotatingFile_WriteAfterClose(t *testing.T) {
	rf, err := OpenRotatingFile(filepath.Join(t.TempDir(), "c.log"), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = rf.Close()
	if _, err := rf.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestFromConfig(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		var console bytes.Buffer
		logger, closer, err := FromConfig(config.LoggingConfig{Level: "debug"}, &console)
		if err != nil {
			t.Fatal(err)
		}
		defer closer.Close()

		logger.Debug("hello", "k", 1)
		if !strings.Contains(console.String(), "[debug] [endpointd] hello | k=1") {
			t.Errorf("console output = %q", console.String())
		}
	})

	t.Run("json console with file", func(t *testing.T) {
		var console bytes.Buffer
		path := filepath.Join(t.TempDir(), "endpointd.log")
		logger, closer, err := FromConfig(config.LoggingConfig{
			Format:     "json",
			Level:      "info",
			File:       path,
			MaxSize:    "1MiB",
			MaxBackups: 1,
		}, &console)
		if err != nil {
			t.Fatal(err)
		}

		logger.Info("started", "port", 8080)
		_ = closer.Close()

		if !strings.Contains(console.String(), `"msg":"started"`) {
			t.Errorf("console should be JSON, got %q", console.String())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "[info] [endpointd] started | port=8080") {
			t.Errorf("file output = %q", data)
		}
	})
}
