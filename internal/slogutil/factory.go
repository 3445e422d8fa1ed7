package slogutil

import (
	"io"
	"log/slog"
	"strings"

	"endpointd/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// FromConfig builds the host logger: console output in the configured
// format, teed to a rotating log file when cfg.File is set. The returned
// closer releases the file.
func FromConfig(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, io.Closer, error) {
	level := LevelFromString(cfg.Level)

	var consoleHandler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		consoleHandler = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: level})
	} else {
		consoleHandler = NewHandler(console, Tag, &slog.HandlerOptions{Level: level})
	}

	if cfg.File == "" {
		return slog.New(consoleHandler), nopCloser{}, nil
	}

	rf, err := OpenRotatingFile(cfg.File, ParseSize(cfg.MaxSize), cfg.MaxBackups)
	if err != nil {
		return nil, nil, err
	}
	fileHandler := NewHandler(rf, Tag, &slog.HandlerOptions{Level: level})
	return slog.New(NewTeeHandler(consoleHandler, fileHandler)), rf, nil
}
