package main

import (
	"log/slog"
	"os"

	errs "endpointd/internal/errors"
	"endpointd/internal/slogutil"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := slogutil.NewLogger(os.Stderr, slog.LevelInfo)
		attrs := []any{"error", err.Error(), "code", errs.CodeOf(err)}
		if hint := errs.HintFor(err); hint != "" {
			attrs = append(attrs, "hint", hint)
		}
		logger.Error("Command execution failed", attrs...)
		os.Exit(1)
	}
}
