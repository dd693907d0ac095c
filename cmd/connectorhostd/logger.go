package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var logFormats = []string{"json", "text"}

// newLogger builds the process-wide slog.Logger, following dexidp-dex's
// cmd/dex/logger.go: a plain text/json handler selected by config, no
// request-context wrapper since this process has no per-request HTTP
// handler chain to enrich (only a health/metrics listener and the
// WebSocket session loop).
func newLogger(level slog.Level, format string) (*slog.Logger, error) {
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("log format is not one of the supported values (%s): %s", strings.Join(logFormats, ", "), format)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log level is not one of the supported values (debug, info, warn, error): %s", s)
	}
}
