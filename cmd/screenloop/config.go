package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/logging"
)

// Defaults, overridable by env vars and flags (flags win).
const (
	defaultConfigPath = "screens_config.json"
	defaultLogLevel   = "info"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultConfig() string {
	return envOr("SCREENLOOP_CONFIG", defaultConfigPath)
}

func defaultDB() string {
	return envOr("SCREENLOOP_DB_PATH", "")
}

func defaultLevel() string {
	return envOr("SCREENLOOP_LOG_LEVEL", defaultLogLevel)
}

// ledgerDSN turns a plain path into the file URI the libsql driver
// expects. An empty path derives the ledger location from the config
// path, mirroring where the admin surface keeps history.
func ledgerDSN(dbPath, cfgPath string) string {
	if dbPath == "" {
		dbPath = cfgPath + ".history.db"
	}
	if strings.Contains(dbPath, ":") {
		return dbPath
	}
	return "file:" + dbPath
}

// newLogger builds the process logger: a text handler wrapped with the
// correlation handler so pass/screen/actor fields follow the context.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
