package config

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the backend's logger: text on stderr for operators
// tailing the process, JSON appended to logFile for log shippers. With no
// file configured only the stderr handler is used. The returned func closes
// the log file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: level}
	stderr := slog.NewTextHandler(os.Stderr, opts)

	if logFile == "" {
		return slog.New(stderr), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(stderr)
		logger.Warn("log file unavailable, stderr only", "file", logFile, "error", err)
		return logger, func() error { return nil }
	}

	fanout := slogmulti.Fanout(stderr, slog.NewJSONHandler(file, opts))
	return slog.New(fanout), file.Close
}
