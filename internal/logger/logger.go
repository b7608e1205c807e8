package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/scam-sim/internal/config"
)

// Setup installs the process-wide slog logger: JSON lines in production so
// log shippers can parse them, plain text otherwise.
func Setup(cfg *config.Config) *slog.Logger {
	logger := New(os.Stdout, cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w. Debug level also records the call site.
func New(w io.Writer, environment string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithRequestID tags every line with the HTTP request id.
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithSession tags every line with the session id.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}

// WithError attaches err. A nil error leaves the logger unchanged.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}
