package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init builds the process logger, installs it as the slog default and returns it.
// Records always go to stdout; with enableOTel they are also exported through
// the global OTel logger provider.
func Init(level string, enableOTel bool) *slog.Logger {
	lvl := ParseLevel(level)

	stdout := NewTraceContextHandler(newStdoutHandler(os.Stdout, lvl))

	var handler slog.Handler = stdout
	if enableOTel {
		handler = NewMultiHandler(stdout, NewOTelHandler(lvl))
	}

	logger := slog.New(handler).With("service", "user-admin")
	slog.SetDefault(logger)
	return logger
}

// NewWithWriter returns a JSON logger writing to w, for tests and one-shot tools.
func NewWithWriter(level string, w io.Writer) *slog.Logger {
	return slog.New(NewTraceContextHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// WithComponent returns a child logger tagged with component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// ParseLevel maps LOG_LEVEL values onto slog levels. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newStdoutHandler uses JSON in production and text elsewhere (GO_ENV).
func newStdoutHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch os.Getenv("GO_ENV") {
	case "development", "dev", "local":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}
