package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// redactedKeys are attribute names whose values never reach the output
var redactedKeys = map[string]bool{
	"secret":   true,
	"password": true,
}

// New returns a text logger writing to w. Logs go to stderr; stdout is
// reserved for command output.
func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: redact,
	})
	return slog.New(h), nil
}

// ParseLevel accepts debug, info, warn (or warning) and error
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
