// Package logging builds the structured, colorized loggers used by suitable
// and maps the user-facing verbosity labels onto slog levels.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/lmittmann/tint"
)

const (
	// LevelDebug is the most verbose level.
	LevelDebug = slog.LevelDebug
	// LevelInfo is the default level.
	LevelInfo = slog.LevelInfo
	// LevelWarn reports recoverable problems.
	LevelWarn = slog.LevelWarn
	// LevelError reports failed targets and calls.
	LevelError = slog.LevelError
	// LevelCritical has no slog counterpart; it sits one step above error.
	LevelCritical = slog.LevelError + 4
)

var verbosity = map[string]slog.Level{
	"critical": LevelCritical,
	"error":    LevelError,
	"warn":     LevelWarn,
	"info":     LevelInfo,
	"debug":    LevelDebug,
}

// ParseVerbosity maps a verbosity label onto its level. An empty label means
// info; unknown labels are rejected.
func ParseVerbosity(label string) (slog.Level, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return LevelInfo, nil
	}
	level, ok := verbosity[key]
	if !ok {
		return LevelInfo, cerr.WithHint(
			cerr.Newf("unknown verbosity %q", label),
			"use critical, error, warn, info or debug")
	}
	return level, nil
}

// Labels returns the accepted verbosity labels, most severe first.
func Labels() []string {
	return []string{"critical", "error", "warn", "info", "debug"}
}

// NewLogger constructs a slog.Logger writing through a tint handler.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
					return slog.String(a.Key, "CRIT")
				}
			}
			return a
		},
	})

	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
