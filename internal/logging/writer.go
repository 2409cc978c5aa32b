package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Writer is an io.Writer that forwards engine output to slog, one record per
// line.
type Writer struct {
	logger *slog.Logger
	level  slog.Level
	msg    string
}

// NewWriter constructs a Writer that logs each line at level under msg.
func NewWriter(logger *slog.Logger, level slog.Level, msg string) *Writer {
	return &Writer{logger: logger, level: level, msg: msg}
}

// Write logs every non-empty line of p.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger == nil {
		return len(p), nil
	}
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			w.logger.Log(context.Background(), w.level, w.msg, "line", line)
		}
	}
	return len(p), nil
}
