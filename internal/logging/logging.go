package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the application logger. JSON on stderr so stdout stays free
// for CLI output, with the common "error" key standardized to "err".
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a logger that discards everything. Used as the default in
// components that accept an optional logger, and in tests.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
