// Package logger installs the process-wide slog handler.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a colored text logger in development and a JSON logger everywhere else.
func New(environment string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	if environment == "development" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Setup builds the logger for environment and makes it the default.
func Setup(environment string, w io.Writer) *slog.Logger {
	l := New(environment, w)
	slog.SetDefault(l)
	return l
}
