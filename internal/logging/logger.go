package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/i474232898/openweathermap-exporter/internal/config"
)

// New returns the process logger. APP_ENV=dev gets coloured tint output with
// source locations; everything else logs JSON.
func New(w io.Writer, s config.Settings, version, appName string) *slog.Logger {
	if s.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      s.Level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: s.Level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", s.AppEnv,
	)
}
