package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger. Request lines and
// error-pipeline records alike go through it as JSON on stdout, tagged with
// the service name so aggregated streams stay filterable.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" || env == "test" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With("service", "geogate", "env", env)
}
