package cli

import (
	"log/slog"
	"os"

	"quizzer/internal/config"
	"quizzer/internal/lib/slogcustom"
)

// newLogger picks the colored handler for local runs and JSON otherwise.
func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	format := cfg.Log.Format
	if format == "" {
		format = "text"
		if cfg.IsProduction() {
			format = "json"
		}
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = slogcustom.NewCustomHandler(os.Stdout, level)
	}
	return slog.New(handler).With("env", cfg.Env)
}
