package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// L is the process-wide logger. Nil until InitLogger has run; code that may
// execute before startup (or in tests) guards against that.
var L *slog.Logger

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// InitLogger sets up JSON logging on stdout at the given level and installs
// it as the slog default. Call once at startup, after the config is loaded.
func InitLogger(logLevelStr string) {
	level, ok := levels[strings.ToLower(logLevelStr)]
	if !ok {
		level = slog.LevelInfo
		slog.Warn("unknown LOG_LEVEL, using info", "configured", logLevelStr)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// RFC3339 timestamps keep the logs machine-readable.
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	})

	L = slog.New(handler)
	slog.SetDefault(L)
	L.Info("logger initialized", "level", level.String())
}
