package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup installs the process-wide slog default: JSON for deployments, tint
// for readable local runs, optionally rotated to a file.
func Setup(level, format, file string) *slog.Logger {
	var w io.Writer = os.Stdout
	if file != "" {
		w = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = tint.NewHandler(w, &tint.Options{Level: parseLevel(level)})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
