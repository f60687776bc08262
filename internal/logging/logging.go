package logging

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

func Setup(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	slog.SetDefault(slog.New(handler))
}

func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Stage logs the start of a pipeline stage and returns a function that logs
// its completion with the elapsed time and a row count.
func Stage(name string) func(rows int) {
	start := time.Now()
	slog.Info("stage starting", "stage", name)
	return func(rows int) {
		slog.Info("stage complete", "stage", name, "rows", rows, "elapsed", time.Since(start).String())
	}
}
