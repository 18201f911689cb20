// Package logger provides structured logging setup for Baton.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/relaykit/baton/internal/config"
)

const (
	asyncQueueSize = 4096
	asyncWorkers   = 1 // a single worker keeps records ordered
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record.
// The returned Closer flushes buffered records in async mode and is a
// no-op otherwise.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	// Attach the service attribute below the async boundary so records
	// drained from the queue still carry it.
	handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})

	if !cfg.Async {
		return slog.New(handler), nopCloser{}
	}

	async := NewAsyncHandler(handler, asyncQueueSize, asyncWorkers)
	return slog.New(async), async
}

// parseLevel maps a config level name to a slog.Level, defaulting to info
// for anything unrecognized.
func parseLevel(name string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(name)]; ok {
		return lvl
	}
	return slog.LevelInfo
}
