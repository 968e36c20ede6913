// Package applog configures structured JSONL logging for the engine,
// matching the per-job log line schema of SPEC_FULL.md §4.2:
// {ts_ms, severity, event, job_id, item_id?, step?, fields...}.
package applog

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

// tsHook stamps every event with an integer ts_ms field instead of
// zerolog's default RFC3339 timestamp, so log lines match the on-disk
// contract byte for byte.
type tsHook struct{}

func (tsHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Int64("ts_ms", time.Now().UnixMilli())
}

func init() {
	zerolog.LevelFieldName = "severity"
	zerolog.MessageFieldName = "message"
	Configure(os.Stderr)
}

// Configure rebuilds the process-wide base logger writing to w.
func Configure(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = zerolog.New(w).Hook(tsHook{}).With().Logger()
}

// Base returns the process-wide engine logger (startup, recovery, admission
// events — not bound to a particular job).
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// ForJob returns a logger with job_id (and item_id, if non-empty) bound as
// persistent fields, suitable for writing to derived/jobs/<job_id>/run.jsonl.
func ForJob(w io.Writer, jobID, itemID string) zerolog.Logger {
	ctx := zerolog.New(w).Hook(tsHook{}).With().Str("job_id", jobID)
	if itemID != "" {
		ctx = ctx.Str("item_id", itemID)
	}
	return ctx.Logger()
}

type ctxKey int

const loggerKey ctxKey = 0

// WithContext returns a new context carrying logger, retrievable by FromContext.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger bound to ctx, or the process-wide base
// logger if none was bound.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return l
	}
	return Base()
}

// Step returns a child logger annotated with the current step name — pass
// to step Run functions so every line they emit carries event/step context
// without threading extra parameters.
func Step(logger zerolog.Logger, step string) zerolog.Logger {
	return logger.With().Str("step", step).Logger()
}
