package commands

import (
	"context"

	"github.com/goliatone/go-insights/internal/logger"
)

// Telemetry allows commands to emit structured events.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

// LogTelemetry records events as info log lines.
type LogTelemetry struct {
	log *logger.Logger
}

// NewLogTelemetry builds a Telemetry backed by l.
func NewLogTelemetry(l *logger.Logger) LogTelemetry {
	return LogTelemetry{log: logger.OrNop(l)}
}

// Record implements Telemetry.
func (t LogTelemetry) Record(_ context.Context, event string, payload map[string]any) {
	kv := make([]any, 0, len(payload)*2+2)
	kv = append(kv, "event", event)
	for key, value := range payload {
		kv = append(kv, key, value)
	}
	t.log.Info("command event", kv...)
}
