// Package otel provides metric instruments and span helpers. Exporter and
// provider wiring is left to the deployment; the no-op globals keep the
// instrumentation free when none is installed.
package otel

import (
	"context"
	"log/slog"
)

// ShutdownFunc flushes and shuts down the installed providers.
type ShutdownFunc func(ctx context.Context) error

// InitTracer returns a no-op shutdown function until an exporter is wired.
func InitTracer(serviceName string) ShutdownFunc {
	slog.Info("otel: no exporter configured, instruments are no-op", "service", serviceName)
	return func(_ context.Context) error {
		return nil
	}
}
