package observability

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry exports pending spans and flushes logs before process exit.
// Prometheus is pull-based and needs no flush. shutdownTracing may be nil.
// Call during graceful shutdown after in-flight requests have drained.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, shutdownTracing func(context.Context) error) error {
	var errs []error
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush traces: %w", err))
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("flush logs: %w", err))
		}
	}
	return errors.Join(errs...)
}
