package ticker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Periodically runs the provided task function at the specified interval until the context is done or an error occurs.
func Periodically(ctx context.Context, interval time.Duration, task func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := task(ctx); err != nil {
				return fmt.Errorf("periodic task failed: %w", err)
			}
		}
	}
}

// Tolerant wraps a maintenance task so that failures are logged and retried on the next tick, instead of stopping the loop.
func Tolerant(logger *slog.Logger, name string, task func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := task(ctx); err != nil && ctx.Err() == nil {
			logger.Error("periodic task failed, will retry", "task", name, "err", err)
		}
		return nil
	}
}
