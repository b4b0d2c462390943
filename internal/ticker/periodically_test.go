package ticker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodicallyStopsOnError(t *testing.T) {
	assert := assert.New(t)

	var runs atomic.Int32
	err := Periodically(context.Background(), time.Millisecond, func(ctx context.Context) error {
		if runs.Add(1) == 3 {
			return errors.New("boom")
		}
		return nil
	})
	assert.ErrorContains(err, "boom")
	assert.Equal(int32(3), runs.Load())
}

func TestTolerantKeepsGoing(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	task := Tolerant(slog.Default(), "sweep", func(ctx context.Context) error {
		if runs.Add(1) >= 3 {
			cancel()
		}
		return errors.New("store unavailable")
	})
	err := Periodically(ctx, time.Millisecond, task)
	assert.ErrorIs(err, context.Canceled)
	assert.GreaterOrEqual(runs.Load(), int32(3))
}
