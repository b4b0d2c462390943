package classifier

import (
	"context"
	"sync/atomic"
	"time"
)

// Static returns a fixed response (or error), optionally after a delay. Used in tests and for running with no classifier configured.
type Static struct {
	Scores *Scores
	Err    error
	Delay  time.Duration

	calls atomic.Int64
}

var _ Classifier = (*Static)(nil)

// Never flags anything.
func NewNoop() *Static {
	return &Static{Scores: &Scores{}}
}

func (s *Static) Classify(ctx context.Context, text string) (*Scores, error) {
	s.calls.Add(1)
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Scores, nil
}

func (s *Static) Calls() int64 {
	return s.calls.Load()
}
