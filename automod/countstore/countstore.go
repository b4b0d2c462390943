package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

// All periods every increment is applied to, in the order reported by the admin API.
var Periods = []string{PeriodTotal, PeriodDay, PeriodHour}

// CountStore keeps moderation counters (rule hits, author violations, verdicts) bucketed by period.
type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	Increment(ctx context.Context, name, val string) error
	GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error)
	IncrementDistinct(ctx context.Context, name, bucket, val string) error
}

// Reads every period for a single counter.
func GetCounts(ctx context.Context, cs CountStore, name, val string) (map[string]int, error) {
	out := make(map[string]int, len(Periods))
	for _, p := range Periods {
		c, err := cs.GetCount(ctx, name, val, p)
		if err != nil {
			return nil, fmt.Errorf("reading %s count %s/%s: %w", p, name, val, err)
		}
		out[p] = c
	}
	return out, nil
}

func periodBucket(name, val, period string) string {
	return periodBucketAt(name, val, period, time.Now())
}

func periodBucketAt(name, val, period string, now time.Time) string {
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		t := now.UTC().Format(time.DateOnly)
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	case PeriodHour:
		t := now.UTC().Format(time.RFC3339)[0:13]
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}
