// Private per-key string flags. Spotter uses them for author flags and for the queue of degraded
// verdicts awaiting reconciliation.
package flagstore

import (
	"context"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	// does not error if flags not in set
	Remove(ctx context.Context, key string, flags []string) error
}
