package enforce

import (
	"context"
	"time"
)

// UpdateFunc mutates an account in place and reports whether anything changed. Unchanged accounts are not written.
type UpdateFunc func(acct *Account) (bool, error)

// Store persists enforcement records. Update is the only way to modify a record and must be atomic per user: concurrent updates of one user are serialized, or all but one fail with ErrConflict.
type Store interface {
	// returns the defaults from NewAccount for unknown users
	Get(ctx context.Context, userID string) (*Account, error)
	Update(ctx context.Context, userID string, fn UpdateFunc) (*Account, error)
	// ids of suspended accounts whose suspension ended at or before now
	ExpiredSuspensions(ctx context.Context, now time.Time) ([]string, error)
	// ids of non-banned accounts with reputation or warnings to recover, no violation since violationBefore, and no recovery since recoveredBefore
	RecoveryCandidates(ctx context.Context, violationBefore, recoveredBefore time.Time) ([]string, error)
}
