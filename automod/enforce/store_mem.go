package enforce

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemStore keeps accounts in process memory, with one lock per user.
type MemStore struct {
	accounts *xsync.MapOf[string, Account]
	locks    *xsync.MapOf[string, *sync.Mutex]
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		accounts: xsync.NewMapOf[string, Account](),
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
	}
}

func (s *MemStore) Get(ctx context.Context, userID string) (*Account, error) {
	acct, ok := s.accounts.Load(userID)
	if !ok {
		acct = NewAccount(userID)
	}
	return &acct, nil
}

func (s *MemStore) Update(ctx context.Context, userID string, fn UpdateFunc) (*Account, error) {
	lk, _ := s.locks.LoadOrCompute(userID, func() *sync.Mutex { return &sync.Mutex{} })
	lk.Lock()
	defer lk.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acct, ok := s.accounts.Load(userID)
	if !ok {
		acct = NewAccount(userID)
	}
	changed, err := fn(&acct)
	if err != nil {
		return nil, err
	}
	if changed {
		now := time.Now().UTC()
		if acct.Version == 0 {
			acct.CreatedAt = now
		}
		acct.UpdatedAt = now
		acct.Version++
		s.accounts.Store(userID, acct)
	}
	return &acct, nil
}

func (s *MemStore) ExpiredSuspensions(ctx context.Context, now time.Time) ([]string, error) {
	var out []string
	s.accounts.Range(func(id string, acct Account) bool {
		if acct.Status == StatusSuspended && acct.SuspendedUntil != nil && !acct.SuspendedUntil.After(now) {
			out = append(out, id)
		}
		return true
	})
	sort.Strings(out)
	return out, nil
}

func (s *MemStore) RecoveryCandidates(ctx context.Context, violationBefore, recoveredBefore time.Time) ([]string, error) {
	var out []string
	s.accounts.Range(func(id string, acct Account) bool {
		if acct.Status == StatusBanned {
			return true
		}
		if acct.Reputation >= MaxReputation && acct.WarningCount == 0 {
			return true
		}
		if acct.LastViolationAt != nil && acct.LastViolationAt.After(violationBefore) {
			return true
		}
		if acct.LastRecoveredAt != nil && acct.LastRecoveredAt.After(recoveredBefore) {
			return true
		}
		out = append(out, id)
		return true
	})
	sort.Strings(out)
	return out, nil
}
