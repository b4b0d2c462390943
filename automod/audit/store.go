package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	// Append fails with ErrDuplicate if the id or claim is taken.
	Append(ctx context.Context, rec *Record) error
	// decision and reconcile records requiring human review which have not been reviewed, reconciled or reversed, highest priority then oldest first
	ReviewQueue(ctx context.Context, limit int) ([]Record, error)
	// all records for an author, newest first
	History(ctx context.Context, authorID string, limit int) ([]Record, error)
	// records referring to the given record, oldest first
	Related(ctx context.Context, refID string) ([]Record, error)
}

type MemStore struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
	claims  map[string]string
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string]int), claims: make(map[string]string)}
}

func (s *MemStore) Append(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrDuplicate, rec.ID)
	}
	rec.denormalize()
	if rec.Claim != nil {
		if holder, ok := s.claims[*rec.Claim]; ok {
			return fmt.Errorf("%w: %s claimed by %s", ErrDuplicate, *rec.Claim, holder)
		}
		s.claims[*rec.Claim] = rec.ID
	}
	s.byID[rec.ID] = len(s.records)
	s.records = append(s.records, *rec)
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec := s.records[idx]
	return &rec, nil
}

func (s *MemStore) ReviewQueue(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	closed := make(map[string]bool)
	for _, r := range s.records {
		if r.RefID != "" && closes(r.Kind) {
			closed[r.RefID] = true
		}
	}
	out := []Record{}
	for _, r := range s.records {
		if r.RequiresHumanReview && !closed[r.ID] {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriorityRank != out[j].PriorityRank {
			return out[i].PriorityRank > out[j].PriorityRank
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return truncate(out, limit), nil
}

func (s *MemStore) History(ctx context.Context, authorID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].AuthorID == authorID {
			out = append(out, s.records[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return truncate(out, limit), nil
}

func (s *MemStore) Related(ctx context.Context, refID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, r := range s.records {
		if r.RefID == refID {
			out = append(out, r)
		}
	}
	return out, nil
}

// kinds which take the record they refer to off the review queue
func closes(k Kind) bool {
	return k == KindReview || k == KindReconcile || k == KindReversal
}

func truncate(l []Record, limit int) []Record {
	if limit > 0 && len(l) > limit {
		return l[:limit]
	}
	return l
}
