package audit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{})
}

func (s *GormStore) Append(ctx context.Context, rec *Record) error {
	rec.denormalize()
	err := s.db.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s: %w", ErrDuplicate, rec.ID, err)
	}
	if err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) ReviewQueue(ctx context.Context, limit int) ([]Record, error) {
	var recs []Record
	q := s.db.WithContext(ctx).Table("audit_records AS r").Select("r.*").
		Where("r.requires_human_review = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM audit_records x WHERE x.ref_id = r.id AND x.kind IN ?)", []Kind{KindReview, KindReconcile, KindReversal}).
		Order("r.priority_rank DESC, r.created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying review queue: %w", err)
	}
	return recs, nil
}

func (s *GormStore) History(ctx context.Context, authorID string, limit int) ([]Record, error) {
	var recs []Record
	q := s.db.WithContext(ctx).Where("author_id = ?", authorID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying author history: %w", err)
	}
	return recs, nil
}

func (s *GormStore) Related(ctx context.Context, refID string) ([]Record, error) {
	var recs []Record
	if err := s.db.WithContext(ctx).Where("ref_id = ?", refID).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying related records: %w", err)
	}
	return recs, nil
}
