package enforce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormStore keeps accounts in a SQL database. Updates run in a transaction guarded by an optimistic version check; a lost race returns ErrConflict.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&Account{})
}

func (s *GormStore) Get(ctx context.Context, userID string) (*Account, error) {
	var acct Account
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = NewAccount(userID)
		return &acct, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading enforcement record: %w", err)
	}
	return &acct, nil
}

func (s *GormStore) Update(ctx context.Context, userID string, fn UpdateFunc) (*Account, error) {
	var out Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct Account
		err := tx.Where("user_id = ?", userID).Take(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			acct = NewAccount(userID)
		} else if err != nil {
			return fmt.Errorf("loading enforcement record: %w", err)
		}

		changed, err := fn(&acct)
		if err != nil {
			return err
		}
		if !changed {
			out = acct
			return nil
		}

		prevVersion := acct.Version
		acct.Version++
		if prevVersion == 0 {
			if err := tx.Create(&acct).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrConflict
				}
				return fmt.Errorf("creating enforcement record: %w", err)
			}
			out = acct
			return nil
		}

		res := tx.Model(&Account{}).
			Where("user_id = ? AND version = ?", userID, prevVersion).
			Select("*").Omit("user_id", "created_at").
			Updates(&acct)
		if res.Error != nil {
			return fmt.Errorf("updating enforcement record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		out = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) ExpiredSuspensions(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Account{}).
		Where("status = ? AND suspended_until <= ?", StatusSuspended, now).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing expired suspensions: %w", err)
	}
	return ids, nil
}

func (s *GormStore) RecoveryCandidates(ctx context.Context, violationBefore, recoveredBefore time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Account{}).
		Where("status <> ?", StatusBanned).
		Where("reputation < ? OR warning_count > 0", MaxReputation).
		Where("last_violation_at IS NULL OR last_violation_at <= ?", violationBefore).
		Where("last_recovered_at IS NULL OR last_recovered_at <= ?", recoveredBefore).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing recovery candidates: %w", err)
	}
	return ids, nil
}
