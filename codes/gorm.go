package codes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists codes in the authorization_codes table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db. Call [GormStore.Migrate] once at startup.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the authorization_codes table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&AuthorizationCode{})
}

func (s *GormStore) Save(ctx context.Context, code *AuthorizationCode) error {
	if code == nil || code.CodeHash == "" {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(code)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrBackend, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, codeHash string) (*AuthorizationCode, error) {
	var code AuthorizationCode
	err := s.db.WithContext(ctx).Where("code_hash = ?", codeHash).First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return &code, nil
}

func (s *GormStore) MarkUsed(ctx context.Context, codeHash string, usedAt time.Time) error {
	ts := usedAt.Unix()
	if ts <= 0 {
		ts = 1
	}
	res := s.db.WithContext(ctx).
		Model(&AuthorizationCode{}).
		Where("code_hash = ? AND used_at = 0", codeHash).
		Update("used_at", ts)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrBackend, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&AuthorizationCode{}).Where("code_hash = ?", codeHash).Count(&count).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrAlreadyUsed
}

// DeleteExpired removes codes that expired before now.
func (s *GormStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", now.Unix()).Delete(&AuthorizationCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackend, res.Error)
	}
	return res.RowsAffected, nil
}
