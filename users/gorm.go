package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	Name         string `gorm:"size:200"`
	PasswordHash string `gorm:"size:255;not null"`
	Roles        string `gorm:"size:512"`
	Active       bool   `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

func (r *userRecord) toUser() *User {
	return &User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Roles:        strings.Fields(r.Roles),
		Active:       r.Active,
	}
}

// GormStore reads and writes the users table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the users table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&userRecord{})
}

// Create inserts a new user and returns it with its generated id.
func (s *GormStore) Create(ctx context.Context, u User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	rec := userRecord{
		ID:           u.ID,
		Email:        NormalizeEmail(u.Email),
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Roles:        strings.Join(u.Roles, " "),
		Active:       u.Active,
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&userRecord{}).Where("email = ?", rec.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if count > 0 {
		return nil, ErrDuplicateEmail
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return rec.toUser(), nil
}

func (s *GormStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.first(ctx, "email = ?", NormalizeEmail(email))
}

func (s *GormStore) first(ctx context.Context, query string, arg string) (*User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where(query, arg).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return rec.toUser(), nil
}
