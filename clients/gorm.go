package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// clientRecord is the SQL row. Multi-valued columns are stored
// space-separated because neither redirect URIs nor scope tokens may
// contain spaces.
type clientRecord struct {
	ID            string `gorm:"primaryKey;size:36"`
	ClientID      string `gorm:"uniqueIndex;size:128;not null"`
	RedirectURIs  string `gorm:"type:text;not null"`
	IsPublic      bool   `gorm:"not null"`
	AllowedScopes string `gorm:"size:1024"`
}

func (clientRecord) TableName() string { return "oauth_clients" }

// GormRegistry reads clients from the oauth_clients table.
type GormRegistry struct {
	db *gorm.DB
}

func NewGormRegistry(db *gorm.DB) *GormRegistry {
	return &GormRegistry{db: db}
}

// Migrate creates or updates the oauth_clients table.
func (r *GormRegistry) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&clientRecord{})
}

// Register inserts a client, or updates the row with the same client_id.
func (r *GormRegistry) Register(ctx context.Context, c Client) error {
	if c.ClientID == "" {
		return errors.New("client_id required")
	}
	for _, uri := range c.RedirectURIs {
		if strings.ContainsAny(uri, " \t\n") {
			return fmt.Errorf("redirect uri %q contains whitespace", uri)
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	rec := clientRecord{
		ID:            c.ID,
		ClientID:      c.ClientID,
		RedirectURIs:  strings.Join(c.RedirectURIs, " "),
		IsPublic:      c.IsPublic,
		AllowedScopes: strings.Join(c.AllowedScopes, " "),
	}

	var existing clientRecord
	err := r.db.WithContext(ctx).Where("client_id = ?", c.ClientID).First(&existing).Error
	switch {
	case err == nil:
		rec.ID = existing.ID
		err = r.db.WithContext(ctx).Save(&rec).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = r.db.WithContext(ctx).Create(&rec).Error
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (r *GormRegistry) GetClient(ctx context.Context, clientID string) (*Client, error) {
	var rec clientRecord
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return &Client{
		ID:            rec.ID,
		ClientID:      rec.ClientID,
		RedirectURIs:  strings.Fields(rec.RedirectURIs),
		IsPublic:      rec.IsPublic,
		AllowedScopes: strings.Fields(rec.AllowedScopes),
	}, nil
}
