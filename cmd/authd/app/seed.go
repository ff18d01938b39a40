package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/clients"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/users"
	"go.uber.org/zap"
)

type clientRegistrar interface {
	Register(ctx context.Context, c clients.Client) error
}

type userDirectory interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	Create(ctx context.Context, u users.User) (*users.User, error)
}

// seed registers the bootstrap client and user named in settings. Both
// steps are idempotent.
func seed(ctx context.Context, s settings, registry clientRegistrar, directory userDirectory, log *zap.Logger) error {
	if s.SeedClientID != "" {
		if s.SeedRedirectURI == "" {
			return errors.New("seed-redirect-uri is required with seed-client-id")
		}
		err := registry.Register(ctx, clients.Client{
			ClientID:     s.SeedClientID,
			RedirectURIs: []string{s.SeedRedirectURI},
			IsPublic:     true,
		})
		if err != nil {
			return fmt.Errorf("seed client: %w", err)
		}
		log.Info("seeded client", zap.String("client_id", s.SeedClientID))
	}

	if s.SeedEmail == "" {
		return nil
	}
	if s.SeedPassword == "" {
		return errors.New("seed-password is required with seed-email")
	}
	if _, err := directory.GetByEmail(ctx, s.SeedEmail); err == nil {
		return nil
	} else if !errors.Is(err, users.ErrNotFound) {
		return fmt.Errorf("seed user lookup: %w", err)
	}

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(s.SeedPassword)
	if err != nil {
		return fmt.Errorf("seed user hash: %w", err)
	}
	u, err := directory.Create(ctx, users.User{
		Email:        s.SeedEmail,
		PasswordHash: hash,
		Roles:        []string{"user"},
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	log.Info("seeded user", zap.String("user_id", u.ID))
	return nil
}
