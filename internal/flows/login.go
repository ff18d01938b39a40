package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/users"
)

// LoginFailureKind classifies password login failures.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureMissing
	LoginFailureCredentials
	LoginFailureInactive
	LoginFailureBackend
)

// LoginResult carries the authenticated user on success.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	User    *users.User
}

// LoginDeps captures password login dependencies.
type LoginDeps struct {
	Users          users.Lookup
	VerifyPassword func(password, encoded string) (bool, error)
	// VerifyDummy runs for unknown emails and must cost the same as
	// VerifyPassword.
	VerifyDummy func(password string) bool
}

// RunLogin checks an email and password pair.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{Failure: LoginFailureMissing}
	}

	user, err := deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			if deps.VerifyDummy != nil {
				deps.VerifyDummy(password)
			}
			return LoginResult{Failure: LoginFailureCredentials, Err: err}
		}
		return LoginResult{Failure: LoginFailureBackend, Err: err}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{Failure: LoginFailureCredentials, Err: err}
	}
	if !user.Active {
		return LoginResult{Failure: LoginFailureInactive, User: user}
	}
	return LoginResult{User: user}
}
