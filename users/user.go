// Package users is the account lookup collaborator: the auth core only needs
// to resolve a subject to an active flag and roles, and an email to a
// password hash for login.
package users

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned for unknown ids or emails.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when registering an email twice.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrBackend wraps storage failures.
	ErrBackend = errors.New("user store unavailable")
)

// User is the subset of an account the auth core reads.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Roles        []string
	Active       bool
}

// Lookup resolves accounts.
type Lookup interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneUser(u *User) *User {
	out := *u
	out.Roles = append([]string(nil), u.Roles...)
	return &out
}
