package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	authorizationCodeRawSize = 32
	maxCodeLength            = 512
)

var (
	// ErrEmptyCode is returned for a missing code parameter.
	ErrEmptyCode = errors.New("empty code")
	// ErrCodeTooLong is returned for codes longer than any issued code.
	ErrCodeTooLong = errors.New("code too long")
	// ErrCodeEncoding is returned for codes that are not base64url.
	ErrCodeEncoding = errors.New("code is not base64url")
)

// NewAuthorizationCode returns a fresh url-safe code with 256 bits of entropy.
func NewAuthorizationCode() (string, error) {
	var raw [authorizationCodeRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashCode returns the lowercase hex SHA-256 of a raw authorization code.
// Only this digest is ever persisted.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// ShortHash truncates a digest for log fields.
func ShortHash(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}

// ValidCodeFormat rejects obviously malformed codes before any store lookup.
func ValidCodeFormat(code string) error {
	if code == "" {
		return ErrEmptyCode
	}
	if len(code) > maxCodeLength {
		return ErrCodeTooLong
	}
	if _, err := base64.RawURLEncoding.DecodeString(code); err != nil {
		return ErrCodeEncoding
	}
	return nil
}
