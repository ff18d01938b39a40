package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	// MethodS256 is the only supported code challenge method.
	MethodS256 = "S256"
	// MethodPlain is recognised only so it can be rejected explicitly.
	MethodPlain = "plain"

	// MinChallengeLength is the shortest challenge accepted at authorize time.
	MinChallengeLength = 43
	// MinVerifierLength and MaxVerifierLength bound a code_verifier (RFC 7636 4.1).
	MinVerifierLength = 43
	MaxVerifierLength = 128

	verifierEntropyBytes = 32
)

var (
	// ErrPlainMethod is returned when a client asks for the plain transform.
	ErrPlainMethod = errors.New("pkce: plain code_challenge_method is not allowed")
	// ErrUnsupportedMethod is returned for any other unknown method.
	ErrUnsupportedMethod = errors.New("pkce: unsupported code_challenge_method")
	// ErrChallengeTooShort is returned when a challenge is shorter than MinChallengeLength.
	ErrChallengeTooShort = errors.New("pkce: code_challenge too short")
)

// GenerateVerifier returns 32 random bytes encoded as unpadded base64url
// (43 characters).
func GenerateVerifier() (string, error) {
	buf := make([]byte, verifierEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DeriveChallenge computes base64url(SHA-256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyChallenge reports whether verifier hashes to expected. The
// comparison runs in constant time with respect to the challenge bytes.
func VerifyChallenge(verifier, expected string) bool {
	if verifier == "" || expected == "" {
		return false
	}
	derived := DeriveChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(expected)) == 1
}

// ValidateMethod accepts only S256.
func ValidateMethod(method string) error {
	switch strings.TrimSpace(method) {
	case MethodS256:
		return nil
	case MethodPlain:
		return ErrPlainMethod
	default:
		return ErrUnsupportedMethod
	}
}

// ValidateChallenge checks method and minimum challenge length in the order
// the authorize endpoint applies them.
func ValidateChallenge(challenge, method string) error {
	if err := ValidateMethod(method); err != nil {
		return err
	}
	if len(challenge) < MinChallengeLength {
		return ErrChallengeTooShort
	}
	return nil
}

// ValidVerifierFormat reports whether v has a legal length and uses only the
// unreserved characters [A-Z a-z 0-9 - . _ ~].
func ValidVerifierFormat(v string) bool {
	if len(v) < MinVerifierLength || len(v) > MaxVerifierLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
