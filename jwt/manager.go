package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the asymmetric algorithm used for every token family.
type SigningMethod string

const (
	// MethodES256 signs with ECDSA P-256 / SHA-256.
	MethodES256 SigningMethod = "es256"
	// MethodEd25519 signs with EdDSA over Curve25519.
	MethodEd25519 SigningMethod = "ed25519"
)

// Kind identifies a token family.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

const (
	DefaultAccessAudience  = "authcore-access"
	DefaultRefreshAudience = "authcore-refresh"
	DefaultSessionAudience = "authcore-session"
)

var (
	// ErrTokenExpired is returned when a token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("token invalid")
)

// DefaultRoles are stamped into access tokens minted without explicit roles.
var DefaultRoles = []string{"user"}

// Config holds signing material and per-family policy. Zero audiences and
// TTLs fall back to package defaults.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string

	AccessAudience  string
	RefreshAudience string
	SessionAudience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SessionTTL time.Duration

	Leeway     time.Duration
	KeyID      string
	VerifyKeys map[string][]byte

	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// Claims is the decoded payload of any token family. Scope and Roles are
// only populated on access tokens.
type Claims struct {
	Scope string   `json:"scope,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Subject returns the sub claim.
func (c *Claims) Subject() string { return c.RegisteredClaims.Subject }

// TokenID returns the jti claim.
func (c *Claims) TokenID() string { return c.ID }

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Manager mints and verifies tokens. It is safe for concurrent use.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	verifySet map[string]any
	audiences [3]string
	ttls      [3]time.Duration
}

// NewManager validates cfg and parses key material once.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 || cfg.SessionTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessAudience == "" {
		cfg.AccessAudience = DefaultAccessAudience
	}
	if cfg.RefreshAudience == "" {
		cfg.RefreshAudience = DefaultRefreshAudience
	}
	if cfg.SessionAudience == "" {
		cfg.SessionAudience = DefaultSessionAudience
	}
	if cfg.AccessAudience == cfg.RefreshAudience ||
		cfg.AccessAudience == cfg.SessionAudience ||
		cfg.RefreshAudience == cfg.SessionAudience {
		return nil, errors.New("token audiences must be distinct")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer is required")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		config:    cfg,
		audiences: [3]string{cfg.AccessAudience, cfg.RefreshAudience, cfg.SessionAudience},
		ttls:      [3]time.Duration{cfg.AccessTTL, cfg.RefreshTTL, cfg.SessionTTL},
	}

	switch cfg.SigningMethod {
	case MethodES256:
		m.method = jwt.SigningMethodES256
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}

	if len(cfg.PrivateKey) > 0 {
		key, err := parsePrivateKey(cfg.SigningMethod, cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		m.signKey = key
	}
	if len(cfg.PublicKey) > 0 {
		key, err := parsePublicKey(cfg.SigningMethod, cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.verifyKey = key
	} else if m.signKey != nil {
		m.verifyKey = publicFromPrivate(m.signKey)
	}

	if len(cfg.VerifyKeys) > 0 {
		m.verifySet = make(map[string]any, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			key, err := parsePublicKey(cfg.SigningMethod, raw)
			if err != nil {
				return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
			}
			m.verifySet[kid] = key
		}
		if cfg.KeyID != "" {
			if _, ok := m.verifySet[cfg.KeyID]; !ok {
				return nil, errors.New("KeyID is not present in VerifyKeys")
			}
		}
	}

	if m.verifyKey == nil && len(m.verifySet) == 0 {
		return nil, errors.New("public key or verify key set required")
	}

	return m, nil
}

// TTL returns the configured lifetime of a token family.
func (m *Manager) TTL(kind Kind) time.Duration {
	if kind < KindAccess || kind > KindSession {
		return 0
	}
	return m.ttls[kind]
}

// Audience returns the audience string of a token family.
func (m *Manager) Audience(kind Kind) string {
	if kind < KindAccess || kind > KindSession {
		return ""
	}
	return m.audiences[kind]
}

// CanSign reports whether a private key is configured.
func (m *Manager) CanSign() bool { return m.signKey != nil }

// CreateAccessToken mints an access token carrying scope and roles.
func (m *Manager) CreateAccessToken(sub, scope string, roles []string) (string, error) {
	if len(roles) == 0 {
		roles = DefaultRoles
	}
	return m.create(KindAccess, sub, scope, append([]string(nil), roles...))
}

// CreateRefreshToken mints a refresh token. Refresh tokens carry no roles.
func (m *Manager) CreateRefreshToken(sub string) (string, error) {
	return m.create(KindRefresh, sub, "", nil)
}

// CreateSessionToken mints the token stored in the login cookie.
func (m *Manager) CreateSessionToken(sub string) (string, error) {
	return m.create(KindSession, sub, "", nil)
}

// DecodeAccessToken verifies an access token.
func (m *Manager) DecodeAccessToken(token string) (*Claims, error) {
	return m.decode(KindAccess, token)
}

// DecodeRefreshToken verifies a refresh token.
func (m *Manager) DecodeRefreshToken(token string) (*Claims, error) {
	return m.decode(KindRefresh, token)
}

// DecodeSessionToken verifies a session token.
func (m *Manager) DecodeSessionToken(token string) (*Claims, error) {
	return m.decode(KindSession, token)
}

func (m *Manager) create(kind Kind, sub, scope string, roles []string) (string, error) {
	if m.signKey == nil {
		return "", errors.New("signing key not configured")
	}
	if strings.TrimSpace(sub) == "" {
		return "", errors.New("subject is required")
	}

	now := m.config.Now()
	claims := Claims{
		Scope: scope,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.audiences[kind]},
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttls[kind])),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.signKey)
}

func (m *Manager) decode(kind Kind, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.audiences[kind]),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.RegisteredClaims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	if kind != KindAccess && (len(claims.Roles) > 0 || claims.Scope != "") {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.verifySet) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.verifySet[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return m.verifyKey, nil
}
