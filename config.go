package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/ratelimit"
)

// Config is cloned by Builder.WithConfig and treated as immutable once the
// engine is built.
type Config struct {
	JWT        JWTConfig
	OAuth      OAuthConfig
	Revocation RevocationConfig
	RateLimit  RateLimitConfig
	Security   SecurityConfig
	Password   PasswordConfig
	Audit      AuditConfig
	Metrics    MetricsConfig

	// StoreTimeout bounds mutating store calls, which run detached from the
	// request context.
	StoreTimeout time.Duration
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds signing material and per-family token policy.
type JWTConfig struct {
	Issuer          string
	AccessAudience  string
	RefreshAudience string
	SessionAudience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SessionTTL time.Duration

	SigningMethod string // "es256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	Leeway        time.Duration
}

/*
====================================
OAUTH CONFIG
====================================
*/

// MaxCodeTTL caps authorization code lifetime outside debug builds.
const MaxCodeTTL = 120 * time.Second

// OAuthConfig controls the authorize and token endpoints.
type OAuthConfig struct {
	CodeTTL time.Duration
	// DebugLongCodeTTL lifts the MaxCodeTTL cap. Never set it in production.
	DebugLongCodeTTL  bool
	IssueRefreshToken bool
	DefaultScope      string
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig sets the policy for revocation store failures.
type RevocationConfig struct {
	// FailOpen accepts tokens when the store cannot be reached.
	FailOpen bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds the two endpoint classes and the failure policy.
type RateLimitConfig struct {
	Enabled         bool
	Strict          ratelimit.Config
	Default         ratelimit.Config
	FailOpen        bool
	JanitorInterval time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds deployment-wide switches.
type SecurityConfig struct {
	ProductionMode    bool
	SecureCookies     bool
	SessionCookieName string
	LoginPath         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration that validates once key material
// and an issuer are supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessAudience:  jwt.DefaultAccessAudience,
			RefreshAudience: jwt.DefaultRefreshAudience,
			SessionAudience: jwt.DefaultSessionAudience,
			AccessTTL:       15 * time.Minute,
			RefreshTTL:      7 * 24 * time.Hour,
			SessionTTL:      30 * time.Minute,
			SigningMethod:   string(jwt.MethodES256),
		},
		OAuth: OAuthConfig{
			CodeTTL:           60 * time.Second,
			IssueRefreshToken: false,
			DefaultScope:      "openid",
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			Strict:          ratelimit.Strict,
			Default:         ratelimit.Default,
			JanitorInterval: time.Minute,
		},
		Security: SecurityConfig{
			SecureCookies:     true,
			SessionCookieName: "session",
			LoginPath:         "/login",
		},
		Password: PasswordConfig{
			Memory:      pw.Memory,
			Time:        pw.Time,
			Parallelism: pw.Parallelism,
			SaltLength:  pw.SaltLength,
			KeyLength:   pw.KeyLength,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		StoreTimeout: 2 * time.Second,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Key material is checked
// again, more thoroughly, when the token manager is built.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer is required")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 || c.JWT.SessionTTL <= 0 {
		return errors.New("JWT TTLs must be > 0")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodES256, jwt.MethodEd25519:
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT PrivateKey is required")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	if c.OAuth.CodeTTL <= 0 {
		return errors.New("OAuth CodeTTL must be > 0")
	}
	if c.OAuth.CodeTTL > MaxCodeTTL && !c.OAuth.DebugLongCodeTTL {
		return fmt.Errorf("OAuth CodeTTL must be <= %s unless DebugLongCodeTTL is set", MaxCodeTTL)
	}
	if strings.TrimSpace(c.OAuth.DefaultScope) == "" {
		return errors.New("OAuth DefaultScope is required")
	}

	if c.RateLimit.Enabled {
		if err := c.RateLimit.Strict.Validate(); err != nil {
			return fmt.Errorf("RateLimit Strict: %w", err)
		}
		if err := c.RateLimit.Default.Validate(); err != nil {
			return fmt.Errorf("RateLimit Default: %w", err)
		}
		if c.RateLimit.Strict.Scope() == c.RateLimit.Default.Scope() {
			return errors.New("RateLimit Strict and Default must not share a bucket scope")
		}
	}
	if c.RateLimit.JanitorInterval < 0 {
		return errors.New("RateLimit JanitorInterval must be >= 0")
	}

	if strings.TrimSpace(c.Security.SessionCookieName) == "" {
		return errors.New("Security SessionCookieName is required")
	}
	if !strings.HasPrefix(c.Security.LoginPath, "/") {
		return errors.New("Security LoginPath must be an absolute path")
	}

	if err := c.passwordConfig().Validate(); err != nil {
		return err
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.StoreTimeout < 0 {
		return errors.New("StoreTimeout must be >= 0")
	}

	if c.Security.ProductionMode {
		return c.lintProduction()
	}
	return nil
}

// lintProduction rejects settings that are only acceptable in development.
func (c *Config) lintProduction() error {
	if c.OAuth.DebugLongCodeTTL {
		return errors.New("DebugLongCodeTTL is not allowed in ProductionMode")
	}
	if !c.Security.SecureCookies {
		return errors.New("SecureCookies must be enabled in ProductionMode")
	}
	if c.Revocation.FailOpen {
		return errors.New("Revocation FailOpen is not allowed in ProductionMode")
	}
	if !c.RateLimit.Enabled {
		return errors.New("RateLimit must be enabled in ProductionMode")
	}
	if c.StoreTimeout == 0 {
		return errors.New("StoreTimeout must be set in ProductionMode")
	}
	return nil
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}
