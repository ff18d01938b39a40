package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/clients"
	"github.com/MrEthical07/authcore/codes"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/ratelimit"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/users"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single use; configure it during
// initialization and call Build once.
type Builder struct {
	config Config
	logger *zap.Logger
	redis  redis.UniversalClient

	codes       codes.Store
	clients     clients.Registry
	revocations revocation.Store
	limiter     ratelimit.Limiter
	users       users.Lookup
	auditSink   AuditSink

	ephemeralKeys bool
	now           func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The value is cloned.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRedis makes Redis the default backend for codes, revocations and
// rate limiting. Stores supplied explicitly still take precedence.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCodeStore(s codes.Store) *Builder {
	b.codes = s
	return b
}

func (b *Builder) WithClientRegistry(r clients.Registry) *Builder {
	b.clients = r
	return b
}

func (b *Builder) WithRevocationStore(s revocation.Store) *Builder {
	b.revocations = s
	return b
}

func (b *Builder) WithRateLimiter(l ratelimit.Limiter) *Builder {
	b.limiter = l
	return b
}

func (b *Builder) WithUserLookup(l users.Lookup) *Builder {
	b.users = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithEphemeralKeys generates a throwaway signing key pair at Build time.
// Tokens do not survive a restart. Refused in ProductionMode.
func (b *Builder) WithEphemeralKeys() *Builder {
	b.ephemeralKeys = true
	return b
}

// WithClock overrides the wall clock used for token and code expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every collaborator.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.ephemeralKeys {
		if cfg.Security.ProductionMode {
			return nil, errors.New("ephemeral signing keys are not allowed in ProductionMode")
		}
		priv, pub, err := jwt.GenerateEphemeralKeyPair(jwt.SigningMethod(cfg.JWT.SigningMethod))
		if err != nil {
			return nil, err
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.clients == nil {
		return nil, errors.New("client registry required")
	}
	if b.users == nil {
		return nil, errors.New("user lookup required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	if cfg.OAuth.DebugLongCodeTTL {
		logger.Warn("authorization code TTL cap disabled",
			zap.Duration("code_ttl", cfg.OAuth.CodeTTL))
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		logger:  logger,
		clients: b.clients,
		users:   b.users,
		now:     now,
	}

	// -------- STORES --------
	var sweepers []func()
	switch {
	case b.codes != nil:
		engine.codes = b.codes
	case b.redis != nil:
		engine.codes = codes.NewRedisStore(b.redis, "")
	default:
		mem := codes.NewMemoryStore()
		engine.codes = mem
		sweepers = append(sweepers, func() { mem.Sweep(now()) })
	}

	switch {
	case b.revocations != nil:
		engine.revocations = b.revocations
	case b.redis != nil:
		engine.revocations = revocation.NewRedisStore(b.redis, "")
	default:
		mem := revocation.NewMemoryStoreWithClock(now)
		engine.revocations = mem
		sweepers = append(sweepers, func() { mem.Sweep() })
	}

	switch {
	case b.limiter != nil:
		engine.limiter = b.limiter
	case b.redis != nil:
		engine.limiter = ratelimit.NewRedisLimiter(b.redis, "")
	default:
		mem := ratelimit.NewMemoryLimiter(logger.Named("ratelimit"))
		mem.StartJanitor(cfg.RateLimit.JanitorInterval)
		engine.limiter = mem
		engine.closers = append(engine.closers, mem.Stop)
	}

	if len(sweepers) > 0 {
		engine.startSweeper(cfg.RateLimit.JanitorInterval, sweepers)
	}

	// -------- TOKENS / PASSWORDS --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod:   jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:      cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:       cloneBytes(cfg.JWT.PublicKey),
		Issuer:          cfg.JWT.Issuer,
		AccessAudience:  cfg.JWT.AccessAudience,
		RefreshAudience: cfg.JWT.RefreshAudience,
		SessionAudience: cfg.JWT.SessionAudience,
		AccessTTL:       cfg.JWT.AccessTTL,
		RefreshTTL:      cfg.JWT.RefreshTTL,
		SessionTTL:      cfg.JWT.SessionTTL,
		Leeway:          cfg.JWT.Leeway,
		KeyID:           cfg.JWT.KeyID,
		Now:             now,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.tokens = jm

	ph, err := password.NewArgon2(cfg.passwordConfig())
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.passwords = ph

	// -------- AUDIT / METRICS --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger.Named("audit"))
	engine.metrics = NewMetrics(cfg.Metrics)

	engine.initFlows()

	b.built = true

	logger.Info("auth engine built",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.String("signing_method", cfg.JWT.SigningMethod),
		zap.Bool("redis", b.redis != nil),
		zap.Bool("production", cfg.Security.ProductionMode))

	return engine, nil
}
