package authcore

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/clients"
	"github.com/MrEthical07/authcore/ratelimit"
	"github.com/MrEthical07/authcore/users"
)

func validTestConfig() Config {
	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("placeholder; parsed at build time")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"defaults with key and issuer", func(*Config) {}, true},
		{"missing issuer", func(c *Config) { c.JWT.Issuer = "  " }, false},
		{"missing key", func(c *Config) { c.JWT.PrivateKey = nil }, false},
		{"ed25519", func(c *Config) { c.JWT.SigningMethod = "ed25519" }, true},
		{"hs256 rejected", func(c *Config) { c.JWT.SigningMethod = "hs256" }, false},
		{"leeway 2m", func(c *Config) { c.JWT.Leeway = 2 * time.Minute }, true},
		{"leeway 3m", func(c *Config) { c.JWT.Leeway = 3 * time.Minute }, false},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, false},
		{"code ttl at cap", func(c *Config) { c.OAuth.CodeTTL = MaxCodeTTL }, true},
		{"code ttl over cap", func(c *Config) { c.OAuth.CodeTTL = MaxCodeTTL + time.Second }, false},
		{"code ttl over cap in debug", func(c *Config) {
			c.OAuth.CodeTTL = 10 * time.Minute
			c.OAuth.DebugLongCodeTTL = true
		}, true},
		{"blank default scope", func(c *Config) { c.OAuth.DefaultScope = "" }, false},
		{"bad strict preset", func(c *Config) { c.RateLimit.Strict = ratelimit.Config{Capacity: 0, RefillRate: 1} }, false},
		{"presets sharing a name", func(c *Config) { c.RateLimit.Strict.Name = c.RateLimit.Default.Name }, false},
		{"unnamed presets", func(c *Config) {
			c.RateLimit.Strict.Name = ""
			c.RateLimit.Default.Name = ""
		}, true},
		{"bad preset ignored when disabled", func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.Default = ratelimit.Config{}
		}, true},
		{"relative login path", func(c *Config) { c.Security.LoginPath = "login" }, false},
		{"weak password memory", func(c *Config) { c.Password.Memory = 1024 }, false},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigProductionLint(t *testing.T) {
	prod := func() Config {
		cfg := validTestConfig()
		cfg.Security.ProductionMode = true
		cfg.Security.SecureCookies = true
		return cfg
	}

	if cfg := prod(); cfg.Validate() != nil {
		t.Fatalf("production baseline invalid: %v", cfg.Validate())
	}

	for name, mutate := range map[string]func(*Config){
		"debug code ttl":       func(c *Config) { c.OAuth.DebugLongCodeTTL = true },
		"insecure cookies":     func(c *Config) { c.Security.SecureCookies = false },
		"revocation fail open": func(c *Config) { c.Revocation.FailOpen = true },
		"rate limit disabled":  func(c *Config) { c.RateLimit.Enabled = false },
		"no store timeout":     func(c *Config) { c.StoreTimeout = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := prod()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected production lint failure")
			}
		})
	}
}

func TestBuilderRefusesEphemeralKeysInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ProductionMode = true
	cfg.Security.SecureCookies = true

	_, err := New().
		WithConfig(cfg).
		WithEphemeralKeys().
		WithClientRegistry(clients.NewMemoryRegistry()).
		WithUserLookup(users.NewMemoryStore()).
		Build()
	if err == nil || !strings.Contains(err.Error(), "ephemeral") {
		t.Fatalf("expected ephemeral key refusal, got %v", err)
	}
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithEphemeralKeys().
		WithUserLookup(users.NewMemoryStore()).Build(); err == nil {
		t.Fatal("expected error without client registry")
	}
	if _, err := New().WithConfig(testConfig()).WithEphemeralKeys().
		WithClientRegistry(clients.NewMemoryRegistry()).Build(); err == nil {
		t.Fatal("expected error without user lookup")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().
		WithConfig(testConfig()).
		WithEphemeralKeys().
		WithClientRegistry(clients.NewMemoryRegistry()).
		WithUserLookup(users.NewMemoryStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestWithConfigClonesKeyMaterial(t *testing.T) {
	cfg := validTestConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	if b.config.JWT.PrivateKey[0] == 'X' {
		t.Fatal("builder shares key buffer with caller")
	}
}

func TestEngineConfigOmitsKeys(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cfg := env.engine.Config()
	if cfg.JWT.PrivateKey != nil || cfg.JWT.PublicKey != nil {
		t.Fatal("Config leaked key material")
	}
	if cfg.JWT.Issuer != "https://auth.test" {
		t.Fatalf("issuer = %q", cfg.JWT.Issuer)
	}
}
