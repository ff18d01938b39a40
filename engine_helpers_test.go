package authcore

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/clients"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/pkce"
	"github.com/MrEthical07/authcore/users"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testClientID    = "spa"
	testRedirectURI = "https://app/cb"
	testPassword    = "correct-horse-battery"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine  *Engine
	users   *users.MemoryStore
	clients *clients.MemoryRegistry
	clock   *testClock
}

func testPasswordConfig() PasswordConfig {
	return PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Issuer = "https://auth.test"
	cfg.Password = testPasswordConfig()
	cfg.Security.SecureCookies = false
	cfg.RateLimit.JanitorInterval = 0
	return cfg
}

type engineOption func(*Builder)

func withRedis(t *testing.T) engineOption {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return func(b *Builder) { b.WithRedis(rdb) }
}

func newTestEnv(t *testing.T, cfg Config, opts ...engineOption) *testEnv {
	t.Helper()

	clock := newTestClock()
	userStore := users.NewMemoryStore()
	registry := clients.NewMemoryRegistry(clients.Client{
		ID:           "c1",
		ClientID:     testClientID,
		RedirectURIs: []string{testRedirectURI, "https://app/cb?tenant=acme"},
		IsPublic:     true,
	})

	hasher, err := password.NewArgon2(cfg.passwordConfig())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	for _, u := range []users.User{
		{ID: "u1", Email: "alice@example.com", Name: "Alice", PasswordHash: hash, Roles: []string{"user"}, Active: true},
		{ID: "u2", Email: "bob@example.com", Name: "Bob", PasswordHash: hash, Roles: []string{"user", "admin"}, Active: true},
		{ID: "u3", Email: "carol@example.com", Name: "Carol", PasswordHash: hash, Roles: []string{"user"}, Active: false},
	} {
		if err := userStore.Put(u); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	b := New().
		WithConfig(cfg).
		WithEphemeralKeys().
		WithClock(clock.Now).
		WithClientRegistry(registry).
		WithUserLookup(userStore)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, users: userStore, clients: registry, clock: clock}
}

func (env *testEnv) session(t *testing.T, userID string) string {
	t.Helper()
	token, err := env.engine.NewSession(userID)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return token
}

func newVerifier(t *testing.T) (verifier, challenge string) {
	t.Helper()
	v, err := pkce.GenerateVerifier()
	if err != nil {
		t.Fatalf("GenerateVerifier: %v", err)
	}
	return v, pkce.DeriveChallenge(v)
}

func authorizeRequest(challenge string) AuthorizeRequest {
	return AuthorizeRequest{
		ClientID:            testClientID,
		RedirectURI:         testRedirectURI,
		ResponseType:        "code",
		CodeChallenge:       challenge,
		CodeChallengeMethod: pkce.MethodS256,
		State:               "xyz",
	}
}

// issueCode runs a full authorize for userID and returns the raw code and
// the verifier that redeems it.
func (env *testEnv) issueCode(t *testing.T, userID string) (code, verifier string) {
	t.Helper()
	verifier, challenge := newVerifier(t)
	res, err := env.engine.Authorize(context.Background(), authorizeRequest(challenge), env.session(t, userID))
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	u, err := url.Parse(res.RedirectURL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	return u.Query().Get("code"), verifier
}

func tokenRequest(code, verifier string) TokenRequest {
	return TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     testClientID,
		CodeVerifier: verifier,
	}
}

// loginPair logs a user in through the JSON login path.
func (env *testEnv) loginPair(t *testing.T, email string) *RefreshResult {
	t.Helper()
	info, err := env.engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	pair, err := env.engine.IssueTokenPair(info)
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}
	return pair
}

var errStoreDown = errors.New("store down")

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Time) error { return errStoreDown }
func (failingRevocations) RevokeOnce(context.Context, string, time.Time) (bool, error) {
	return false, errStoreDown
}
func (failingRevocations) IsRevoked(context.Context, string) (bool, error) { return false, errStoreDown }

func clientWithScopes(clientID string, scopes ...string) clients.Client {
	return clients.Client{
		ID:            "id-" + clientID,
		ClientID:      clientID,
		RedirectURIs:  []string{testRedirectURI},
		IsPublic:      true,
		AllowedScopes: scopes,
	}
}
