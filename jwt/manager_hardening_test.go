package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestManager(t *testing.T, method SigningMethod, mutate func(*Config)) *Manager {
	t.Helper()
	priv, pub, err := GenerateEphemeralKeyPair(method)
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	cfg := Config{
		SigningMethod: method,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore-test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestRoundTripAllFamilies(t *testing.T) {
	for _, method := range []SigningMethod{MethodES256, MethodEd25519} {
		t.Run(string(method), func(t *testing.T) {
			m := newTestManager(t, method, nil)

			access, err := m.CreateAccessToken("42", "openid", []string{"admin"})
			if err != nil {
				t.Fatalf("create access: %v", err)
			}
			claims, err := m.DecodeAccessToken(access)
			if err != nil {
				t.Fatalf("decode access: %v", err)
			}
			if claims.Subject() != "42" || claims.Scope != "openid" || len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
				t.Fatalf("unexpected access claims: %+v", claims)
			}
			if claims.TokenID() == "" || claims.IssuedAt == nil {
				t.Fatal("expected jti and iat")
			}
			if got := claims.Expiry().Sub(claims.IssuedAt.Time); got != 15*time.Minute {
				t.Fatalf("expected 15m access ttl, got %v", got)
			}

			refresh, err := m.CreateRefreshToken("42")
			if err != nil {
				t.Fatalf("create refresh: %v", err)
			}
			rc, err := m.DecodeRefreshToken(refresh)
			if err != nil {
				t.Fatalf("decode refresh: %v", err)
			}
			if len(rc.Roles) != 0 {
				t.Fatal("refresh tokens must not carry roles")
			}
			if got := rc.Expiry().Sub(rc.IssuedAt.Time); got != 7*24*time.Hour {
				t.Fatalf("expected 7d refresh ttl, got %v", got)
			}

			session, err := m.CreateSessionToken("42")
			if err != nil {
				t.Fatalf("create session: %v", err)
			}
			sc, err := m.DecodeSessionToken(session)
			if err != nil {
				t.Fatalf("decode session: %v", err)
			}
			if got := sc.Expiry().Sub(sc.IssuedAt.Time); got != 30*time.Minute {
				t.Fatalf("expected 30m session ttl, got %v", got)
			}
		})
	}
}

func TestDefaultRolesApplied(t *testing.T) {
	m := newTestManager(t, MethodES256, nil)
	tok, err := m.CreateAccessToken("7", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	claims, err := m.DecodeAccessToken(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "user" {
		t.Fatalf("expected default roles, got %v", claims.Roles)
	}
}

func TestAudienceIsolation(t *testing.T) {
	m := newTestManager(t, MethodES256, nil)

	access, _ := m.CreateAccessToken("1", "", nil)
	refresh, _ := m.CreateRefreshToken("1")
	session, _ := m.CreateSessionToken("1")

	decoders := map[string]func(string) (*Claims, error){
		"access":  m.DecodeAccessToken,
		"refresh": m.DecodeRefreshToken,
		"session": m.DecodeSessionToken,
	}
	tokens := map[string]string{"access": access, "refresh": refresh, "session": session}

	for tokKind, tok := range tokens {
		for decKind, decode := range decoders {
			_, err := decode(tok)
			if tokKind == decKind {
				if err != nil {
					t.Fatalf("%s decoder rejected its own token: %v", decKind, err)
				}
				continue
			}
			if !errors.Is(err, ErrTokenInvalid) {
				t.Fatalf("%s decoder accepted %s token (err=%v)", decKind, tokKind, err)
			}
		}
	}
}

func TestDecodeRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, MethodEd25519, nil)

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "1",
		ID:        "jti",
		Issuer:    "authcore-test",
		Audience:  gjwt.ClaimStrings{DefaultAccessAudience},
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.DecodeAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestDecodeRejectsOtherKeyPair(t *testing.T) {
	a := newTestManager(t, MethodES256, nil)
	b := newTestManager(t, MethodES256, nil)

	tok, err := a.CreateAccessToken("1", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.DecodeAccessToken(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected foreign signature to be rejected, got %v", err)
	}
}

func TestDecodeIssuerPinned(t *testing.T) {
	priv, pub, err := GenerateEphemeralKeyPair(MethodEd25519)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	issuerA, _ := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Issuer: "a"})
	issuerB, _ := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Issuer: "b"})

	tok, err := issuerA.CreateAccessToken("1", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := issuerB.DecodeAccessToken(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected issuer mismatch to be rejected, got %v", err)
	}
}

func TestDecodeExpiredAndLeeway(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newTestManager(t, MethodES256, func(c *Config) {
		c.Now = clock
		c.Leeway = 30 * time.Second
	})

	tok, err := m.CreateAccessToken("1", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now = now.Add(15*time.Minute + 10*time.Second)
	if _, err := m.DecodeAccessToken(tok); err != nil {
		t.Fatalf("expected token within leeway to parse: %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := m.DecodeAccessToken(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestDecodeRequiresClaims(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Issuer: "iss"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	base := func() gjwt.RegisteredClaims {
		return gjwt.RegisteredClaims{
			Subject:   "1",
			ID:        "jti-1",
			Issuer:    "iss",
			Audience:  gjwt.ClaimStrings{DefaultAccessAudience},
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		}
	}

	cases := map[string]func(*gjwt.RegisteredClaims){
		"missing sub": func(c *gjwt.RegisteredClaims) { c.Subject = "" },
		"missing jti": func(c *gjwt.RegisteredClaims) { c.ID = "" },
		"missing iat": func(c *gjwt.RegisteredClaims) { c.IssuedAt = nil },
		"missing exp": func(c *gjwt.RegisteredClaims) { c.ExpiresAt = nil },
		"future iat":  func(c *gjwt.RegisteredClaims) { c.IssuedAt = gjwt.NewNumericDate(time.Now().Add(time.Hour)) },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rc := base()
			mutate(&rc)
			tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{RegisteredClaims: rc})
			signed, err := tok.SignedString(priv)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if _, err := m.DecodeAccessToken(signed); !errors.Is(err, ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func TestKeyIDRequiredWhenConfigured(t *testing.T) {
	priv, pub, err := GenerateEphemeralKeyPair(MethodES256)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	signer, err := NewManager(Config{SigningMethod: MethodES256, PrivateKey: priv, PublicKey: pub, Issuer: "iss"})
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	verifier, err := NewManager(Config{
		SigningMethod: MethodES256,
		Issuer:        "iss",
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	tok, err := signer.CreateAccessToken("1", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := verifier.DecodeAccessToken(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected missing kid to be rejected, got %v", err)
	}
	if _, err := verifier.CreateAccessToken("1", "", nil); err == nil {
		t.Fatal("verify-only manager must not sign")
	}
}

func TestNewManagerValidation(t *testing.T) {
	priv, pub, err := GenerateEphemeralKeyPair(MethodES256)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	cases := map[string]Config{
		"hmac":          {SigningMethod: "hs256", PrivateKey: []byte("secret"), Issuer: "iss"},
		"no keys":       {SigningMethod: MethodES256, Issuer: "iss"},
		"no issuer":     {SigningMethod: MethodES256, PrivateKey: priv, PublicKey: pub},
		"same audience": {SigningMethod: MethodES256, PrivateKey: priv, PublicKey: pub, Issuer: "iss", AccessAudience: "x", RefreshAudience: "x"},
		"big leeway":    {SigningMethod: MethodES256, PrivateKey: priv, PublicKey: pub, Issuer: "iss", Leeway: time.Hour},
		"wrong key":     {SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Issuer: "iss"},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
