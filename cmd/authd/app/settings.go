package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/database"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// settings is the flattened process configuration read from flags,
// environment and .env.
type settings struct {
	Address         string
	Dev             bool
	Production      bool
	LogLevel        string
	AppEnv          string
	TrustProxy      bool
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DB database.Config

	Issuer         string
	SigningMethod  string
	PrivateKeyFile string
	PublicKeyFile  string
	KeyID          string
	CodeTTL        time.Duration
	IssueRefresh   bool
	SecureCookies  bool
	Audit          bool

	SeedClientID    string
	SeedRedirectURI string
	SeedEmail       string
	SeedPassword    string
}

func registerServeFlags(fs *pflag.FlagSet) {
	fs.String("address", ":8080", "address to listen on")
	fs.Bool("dev", false, "run with miniredis, in-memory sqlite and ephemeral signing keys")
	fs.Bool("trust-proxy", false, "take client addresses from X-Forwarded-For / X-Real-IP")
	fs.Duration("shutdown-timeout", 30*time.Second, "graceful shutdown deadline")

	fs.String("redis-addr", "", "redis address (host:port); empty uses in-process stores")
	fs.String("redis-password", "", "redis password")
	fs.Int("redis-db", 0, "redis database number")

	fs.String("db-driver", "sqlite", "database driver (sqlite, postgres)")
	fs.String("db-path", "authcore.sqlite", "sqlite file path")
	fs.String("db-host", "localhost", "postgres host")
	fs.String("db-port", "5432", "postgres port")
	fs.String("db-user", "", "postgres user")
	fs.String("db-password", "", "postgres password")
	fs.String("db-name", "authcore", "postgres database")
	fs.String("db-sslmode", "disable", "postgres sslmode")

	fs.String("issuer", "", "JWT issuer")
	fs.String("signing-method", "es256", "JWT signing method (es256, ed25519)")
	fs.String("private-key-file", "", "PEM private key used to sign tokens")
	fs.String("public-key-file", "", "PEM public key; derived from the private key when empty")
	fs.String("key-id", "", "kid header for issued tokens")
	fs.Duration("code-ttl", 60*time.Second, "authorization code lifetime")
	fs.Bool("issue-refresh-token", false, "include a refresh token in token responses")
	fs.Bool("secure-cookies", true, "mark session cookies Secure")
	fs.Bool("audit", false, "emit audit events to the log")

	fs.String("seed-client-id", "", "register this public client at startup")
	fs.String("seed-redirect-uri", "", "redirect URI for the seeded client")
	fs.String("seed-email", "", "create this user at startup if missing")
	fs.String("seed-password", "", "password for the seeded user")
}

func loadSettings(v *viper.Viper) settings {
	db := database.DefaultConfig()
	db.Driver = v.GetString("db-driver")
	db.Path = v.GetString("db-path")
	db.Host = v.GetString("db-host")
	db.Port = v.GetString("db-port")
	db.User = v.GetString("db-user")
	db.Password = v.GetString("db-password")
	db.Name = v.GetString("db-name")
	db.SSLMode = v.GetString("db-sslmode")

	s := settings{
		Address:         v.GetString("address"),
		Dev:             v.GetBool("dev"),
		LogLevel:        v.GetString("log-level"),
		AppEnv:          v.GetString("app-env"),
		TrustProxy:      v.GetBool("trust-proxy"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		DB:              db,
		Issuer:          v.GetString("issuer"),
		SigningMethod:   strings.ToLower(v.GetString("signing-method")),
		PrivateKeyFile:  v.GetString("private-key-file"),
		PublicKeyFile:   v.GetString("public-key-file"),
		KeyID:           v.GetString("key-id"),
		CodeTTL:         v.GetDuration("code-ttl"),
		IssueRefresh:    v.GetBool("issue-refresh-token"),
		SecureCookies:   v.GetBool("secure-cookies"),
		Audit:           v.GetBool("audit"),
		SeedClientID:    v.GetString("seed-client-id"),
		SeedRedirectURI: v.GetString("seed-redirect-uri"),
		SeedEmail:       v.GetString("seed-email"),
		SeedPassword:    v.GetString("seed-password"),
	}
	s.Production = strings.EqualFold(s.AppEnv, "production")

	if s.Dev {
		s.DB.Driver = "sqlite"
		s.DB.Path = ":memory:"
		s.SecureCookies = false
		if s.Issuer == "" {
			s.Issuer = "http://localhost" + s.Address
		}
	}
	return s
}

// engineConfig maps settings onto the engine configuration, reading key
// files when set.
func (s settings) engineConfig() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Issuer = s.Issuer
	cfg.JWT.SigningMethod = s.SigningMethod
	cfg.JWT.KeyID = s.KeyID
	cfg.OAuth.CodeTTL = s.CodeTTL
	cfg.OAuth.IssueRefreshToken = s.IssueRefresh
	cfg.Security.ProductionMode = s.Production
	cfg.Security.SecureCookies = s.SecureCookies
	cfg.Audit.Enabled = s.Audit
	cfg.Metrics.EnableLatencyHistograms = true

	if s.PrivateKeyFile != "" {
		key, err := os.ReadFile(s.PrivateKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read private key: %w", err)
		}
		cfg.JWT.PrivateKey = key
	}
	if s.PublicKeyFile != "" {
		key, err := os.ReadFile(s.PublicKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read public key: %w", err)
		}
		cfg.JWT.PublicKey = key
	}
	return cfg, nil
}

// ephemeralKeys reports whether the engine should mint its own key pair.
func (s settings) ephemeralKeys() bool {
	return s.Dev && s.PrivateKeyFile == ""
}
