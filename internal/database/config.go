package database

import (
	"fmt"
	"strings"
	"time"
)

// Config selects and tunes the relational backend for the client
// registry, user directory and code store.
type Config struct {
	// Driver is "postgres" or "sqlite". Empty means sqlite.
	Driver string

	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// Path is the sqlite file, or ":memory:".
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// RetryDelays are waited between connection attempts. The number of
	// attempts is len(RetryDelays)+1.
	RetryDelays []time.Duration
}

func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		Path:            "authcore.sqlite",
		SSLMode:         "disable",
		Port:            "5432",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		RetryDelays:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
	}
}

func (c Config) driver() string {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	switch d {
	case "postgresql":
		return "postgres"
	case "":
		return "sqlite"
	}
	return d
}

// DSN builds the driver connection string.
func (c Config) DSN() string {
	switch c.driver() {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
	case "sqlite":
		return c.Path
	}
	return ""
}

// String masks the password.
func (c Config) String() string {
	return fmt.Sprintf("database.Config{Driver: %s, Host: %s, Port: %s, User: %s, Password: [REDACTED], Name: %s, SSLMode: %s, Path: %s}",
		c.driver(), c.Host, c.Port, c.User, c.Name, c.SSLMode, c.Path)
}
