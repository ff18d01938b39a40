package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnsupportedDriver = errors.New("database: unsupported driver")

// Open connects with retries, pings, and applies the pool settings. It
// gives up early when ctx is done.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	log.Info("opening database",
		zap.String("driver", cfg.driver()),
		zap.String("host", cfg.Host),
		zap.String("name", cfg.Name),
		zap.String("path", cfg.Path),
	)

	attempts := len(cfg.RetryDelays) + 1
	for attempt := 1; ; attempt++ {
		var db *gorm.DB
		db, err = connect(ctx, dialector, cfg)
		if err == nil {
			log.Info("database ready", zap.Int("attempt", attempt))
			return db, nil
		}
		if attempt >= attempts {
			break
		}

		delay := cfg.RetryDelays[attempt-1]
		log.Warn("database connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("database: %w (last error: %v)", ctx.Err(), err)
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("database: connect after %d attempts: %w", attempts, err)
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.driver() {
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
}

func connect(ctx context.Context, dialector gorm.Dialector, cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if cfg.driver() == "sqlite" && cfg.Path == ":memory:" {
		// Every pooled connection to :memory: is a separate database.
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
