package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/clients"
	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/internal/database"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/users"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 15 * time.Second
	serverIdleTimeout  = 60 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization server",
		Long: `Start the HTTP server for /oauth/authorize, /oauth/token, the login
form and the JSON session endpoints.

With --dev the server needs no external services: it runs an in-process
redis, an in-memory sqlite database and a throwaway signing key.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := loadSettings(v)
			log, err := newLogger(s.LogLevel, s.AppEnv)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, s, log)
		},
	}
	registerServeFlags(cmd.Flags())
	cmd.Flags().VisitAll(func(f *pflag.Flag) { mustBind(v, f) })
	return cmd
}

func runServe(ctx context.Context, s settings, log *zap.Logger) error {
	rdb, closeRedis, err := openRedis(ctx, s, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	db, err := database.Open(ctx, s.DB, log.Named("database"))
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	registry, directory, codeStore, err := migrate(ctx, db)
	if err != nil {
		return err
	}
	if err := seed(ctx, s, registry, directory, log); err != nil {
		return err
	}

	cfg, err := s.engineConfig()
	if err != nil {
		return err
	}
	b := authcore.New().
		WithConfig(cfg).
		WithLogger(log.Named("engine")).
		WithClientRegistry(registry).
		WithUserLookup(directory)
	if rdb != nil {
		// Redis holds codes, revocations and buckets; SQL keeps only
		// durable records.
		b.WithRedis(rdb)
	} else {
		b.WithCodeStore(codeStore)
		go pruneCodes(ctx, codeStore, time.Minute, log)
	}
	if s.Audit {
		b.WithAuditSink(authcore.NewZapSink(log.Named("audit")))
	}
	if s.ephemeralKeys() {
		log.Warn("using ephemeral signing keys; tokens will not survive a restart")
		b.WithEphemeralKeys()
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		promexport.NewCollector(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := httpapi.NewHandler(engine, httpapi.Options{
		Logger:            log.Named("http"),
		Metrics:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		TrustProxyHeaders: s.TrustProxy,
	})

	server := &http.Server{
		Addr:         s.Address,
		Handler:      handler.Routes(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("address", s.Address), zap.Bool("dev", s.Dev))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// openRedis connects to the configured redis, or starts miniredis in dev
// mode. It returns a nil client when neither applies.
func openRedis(ctx context.Context, s settings, log *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := s.RedisAddr
	var mr *miniredis.Miniredis
	if addr == "" && s.Dev {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		log.Info("started in-process redis", zap.String("addr", addr))
	}
	if addr == "" {
		log.Warn("no redis configured; codes, revocations and rate limits are per-process")
		return nil, func() {}, nil
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: s.RedisPassword,
		DB:       s.RedisDB,
	})
	cleanup := func() {
		_ = rdb.Close()
		if mr != nil {
			mr.Close()
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, cleanup, nil
}

func migrate(ctx context.Context, db *gorm.DB) (*clients.GormRegistry, *users.GormStore, *codes.GormStore, error) {
	registry := clients.NewGormRegistry(db)
	directory := users.NewGormStore(db)
	codeStore := codes.NewGormStore(db)
	if err := registry.Migrate(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate clients: %w", err)
	}
	if err := directory.Migrate(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate users: %w", err)
	}
	if err := codeStore.Migrate(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate codes: %w", err)
	}
	return registry, directory, codeStore, nil
}

// pruneCodes deletes expired rows until ctx is done.
func pruneCodes(ctx context.Context, store *codes.GormStore, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := store.DeleteExpired(ctx, now)
			if err != nil {
				log.Warn("prune authorization codes", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("pruned authorization codes", zap.Int64("count", n))
			}
		}
	}
}
