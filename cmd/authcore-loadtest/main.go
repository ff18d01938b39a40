// Command authcore-loadtest drives the engine against redis (or
// miniredis) and reports per-phase throughput and latency percentiles.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/clients"
	"github.com/MrEthical07/authcore/pkce"
	"github.com/MrEthical07/authcore/users"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
)

const (
	loadClientID    = "loadtest"
	loadRedirectURI = "http://127.0.0.1/cb"
)

// chain is one user's current refresh token. Rotation is serialized per
// chain so every attempt presents the live token.
type chain struct {
	user    authcore.UserInfo
	mu      sync.Mutex
	refresh string
	access  string
}

func main() {
	var (
		userCount   = flag.Int("users", 1000, "number of users to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *userCount <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() {
		_ = rdb.Close()
		if mr != nil {
			mr.Close()
		}
	}()

	directory := users.NewMemoryStore()
	for i := 0; i < *userCount; i++ {
		_ = directory.Put(users.User{
			ID:           fmt.Sprintf("u%d", i),
			Email:        fmt.Sprintf("user%d@load.test", i),
			PasswordHash: "unused",
			Roles:        []string{"user"},
			Active:       true,
		})
	}

	cfg := authcore.DefaultConfig()
	cfg.JWT.Issuer = "https://loadtest.local"
	cfg.RateLimit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true
	engine, err := authcore.New().
		WithConfig(cfg).
		WithEphemeralKeys().
		WithRedis(rdb).
		WithClientRegistry(clients.NewMemoryRegistry(clients.Client{
			ClientID:     loadClientID,
			RedirectURIs: []string{loadRedirectURI},
			IsPublic:     true,
		})).
		WithUserLookup(directory).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d token pairs...\n", *userCount)
	startSeed := time.Now()
	chains := make([]*chain, *userCount)
	for i := range chains {
		u := authcore.UserInfo{ID: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("user%d@load.test", i), Roles: []string{"user"}}
		pair, err := engine.IssueTokenPair(&u)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		chains[i] = &chain{user: u, refresh: pair.RefreshToken, access: pair.AccessToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	ctx := context.Background()
	results := []struct {
		name  string
		stats phaseStats
	}{
		{"authenticate", runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
			c := chains[r.Intn(len(chains))]
			c.mu.Lock()
			token := c.access
			c.mu.Unlock()
			_, err := engine.Authenticate(ctx, token)
			return err
		})},
		{"refresh", runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
			c := chains[r.Intn(len(chains))]
			c.mu.Lock()
			defer c.mu.Unlock()
			next, err := engine.Refresh(ctx, c.refresh)
			if err != nil {
				return err
			}
			c.refresh, c.access = next.RefreshToken, next.AccessToken
			return nil
		})},
		{"code-exchange", runPhase(*ops/4+1, *concurrency, func(r *rand.Rand, _ int) error {
			return exchangeOnce(ctx, engine, chains[r.Intn(len(chains))].user.ID)
		})},
	}

	fmt.Println("---- results ----")
	for _, res := range results {
		printStats(res.name, res.stats)
	}
}

// exchangeOnce runs authorize and token exchange for userID.
func exchangeOnce(ctx context.Context, engine *authcore.Engine, userID string) error {
	session, err := engine.NewSession(userID)
	if err != nil {
		return err
	}
	verifier, err := pkce.GenerateVerifier()
	if err != nil {
		return err
	}
	res, err := engine.Authorize(ctx, authcore.AuthorizeRequest{
		ClientID:            loadClientID,
		RedirectURI:         loadRedirectURI,
		ResponseType:        "code",
		CodeChallenge:       pkce.DeriveChallenge(verifier),
		CodeChallengeMethod: pkce.MethodS256,
	}, session)
	if err != nil {
		return err
	}
	tok, err := engine.ExchangeCode(ctx, authcore.TokenRequest{
		GrantType:    "authorization_code",
		Code:         res.Code,
		RedirectURI:  loadRedirectURI,
		ClientID:     loadClientID,
		CodeVerifier: verifier,
	})
	if err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return errors.New("empty access token")
	}
	return nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	if p <= 0 {
		return samples[0]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%-14s ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
