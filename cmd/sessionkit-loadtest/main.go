package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	sessionkit "github.com/verinews/sessionkit"
	"github.com/verinews/sessionkit/gatewaytest"
	"github.com/verinews/sessionkit/record"
)

type seededAccount struct {
	email    string
	password string
}

func main() {
	var (
		accounts    = flag.Int("accounts", 1000, "number of accounts to seed on the fake backend")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (login + restore)")
		backendURL  = flag.String("backend", "", "backend base URL incl. /api; if empty, an in-process fake backend is used")
		email       = flag.String("email", "", "existing account email (required with -backend)")
		password    = flag.String("password", "", "existing account password (required with -backend)")
		timeout     = flag.Duration("timeout", 10*time.Second, "per-request timeout")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	var (
		baseURL string
		seeded  []seededAccount
		cleanup func()
	)
	if *backendURL == "" {
		fake := gatewaytest.NewServer()
		cleanup = fake.Close
		baseURL = fake.URL()

		fmt.Printf("seeding %d accounts on fake backend...\n", *accounts)
		startSeed := time.Now()
		seeded = make([]seededAccount, *accounts)
		for i := 0; i < *accounts; i++ {
			acct := seededAccount{
				email:    fmt.Sprintf("user-%d@example.com", i),
				password: fmt.Sprintf("pw-%d", i),
			}
			fake.Seed(acct.email, acct.password, "Load", "Tester")
			seeded[i] = acct
		}
		fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))
		fmt.Printf("using fake backend at %s\n", baseURL)
	} else {
		if *email == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "-email and -password are required with -backend")
			os.Exit(2)
		}
		baseURL = *backendURL
		seeded = []seededAccount{{email: *email, password: *password}}
		cleanup = func() {}
		fmt.Printf("using backend at %s\n", baseURL)
	}
	defer cleanup()

	cfg := sessionkit.BackendConfig{BaseURL: baseURL, Timeout: *timeout}

	loginStats := runLoginPhase(ctx, cfg, seeded, *ops, *concurrency)
	restoreStats := runRestorePhase(ctx, cfg, seeded, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("restore", restoreStats)
}

func runLoginPhase(ctx context.Context, cfg sessionkit.BackendConfig, seeded []seededAccount, ops, concurrency int) phaseStats {
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

			// One record handle per worker, like one tab per browser.
			gw, err := sessionkit.NewHTTPGateway(cfg, record.NewMemory())
			if err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}

			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				acct := seeded[r.Intn(len(seeded))]
				t0 := time.Now()
				_, err := gw.Login(ctx, sessionkit.Credentials{Email: acct.email, Password: acct.password})
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRestorePhase(ctx context.Context, cfg sessionkit.BackendConfig, seeded []seededAccount, ops, concurrency int) phaseStats {
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

			records := record.NewMemory()
			gw, err := sessionkit.NewHTTPGateway(cfg, records)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}

			// Prime the record so every iteration exercises the full
			// restore-and-validate path.
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			acct := seeded[r.Intn(len(seeded))]
			if _, err := gw.Login(ctx, sessionkit.Credentials{Email: acct.email, Password: acct.password}); err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}

			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				user, err := gw.CurrentUser(ctx)
				d := time.Since(t0)
				if err != nil || user == nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
