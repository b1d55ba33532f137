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

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	ownid "github.com/ownid/ownid-go"
	"github.com/ownid/ownid-go/backend"
	"github.com/ownid/ownid-go/flowhost"
	"github.com/ownid/ownid-go/internal/logger"
)

func main() {
	var (
		accounts    = flag.Int("accounts", 10000, "number of accounts to register")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "login operations")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "ownid", "key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	hcfg := flowhost.DefaultConfig()
	hcfg.KeyPrefix = *prefix
	host, err := flowhost.New(client, hcfg, flowhost.Always(flowhost.Approve), logger.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowhost: %v\n", err)
		os.Exit(1)
	}
	bcfg := backend.DefaultConfig()
	bcfg.KeyPrefix = *prefix
	bcfg.AssertionKey = host.PublicKey()
	svc, err := backend.New(client, bcfg, logger.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		os.Exit(1)
	}
	dispatcher := ownid.NewDispatcher(svc)

	emails := make([]string, *accounts)
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d@load.test", i)
	}

	registerStats := runPhase(host, dispatcher, len(emails), *concurrency, func(i int, _ *rand.Rand) (ownid.Purpose, string) {
		return ownid.PurposeRegister, emails[i]
	})
	loginStats := runPhase(host, dispatcher, *ops, *concurrency, func(_ int, r *rand.Rand) (ownid.Purpose, string) {
		return ownid.PurposeLogin, emails[r.Intn(len(emails))]
	})
	host.Wait()

	fmt.Println("---- results ----")
	printStats("register", registerStats)
	printStats("login", loginStats)
}

type pickFunc func(i int, r *rand.Rand) (ownid.Purpose, string)

// runPhase drives ops complete flows (intent, launch, dispatch) across
// concurrency workers. Any outcome other than success counts as a failure.
func runPhase(sdk ownid.SDK, dispatcher *ownid.Dispatcher, ops, concurrency int, pick pickFunc) phaseStats {
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
				purpose, email := pick(i, r)
				t0 := time.Now()
				err := runFlow(sdk, dispatcher, purpose, email)
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

func runFlow(sdk ownid.SDK, dispatcher *ownid.Dispatcher, purpose ownid.Purpose, email string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		intent ownid.Intent
		err    error
	)
	if purpose == ownid.PurposeRegister {
		intent, err = sdk.CreateRegisterIntent("en", email)
	} else {
		intent, err = sdk.CreateLoginIntent("en", email)
	}
	if err != nil {
		return err
	}

	ch := make(chan ownid.Response, 1)
	sdk.Launch(ctx, intent, func(resp ownid.Response) { ch <- resp })
	var resp ownid.Response
	select {
	case resp = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	outcome, err := dispatcher.Handle(ctx, resp, ownid.Identity{DisplayName: "Load", Email: email})
	if err != nil {
		return err
	}
	if outcome.Kind == ownid.OutcomeFailed {
		return fmt.Errorf("%s %s: %s", purpose, email, outcome.Message)
	}
	return nil
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
