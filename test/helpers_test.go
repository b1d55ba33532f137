//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	ownid "github.com/ownid/ownid-go"
	"github.com/ownid/ownid-go/backend"
	"github.com/ownid/ownid-go/flowhost"
	"github.com/ownid/ownid-go/internal/logger"
	"github.com/ownid/ownid-go/password"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the Redis backends to test. miniredis is always
// available; a real server is added when REDIS_ADDR is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}
	return modes
}

// stack is a flow host, backend and client sharing one Redis.
type stack struct {
	rdb     redis.UniversalClient
	host    *flowhost.Host
	backend *backend.Service
	client  *ownid.Client
	sink    *ownid.ChannelSink
}

func newStack(t *testing.T, rdb redis.UniversalClient, approver flowhost.Approver) *stack {
	t.Helper()

	host, err := flowhost.New(rdb, flowhost.DefaultConfig(), approver, logger.Discard())
	if err != nil {
		t.Fatalf("flowhost: %v", err)
	}

	bcfg := backend.DefaultConfig()
	bcfg.AssertionKey = host.PublicKey()
	bcfg.Password = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	svc, err := backend.New(rdb, bcfg, logger.Discard())
	if err != nil {
		t.Fatalf("backend: %v", err)
	}

	cfg := ownid.DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	sink := ownid.NewChannelSink(64)
	client, err := ownid.New().
		WithConfig(cfg).
		WithSDK(host).
		WithBackend(svc).
		WithAuditSink(sink).
		WithLogger(logger.Discard()).
		Build()
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() {
		host.Wait()
		client.Close()
	})
	return &stack{rdb: rdb, host: host, backend: svc, client: client, sink: sink}
}

// run starts one flow through the client and waits for its outcome.
func (s *stack) run(t *testing.T, purpose ownid.Purpose, email string) (ownid.Outcome, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if purpose == ownid.PurposeRegister {
		err = s.client.StartRegister(ctx, email)
	} else {
		err = s.client.StartLogin(ctx, email)
	}
	if err != nil {
		t.Fatalf("start %s: %v", purpose, err)
	}
	return s.client.Await(ctx)
}

// result runs an approved flow directly against the host.
func (s *stack) result(t *testing.T, purpose ownid.Purpose, email string) ownid.FlowResult {
	t.Helper()
	var (
		intent ownid.Intent
		err    error
	)
	if purpose == ownid.PurposeRegister {
		intent, err = s.host.CreateRegisterIntent("en", email)
	} else {
		intent, err = s.host.CreateLoginIntent("en", email)
	}
	if err != nil {
		t.Fatalf("intent: %v", err)
	}
	ch := make(chan ownid.Response, 1)
	s.host.Launch(context.Background(), intent, func(r ownid.Response) { ch <- r })
	resp := <-ch
	if resp.Err != nil || resp.Result == nil {
		t.Fatalf("flow failed: %v", resp.Err)
	}
	return *resp.Result
}
