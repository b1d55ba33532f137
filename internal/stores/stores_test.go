package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAccountCreateGet(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewAccountStore(rdb, "")
	ctx := context.Background()

	if err := s.Create(ctx, &Account{UID: "u1", Email: "User@Example.com", DisplayName: "User"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	acct, err := s.Get(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.UID != "u1" || acct.CreatedAt.IsZero() {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if err := s.Create(ctx, &Account{UID: "u2", Email: "user@example.com"}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if _, err := s.Get(ctx, "nobody@example.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountLinkCredential(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewAccountStore(rdb, "")
	ctx := context.Background()

	if err := s.Create(ctx, &Account{UID: "u1", Email: "a@b.co", PasswordHash: "h"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 2; i++ {
		acct, err := s.LinkCredential(ctx, "a@b.co", "cred-1")
		if err != nil {
			t.Fatalf("link: %v", err)
		}
		if len(acct.Credentials) != 1 || !acct.HasCredential("cred-1") {
			t.Fatalf("expected one linked credential, got %v", acct.Credentials)
		}
	}
	if _, err := s.LinkCredential(ctx, "missing@b.co", "c"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountUpdateAbortKeepsRecord(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewAccountStore(rdb, "")
	ctx := context.Background()
	_ = s.Create(ctx, &Account{UID: "u1", Email: "a@b.co"})

	abort := errors.New("abort")
	_, err := s.Update(ctx, "a@b.co", func(a *Account) error {
		a.DisplayName = "changed"
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected abort error, got %v", err)
	}
	acct, _ := s.Get(ctx, "a@b.co")
	if acct.DisplayName != "" {
		t.Fatalf("expected aborted update to not persist, got %q", acct.DisplayName)
	}
}

func TestAccountRedisUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewAccountStore(rdb, "")
	mr.Close()
	if _, err := s.Get(context.Background(), "a@b.co"); !errors.Is(err, ErrAccountRedisUnavailable) {
		t.Fatalf("expected ErrAccountRedisUnavailable, got %v", err)
	}
}

func TestStoresKeepContextCancellation(t *testing.T) {
	_, rdb := newTestRedis(t)
	accounts := NewAccountStore(rdb, "")
	nonces := NewNonceStore(rdb, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := accounts.Get(ctx, "a@b.co"); !errors.Is(err, ErrAccountRedisUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected unavailable wrapping context.Canceled, got %v", err)
	}
	if _, err := nonces.Peek(ctx, "n1"); !errors.Is(err, ErrNonceRedisUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected unavailable wrapping context.Canceled, got %v", err)
	}
}

func TestNoncePeekThenConsume(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewNonceStore(rdb, "")
	ctx := context.Background()

	rec := &NonceRecord{Purpose: "login", Email: "a@b.co", IntentID: "i-1"}
	if err := s.Save(ctx, "n1", rec, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, "n1", rec, time.Minute); !errors.Is(err, ErrNonceExists) {
		t.Fatalf("expected ErrNonceExists, got %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := s.Peek(ctx, "n1")
		if err != nil {
			t.Fatalf("peek %d: %v", i, err)
		}
		if got.Email != "a@b.co" || got.Purpose != "login" || got.IntentID != "i-1" {
			t.Fatalf("unexpected record: %+v", got)
		}
	}

	if _, err := s.Consume(ctx, "n1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := s.Consume(ctx, "n1"); !errors.Is(err, ErrNonceNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
	if _, err := s.Peek(ctx, "n1"); !errors.Is(err, ErrNonceNotFound) {
		t.Fatalf("expected consumed nonce to be gone, got %v", err)
	}
}

func TestNonceExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewNonceStore(rdb, "")
	ctx := context.Background()

	if err := s.Save(ctx, "n1", &NonceRecord{Purpose: "register", Email: "a@b.co"}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Peek(ctx, "n1"); !errors.Is(err, ErrNonceNotFound) {
		t.Fatalf("expected expired nonce, got %v", err)
	}
}

func TestNonceRecordRejectsCorruptData(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewNonceStore(rdb, "")
	if err := mr.Set(s.key("n1"), "\x02garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Peek(context.Background(), "n1"); !errors.Is(err, ErrNonceRedisUnavailable) {
		t.Fatalf("expected decode failure, got %v", err)
	}
}
