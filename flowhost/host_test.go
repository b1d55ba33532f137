package flowhost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	ownid "github.com/ownid/ownid-go"
	"github.com/ownid/ownid-go/internal/logger"
	"github.com/ownid/ownid-go/jwt"
)

func newTestHost(t *testing.T, approver Approver) (*Host, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h, err := New(rdb, DefaultConfig(), approver, logger.Discard())
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	return h, mr
}

func launch(t *testing.T, h *Host, ctx context.Context, purpose ownid.Purpose, email string) ownid.Response {
	t.Helper()
	var (
		intent ownid.Intent
		err    error
	)
	if purpose == ownid.PurposeRegister {
		intent, err = h.CreateRegisterIntent("en", email)
	} else {
		intent, err = h.CreateLoginIntent("en", email)
	}
	if err != nil {
		t.Fatalf("intent: %v", err)
	}
	if intent.Purpose != purpose || intent.ID == "" {
		t.Fatalf("unexpected intent: %+v", intent)
	}

	ch := make(chan ownid.Response, 2)
	h.Launch(ctx, intent, func(r ownid.Response) { ch <- r })
	h.Wait()
	if len(ch) != 1 {
		t.Fatalf("expected exactly one response, got %d", len(ch))
	}
	return <-ch
}

func TestApprovedFlowCarriesSignedAssertion(t *testing.T) {
	h, _ := newTestHost(t, Always(Approve))
	resp := launch(t, h, context.Background(), ownid.PurposeRegister, "User@Example.com")
	if resp.Err != nil || resp.Result == nil {
		t.Fatalf("expected result, got err %v", resp.Err)
	}
	if resp.ResultCode != ownid.ResultOK || resp.Result.Purpose != ownid.PurposeRegister {
		t.Fatalf("unexpected response: %+v", resp)
	}

	verifier, err := jwt.NewManager(jwt.Config{TTL: time.Minute, SigningMethod: jwt.MethodEd25519, PublicKey: h.PublicKey(), Issuer: "ownid-flowhost"})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	claims, err := verifier.ParseAssertion(resp.Result.Data)
	if err != nil {
		t.Fatalf("parse assertion: %v", err)
	}
	if claims.Nonce != resp.Result.Nonce || claims.Email != "user@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.CredentialID != CredentialID("user@example.com") {
		t.Fatalf("expected stable credential id, got %q", claims.CredentialID)
	}

	rec, err := h.nonces.Peek(context.Background(), resp.Result.Nonce)
	if err != nil {
		t.Fatalf("expected nonce recorded: %v", err)
	}
	if rec.Purpose != "register" {
		t.Fatalf("unexpected nonce record: %+v", rec)
	}
}

func TestCancelledFlow(t *testing.T) {
	h, _ := newTestHost(t, Always(Cancel))
	resp := launch(t, h, context.Background(), ownid.PurposeLogin, "a@b.co")
	if resp.ResultCode != ownid.ResultCanceled || !errors.Is(resp.Err, ownid.ErrCancelled) {
		t.Fatalf("expected cancelled response, got %+v", resp)
	}
}

func TestContextCancelledFlow(t *testing.T) {
	block := ApproverFunc(func(ctx context.Context, _ ownid.Intent) (Decision, error) {
		<-ctx.Done()
		return Approve, ctx.Err()
	})
	h, _ := newTestHost(t, block)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := launch(t, h, ctx, ownid.PurposeLogin, "a@b.co")
	if !ownid.IsCancelled(resp.Err) {
		t.Fatalf("expected cancellation, got %+v", resp)
	}
}

func TestAbandonedAfterApprovalIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, _ := newTestHost(t, ApproverFunc(func(context.Context, ownid.Intent) (Decision, error) {
		cancel()
		return Approve, nil
	}))

	resp := launch(t, h, ctx, ownid.PurposeRegister, "a@b.co")
	if resp.ResultCode != ownid.ResultCanceled || !errors.Is(resp.Err, ownid.ErrCancelled) {
		t.Fatalf("expected cancelled response, got code=%d err=%v", resp.ResultCode, resp.Err)
	}
	if resp.Result != nil {
		t.Fatalf("expected no result, got %+v", resp.Result)
	}
	if ownid.KindOf(resp.Err) == ownid.KindServerError {
		t.Fatal("abandonment must not be reported as a server error")
	}
}

func TestApproverErrorIsServerError(t *testing.T) {
	h, _ := newTestHost(t, ApproverFunc(func(context.Context, ownid.Intent) (Decision, error) {
		return Approve, errors.New("device unreachable")
	}))
	resp := launch(t, h, context.Background(), ownid.PurposeLogin, "a@b.co")
	if ownid.KindOf(resp.Err) != ownid.KindServerError || resp.Err.Error() != "device unreachable" {
		t.Fatalf("expected serverError with message, got %v", resp.Err)
	}
}

func TestRejectedFlow(t *testing.T) {
	h, _ := newTestHost(t, Always(Reject))
	resp := launch(t, h, context.Background(), ownid.PurposeLogin, "a@b.co")
	if ownid.KindOf(resp.Err) != ownid.KindOther {
		t.Fatalf("expected other kind, got %v", resp.Err)
	}
}

func TestNonceStoreDownIsServerError(t *testing.T) {
	h, mr := newTestHost(t, Always(Approve))
	mr.Close()
	resp := launch(t, h, context.Background(), ownid.PurposeLogin, "a@b.co")
	if ownid.KindOf(resp.Err) != ownid.KindServerError {
		t.Fatalf("expected serverError, got %v", resp.Err)
	}
}

func TestIntentRequiresLocale(t *testing.T) {
	h, _ := newTestHost(t, Always(Approve))
	if _, err := h.CreateLoginIntent(" ", "a@b.co"); err == nil {
		t.Fatal("expected empty locale to be rejected")
	}
}
