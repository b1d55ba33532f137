package password

import (
	"errors"
	"strings"
	"testing"
)

func testParams() Params {
	return Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newHasher(t *testing.T, p Params) *Hasher {
	t.Helper()
	h, err := NewHasher(p)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newHasher(t, testParams())

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.Verify("correct horse", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong horse", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail cleanly, ok=%v err=%v", ok, err)
	}
}

func TestHashSaltsEachCall(t *testing.T) {
	h := newHasher(t, testParams())
	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Fatal("expected distinct hashes for repeated passwords")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := newHasher(t, testParams())
	if _, err := h.Hash("abc"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newHasher(t, testParams())
	for _, enc := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2hvcnQ$aGFzaA",
	} {
		if _, err := h.Verify("whatever", enc); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("expected ErrMalformedHash for %q, got %v", enc, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := newHasher(t, testParams())
	hash, err := weak.Hash("some-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if need, _ := weak.NeedsRehash(hash); need {
		t.Fatal("expected same params to not need rehash")
	}
	strong := testParams()
	strong.Time = 3
	if need, _ := newHasher(t, strong).NeedsRehash(hash); !need {
		t.Fatal("expected stronger params to need rehash")
	}
}

func TestNewHasherRejectsWeakParams(t *testing.T) {
	p := testParams()
	p.Memory = 1024
	if _, err := NewHasher(p); err == nil {
		t.Fatal("expected weak memory to be rejected")
	}
	p = testParams()
	p.SaltLength = 8
	if _, err := NewHasher(p); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}
