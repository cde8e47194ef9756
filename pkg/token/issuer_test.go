package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	iss := NewIssuer("super-secret", time.Hour)
	tok, err := iss.Issue("ana")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	sub, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if sub != "ana" {
		t.Fatalf("subject mismatch: got %q want %q", sub, "ana")
	}
}

func TestIssueIsDeterministic(t *testing.T) {
	t.Parallel()

	clock := fixedClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	a, _ := NewIssuer("k", time.Hour, WithClock(clock)).Issue("ana")
	b, _ := NewIssuer("k", time.Hour, WithClock(clock)).Issue("ana")
	if a != b {
		t.Fatalf("expected identical tokens for fixed secret and clock")
	}
}

func TestVerifyExpiredAfterTTL(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ttl := 10 * time.Minute
	tok, err := NewIssuer("k", ttl, WithClock(fixedClock(issuedAt))).Issue("ana")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	for _, after := range []time.Duration{ttl + time.Second, ttl + time.Hour, 48 * time.Hour} {
		verifier := NewIssuer("k", ttl, WithClock(fixedClock(issuedAt.Add(after))))
		if _, err := verifier.Verify(tok); err != ErrExpired {
			t.Fatalf("at issue+%s expected ErrExpired, got %v", after, err)
		}
	}

	verifier := NewIssuer("k", ttl, WithClock(fixedClock(issuedAt.Add(ttl-time.Second))))
	if _, err := verifier.Verify(tok); err != nil {
		t.Fatalf("token should still be valid just before expiry, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	tok, _ := NewIssuer("right-secret", time.Hour).Issue("ana")
	if _, err := NewIssuer("wrong-secret", time.Hour).Verify(tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	iss := NewIssuer("k", time.Hour)
	for _, s := range []string{"", "not.a.jwt", "abc"} {
		if _, err := iss.Verify(s); err != ErrInvalidToken {
			t.Fatalf("Verify(%q): expected ErrInvalidToken, got %v", s, err)
		}
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := jwt.RegisteredClaims{
		Subject:   "ana",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewIssuer("k", time.Hour).Verify(tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for HS512 token, got %v", err)
	}
}

func TestVerifyRequiresSubjectAndExpiry(t *testing.T) {
	t.Parallel()

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ana"}).SignedString([]byte("k"))
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("k"))

	iss := NewIssuer("k", time.Hour)
	if _, err := iss.Verify(noExp); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken without exp, got %v", err)
	}
	if _, err := iss.Verify(noSub); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken without sub, got %v", err)
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	t.Parallel()

	if _, err := NewIssuer("k", time.Hour).Issue("  "); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}
