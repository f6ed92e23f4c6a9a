package security

import (
	"errors"
	"testing"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	session, err := m.Issue(domain.User{ID: 42, Role: domain.RolePlayer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := m.Verify(session.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != 42 || p.Role != domain.RolePlayer || p.TokenID != session.TokenID {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	now := time.Now()
	m := NewTokenManagerWithClock("secret", time.Hour, func() time.Time { return now })
	session, err := m.Issue(domain.User{ID: 1, Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(time.Hour + time.Second)
	if _, err := m.Verify(session.Token); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	claims := Claims{
		Role: "SUPERUSER",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewTokenManager("secret", time.Hour).Verify(token); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	session, err := NewTokenManager("one", time.Hour).Issue(domain.User{ID: 1, Role: domain.RoleModerator})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenManager("two", time.Hour).Verify(session.Token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("pass123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "pass123" {
		t.Fatalf("hash must not equal the raw password")
	}
	if !h.Compare(hash, "pass123") || h.Compare(hash, "wrong") {
		t.Fatalf("compare mismatch")
	}
}

func TestScopedTokensCarryIdentityAndExpireEarly(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewTokenManagerWithClock("secret", time.Hour, func() time.Time { return now })

	session, err := m.Issue(domain.User{ID: 5, Email: "p@kviz.com", Role: domain.RolePlayer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := m.Verify(session.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Email != "p@kviz.com" || p.Scope != "" {
		t.Fatalf("unexpected session principal %+v", p)
	}

	scoped, err := m.IssueScoped(domain.User{ID: 5, Email: "p@kviz.com", Role: domain.RolePlayer}, domain.ScopeQuizService)
	if err != nil {
		t.Fatalf("issue scoped: %v", err)
	}
	if want := now.Add(ScopedTokenTTL); !scoped.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, scoped.ExpiresAt)
	}
	p, err = m.Verify(scoped.Token)
	if err != nil {
		t.Fatalf("verify scoped: %v", err)
	}
	if p.Scope != domain.ScopeQuizService || p.UserID != 5 || p.Email != "p@kviz.com" {
		t.Fatalf("unexpected scoped principal %+v", p)
	}

	if _, err := m.IssueScoped(domain.User{ID: 5, Role: domain.RolePlayer}, ""); err == nil {
		t.Fatal("expected an empty scope to be refused")
	}
}
