package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the session token claims: sub is the user id, role the stored role value.
// Scope is empty for browser sessions.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// ScopedTokenTTL caps the lifetime of scoped tokens.
const ScopedTokenTTL = 5 * time.Minute

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: time.Now}
}

// NewTokenManagerWithClock is test-only for deterministic expiry.
func NewTokenManagerWithClock(secret string, ttl time.Duration, now func() time.Time) *TokenManager {
	m := NewTokenManager(secret, ttl)
	m.clock = now
	return m
}

func (m *TokenManager) Issue(user domain.User) (domain.Session, error) {
	return m.issue(user, "", m.ttl)
}

// IssueScoped signs a short-lived token limited to scope.
func (m *TokenManager) IssueScoped(user domain.User, scope string) (domain.Session, error) {
	if scope == "" {
		return domain.Session{}, errors.New("issue token: empty scope")
	}
	ttl := m.ttl
	if ttl > ScopedTokenTTL {
		ttl = ScopedTokenTTL
	}
	return m.issue(user, scope, ttl)
}

func (m *TokenManager) issue(user domain.User, scope string, ttl time.Duration) (domain.Session, error) {
	if !user.Role.Valid() {
		return domain.Session{}, fmt.Errorf("issue token: unknown role %q", user.Role)
	}
	now := m.clock()
	expires := now.Add(ttl)
	claims := Claims{
		Email: user.Email,
		Role:  string(user.Role),
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.Session{Token: signed, TokenID: claims.ID, ExpiresAt: expires, User: user}, nil
}

// Verify rejects tokens with a bad signature, a non-HMAC algorithm, an expired lifetime,
// a malformed subject or a role outside the known set.
func (m *TokenManager) Verify(token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, domain.Unauthenticated("missing session token")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.clock), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, domain.Unauthenticated("session expired")
		}
		return domain.Principal{}, domain.Unauthenticated("invalid session token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return domain.Principal{}, domain.Unauthenticated("invalid session token")
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return domain.Principal{}, domain.Unauthenticated("invalid session token")
	}
	return domain.Principal{
		UserID:    userID,
		Email:     claims.Email,
		Role:      role,
		Scope:     claims.Scope,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		Token:     token,
	}, nil
}
