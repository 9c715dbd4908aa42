package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
)

var testSecret = []byte("test-secret")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, clock *fakeClock) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSecret, 5*time.Minute, 24*time.Hour, clock.Now)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	if _, err := NewIssuer(nil, time.Minute, time.Hour, nil); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewIssuer(testSecret, 0, time.Hour, nil); err == nil {
		t.Error("expected error for zero access ttl")
	}
}

func TestIssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	pair, err := issuer.Issue(api.User{ID: 42, Email: "a@x.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatalf("expected non-empty token pair, got %+v", pair)
	}
	if pair.Access == pair.Refresh {
		t.Fatalf("access and refresh tokens must differ")
	}

	claims, err := issuer.Verify(pair.Access, TokenAccess)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.UserID != 42 || claims.Subject != "42" {
		t.Errorf("expected identity 42, got user_id=%d sub=%q", claims.UserID, claims.Subject)
	}
	if claims.ID == "" {
		t.Errorf("expected jti to be set")
	}
	if got := claims.ExpiresAt.Time.Sub(clock.t); got != 5*time.Minute {
		t.Errorf("expected 5m access lifetime, got %s", got)
	}

	refreshClaims, err := issuer.Verify(pair.Refresh, TokenRefresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if got := refreshClaims.ExpiresAt.Time.Sub(clock.t); got != 24*time.Hour {
		t.Errorf("expected 24h refresh lifetime, got %s", got)
	}
}

func TestVerifyRejects(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)
	pair, err := issuer.Issue(api.User{ID: 7})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewIssuer([]byte("another-secret"), time.Minute, time.Hour, clock.Now)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	foreign, err := other.Issue(api.User{ID: 7})
	if err != nil {
		t.Fatalf("issue foreign: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 7, TokenType: TokenAccess})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	testCases := []struct {
		name  string
		token string
		want  TokenType
	}{
		{name: "refresh used as access", token: pair.Refresh, want: TokenAccess},
		{name: "access used as refresh", token: pair.Access, want: TokenRefresh},
		{name: "other secret", token: foreign.Access, want: TokenAccess},
		{name: "garbage", token: "not.a.token", want: TokenAccess},
		{name: "empty", token: "", want: TokenAccess},
		{name: "alg none", token: unsigned, want: TokenAccess},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := issuer.Verify(tc.token, tc.want)
			if err == nil {
				t.Fatal("expected verification to fail")
			}
			if !errors.Is(err, apperr.New(apperr.CodeUnauthenticated, "")) {
				t.Errorf("expected UNAUTHENTICATED, got %v", err)
			}
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)
	pair, err := issuer.Issue(api.User{ID: 7})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.t = clock.t.Add(6 * time.Minute)

	if _, err := issuer.Verify(pair.Access, TokenAccess); err == nil {
		t.Fatal("expected expired access token to be rejected")
	}
	if _, err := issuer.Verify(pair.Refresh, TokenRefresh); err != nil {
		t.Fatalf("expected refresh token to still be valid: %v", err)
	}
}

func TestRefresh(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)
	pair, err := issuer.Issue(api.User{ID: 9})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.t = clock.t.Add(time.Hour)

	access, err := issuer.Refresh(pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := issuer.Verify(access, TokenAccess)
	if err != nil {
		t.Fatalf("verify refreshed access: %v", err)
	}
	if claims.UserID != 9 {
		t.Errorf("expected user 9, got %d", claims.UserID)
	}

	if _, err := issuer.Refresh(pair.Access); err == nil {
		t.Error("expected access token to be refused for refresh")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("p1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "p1" {
		t.Fatal("password stored in plain text")
	}

	ok, err := CheckPassword(hash, "p1")
	if err != nil || !ok {
		t.Errorf("expected match, got ok=%t err=%v", ok, err)
	}
	ok, err = CheckPassword(hash, "p2")
	if err != nil || ok {
		t.Errorf("expected mismatch without error, got ok=%t err=%v", ok, err)
	}
	if _, err := CheckPassword("not-a-hash", "p1"); err == nil {
		t.Error("expected error for corrupt hash")
	}
}
