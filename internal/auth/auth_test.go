package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, expiresAt, err := NewAccessToken("admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiry %v is not in the future", expiresAt)
	}

	claims, err := ParseAccessToken(token, "secret")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if claims.Username != "admin" || claims.Subject != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	valid, _, _ := NewAccessToken("admin", "secret", time.Hour)
	expired, _, _ := NewAccessToken("admin", "secret", -time.Minute)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "other"},
		{"expired", expired, "secret"},
		{"garbage", "not.a.token", "secret"},
		{"tampered", valid + "AA", "secret"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseAccessToken(tc.token, tc.secret); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if !CheckPasswordHash("hunter2", hash) {
		t.Fatalf("expected password to match")
	}
	if CheckPasswordHash("hunter3", hash) {
		t.Fatalf("expected mismatch")
	}
	if IsMalformedHash("hunter3", hash) {
		t.Fatalf("mismatch reported as malformed hash")
	}
	if !IsMalformedHash("hunter2", "plain") {
		t.Fatalf("expected malformed hash")
	}
}

func TestUsernameContext(t *testing.T) {
	if _, ok := GetUsernameFromContext(context.Background()); ok {
		t.Fatalf("expected no username")
	}
	ctx := WithUsername(context.Background(), "admin")
	if got, ok := GetUsernameFromContext(ctx); !ok || got != "admin" {
		t.Fatalf("got %q, %v", got, ok)
	}
}
