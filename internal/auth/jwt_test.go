package auth

import (
	"testing"
	"time"

	"messaging-platform/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyHonorsSuppliedTimeAndLeeway(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	// Issued far in the past so any wall-clock validation would reject it.
	now := time.Unix(1500000000, 0).UTC()
	p, err := m.IssuePair(now, "u")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Within TTL, judged at the supplied instant.
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(30*time.Second)); err != nil {
		t.Fatalf("verify at supplied time: %v", err)
	}
	// Just past TTL but inside the 30s skew tolerance.
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Minute+20*time.Second)); err != nil {
		t.Fatalf("verify inside leeway: %v", err)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, "u")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Past the TTL plus the 30s leeway.
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(5*time.Minute)); err == nil {
		t.Fatalf("expected expiry error")
	}
}
