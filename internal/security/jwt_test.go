package security

import (
	"errors"
	"testing"
	"time"
)

func TestPeekClaimsReadsUnverifiedToken(t *testing.T) {
	issuer := NewTokenIssuer("chat-api", "secret-a")
	raw, err := issuer.Sign("user-1", "sid-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := PeekClaims(raw)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if claims.Subject != "user-1" || claims.SessionID != "sid-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	exp, ok := ExpiresAt(raw)
	if !ok {
		t.Fatal("expected exp claim")
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour+time.Second {
		t.Fatalf("unexpected expiry distance %s", d)
	}
}

func TestPeekClaimsRejectsOpaqueToken(t *testing.T) {
	if _, err := PeekClaims("tok-abc"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
	if _, ok := ExpiresAt("tok-abc"); ok {
		t.Fatal("opaque token must not report an expiry")
	}
}

func TestTokenIssuerParse(t *testing.T) {
	issuer := NewTokenIssuer("chat-api", "secret-a")
	raw, err := issuer.Sign("user-1", "sid-1", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Parse(raw); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := NewTokenIssuer("chat-api", "secret-b").Parse(raw); err == nil {
		t.Fatal("expected signature mismatch")
	}

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := issuer.Parse(raw); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
