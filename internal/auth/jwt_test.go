package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/omchandarana/geogate/internal/auth"
)

func TestIssueVerify_Roundtrip(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	token, err := m.Issue(42, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if claims.UserID != 42 {
		t.Fatalf("got userID %d, want 42", claims.UserID)
	}

	if claims.Email != "a@b.com" {
		t.Fatalf("got email %q, want a@b.com", claims.Email)
	}

	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatal("expected iat and exp claims to be set")
	}
}

func TestVerify_ExpiredIsDistinct(t *testing.T) {
	// negative TTL issues an already-expired token
	m := auth.NewManager("test-secret", -time.Minute)

	token, err := m.Issue(1, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	_, err = m.Verify(token)

	if !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := auth.NewManager("secret-one", time.Hour)
	verifier := auth.NewManager("secret-two", time.Hour)

	token, err := issuer.Issue(1, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	_, err = verifier.Verify(token)

	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}

	if errors.Is(err, auth.ErrTokenExpired) {
		t.Fatal("bad signature must not be reported as expiry")
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	token, err := m.Issue(1, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}

	// flip a byte in the payload segment
	payload := []byte(parts[1])
	payload[0] ^= 0x01
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = m.Verify(tampered)

	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	_, err := m.Verify("garbage")

	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}
