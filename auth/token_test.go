package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(Session{UserID: "agent-1", Role: RoleAgent})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, role, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "agent-1" || role != RoleAgent {
		t.Fatalf("unexpected claims %s %s", userID, role)
	}

	if _, _, err := NewTokenIssuer("other-secret", time.Hour).Verify(token); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer("test-secret", time.Minute).WithClock(func() time.Time { return issued })
	token, err := issuer.Issue(Session{UserID: "seller-1", Role: RoleSeller})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	issuer.WithClock(func() time.Time { return issued.Add(time.Hour) })
	if _, _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestService_Authenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, svc)
	issuer := NewTokenIssuer("test-secret", time.Hour)

	sess, err := svc.Login(ctx, LoginRequest{Email: "admin@hh.dk", Password: "12345678"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	token, _ := issuer.Issue(sess)

	got, err := svc.Authenticate(ctx, issuer, token)
	if err != nil || got.UserID != "admin-test-1" {
		t.Fatalf("authenticate: %+v err=%v", got, err)
	}

	stale, _ := issuer.Issue(Session{UserID: "seller-9", Role: RoleSeller})
	if _, err := svc.Authenticate(ctx, issuer, stale); !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}

	_ = svc.Logout(ctx)
	if _, err := svc.Authenticate(ctx, issuer, token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after logout, got %v", err)
	}
}
