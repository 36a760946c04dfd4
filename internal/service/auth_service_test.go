package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	svc, err := NewAuthService("admin", "changeme", "secret", time.Minute)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	tok, err := svc.Login(context.Background(), "admin", "changeme")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.TokenType != "bearer" || tok.AccessToken == "" {
		t.Errorf("token: got %+v", tok)
	}
	sub, err := svc.Verify(tok.AccessToken)
	if err != nil || sub != "admin" {
		t.Errorf("Verify: got %q, %v", sub, err)
	}

	for _, creds := range [][2]string{{"admin", "wrong"}, {"root", "changeme"}, {"", ""}} {
		if _, err := svc.Login(context.Background(), creds[0], creds[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q): got %v, want ErrInvalidCredentials", creds[0], creds[1], err)
		}
	}
}

func TestAuthService_VerifyRejectsForeignToken(t *testing.T) {
	t.Parallel()

	a, _ := NewAuthService("admin", "pw", "secret-a", time.Minute)
	b, _ := NewAuthService("admin", "pw", "secret-b", time.Minute)

	tok, err := a.Login(context.Background(), "admin", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := b.Verify(tok.AccessToken); err == nil {
		t.Error("token signed with another secret was accepted")
	}
}
