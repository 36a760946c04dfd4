package util

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWT_RoundTrip(t *testing.T) {
	t.Parallel()

	tok, err := GenerateJWT("admin", "secret", time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	sub, err := ParseJWT(tok, "secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if sub != "admin" {
		t.Errorf("subject: got %q, want %q", sub, "admin")
	}
}

func TestJWT_Rejects(t *testing.T) {
	t.Parallel()

	expired, _ := GenerateJWT("admin", "secret", -time.Minute)
	valid, _ := GenerateJWT("admin", "secret", time.Minute)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"expired", expired, "secret"},
		{"wrong secret", valid, "other"},
		{"alg none", none, "secret"},
		{"garbage", "not-a-token", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseJWT(tt.token, tt.secret); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer abc", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractToken(r)
		if tt.wantErr {
			if !errors.Is(err, ErrNoBearerToken) {
				t.Errorf("%q: got %v, want ErrNoBearerToken", tt.header, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%q: got %q, %v; want %q", tt.header, got, err, tt.want)
		}
	}
}

func TestPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("hunter2", hash) {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword("hunter3", hash) {
		t.Error("CheckPassword accepted the wrong password")
	}
}
