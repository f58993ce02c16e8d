package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	return NewService("test-secret", time.Hour, "admin", hash)
}

func TestLoginRoundTrip(t *testing.T) {
	s := newTestService(t)
	token, err := s.Login("admin", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" || !claims.IsAdmin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestService(t)
	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"root", "hunter2"},
	} {
		if _, err := s.Login(tc.user, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q) err = %v, want ErrInvalidCredentials", tc.user, tc.pass, err)
		}
	}
}

func TestLoginWithoutAdmin(t *testing.T) {
	s := NewService("secret", 0, "admin", "")
	if _, err := s.Login("admin", ""); !errors.Is(err, ErrNoAdmin) {
		t.Errorf("err = %v, want ErrNoAdmin", err)
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	token, err := NewService("other", time.Hour, "admin", "").GenerateToken("admin", true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newTestService(t).ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	s := NewService("secret", -time.Minute, "admin", "")
	token, err := s.GenerateToken("admin", true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
