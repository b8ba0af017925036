package auth

import (
	"errors"
	"testing"
)

func newTestAuthenticator(t *testing.T, email, password string) *Authenticator {
	t.Helper()
	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("unexpected hash error: %v", err)
	}
	authenticator, err := NewAuthenticator(email, hashed)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return authenticator
}

func TestAuthenticateAcceptsConfiguredCredential(t *testing.T) {
	authenticator := newTestAuthenticator(t, "Admin@Example.com", "correct horse")

	subject, err := authenticator.Authenticate("admin@example.com", "correct horse")
	if err != nil {
		t.Fatalf("unexpected authentication error: %v", err)
	}
	if subject != "admin@example.com" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestAuthenticateNormalizesEmailCase(t *testing.T) {
	authenticator := newTestAuthenticator(t, "admin@example.com", "correct horse")
	if _, err := authenticator.Authenticate("  ADMIN@example.COM ", "correct horse"); err != nil {
		t.Fatalf("unexpected authentication error: %v", err)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	authenticator := newTestAuthenticator(t, "admin@example.com", "correct horse")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong-password", email: "admin@example.com", password: "battery staple"},
		{name: "unknown-email", email: "intruder@example.com", password: "correct horse"},
		{name: "both-wrong", email: "intruder@example.com", password: "battery staple"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := authenticator.Authenticate(tt.email, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestNewAuthenticatorRequiresConfiguration(t *testing.T) {
	if _, err := NewAuthenticator("", "hash"); err == nil {
		t.Fatal("expected an error without an admin email")
	}
	if _, err := NewAuthenticator("admin@example.com", "  "); err == nil {
		t.Fatal("expected an error without a password hash")
	}
}
