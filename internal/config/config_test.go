package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newValidViper() *viper.Viper {
	v := NewViper()
	v.Set("auth.signing_secret", "test-secret")
	v.Set("admin.email", "admin@example.com")
	v.Set("admin.password_hash", "$2a$10$testhash")
	return v
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(newValidViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "inkwell.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 60*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}
}

func TestLoadRejectsMissingRequiredValues(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "signing-secret", unset: "auth.signing_secret"},
		{name: "admin-email", unset: "admin.email"},
		{name: "admin-password-hash", unset: "admin.password_hash"},
		{name: "database-path", unset: "database.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidViper()
			v.Set(tt.unset, "   ")
			_, err := Load(v)
			if err == nil {
				t.Fatalf("expected an error with %s unset", tt.unset)
			}
			if !strings.Contains(err.Error(), tt.unset) {
				t.Fatalf("expected the error to name %s, got %v", tt.unset, err)
			}
		})
	}
}

func TestLoadRejectsNonPositiveTokenTTL(t *testing.T) {
	v := newValidViper()
	v.Set("token.ttl_minutes", 0)
	if _, err := Load(v); err == nil {
		t.Fatal("expected an error for a zero token ttl")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	v := newValidViper()
	v.Set("http.address", "127.0.0.1:9000")
	v.Set("token.ttl_minutes", 15)
	v.Set("mail.function_url", "https://functions.example.com/welcome")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.MailFunctionURL != "https://functions.example.com/welcome" {
		t.Fatalf("unexpected mail function url %q", cfg.MailFunctionURL)
	}
}
