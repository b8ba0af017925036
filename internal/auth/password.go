package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed sign-in attempt. The same
// error covers unknown email and wrong password so the two are
// indistinguishable to a caller.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Authenticator checks the configured admin credential.
type Authenticator struct {
	adminEmail   string
	passwordHash []byte
}

// NewAuthenticator constructs an Authenticator for the single admin account.
func NewAuthenticator(adminEmail, passwordHash string) (*Authenticator, error) {
	email := strings.ToLower(strings.TrimSpace(adminEmail))
	if email == "" {
		return nil, errors.New("auth: admin email is required")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, errors.New("auth: admin password hash is required")
	}
	return &Authenticator{
		adminEmail:   email,
		passwordHash: []byte(passwordHash),
	}, nil
}

// Authenticate verifies the email and password and returns the session
// subject on success.
func (a *Authenticator) Authenticate(email, password string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized != a.adminEmail {
		// keep timing uniform across both failure modes
		_ = bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.adminEmail, nil
}

// HashPassword produces a bcrypt hash suitable for the admin.password_hash
// configuration value.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
