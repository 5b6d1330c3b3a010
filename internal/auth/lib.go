package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"recipes_api/internal/models"
)

const (
	SchemePlain  = "plain"
	SchemeBcrypt = "bcrypt"
)

// PasswordScheme decides how credentials are stored and matched.
type PasswordScheme interface {
	Name() string
	// Hash returns the value to persist for a new password.
	Hash(password string) (string, error)
	// Filter returns the store lookup used at login.
	Filter(email, password string) models.UserFilter
	// Match checks a supplied password against the stored value.
	Match(stored, supplied string) bool
}

func NewPasswordScheme(name string) (PasswordScheme, error) {
	switch name {
	case SchemePlain:
		return plainScheme{}, nil
	case SchemeBcrypt, "":
		return bcryptScheme{cost: bcrypt.DefaultCost}, nil
	}
	return nil, fmt.Errorf("auth.NewPasswordScheme: unknown password scheme %q", name)
}

// plainScheme stores passwords as given and lets the store match them with an
// exact {email, password} filter. Kept for stores populated that way.
type plainScheme struct{}

func (plainScheme) Name() string { return SchemePlain }

func (plainScheme) Hash(password string) (string, error) {
	return password, nil
}

func (plainScheme) Filter(email, password string) models.UserFilter {
	return models.UserFilter{Email: email, Password: password}
}

func (plainScheme) Match(stored, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

type bcryptScheme struct {
	cost int
}

func (bcryptScheme) Name() string { return SchemeBcrypt }

func (s bcryptScheme) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	return string(bytes), err
}

func (bcryptScheme) Filter(email, _ string) models.UserFilter {
	return models.UserFilter{Email: email}
}

func (bcryptScheme) Match(stored, supplied string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
}
