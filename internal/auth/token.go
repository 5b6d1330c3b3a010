package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"recipes_api/internal/models"
	"recipes_api/internal/storage"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
)

// Claims carries the user identity. No expiry is set.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	key []byte
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{key: []byte(secret)}
}

func (m *TokenManager) GenerateJWT(userID, email string) (string, error) {
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

func (m *TokenManager) ParseJWT(tokenStr string) (*Claims, error) {
	const op = "auth.ParseJWT"

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}

// UserStore is the part of the store the authenticator needs.
type UserStore interface {
	FindUser(ctx context.Context, filter models.UserFilter) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// Authenticator issues tokens at login and resolves them back to users.
type Authenticator struct {
	users     UserStore
	tokens    *TokenManager
	passwords PasswordScheme
}

func NewAuthenticator(users UserStore, tokens *TokenManager, passwords PasswordScheme) *Authenticator {
	return &Authenticator{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
	}
}

// Issue matches the credentials against the store and signs {id, email} of
// the matched user.
func (a *Authenticator) Issue(ctx context.Context, email, password string) (string, error) {
	const op = "auth.Issue"

	if email == "" || password == "" {
		return "", fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	user, err := a.users.FindUser(ctx, a.passwords.Filter(email, password))
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !a.passwords.Match(user.Password, password) {
		return "", fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	token, err := a.tokens.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Verify checks the signature and loads the full user the token points at.
// Every call costs one store round trip.
func (a *Authenticator) Verify(ctx context.Context, token string) (models.User, error) {
	const op = "auth.Verify"

	claims, err := a.tokens.ParseJWT(token)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
