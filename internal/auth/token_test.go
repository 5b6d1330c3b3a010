package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipes_api/internal/models"
	"recipes_api/internal/storage"
	"recipes_api/internal/storage/memory"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret)

	token, err := m.GenerateJWT("u1", "a@b.com")
	require.NoError(t, err)

	claims, err := m.ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.NotNil(t, claims.IssuedAt)
	assert.Nil(t, claims.ExpiresAt)
}

func TestParseJWTRejects(t *testing.T) {
	m := NewTokenManager(testSecret)

	valid, err := m.GenerateJWT("u1", "a@b.com")
	require.NoError(t, err)

	otherKey, err := NewTokenManager("other-secret").GenerateJWT("u1", "a@b.com")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Email: "a@b.com"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"tampered signature", valid[:len(valid)-2] + "xx"},
		{"other secret", otherKey},
		{"alg none", unsigned},
		{"no user id", noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ParseJWT(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"lower case scheme", "bearer abc", "abc", false},
		{"empty", "", "", true},
		{"scheme only", "Bearer ", "", true},
		{"basic", "Basic dXNlcjpwYXNz", "", true},
		{"raw token", "abc.def.ghi", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newAuthenticator(t *testing.T, scheme string) (*Authenticator, *memory.Storage) {
	t.Helper()

	passwords, err := NewPasswordScheme(scheme)
	require.NoError(t, err)

	st := memory.New()
	stored, err := passwords.Hash("pw")
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(context.Background(), models.NewUser{Email: "a@b.com", Password: stored, Active: true}))

	return NewAuthenticator(st, NewTokenManager(testSecret), passwords), st
}

func TestAuthenticatorIssueVerify(t *testing.T) {
	for _, scheme := range []string{SchemePlain, SchemeBcrypt} {
		t.Run(scheme, func(t *testing.T) {
			a, _ := newAuthenticator(t, scheme)
			ctx := context.Background()

			first, err := a.Issue(ctx, "a@b.com", "pw")
			require.NoError(t, err)
			second, err := a.Issue(ctx, "a@b.com", "pw")
			require.NoError(t, err)

			u1, err := a.Verify(ctx, first)
			require.NoError(t, err)
			u2, err := a.Verify(ctx, second)
			require.NoError(t, err)

			assert.Equal(t, "a@b.com", u1.Email)
			assert.Equal(t, u1.ID, u2.ID)
		})
	}
}

func TestAuthenticatorIssueRejects(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "a@b.com", "nope"},
		{"unknown email", "x@y.com", "pw"},
		{"empty password", "a@b.com", ""},
		{"empty email", "", "pw"},
	}

	for _, scheme := range []string{SchemePlain, SchemeBcrypt} {
		a, _ := newAuthenticator(t, scheme)
		for _, tt := range tests {
			t.Run(scheme+"/"+tt.name, func(t *testing.T) {
				_, err := a.Issue(context.Background(), tt.email, tt.password)
				assert.ErrorIs(t, err, ErrUserNotFound)
			})
		}
	}
}

func TestBcryptSchemeDoesNotStorePlainText(t *testing.T) {
	_, st := newAuthenticator(t, SchemeBcrypt)

	user, err := st.FindUser(context.Background(), models.UserFilter{Email: "a@b.com"})
	require.NoError(t, err)
	assert.NotEqual(t, "pw", user.Password)
}

// goneUsers answers every lookup with not found, as after the user was removed.
type goneUsers struct{}

func (goneUsers) FindUser(context.Context, models.UserFilter) (models.User, error) {
	return models.User{}, storage.ErrNotFound
}

func (goneUsers) GetUserByID(context.Context, string) (models.User, error) {
	return models.User{}, storage.ErrNotFound
}

func TestVerifyDeletedUser(t *testing.T) {
	tokens := NewTokenManager(testSecret)
	token, err := tokens.GenerateJWT("u1", "a@b.com")
	require.NoError(t, err)

	a := NewAuthenticator(goneUsers{}, tokens, plainScheme{})

	_, err = a.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestNewPasswordScheme(t *testing.T) {
	s, err := NewPasswordScheme("")
	require.NoError(t, err)
	assert.Equal(t, SchemeBcrypt, s.Name())

	_, err = NewPasswordScheme("md5")
	assert.Error(t, err)
}
