package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipes_api/internal/models"
	"recipes_api/internal/storage"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField string
		wantRule  string
	}{
		{"duplicate email", &pgconn.PgError{Code: codeUnique, ConstraintName: "users_email_key"}, "email", models.RuleUnique},
		{"empty email", &pgconn.PgError{Code: codeCheck, ConstraintName: "users_email_required"}, "email", models.RuleRequired},
		{"empty password", &pgconn.PgError{Code: codeCheck, ConstraintName: "users_password_required"}, "password", models.RuleRequired},
		{"null column", &pgconn.PgError{Code: codeNotNull, ColumnName: "title"}, "title", models.RuleRequired},
		{"unknown owner", &pgconn.PgError{Code: codeForeignKey, ConstraintName: "recipes_user_id_fkey"}, "user", models.RuleInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err)

			var upstream *storage.UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, 400, upstream.Status)
			assert.Contains(t, string(upstream.Body), `"field":"`+tt.wantField+`"`)
			assert.Contains(t, string(upstream.Body), tt.wantRule)
		})
	}

	assert.ErrorIs(t, translateError(pgx.ErrNoRows), storage.ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, translateError(other))

	syntax := &pgconn.PgError{Code: "42601"}
	assert.Equal(t, error(syntax), translateError(syntax))
}

func TestMigrationsEmbedded(t *testing.T) {
	b, err := migrations.ReadFile("migrations/00001_init.sql")
	require.NoError(t, err)

	sql := string(b)
	assert.Contains(t, sql, "-- +goose Up")
	assert.Contains(t, sql, "-- +goose Down")
	for name := range constraintFields {
		assert.Contains(t, sql, name)
	}
}

// TestPostgresStorage runs against a live database when POSTGRES_TEST_URL is set.
func TestPostgresStorage(t *testing.T) {
	dbURL := os.Getenv("POSTGRES_TEST_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_TEST_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := NewPostgresStorage(ctx, dbURL)
	require.NoError(t, err)
	defer st.Close()

	email := "pg-" + time.Now().Format("150405.000000") + "@test.local"
	require.NoError(t, st.CreateUser(ctx, models.NewUser{Email: email, Password: "pw", Active: true}))

	err = st.CreateUser(ctx, models.NewUser{Email: email, Password: "pw", Active: true})
	var upstream *storage.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, string(upstream.Body), models.RuleUnique)

	user, err := st.FindUser(ctx, models.UserFilter{Email: email, Password: "pw"})
	require.NoError(t, err)

	_, err = st.FindUser(ctx, models.UserFilter{Email: email, Password: "wrong"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Millisecond)
	created, err := st.CreateRecipe(ctx, models.NewRecipe{
		RecipeFields: models.RecipeFields{
			Title:       "Soupe",
			Description: "Chauffer",
			Ingredients: []models.Ingredient{{Name: "eau", Quantity: models.Quantity(`"1l"`)}},
			Personnes:   2,
			Minutes:     10,
		},
		User:      []models.PublicUser{{ID: user.ID, Email: user.Email, Active: true}},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	require.Len(t, created.User, 1)
	assert.Equal(t, user.ID, created.User[0].ID)

	minutes := 15
	patched, err := st.PatchRecipe(ctx, created.ID, models.RecipePatch{Minutes: &minutes, UpdatedAt: now.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 15, patched.Minutes)
	assert.Equal(t, "Soupe", patched.Title)

	require.NoError(t, st.DeleteRecipe(ctx, created.ID))
	_, err = st.GetRecipe(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, st.DeleteRecipe(ctx, created.ID), storage.ErrNotFound)
}
