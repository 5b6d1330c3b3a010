package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipes_api/internal/models"
	"recipes_api/internal/storage"
)

func seedUser(t *testing.T, s *Storage, email string) models.User {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, models.NewUser{Email: email, Password: "pw", Active: true}))

	user, err := s.FindUser(ctx, models.UserFilter{Email: email})
	require.NoError(t, err)

	return user
}

func newRecipe(owner models.User) models.NewRecipe {
	return models.NewRecipe{
		RecipeFields: models.RecipeFields{
			Title:       "Crêpes",
			Description: "Cuire",
			Ingredients: []models.Ingredient{{Name: "farine", Quantity: models.Quantity(`"250g"`)}},
			Personnes:   4,
			Minutes:     30,
		},
		User: []models.PublicUser{{ID: owner.ID, Email: owner.Email, Active: owner.Active}},
	}
}

func TestCreateUserValidation(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "a@b.com")

	tests := []struct {
		name   string
		user   models.NewUser
		fields []string
	}{
		{"duplicate email", models.NewUser{Email: "a@b.com", Password: "x"}, []string{"email"}},
		{"missing both", models.NewUser{}, []string{"email", "password"}},
		{"missing password", models.NewUser{Email: "c@d.com"}, []string{"password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(ctx, tt.user)

			var upstream *storage.UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.True(t, upstream.HasJSONBody())
			for _, f := range tt.fields {
				assert.Contains(t, string(upstream.Body), `"field":"`+f+`"`)
			}
		})
	}
}

func TestFindUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "a@b.com")

	_, err := s.FindUser(ctx, models.UserFilter{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	_, err = s.FindUser(ctx, models.UserFilter{Email: "a@b.com", Password: "bad"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.FindUser(ctx, models.UserFilter{Email: "x@y.com"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecipeLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedUser(t, s, "a@b.com")

	created, err := s.CreateRecipe(ctx, newRecipe(owner))
	require.NoError(t, err)
	require.Len(t, created.User, 1)
	assert.Equal(t, owner.ID, created.User[0].ID)
	assert.Equal(t, "pw", created.User[0].Password, "relations resolve to the full user record")
	assert.NotEmpty(t, created.CreatedBy)
	assert.JSONEq(t, `0`, string(created.Version))

	title := "Galettes"
	patched, err := s.PatchRecipe(ctx, created.ID, models.RecipePatch{Title: &title, UpdatedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "Galettes", patched.Title)
	assert.Equal(t, 30, patched.Minutes)
	assert.JSONEq(t, `1`, string(patched.Version))

	replaced, err := s.ReplaceRecipe(ctx, created.ID, models.RecipeReplace{
		RecipeFields: models.RecipeFields{Title: "Gaufres", Description: "D", Personnes: 1, Minutes: 5,
			Ingredients: []models.Ingredient{{Name: "oeuf", Quantity: models.Quantity(`2`)}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Gaufres", replaced.Title)
	assert.Equal(t, owner.ID, replaced.User[0].ID)

	list, err := s.ListRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteRecipe(ctx, created.ID))
	assert.ErrorIs(t, s.DeleteRecipe(ctx, created.ID), storage.ErrNotFound)

	_, err = s.GetRecipe(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.PatchRecipe(ctx, created.ID, models.RecipePatch{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListRecipesKeepsInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedUser(t, s, "a@b.com")

	var ids []string
	for i := 0; i < 3; i++ {
		r, err := s.CreateRecipe(ctx, newRecipe(owner))
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	require.NoError(t, s.DeleteRecipe(ctx, ids[1]))

	list, err := s.ListRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[0], list[0].ID)
	assert.Equal(t, ids[2], list[1].ID)
}

func TestCreateRecipeRequiresKnownOwner(t *testing.T) {
	s := New()

	_, err := s.CreateRecipe(context.Background(), newRecipe(models.User{ID: "ghost"}))

	var upstream *storage.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, string(upstream.Body), `"field":"user"`)
}

func TestReturnedRecipesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedUser(t, s, "a@b.com")

	created, err := s.CreateRecipe(ctx, newRecipe(owner))
	require.NoError(t, err)

	created.Ingredients[0].Name = "sucre"

	got, err := s.GetRecipe(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "farine", got.Ingredients[0].Name)
}
