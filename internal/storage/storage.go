package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"recipes_api/internal/models"
)

const (
	DriverRestDB   = "restdb"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ErrNotFound covers every "nothing there" answer: missing record, empty body,
// null, [] or {}.
var ErrNotFound = errors.New("record not found")

// Storage is the system of record for users and recipes.
type Storage interface {

	// Рецепты
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, id string) (models.Recipe, error)
	CreateRecipe(ctx context.Context, recipe models.NewRecipe) (models.Recipe, error)
	PatchRecipe(ctx context.Context, id string, patch models.RecipePatch) (models.Recipe, error)
	ReplaceRecipe(ctx context.Context, id string, recipe models.RecipeReplace) (models.Recipe, error)
	DeleteRecipe(ctx context.Context, id string) error

	// Пользователи
	CreateUser(ctx context.Context, user models.NewUser) error
	GetUserByID(ctx context.Context, id string) (models.User, error)
	FindUser(ctx context.Context, filter models.UserFilter) (models.User, error)

	Close()
}

// UpstreamError is a failure answered by the store itself. Body is forwarded
// to the client unchanged when it holds JSON.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("store responded with status %d", e.Status)
	}
	return fmt.Sprintf("store responded with status %d: %s", e.Status, e.Body)
}

// HasJSONBody reports whether Body can be forwarded as a JSON response.
func (e *UpstreamError) HasJSONBody() bool {
	return len(e.Body) > 0 && json.Valid(e.Body)
}

// ValidationFailure wraps a validation error into the shape the remote store
// would have answered with.
func ValidationFailure(v *models.ValidationError) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage.ValidationFailure: %w", err)
	}
	return &UpstreamError{Status: v.Status, Body: body}
}
