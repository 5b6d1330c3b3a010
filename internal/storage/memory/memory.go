// Package memory is an in-process store with the same contract as the remote
// document store: unique emails, required credentials, store bookkeeping fields.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"recipes_api/internal/models"
	"recipes_api/internal/storage"
)

const storeUser = "api"

type recipeRow struct {
	recipe  models.Recipe
	ownerID string
	version int
}

type Storage struct {
	mu      sync.RWMutex
	users   map[string]models.User
	recipes map[string]*recipeRow
	order   []string
	now     func() time.Time
}

func New() *Storage {
	return &Storage{
		users:   make(map[string]models.User),
		recipes: make(map[string]*recipeRow),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Storage) ListRecipes(_ context.Context) ([]models.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipes := make([]models.Recipe, 0, len(s.order))
	for _, id := range s.order {
		recipes = append(recipes, s.view(s.recipes[id]))
	}

	return recipes, nil
}

func (s *Storage) GetRecipe(_ context.Context, id string) (models.Recipe, error) {
	const op = "memory.GetRecipe"

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.recipes[id]
	if !ok {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.view(row), nil
}

func (s *Storage) CreateRecipe(_ context.Context, recipe models.NewRecipe) (models.Recipe, error) {
	const op = "memory.CreateRecipe"

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(recipe.User) == 0 {
		return models.Recipe{}, storage.ValidationFailure(models.NewValidationError(models.Required("user")))
	}
	ownerID := recipe.User[0].ID
	if _, ok := s.users[ownerID]; !ok {
		return models.Recipe{}, storage.ValidationFailure(models.NewValidationError(
			models.Invalid("user", "Unknown user"),
		))
	}

	id, err := newID()
	if err != nil {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	row := &recipeRow{
		recipe: models.Recipe{
			ID:          id,
			Title:       recipe.Title,
			Description: recipe.Description,
			Ingredients: cloneIngredients(recipe.Ingredients),
			Minutes:     recipe.Minutes,
			Personnes:   recipe.Personnes,
			CreatedAt:   recipe.CreatedAt,
			UpdatedAt:   recipe.UpdatedAt,
			Created:     stamp(now),
			Changed:     stamp(now),
			CreatedBy:   rawString(storeUser),
			ChangedBy:   rawString(storeUser),
		},
		ownerID: ownerID,
	}
	s.recipes[id] = row
	s.order = append(s.order, id)

	return s.view(row), nil
}

func (s *Storage) PatchRecipe(_ context.Context, id string, patch models.RecipePatch) (models.Recipe, error) {
	const op = "memory.PatchRecipe"

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.recipes[id]
	if !ok {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if patch.Title != nil {
		row.recipe.Title = *patch.Title
	}
	if patch.Description != nil {
		row.recipe.Description = *patch.Description
	}
	if patch.Ingredients != nil {
		row.recipe.Ingredients = cloneIngredients(patch.Ingredients)
	}
	if patch.Minutes != nil {
		row.recipe.Minutes = *patch.Minutes
	}
	if patch.Personnes != nil {
		row.recipe.Personnes = *patch.Personnes
	}
	row.recipe.UpdatedAt = patch.UpdatedAt
	s.touch(row)

	return s.view(row), nil
}

func (s *Storage) ReplaceRecipe(_ context.Context, id string, recipe models.RecipeReplace) (models.Recipe, error) {
	const op = "memory.ReplaceRecipe"

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.recipes[id]
	if !ok {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	row.recipe.Title = recipe.Title
	row.recipe.Description = recipe.Description
	row.recipe.Ingredients = cloneIngredients(recipe.Ingredients)
	row.recipe.Minutes = recipe.Minutes
	row.recipe.Personnes = recipe.Personnes
	row.recipe.UpdatedAt = recipe.UpdatedAt
	s.touch(row)

	return s.view(row), nil
}

func (s *Storage) DeleteRecipe(_ context.Context, id string) error {
	const op = "memory.DeleteRecipe"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipes[id]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	delete(s.recipes, id)
	for i, rid := range s.order {
		if rid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}

func (s *Storage) CreateUser(_ context.Context, user models.NewUser) error {
	const op = "memory.CreateUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	var problems []models.FieldError
	if strings.TrimSpace(user.Email) == "" {
		problems = append(problems, models.Required("email"))
	}
	if user.Password == "" {
		problems = append(problems, models.Required("password"))
	}
	for _, existing := range s.users {
		if user.Email != "" && existing.Email == user.Email {
			problems = append(problems, models.Unique("email"))
			break
		}
	}
	if len(problems) > 0 {
		return storage.ValidationFailure(models.NewValidationError(problems...))
	}

	id, err := newID()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	s.users[id] = models.User{
		ID:       id,
		Email:    user.Email,
		Password: user.Password,
		Active:   user.Active,
		Created:  now,
		Changed:  now,
	}

	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (models.User, error) {
	const op = "memory.GetUserByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return user, nil
}

func (s *Storage) FindUser(_ context.Context, filter models.UserFilter) (models.User, error) {
	const op = "memory.FindUser"

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email != filter.Email {
			continue
		}
		if filter.Password != "" && user.Password != filter.Password {
			continue
		}
		return user, nil
	}

	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

func (s *Storage) Close() {}

// view resolves the owner relation the way the remote store does: the current
// user record, password included, as a one-element array.
func (s *Storage) view(row *recipeRow) models.Recipe {
	recipe := row.recipe
	recipe.Ingredients = cloneIngredients(row.recipe.Ingredients)
	recipe.Version = json.RawMessage(strconv.Itoa(row.version))
	if owner, ok := s.users[row.ownerID]; ok {
		recipe.User = models.Owner{owner}
	}
	return recipe
}

func (s *Storage) touch(row *recipeRow) {
	row.version++
	row.recipe.Changed = stamp(s.now())
	row.recipe.ChangedBy = rawString(storeUser)
}

func newID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

func cloneIngredients(in []models.Ingredient) []models.Ingredient {
	if in == nil {
		return nil
	}
	out := make([]models.Ingredient, len(in))
	copy(out, in)
	return out
}

func stamp(t time.Time) json.RawMessage {
	b, _ := json.Marshal(t)
	return b
}

func rawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
