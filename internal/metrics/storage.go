package metrics

import (
	"context"
	"time"

	"recipes_api/internal/models"
	"recipes_api/internal/storage"
)

type instrumentedStorage struct {
	next storage.Storage
	m    *Metrics
}

// InstrumentStorage times every call made to next.
func InstrumentStorage(next storage.Storage, m *Metrics) storage.Storage {
	return &instrumentedStorage{next: next, m: m}
}

func (s *instrumentedStorage) observe(operation string, start time.Time, err error) {
	s.m.ObserveStore(operation, err, time.Since(start))
}

func (s *instrumentedStorage) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	start := time.Now()
	recipes, err := s.next.ListRecipes(ctx)
	s.observe("list_recipes", start, err)
	return recipes, err
}

func (s *instrumentedStorage) GetRecipe(ctx context.Context, id string) (models.Recipe, error) {
	start := time.Now()
	recipe, err := s.next.GetRecipe(ctx, id)
	s.observe("get_recipe", start, err)
	return recipe, err
}

func (s *instrumentedStorage) CreateRecipe(ctx context.Context, recipe models.NewRecipe) (models.Recipe, error) {
	start := time.Now()
	created, err := s.next.CreateRecipe(ctx, recipe)
	s.observe("create_recipe", start, err)
	return created, err
}

func (s *instrumentedStorage) PatchRecipe(ctx context.Context, id string, patch models.RecipePatch) (models.Recipe, error) {
	start := time.Now()
	updated, err := s.next.PatchRecipe(ctx, id, patch)
	s.observe("patch_recipe", start, err)
	return updated, err
}

func (s *instrumentedStorage) ReplaceRecipe(ctx context.Context, id string, recipe models.RecipeReplace) (models.Recipe, error) {
	start := time.Now()
	updated, err := s.next.ReplaceRecipe(ctx, id, recipe)
	s.observe("replace_recipe", start, err)
	return updated, err
}

func (s *instrumentedStorage) DeleteRecipe(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.DeleteRecipe(ctx, id)
	s.observe("delete_recipe", start, err)
	return err
}

func (s *instrumentedStorage) CreateUser(ctx context.Context, user models.NewUser) error {
	start := time.Now()
	err := s.next.CreateUser(ctx, user)
	s.observe("create_user", start, err)
	return err
}

func (s *instrumentedStorage) GetUserByID(ctx context.Context, id string) (models.User, error) {
	start := time.Now()
	user, err := s.next.GetUserByID(ctx, id)
	s.observe("get_user", start, err)
	return user, err
}

func (s *instrumentedStorage) FindUser(ctx context.Context, filter models.UserFilter) (models.User, error) {
	start := time.Now()
	user, err := s.next.FindUser(ctx, filter)
	s.observe("find_user", start, err)
	return user, err
}

func (s *instrumentedStorage) Close() {
	s.next.Close()
}
