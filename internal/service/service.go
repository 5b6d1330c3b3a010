package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"recipes_api/internal/auth"
	"recipes_api/internal/models"
	"recipes_api/internal/sanitize"
	"recipes_api/internal/storage"
)

// ErrForbidden means the caller is authenticated but does not own the recipe.
var ErrForbidden = errors.New("recipe belongs to another user")

type Service interface {
	Authenticate(ctx context.Context, authHeader string) (models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password string) error

	ListRecipes(ctx context.Context) ([]models.PublicRecipe, error)
	GetRecipe(ctx context.Context, id string) (models.PublicRecipe, error)
	CreateRecipe(ctx context.Context, owner models.User, in models.RecipeInput) (models.PublicRecipe, error)
	Authorize(ctx context.Context, id string, caller models.User) error
	PatchRecipe(ctx context.Context, caller models.User, id string, body map[string]json.RawMessage) (models.PublicRecipe, error)
	ReplaceRecipe(ctx context.Context, caller models.User, id string, in models.RecipeInput) (models.PublicRecipe, error)
	DeleteRecipe(ctx context.Context, caller models.User, id string) error
}

type service struct {
	storage   storage.Storage
	auth      *auth.Authenticator
	passwords auth.PasswordScheme
	log       *slog.Logger
	now       func() time.Time
}

func NewService(st storage.Storage, authn *auth.Authenticator, passwords auth.PasswordScheme, lgr *slog.Logger) *service {
	return &service{
		storage:   st,
		auth:      authn,
		passwords: passwords,
		log:       lgr,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Authenticate(ctx context.Context, authHeader string) (models.User, error) {
	const op = "service.Authenticate"

	token, err := auth.BearerToken(authHeader)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.auth.Verify(ctx, token)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	const op = "service.Login"

	token, err := s.auth.Issue(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Register leaves uniqueness and required fields to the store. The bcrypt
// scheme checks the password locally since a hash of "" is not empty.
func (s *service) Register(ctx context.Context, email, password string) error {
	const op = "service.Register"

	if s.passwords.Name() == auth.SchemeBcrypt && password == "" {
		return models.NewValidationError(models.Required("password"))
	}

	stored, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user := models.NewUser{
		Email:    email,
		Password: stored,
		Active:   true,
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *service) ListRecipes(ctx context.Context) ([]models.PublicRecipe, error) {
	const op = "service.ListRecipes"

	records, err := s.storage.ListRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	recipes, skipped := sanitize.Recipes(records)
	if len(skipped) > 0 {
		s.log.Warn("skipped malformed recipes", slog.String("op", op), slog.Any("ids", skipped))
	}

	return recipes, nil
}

func (s *service) GetRecipe(ctx context.Context, id string) (models.PublicRecipe, error) {
	const op = "service.GetRecipe"

	record, err := s.storage.GetRecipe(ctx, id)
	if err != nil {
		return models.PublicRecipe{}, fmt.Errorf("%s: %w", op, err)
	}

	recipe, ok := sanitize.Recipe(record)
	if !ok {
		return models.PublicRecipe{}, fmt.Errorf("%s: malformed recipe %q: %w", op, id, storage.ErrNotFound)
	}

	return recipe, nil
}

func (s *service) CreateRecipe(ctx context.Context, owner models.User, in models.RecipeInput) (models.PublicRecipe, error) {
	const op = "service.CreateRecipe"

	fields, err := recipeFields(in)
	if err != nil {
		return models.PublicRecipe{}, err
	}

	now := s.now()
	record, err := s.storage.CreateRecipe(ctx, models.NewRecipe{
		RecipeFields: fields,
		User:         []models.PublicUser{sanitize.User(owner)},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return models.PublicRecipe{}, fmt.Errorf("%s: %w", op, err)
	}

	recipe, ok := sanitize.Recipe(record)
	if !ok {
		return models.PublicRecipe{}, fmt.Errorf("%s: store returned a malformed recipe", op)
	}

	return recipe, nil
}

// Authorize is the ownership guard: a single read of the current recipe,
// sanitized before its owner is compared with the caller.
func (s *service) Authorize(ctx context.Context, id string, caller models.User) error {
	const op = "service.Authorize"

	record, err := s.storage.GetRecipe(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	recipe, ok := sanitize.Recipe(record)
	if !ok {
		return fmt.Errorf("%s: malformed recipe %q: %w", op, id, storage.ErrNotFound)
	}

	if caller.ID == "" || recipe.User.ID != caller.ID {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return nil
}

func (s *service) PatchRecipe(ctx context.Context, caller models.User, id string, body map[string]json.RawMessage) (models.PublicRecipe, error) {
	const op = "service.PatchRecipe"

	log := s.log.With(slog.String("op", op), slog.String("recipe_id", id))

	if err := s.Authorize(ctx, id, caller); err != nil {
		return models.PublicRecipe{}, fmt.Errorf("%s: %w", op, err)
	}

	patch, dropped := buildPatch(body)
	if len(dropped) > 0 {
		log.Debug("dropped patch fields", slog.Any("fields", dropped))
	}
	patch.UpdatedAt = s.now()

	record, err := s.storage.PatchRecipe(ctx, id, patch)
	if err != nil {
		return models.PublicRecipe{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.sanitizeUpdated(op, record)
}

func (s *service) ReplaceRecipe(ctx context.Context, caller models.User, id string, in models.RecipeInput) (models.PublicRecipe, error) {
	const op = "service.ReplaceRecipe"

	if err := s.Authorize(ctx, id, caller); err != nil {
		return models.PublicRecipe{}, fmt.Errorf("%s: %w", op, err)
	}

	fields, err := recipeFields(in)
	if err != nil {
		return models.PublicRecipe{}, err
	}

	record, err := s.storage.ReplaceRecipe(ctx, id, models.RecipeReplace{
		RecipeFields: fields,
		UpdatedAt:    s.now(),
	})
	if err != nil {
		return models.PublicRecipe{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.sanitizeUpdated(op, record)
}

func (s *service) DeleteRecipe(ctx context.Context, caller models.User, id string) error {
	const op = "service.DeleteRecipe"

	if err := s.Authorize(ctx, id, caller); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteRecipe(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *service) sanitizeUpdated(op string, record models.Recipe) (models.PublicRecipe, error) {
	recipe, ok := sanitize.Recipe(record)
	if !ok {
		return models.PublicRecipe{}, fmt.Errorf("%s: store returned a malformed recipe", op)
	}
	return recipe, nil
}
