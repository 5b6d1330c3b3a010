package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"

	"recipes_api/internal/models"
	"recipes_api/internal/storage"
)

const (
	usersTable   = "users"
	recipesTable = "recipes"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLSTATE codes mapped onto store validation errors.
const (
	codeNotNull    = "23502"
	codeForeignKey = "23503"
	codeUnique     = "23505"
	codeCheck      = "23514"
)

var constraintFields = map[string]string{
	"users_email_key":         "email",
	"users_email_required":    "email",
	"users_password_required": "password",
	"recipes_user_id_fkey":    "user",
}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, dbURL string) (*PostgresStorage, error) {
	const op = "postgres.NewPostgresStorage"

	if err := runMigrations(ctx, dbURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := pgxpool.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func runMigrations(ctx context.Context, dbURL string) error {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open sql connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if err := goose.UpContext(runCtx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

var recipeColumns = fmt.Sprintf(`
	r.id, r.title, r.description, r.ingredients, r.minutes, r.personnes,
	r.created_at, r.updated_at, r.store_created_at, r.store_changed_at, r.version,
	u.id, u.email, u.password, u.active, u.created_at, u.changed_at
	FROM %s r JOIN %s u ON u.id = r.user_id`, recipesTable, usersTable)

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecipe(row scanner) (models.Recipe, error) {
	var (
		recipe                     models.Recipe
		owner                      models.User
		ingredients                []byte
		storeCreated, storeChanged time.Time
		version                    int
	)

	err := row.Scan(
		&recipe.ID, &recipe.Title, &recipe.Description, &ingredients, &recipe.Minutes, &recipe.Personnes,
		&recipe.CreatedAt, &recipe.UpdatedAt, &storeCreated, &storeChanged, &version,
		&owner.ID, &owner.Email, &owner.Password, &owner.Active, &owner.Created, &owner.Changed,
	)
	if err != nil {
		return models.Recipe{}, err
	}

	if len(ingredients) > 0 {
		if err := json.Unmarshal(ingredients, &recipe.Ingredients); err != nil {
			return models.Recipe{}, fmt.Errorf("decode ingredients: %w", err)
		}
	}

	recipe.User = models.Owner{owner}
	recipe.Created = mustRaw(storeCreated)
	recipe.Changed = mustRaw(storeChanged)
	recipe.CreatedBy = mustRaw(owner.ID)
	recipe.ChangedBy = mustRaw(owner.ID)
	recipe.Version = mustRaw(version)

	return recipe, nil
}

func (p *PostgresStorage) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	const op = "postgres.ListRecipes"

	query := fmt.Sprintf("SELECT %s ORDER BY r.store_created_at, r.id;", recipeColumns)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	recipes := []models.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return recipes, nil
}

func (p *PostgresStorage) GetRecipe(ctx context.Context, id string) (models.Recipe, error) {
	const op = "postgres.GetRecipe"

	query := fmt.Sprintf("SELECT %s WHERE r.id=$1;", recipeColumns)

	recipe, err := scanRecipe(p.db.QueryRow(ctx, query, id))
	if err != nil {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, translateError(err))
	}

	return recipe, nil
}

func (p *PostgresStorage) CreateRecipe(ctx context.Context, recipe models.NewRecipe) (models.Recipe, error) {
	const op = "postgres.CreateRecipe"

	if len(recipe.User) == 0 || recipe.User[0].ID == "" {
		return models.Recipe{}, storage.ValidationFailure(models.NewValidationError(models.Required("user")))
	}

	id, err := newID()
	if err != nil {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, err)
	}

	ingredients, err := json.Marshal(recipe.Ingredients)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s(id, user_id, title, description, ingredients, minutes, personnes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9);`, recipesTable)

	_, err = p.db.Exec(ctx, query,
		id, recipe.User[0].ID, recipe.Title, recipe.Description, string(ingredients),
		recipe.Minutes, recipe.Personnes, recipe.CreatedAt, recipe.UpdatedAt,
	)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, translateError(err))
	}

	return p.GetRecipe(ctx, id)
}

func (p *PostgresStorage) PatchRecipe(ctx context.Context, id string, patch models.RecipePatch) (models.Recipe, error) {
	const op = "postgres.PatchRecipe"

	var (
		sets []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Ingredients != nil {
		ingredients, err := json.Marshal(patch.Ingredients)
		if err != nil {
			return models.Recipe{}, fmt.Errorf("%s: %w", op, err)
		}
		args = append(args, string(ingredients))
		sets = append(sets, fmt.Sprintf("ingredients=$%d::jsonb", len(args)))
	}
	if patch.Minutes != nil {
		set("minutes", *patch.Minutes)
	}
	if patch.Personnes != nil {
		set("personnes", *patch.Personnes)
	}
	set("updated_at", patch.UpdatedAt)

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s, store_changed_at=now(), version=version+1 WHERE id=$%d;`,
		recipesTable, strings.Join(sets, ", "), len(args))

	if err := p.exec(ctx, query, args...); err != nil {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, err)
	}

	return p.GetRecipe(ctx, id)
}

func (p *PostgresStorage) ReplaceRecipe(ctx context.Context, id string, recipe models.RecipeReplace) (models.Recipe, error) {
	const op = "postgres.ReplaceRecipe"

	ingredients, err := json.Marshal(recipe.Ingredients)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`
      UPDATE %s
         SET title=$1, description=$2, ingredients=$3::jsonb, minutes=$4, personnes=$5, updated_at=$6,
             store_changed_at=now(), version=version+1
       WHERE id=$7
    `, recipesTable)

	err = p.exec(ctx, query,
		recipe.Title, recipe.Description, string(ingredients), recipe.Minutes, recipe.Personnes, recipe.UpdatedAt, id,
	)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("%s: %w", op, err)
	}

	return p.GetRecipe(ctx, id)
}

func (p *PostgresStorage) DeleteRecipe(ctx context.Context, id string) error {
	const op = "postgres.DeleteRecipe"

	query := fmt.Sprintf("DELETE FROM %s WHERE id=$1", recipesTable)
	if err := p.exec(ctx, query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user models.NewUser) error {
	const op = "postgres.CreateUser"

	id, err := newID()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf("INSERT INTO %s(id, email, password, active) VALUES ($1, $2, $3, $4);", usersTable)

	if _, err := p.db.Exec(ctx, query, id, user.Email, user.Password, user.Active); err != nil {
		return fmt.Errorf("%s: %w", op, translateError(err))
	}

	return nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, id string) (models.User, error) {
	const op = "postgres.GetUserByID"

	var user models.User
	query := fmt.Sprintf("SELECT id, email, password, active, created_at, changed_at FROM %s WHERE id=$1;", usersTable)

	err := p.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.Password, &user.Active, &user.Created, &user.Changed)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, translateError(err))
	}

	return user, nil
}

func (p *PostgresStorage) FindUser(ctx context.Context, filter models.UserFilter) (models.User, error) {
	const op = "postgres.FindUser"

	var user models.User
	query := fmt.Sprintf(`SELECT id, email, password, active, created_at, changed_at FROM %s
	WHERE email=$1 AND ($2::text = '' OR password=$2) LIMIT 1;`, usersTable)

	err := p.db.QueryRow(ctx, query, filter.Email, filter.Password).
		Scan(&user.ID, &user.Email, &user.Password, &user.Active, &user.Created, &user.Changed)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, translateError(err))
	}

	return user, nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

// exec runs a statement that must touch exactly one row.
func (p *PostgresStorage) exec(ctx context.Context, query string, args ...interface{}) error {
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// translateError maps driver errors onto the store contract: missing rows are
// ErrNotFound, constraint violations are validation failures.
func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	field := constraintFields[pgErr.ConstraintName]
	if field == "" {
		field = pgErr.ColumnName
	}

	switch pgErr.Code {
	case codeUnique:
		return storage.ValidationFailure(models.NewValidationError(models.Unique(field)))
	case codeNotNull, codeCheck:
		return storage.ValidationFailure(models.NewValidationError(models.Required(field)))
	case codeForeignKey:
		return storage.ValidationFailure(models.NewValidationError(models.Invalid(field, "Unknown "+field)))
	}

	return err
}

func newID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

func mustRaw(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
