package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// User is a user record as the store holds it. Password never leaves the service.
type User struct {
	ID       string    `json:"_id,omitempty"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Active   bool      `json:"active"`
	Created  time.Time `json:"_created,omitzero"`
	Changed  time.Time `json:"_changed,omitzero"`
}

// PublicUser is the part of a User that may be sent to a client.
type PublicUser struct {
	ID      string    `json:"_id"`
	Email   string    `json:"email"`
	Active  bool      `json:"active"`
	Created time.Time `json:"_created,omitzero"`
	Changed time.Time `json:"_changed,omitzero"`
}

// NewUser is the registration payload sent to the store.
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Active   bool   `json:"active"`
}

// UserFilter is an exact-match lookup. Empty Password matches any password.
type UserFilter struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

type Ingredient struct {
	Name     string   `json:"name"`
	Quantity Quantity `json:"quantity"`
}

// Quantity is either "200g" or 200. It keeps the JSON token it was decoded
// from, so a number is written back as a number.
type Quantity json.RawMessage

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("quantity must be a string or a number, got %s", data)
	}
	*q = append((*q)[:0:0], data...)
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if len(q) == 0 {
		return []byte("null"), nil
	}
	return []byte(q), nil
}

// Text returns the quantity as written, without JSON quoting.
func (q Quantity) Text() string {
	var s string
	if err := json.Unmarshal(q, &s); err == nil {
		return s
	}
	return string(q)
}

// Owner is the embedded owning user of a recipe. The store returns relations
// as arrays, so both a single object and an array are accepted.
type Owner []User

func (o *Owner) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*o = nil
		return nil
	case data[0] == '{':
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		*o = Owner{u}
		return nil
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return err
	}
	*o = users
	return nil
}

// Recipe is a recipe record as the store returns it, bookkeeping included.
type Recipe struct {
	ID          string       `json:"_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Ingredients []Ingredient `json:"ingredients"`
	Minutes     int          `json:"minutes"`
	Personnes   int          `json:"personnes"`
	User        Owner        `json:"user"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// store-private
	Created   json.RawMessage `json:"_created,omitempty"`
	Changed   json.RawMessage `json:"_changed,omitempty"`
	CreatedBy json.RawMessage `json:"_createdby,omitempty"`
	ChangedBy json.RawMessage `json:"_changedby,omitempty"`
	Keywords  json.RawMessage `json:"_keywords,omitempty"`
	Tags      json.RawMessage `json:"_tags,omitempty"`
	Version   json.RawMessage `json:"_version,omitempty"`
}

// PublicRecipe is the part of a Recipe that may be sent to a client.
type PublicRecipe struct {
	ID          string       `json:"_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Ingredients []Ingredient `json:"ingredients"`
	Minutes     int          `json:"minutes"`
	Personnes   int          `json:"personnes"`
	User        PublicUser   `json:"user"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RecipeInput is a create or full-update request body. Nil fields were absent.
type RecipeInput struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Ingredients []Ingredient `json:"ingredients"`
	Personnes   *int         `json:"personnes"`
	Minutes     *int         `json:"minutes"`
}

// RecipeFields are the client-mutable fields of a recipe, all validated.
type RecipeFields struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Ingredients []Ingredient `json:"ingredients"`
	Personnes   int          `json:"personnes"`
	Minutes     int          `json:"minutes"`
}

// NewRecipe is the creation payload sent to the store.
type NewRecipe struct {
	RecipeFields
	User      []PublicUser `json:"user"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RecipeReplace is the full-update payload. The owner is not part of it.
type RecipeReplace struct {
	RecipeFields
	UpdatedAt time.Time `json:"updated_at"`
}

// RecipePatch is the partial-update payload; only non-nil fields are sent.
type RecipePatch struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Ingredients []Ingredient `json:"ingredients,omitempty"`
	Minutes     *int         `json:"minutes,omitempty"`
	Personnes   *int         `json:"personnes,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// FieldError names a rejected field and the rules it broke.
type FieldError struct {
	Field   string   `json:"field"`
	Message []string `json:"message"`
}

// ValidationError mirrors the error body the document store returns on
// validation failures, so local and upstream failures look the same to clients.
type ValidationError struct {
	Name    string       `json:"name"`
	Message string       `json:"message"`
	Status  int          `json:"status"`
	List    []FieldError `json:"list"`
}

func NewValidationError(list ...FieldError) *ValidationError {
	return &ValidationError{
		Name:    "ValidationError",
		Message: "Validation error",
		Status:  400,
		List:    list,
	}
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.List))
	for _, f := range e.List {
		fields = append(fields, f.Field)
	}
	return fmt.Sprintf("validation error on %v", fields)
}

const (
	RuleRequired = "REQUIRED"
	RuleUnique   = "UNIQUE"
	RuleInvalid  = "INVALID"
)

func Required(field string) FieldError {
	return FieldError{Field: field, Message: []string{"Field is required", RuleRequired}}
}

func Unique(field string) FieldError {
	return FieldError{Field: field, Message: []string{"Already exists", RuleUnique}}
}

func Invalid(field, reason string) FieldError {
	return FieldError{Field: field, Message: []string{reason, RuleInvalid}}
}
