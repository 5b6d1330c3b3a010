// Package sanitize turns raw store records into the views clients may see.
// Every record that crosses the service boundary goes through here.
package sanitize

import "recipes_api/internal/models"

// User drops the password.
func User(u models.User) models.PublicUser {
	return models.PublicUser{
		ID:      u.ID,
		Email:   u.Email,
		Active:  u.Active,
		Created: u.Created,
		Changed: u.Changed,
	}
}

// Recipe drops store bookkeeping and sanitizes the owner. It reports false
// when the record has no usable owner.
func Recipe(r models.Recipe) (models.PublicRecipe, bool) {
	if r.ID == "" || len(r.User) == 0 || r.User[0].ID == "" {
		return models.PublicRecipe{}, false
	}

	ingredients := r.Ingredients
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}

	return models.PublicRecipe{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Ingredients: ingredients,
		Minutes:     r.Minutes,
		Personnes:   r.Personnes,
		User:        User(r.User[0]),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, true
}

// Recipes sanitizes every element. Malformed records are left out and their
// ids returned so the caller can log them.
func Recipes(rs []models.Recipe) ([]models.PublicRecipe, []string) {
	out := make([]models.PublicRecipe, 0, len(rs))
	var skipped []string
	for _, r := range rs {
		pub, ok := Recipe(r)
		if !ok {
			skipped = append(skipped, r.ID)
			continue
		}
		out = append(out, pub)
	}
	return out, skipped
}
