package service

import (
	"encoding/json"
	"math"
	"strings"

	"recipes_api/internal/models"
)

// recipeFields validates a create or full-update body. Every field must be
// present: title and description non-empty, at least one ingredient,
// personnes and minutes positive.
func recipeFields(in models.RecipeInput) (models.RecipeFields, error) {
	var problems []models.FieldError

	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		problems = append(problems, models.Required("title"))
	}
	if in.Description == nil || strings.TrimSpace(*in.Description) == "" {
		problems = append(problems, models.Required("description"))
	}
	if len(in.Ingredients) == 0 {
		problems = append(problems, models.Required("ingredients"))
	}
	if in.Personnes == nil {
		problems = append(problems, models.Required("personnes"))
	} else if *in.Personnes <= 0 {
		problems = append(problems, models.Invalid("personnes", "Must be positive"))
	}
	if in.Minutes == nil {
		problems = append(problems, models.Required("minutes"))
	} else if *in.Minutes <= 0 {
		problems = append(problems, models.Invalid("minutes", "Must be positive"))
	}

	if len(problems) > 0 {
		return models.RecipeFields{}, models.NewValidationError(problems...)
	}

	return models.RecipeFields{
		Title:       *in.Title,
		Description: *in.Description,
		Ingredients: in.Ingredients,
		Personnes:   *in.Personnes,
		Minutes:     *in.Minutes,
	}, nil
}

// patchSetter decodes one body field into the patch. It reports false when
// the value is malformed or breaks the field's rule; the field is then dropped.
type patchSetter func(p *models.RecipePatch, raw json.RawMessage) bool

var patchSetters = map[string]patchSetter{
	"title": func(p *models.RecipePatch, raw json.RawMessage) bool {
		v, ok := nonEmptyString(raw)
		if ok {
			p.Title = &v
		}
		return ok
	},
	"description": func(p *models.RecipePatch, raw json.RawMessage) bool {
		v, ok := nonEmptyString(raw)
		if ok {
			p.Description = &v
		}
		return ok
	},
	"ingredients": func(p *models.RecipePatch, raw json.RawMessage) bool {
		var v []models.Ingredient
		if err := json.Unmarshal(raw, &v); err != nil || len(v) == 0 {
			return false
		}
		p.Ingredients = v
		return true
	},
	"minutes": func(p *models.RecipePatch, raw json.RawMessage) bool {
		v, ok := positiveInt(raw)
		if ok {
			p.Minutes = &v
		}
		return ok
	},
	"personnes": func(p *models.RecipePatch, raw json.RawMessage) bool {
		v, ok := positiveInt(raw)
		if ok {
			p.Personnes = &v
		}
		return ok
	},
}

// buildPatch copies the recognized, valid fields of body into a patch and
// returns the names of the fields it dropped.
func buildPatch(body map[string]json.RawMessage) (models.RecipePatch, []string) {
	var (
		patch   models.RecipePatch
		dropped []string
	)
	for key, raw := range body {
		set, ok := patchSetters[key]
		if !ok || !set(&patch, raw) {
			dropped = append(dropped, key)
		}
	}
	return patch, dropped
}

func nonEmptyString(raw json.RawMessage) (string, bool) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// positiveInt accepts any JSON number with a whole positive value, so 30.0
// and 1e2 count as 30 and 100.
func positiveInt(raw json.RawMessage) (int, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if v <= 0 || v > math.MaxInt32 || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}
