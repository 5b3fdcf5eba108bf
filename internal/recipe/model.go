package recipe

import (
	"fmt"

	"github.com/goccy/go-json"

	"fridgemonster/internal/validation"
)

// Recipe is a single catalog entry. Records are read-only once loaded.
type Recipe struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Image        string   `json:"image"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
	IsLiked      bool     `json:"isLiked"`
}

// record mirrors Recipe with pointer fields so an absent key can be told
// apart from an empty value.
type record struct {
	ID           *string    `json:"id" validate:"required"`
	Title        *string    `json:"title" validate:"required"`
	Image        *string    `json:"image" validate:"required"`
	Ingredients  *[]*string `json:"ingredients" validate:"required,dive,required"`
	Instructions *string    `json:"instructions" validate:"required"`
	IsLiked      *bool      `json:"isLiked"`
}

// UnmarshalJSON implements the json.Unmarshaler interface for Recipe.
// Every field except isLiked must be present; unknown keys are ignored.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if err := validation.Struct(&rec); err != nil {
		return fmt.Errorf("recipe record: %w", err)
	}

	*r = Recipe{
		ID:           *rec.ID,
		Title:        *rec.Title,
		Image:        *rec.Image,
		Ingredients:  make([]string, len(*rec.Ingredients)),
		Instructions: *rec.Instructions,
	}
	for i, name := range *rec.Ingredients {
		r.Ingredients[i] = *name
	}
	if rec.IsLiked != nil {
		r.IsLiked = *rec.IsLiked
	}
	return nil
}

// FindByID returns the recipe with the given id.
func FindByID(recipes []Recipe, id string) (Recipe, bool) {
	for _, r := range recipes {
		if r.ID == id {
			return r, true
		}
	}
	return Recipe{}, false
}
