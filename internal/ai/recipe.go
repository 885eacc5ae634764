package ai

import (
	"encoding/base64"
	"errors"
	"hash/fnv"
	"io"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Recipe is a fully resolved recipe. ImageURL is filled in later by the image
// lookup and is never requested from the model.
type Recipe struct {
	Title        string   `json:"title" jsonschema_description:"The title of the recipe."`
	Description  string   `json:"description" jsonschema_description:"A short appetizing description of the dish."`
	Ingredients  []string `json:"ingredients" jsonschema_description:"Every ingredient the recipe needs with its quantity."`
	Instructions []string `json:"instructions" jsonschema_description:"Step by step instructions. Do not prefix steps with numbers."`
	PrepTime     string   `json:"prepTime" jsonschema_description:"Estimated preparation time."`
	CookTime     string   `json:"cookTime" jsonschema_description:"Estimated cooking time."`
	ImageURL     string   `json:"imageUrl,omitempty" jsonschema:"-"` // not in schema
}

// ComputeHash calculates the fnv128 hash of the recipe content.
func (r *Recipe) ComputeHash() string {
	// the image is metadata and does not change the content
	fnv := fnv.New128a()
	lo.Must(io.WriteString(fnv, r.Title))
	lo.Must(io.WriteString(fnv, r.Description))
	for _, ing := range r.Ingredients {
		lo.Must(io.WriteString(fnv, ing))
	}
	for _, instr := range r.Instructions {
		lo.Must(io.WriteString(fnv, instr))
	}
	lo.Must(io.WriteString(fnv, r.PrepTime))
	lo.Must(io.WriteString(fnv, r.CookTime))
	return base64.URLEncoding.EncodeToString(fnv.Sum(nil))
}

// Clone returns a deep copy so callers can hand recipes across goroutines.
func (r Recipe) Clone() Recipe {
	r.Ingredients = slices.Clone(r.Ingredients)
	r.Instructions = slices.Clone(r.Instructions)
	return r
}

func (r Recipe) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("recipe has no title")
	}
	if len(r.Ingredients) == 0 {
		return errors.New("recipe has no ingredients")
	}
	if len(r.Instructions) == 0 {
		return errors.New("recipe has no instructions")
	}
	return nil
}

type suggestions struct {
	Recipes []string `json:"recipes" jsonschema_description:"Names of recipes that can be made with the ingredients."`
}

type shoppingList struct {
	ShoppingList []string `json:"shoppingList" jsonschema_description:"Required ingredients that are not in the available ingredients. Empty when nothing is missing."`
}
