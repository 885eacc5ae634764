package session

import (
	"errors"
	"slices"

	"fridgefeast/internal/ai"
)

type View string

const (
	ViewInitial            View = "initial"
	ViewLoadingSuggestions View = "loadingSuggestions"
	ViewSuggestionsLoaded  View = "suggestionsLoaded"
	ViewLoadingRecipe      View = "loadingRecipe"
	ViewRecipeLoaded       View = "recipeLoaded"
	ViewViewingFavorites   View = "viewingFavorites"
)

// Loading reports whether a suggestion or recipe request is outstanding.
func (v View) Loading() bool {
	return v == ViewLoadingSuggestions || v == ViewLoadingRecipe
}

type NoticeKind string

const (
	NoticeValidation NoticeKind = "validation"
	NoticeFailure    NoticeKind = "failure"
	NoticeEmpty      NoticeKind = "empty"
)

// Notice is a recoverable, user facing message.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

const (
	msgNoIngredients   = "Please enter some ingredients."
	msgNoRecipes       = "Could not find any recipes with these ingredients. Try different ones!"
	msgSuggestFailed   = "An error occurred while fetching recipes. Please try again."
	msgInvalidRecipe   = "Invalid recipe selected."
	msgRecipeFailed    = "An error occurred while fetching recipe details. Please try again."
	msgShoppingFailed  = "An error occurred while building your shopping list. Please try again."
	msgNoFavorites     = "You have not saved any favorites yet."
	msgUnknownFavorite = "That recipe is no longer in your favorites."
)

var (
	ErrInvalidTransition = errors.New("action not allowed in current view")
	ErrEmptyIngredients  = errors.New("ingredients are required")
	ErrEmptyRecipeName   = errors.New("recipe name is required")
	ErrUnknownFavorite   = errors.New("favorite not found")
	ErrNoFavorites       = errors.New("no favorites saved")
)

// ShoppingList is scoped to the recipe it was computed for.
type ShoppingList struct {
	RecipeTitle string   `json:"recipeTitle"`
	Missing     []string `json:"missing"`
}

// Snapshot is a deep copy of the session handed to renderers. Version grows
// with every change so observers can drop snapshots that arrive out of order.
type Snapshot struct {
	ID              string        `json:"id"`
	Version         uint64        `json:"version"`
	View            View          `json:"view"`
	Ingredients     string        `json:"ingredients"`
	Suggestions     []string      `json:"suggestions"`
	Recipe          *ai.Recipe    `json:"recipe,omitempty"`
	IsFavorite      bool          `json:"isFavorite"`
	Favorites       []ai.Recipe   `json:"favorites"`
	ShoppingList    *ShoppingList `json:"shoppingList,omitempty"`
	ShoppingPending bool          `json:"shoppingPending"`
	Notice          *Notice       `json:"notice,omitempty"`
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:              c.id,
		Version:         c.version,
		View:            c.view,
		Ingredients:     c.ingredients,
		Suggestions:     slices.Clone(c.suggestions),
		Favorites:       make([]ai.Recipe, 0, len(c.favorites)),
		ShoppingPending: c.shoppingPending,
	}
	if s.Suggestions == nil {
		s.Suggestions = []string{}
	}
	for _, f := range c.favorites {
		s.Favorites = append(s.Favorites, f.Clone())
	}
	if c.recipe != nil {
		r := c.recipe.Clone()
		s.Recipe = &r
		s.IsFavorite = c.favoriteIndexLocked(r.Title) >= 0
	}
	if c.shopping != nil {
		s.ShoppingList = &ShoppingList{
			RecipeTitle: c.shopping.RecipeTitle,
			Missing:     slices.Clone(c.shopping.Missing),
		}
	}
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	return s
}
