package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"fridgefeast/internal/cache"
)

const recipeCachePrefix = "recipe/"

var (
	ErrNoIngredients = errors.New("ingredients are required")
	ErrNoRecipeName  = errors.New("recipe name is required")
)

// Service implements the suggestion, recipe-detail and shopping-list
// operations on top of any Completer.
type Service struct {
	completer Completer
	cache     cache.Cache
	group     singleflight.Group

	suggestSchema  map[string]any
	recipeSchema   map[string]any
	shoppingSchema map[string]any
}

type Option func(*Service)

// WithRecipeCache keeps generated recipes so asking for the same name twice
// does not cost a second completion.
func WithRecipeCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func NewService(c Completer, opts ...Option) *Service {
	s := &Service{
		completer:      c,
		suggestSchema:  schemaFor(&suggestions{}),
		recipeSchema:   schemaFor(&Recipe{}),
		shoppingSchema: schemaFor(&shoppingList{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SuggestRecipes returns recipe names for a comma separated ingredient list.
// An empty result is not an error.
func (s *Service) SuggestRecipes(ctx context.Context, ingredients string) ([]string, error) {
	parsed := ParseIngredients(ingredients)
	if len(parsed) == 0 {
		return nil, ErrNoIngredients
	}

	content, err := s.completer.CompleteJSON(ctx, JSONRequest{
		Name:        "recipe_suggestions",
		System:      SystemMessage,
		Messages:    suggestionMessages(parsed),
		Schema:      s.suggestSchema,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to suggest recipes: %w", err)
	}

	var out suggestions
	if err := decodeJSON(content, &out); err != nil {
		return nil, err
	}
	names := lo.Map(out.Recipes, func(n string, _ int) string { return strings.TrimSpace(n) })
	return lo.Uniq(lo.Compact(names)), nil
}

// RecipeDetails generates the full recipe for name. The returned title is
// always the requested name.
func (s *Service) RecipeDetails(ctx context.Context, name string) (*Recipe, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNoRecipeName
	}
	key := recipeCachePrefix + nameHash(name)

	v, err, shared := s.group.Do(key, func() (any, error) {
		// other callers may share this flight, so one caller going away
		// must not fail it for the rest
		ctx := context.WithoutCancel(ctx)
		if recipe, ok := s.fromCache(ctx, key); ok {
			return recipe, nil
		}
		recipe, err := s.generateRecipe(ctx, name)
		if err != nil {
			return nil, err
		}
		s.toCache(ctx, key, recipe)
		return recipe, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "shared in-flight recipe generation", "recipe", name)
	}

	recipe := v.(Recipe).Clone()
	recipe.Title = name
	return &recipe, nil
}

func (s *Service) generateRecipe(ctx context.Context, name string) (Recipe, error) {
	content, err := s.completer.CompleteJSON(ctx, JSONRequest{
		Name:        "recipe_details",
		System:      SystemMessage,
		Messages:    recipeMessages(name),
		Schema:      s.recipeSchema,
		Temperature: 0.2,
	})
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to generate recipe %q: %w", name, err)
	}

	var recipe Recipe
	if err := decodeJSON(content, &recipe); err != nil {
		return Recipe{}, err
	}
	recipe.Title = name
	recipe.ImageURL = ""
	if err := recipe.Validate(); err != nil {
		return Recipe{}, fmt.Errorf("model returned an unusable recipe: %w", err)
	}
	return recipe, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (Recipe, bool) {
	if s.cache == nil {
		return Recipe{}, false
	}
	rc, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.WarnContext(ctx, "failed to read cached recipe", "key", key, "error", err)
		}
		return Recipe{}, false
	}
	defer func() {
		if err := rc.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close cached recipe", "key", key, "error", err)
		}
	}()

	var recipe Recipe
	if err := json.NewDecoder(rc).Decode(&recipe); err != nil {
		slog.WarnContext(ctx, "ignoring corrupt cached recipe", "key", key, "error", err)
		return Recipe{}, false
	}
	if err := recipe.Validate(); err != nil {
		return Recipe{}, false
	}
	slog.InfoContext(ctx, "serving cached recipe", "key", key)
	return recipe, true
}

func (s *Service) toCache(ctx context.Context, key string, recipe Recipe) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(recipe)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal recipe for cache", "key", key, "error", err)
		return
	}
	err = s.cache.Put(ctx, key, string(b), cache.PutOptions{Condition: cache.PutIfNoneMatch})
	if err != nil && !errors.Is(err, cache.ErrAlreadyExists) {
		slog.WarnContext(ctx, "failed to cache recipe", "key", key, "error", err)
	}
}

// ShoppingList asks the model which of required are missing from available.
// The result only ever contains entries of required, in the order the model
// listed them.
func (s *Service) ShoppingList(ctx context.Context, available string, required []string) ([]string, error) {
	required = lo.Compact(lo.Map(required, func(r string, _ int) string { return strings.TrimSpace(r) }))
	if len(required) == 0 {
		return []string{}, nil
	}
	if len(ParseIngredients(available)) == 0 {
		return required, nil
	}

	content, err := s.completer.CompleteJSON(ctx, JSONRequest{
		Name:        "shopping_list",
		System:      SystemMessage,
		Messages:    shoppingMessages(ParseIngredients(available), required),
		Schema:      s.shoppingSchema,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build shopping list: %w", err)
	}

	var out shoppingList
	if err := decodeJSON(content, &out); err != nil {
		return nil, err
	}
	return subsetOf(ctx, required, out.ShoppingList), nil
}

// subsetOf maps every item the model returned back onto the required entry it
// names. Items that match nothing are dropped.
func subsetOf(ctx context.Context, required, missing []string) []string {
	result := make([]string, 0, len(missing))
	for _, item := range missing {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		idx := slices.IndexFunc(required, func(r string) bool { return strings.EqualFold(r, item) })
		if idx < 0 {
			idx = slices.IndexFunc(required, func(r string) bool { return sameIngredient(r, item) })
		}
		if idx < 0 {
			slog.WarnContext(ctx, "dropping shopping list item not in recipe", "item", item)
			continue
		}
		if !slices.Contains(result, required[idx]) {
			result = append(result, required[idx])
		}
	}
	return result
}

func nameHash(name string) string {
	fnv := fnv.New64a()
	_, _ = io.WriteString(fnv, normalizeName(name))
	return base64.RawURLEncoding.EncodeToString(fnv.Sum(nil))
}
