package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Backend is the set of AI operations a session needs.
type Backend interface {
	SuggestRecipes(ctx context.Context, ingredients string) ([]string, error)
	RecipeDetails(ctx context.Context, name string) (*Recipe, error)
	ShoppingList(ctx context.Context, available string, required []string) ([]string, error)
}

var (
	_ Backend = (*Service)(nil)
	_ Backend = Mock{}
)

// Mock answers without a model so the app runs offline and in tests.
type Mock struct {
	Delay time.Duration
}

func (m Mock) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m Mock) SuggestRecipes(ctx context.Context, ingredients string) ([]string, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	parsed := ParseIngredients(ingredients)
	if len(parsed) == 0 {
		return nil, ErrNoIngredients
	}
	title := cases.Title(language.English)
	first := title.String(parsed[0])
	names := []string{first + " Soup", "Roasted " + first}
	if len(parsed) > 1 {
		second := title.String(parsed[1])
		names = append([]string{first + " Fried " + second}, names...)
		names = append(names, first+" and "+second+" Skillet")
	}
	return names, nil
}

func (m Mock) RecipeDetails(ctx context.Context, name string) (*Recipe, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNoRecipeName
	}
	core := lo.Filter(words(name), func(w string, _ int) bool {
		return !lo.Contains([]string{"and", "with", "soup", "roasted", "fried", "skillet"}, w)
	})
	ingredients := lo.Map(core, func(w string, _ int) string { return "1 cup " + w })
	ingredients = append(ingredients, "2 cloves garlic", "1 tbsp olive oil", "salt")
	return &Recipe{
		Title:       name,
		Description: fmt.Sprintf("A simple home style take on %s.", strings.ToLower(name)),
		Ingredients: ingredients,
		Instructions: []string{
			"Prep and chop all ingredients.",
			"Warm the olive oil in a large pan over medium heat and add the garlic.",
			"Add the remaining ingredients and cook until done.",
			"Season with salt and serve.",
		},
		PrepTime: "10 minutes",
		CookTime: "25 minutes",
	}, nil
}

func (m Mock) ShoppingList(ctx context.Context, available string, required []string) ([]string, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	have := ParseIngredients(available)
	missing := lo.Filter(required, func(r string, _ int) bool {
		return !lo.ContainsBy(have, func(h string) bool { return sameIngredient(h, r) })
	})
	return append([]string{}, missing...), nil
}
