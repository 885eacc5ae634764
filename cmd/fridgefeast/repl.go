package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"fridgefeast/internal/ai"
	"fridgefeast/internal/session"
)

const replHelp = `commands:
  search <ingredients>  suggest recipes
  pick <n|name>         show a suggested recipe
  favs                  list favorites
  open <n|title>        show a favorite
  fav                   save or forget the shown recipe
  shop                  shopping list for the shown recipe
  back                  leave the recipe
  new                   start over
  quit`

// runREPL reads commands from in until quit or EOF. The prompt is only shown
// when a person is typing.
func runREPL(ctx context.Context, a *app, in io.Reader, out io.Writer, interactive bool) error {
	c := a.newSession(ctx, a.cfg.Favorites.Key)
	defer c.Close()

	fmt.Fprintln(out, replHelp)
	render(out, c.Snapshot())

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		verb, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		arg = strings.TrimSpace(arg)

		var cmd command
		switch strings.ToLower(verb) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			fmt.Fprintln(out, replHelp)
			continue
		case "search", "s":
			cmd = command{Action: "search", Ingredients: arg}
		case "pick", "p":
			cmd = command{Action: "select", Name: pickName(arg, c.Snapshot().Suggestions)}
		case "favs":
			cmd = command{Action: "favorites"}
		case "open", "o":
			titles := lo.Map(c.Snapshot().Favorites, func(r ai.Recipe, _ int) string { return r.Title })
			cmd = command{Action: "open", Name: pickName(arg, titles)}
		case "fav", "f":
			cmd = command{Action: "favorite"}
		case "shop":
			cmd = command{Action: "shop"}
		case "back", "b":
			cmd = command{Action: "back"}
		case "new", "n":
			cmd = command{Action: "new"}
		default:
			fmt.Fprintf(out, "unknown command %q, try help\n", verb)
			continue
		}

		if err := dispatch(ctx, c, cmd); errors.Is(err, session.ErrInvalidTransition) {
			fmt.Fprintln(out, "can't do that right now")
			continue
		}
		render(out, c.Snapshot())
		c.DismissNotice()
	}
}

// pickName resolves a 1-based index into names; anything else is taken literally.
func pickName(arg string, names []string) string {
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(names) {
		return names[n-1]
	}
	return arg
}

func render(out io.Writer, s session.Snapshot) {
	if s.Notice != nil {
		fmt.Fprintf(out, "! %s\n", s.Notice.Message)
	}
	switch s.View {
	case session.ViewInitial:
		if s.Notice == nil {
			fmt.Fprintln(out, "What's in your fridge? (search <ingredients>)")
		}
	case session.ViewSuggestionsLoaded:
		fmt.Fprintf(out, "Recipes for %s:\n", strings.TrimSpace(s.Ingredients))
		for i, name := range s.Suggestions {
			fmt.Fprintf(out, "  %d. %s\n", i+1, name)
		}
	case session.ViewViewingFavorites:
		fmt.Fprintln(out, "Favorites:")
		for i, r := range s.Favorites {
			fmt.Fprintf(out, "  %d. %s\n", i+1, r.Title)
		}
	case session.ViewRecipeLoaded:
		if s.Recipe != nil {
			renderRecipe(out, *s.Recipe, s.IsFavorite)
		}
		if s.ShoppingList != nil {
			renderShoppingList(out, *s.ShoppingList)
		}
	}
}

func renderRecipe(out io.Writer, r ai.Recipe, favorite bool) {
	star := ""
	if favorite {
		star = " *"
	}
	fmt.Fprintf(out, "\n%s%s\n", r.Title, star)
	if r.Description != "" {
		fmt.Fprintf(out, "%s\n", r.Description)
	}
	fmt.Fprintf(out, "Prep: %s  Cook: %s\n", r.PrepTime, r.CookTime)
	if r.ImageURL != "" {
		fmt.Fprintf(out, "Image: %s\n", r.ImageURL)
	}
	fmt.Fprintln(out, "\nIngredients:")
	for _, i := range r.Ingredients {
		fmt.Fprintf(out, "  - %s\n", i)
	}
	fmt.Fprintln(out, "\nInstructions:")
	for n, step := range r.Instructions {
		fmt.Fprintf(out, "  %d. %s\n", n+1, step)
	}
}

func renderShoppingList(out io.Writer, l session.ShoppingList) {
	if len(l.Missing) == 0 {
		fmt.Fprintf(out, "\nYou have everything for %s.\n", l.RecipeTitle)
		return
	}
	fmt.Fprintf(out, "\nShopping list for %s:\n", l.RecipeTitle)
	for _, item := range l.Missing {
		fmt.Fprintf(out, "  [ ] %s\n", item)
	}
}

// runOnce prints suggestions and, when recipe is set, that recipe with its
// shopping list.
func runOnce(ctx context.Context, a *app, out io.Writer, ingredients, recipe string) error {
	c := a.newSession(ctx, a.cfg.Favorites.Key)
	defer c.Close()

	if err := dispatch(ctx, c, command{Action: "search", Ingredients: ingredients}); err != nil {
		return err
	}
	s := c.Snapshot()
	if s.Notice != nil {
		return errors.New(s.Notice.Message)
	}
	if recipe == "" {
		render(out, s)
		return nil
	}

	if err := c.SelectRecipe(ctx, pickName(recipe, s.Suggestions)); err != nil {
		return err
	}
	if s = c.Snapshot(); s.Notice != nil {
		return errors.New(s.Notice.Message)
	}
	if err := c.RequestShoppingList(ctx); err != nil {
		return err
	}
	s = c.Snapshot()
	render(out, s)
	if s.Notice != nil {
		return errors.New(s.Notice.Message)
	}
	return nil
}
