package main

import (
	"context"
	"fmt"

	"fridgefeast/internal/session"
)

// command is one user action, as sent by websocket clients and parsed from
// terminal input.
type command struct {
	Action      string `json:"action"`
	Ingredients string `json:"ingredients,omitempty"`
	Name        string `json:"name,omitempty"`
}

func dispatch(ctx context.Context, c *session.Controller, cmd command) error {
	switch cmd.Action {
	case "ingredients":
		c.SetIngredients(cmd.Ingredients)
		return nil
	case "search":
		if cmd.Ingredients != "" {
			c.SetIngredients(cmd.Ingredients)
		}
		return c.SubmitSearch(ctx)
	case "select":
		return c.SelectRecipe(ctx, cmd.Name)
	case "open":
		return c.SelectFavorite(cmd.Name)
	case "favorite":
		_, err := c.ToggleFavorite(ctx)
		return err
	case "favorites":
		return c.ViewFavorites()
	case "shop":
		return c.RequestShoppingList(ctx)
	case "back":
		return c.Back()
	case "new":
		c.NewSearch()
		return nil
	case "dismiss":
		c.DismissNotice()
		return nil
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}
