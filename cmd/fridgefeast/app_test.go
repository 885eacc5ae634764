package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgefeast/internal/ai"
	"fridgefeast/internal/cache"
	"fridgefeast/internal/config"
	"fridgefeast/internal/favorites"
)

func testApp(t *testing.T) *app {
	t.Helper()
	return &app{
		cfg:     &config.Config{Favorites: config.FavoritesConfig{Key: favorites.DefaultKey}},
		cache:   cache.NewInMemoryCache(),
		backend: ai.Mock{},
	}
}

func TestREPL(t *testing.T) {
	a := testApp(t)
	in := strings.NewReader(strings.Join([]string{
		"search",
		"search chicken, rice",
		"pick 2",
		"fav",
		"shop",
		"back",
		"bogus",
		"new",
		"favs",
		"open 1",
		"fav",
		"quit",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, runREPL(t.Context(), a, in, &out, false))

	text := out.String()
	assert.Contains(t, text, "! Please enter some ingredients.")
	assert.Contains(t, text, "Recipes for chicken, rice:")
	assert.Contains(t, text, "  2. Chicken Soup")
	assert.Contains(t, text, "Chicken Soup *")
	assert.Contains(t, text, "Shopping list for Chicken Soup:")
	assert.Contains(t, text, "[ ] 2 cloves garlic")
	assert.NotContains(t, text, "[ ] 1 cup chicken")
	assert.Contains(t, text, `unknown command "bogus"`)
	assert.Contains(t, text, "Favorites:\n  1. Chicken Soup")

	// the last fav removed the only favorite
	saved := favorites.NewStore(a.cache, favorites.DefaultKey).Load(context.Background())
	assert.Empty(t, saved)
}

func TestREPLRejectsOutOfOrderCommands(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runREPL(t.Context(), testApp(t), strings.NewReader("shop\nback\n"), &out, false))
	assert.Equal(t, 2, strings.Count(out.String(), "can't do that right now"))
}

func TestRunOnce(t *testing.T) {
	t.Run("suggestions", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runOnce(t.Context(), testApp(t), &out, "chicken, rice", ""))
		assert.Contains(t, out.String(), "1. Chicken Fried Rice")
		assert.Contains(t, out.String(), "4. Chicken and Rice Skillet")
	})

	t.Run("recipe by index", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runOnce(t.Context(), testApp(t), &out, "chicken, rice", "3"))
		assert.Contains(t, out.String(), "Roasted Chicken")
		assert.Contains(t, out.String(), "Shopping list for Roasted Chicken:")
	})

	t.Run("blank", func(t *testing.T) {
		err := runOnce(t.Context(), testApp(t), &bytes.Buffer{}, "  ", "")
		require.Error(t, err)
	})
}

func TestPickName(t *testing.T) {
	names := []string{"A", "B"}
	assert.Equal(t, "B", pickName("2", names))
	assert.Equal(t, "3", pickName("3", names))
	assert.Equal(t, "Pie", pickName("Pie", names))
}

func TestDispatchUnknownAction(t *testing.T) {
	a := testApp(t)
	c := a.newSession(t.Context(), favorites.DefaultKey)
	t.Cleanup(c.Close)
	require.Error(t, dispatch(t.Context(), c, command{Action: "explode"}))
}
