package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsToMockWithoutKey(t *testing.T) {
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("AI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.AI.Provider)
	assert.Equal(t, 90*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "favorites.json", cfg.Favorites.Key)
	assert.Equal(t, "cache", cfg.Storage.Dir)
	assert.True(t, cfg.Storage.CacheRecipes)
	assert.False(t, cfg.Storage.UsesBlobStorage())
}

func TestLoadReadsProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("AI_API_KEY", "secret")
	t.Setenv("AI_MODEL", "gemini-2.5-flash")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("FAVORITES_KEY", "favorites/alice.json")
	t.Setenv("AZURE_STORAGE_ACCOUNT_NAME", "acct")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "favorites/alice.json", cfg.Favorites.Key)
	assert.True(t, cfg.Storage.UsesBlobStorage())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]map[string]string{
		"provider":     {"AI_PROVIDER": "anthropic", "AI_API_KEY": "k"},
		"timeout":      {"AI_TIMEOUT": "soon"},
		"image url":    {"IMAGE_SEARCH_URL": "https://example.com/search"},
		"log format":   {"LOG_FORMAT": "xml"},
		"zero timeout": {"AI_TIMEOUT": "0s"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
