package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRouterCompleteJSON(t *testing.T) {
	var got openRouterRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"1","choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"{\"recipes\":[\"Soup\"]}"}]}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("key", "", srv.URL, 5*time.Second)
	content, err := c.CompleteJSON(context.Background(), JSONRequest{
		Name:     "recipe_suggestions",
		System:   "sys",
		Messages: []string{"one", "two"},
		Schema:   schemaFor(&suggestions{}),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"recipes":["Soup"]}`, content)

	assert.Equal(t, defaultOpenRouterModel, got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "two", got.Messages[2].Content)
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	assert.True(t, got.ResponseFormat.JSONSchema.Strict)
	assert.Equal(t, "recipe_suggestions", got.ResponseFormat.JSONSchema.Name)
}

func TestOpenRouterErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad schema"}}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("key", "some/model", srv.URL, 5*time.Second)
	_, err := c.CompleteJSON(context.Background(), JSONRequest{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad schema")
	assert.Contains(t, err.Error(), "400")
}

func TestMessageContent(t *testing.T) {
	got, err := messageContent(json.RawMessage(`"{\"a\":1}"`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)

	_, err = messageContent(json.RawMessage(`"  "`))
	require.Error(t, err)

	_, err = messageContent(json.RawMessage(`[{"type":"image","text":"x"}]`))
	require.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1} "))
}
