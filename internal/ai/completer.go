package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// JSONRequest is a single structured-output completion.
type JSONRequest struct {
	Name        string
	System      string
	Messages    []string
	Schema      map[string]any
	Temperature float64
}

// Completer is implemented by every model provider. It returns the raw JSON
// document produced by the model.
type Completer interface {
	CompleteJSON(ctx context.Context, req JSONRequest) (string, error)
}

func schemaFor(v any) map[string]any {
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(v)
	schemaJSON, _ := json.Marshal(schema)

	var m map[string]any
	_ = json.Unmarshal(schemaJSON, &m)
	// providers reject the draft marker in strict mode
	delete(m, "$schema")
	return m
}

func decodeJSON(content string, v any) error {
	content = stripCodeFence(content)
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("failed to parse AI response: %w", err)
	}
	return nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
