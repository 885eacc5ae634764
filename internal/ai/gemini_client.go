package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ Completer = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) CompleteJSON(ctx context.Context, jr JSONRequest) (string, error) {
	contents := make([]*genai.Content, 0, len(jr.Messages))
	for _, m := range jr.Messages {
		contents = append(contents, genai.NewContentFromText(m, genai.RoleUser))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(jr.System, genai.RoleUser),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: jr.Schema,
		Temperature:        genai.Ptr(float32(jr.Temperature)),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", fmt.Errorf("gemini returned empty response content")
	}
	if resp.UsageMetadata != nil {
		slog.InfoContext(ctx, "API usage",
			"request", jr.Name,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"total_tokens", resp.UsageMetadata.TotalTokenCount)
	}
	return content, nil
}
