package ai

import (
	"fmt"
	"strings"
)

// SystemMessage is shared so provider-specific clients can reuse identical behavior.
const SystemMessage = `You are a professional chef helping home cooks turn what is already in their fridge into a meal.

# Instructions
- Favor recipes that use the ingredients the user has on hand and need few extra purchases.
- Assume a normal pantry of salt, pepper, oil and water.
- Keep recipes practical for a weeknight unless the user asks otherwise.
- Answer only with JSON that matches the requested schema.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func systemMessage(msg string) chatMessage {
	return chatMessage{Role: "system", Content: msg}
}

func userMessage(msg string) chatMessage {
	return chatMessage{Role: "user", Content: msg}
}

func bulleted(items []string) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String()
}

func suggestionMessages(ingredients []string) []string {
	return []string{
		"Ingredients on hand:\n" + bulleted(ingredients),
		"Suggest up to 6 distinct recipes that can be made mostly from these ingredients. Return only the recipe names.",
	}
}

func recipeMessages(name string) []string {
	return []string{
		fmt.Sprintf("Write the full recipe for %q.", name),
		"Include a short appetizing description, every ingredient with its quantity, clear step by step instructions, the prep time and the cook time.",
	}
}

func shoppingMessages(available, required []string) []string {
	have := "nothing"
	if len(available) > 0 {
		have = "\n" + bulleted(available)
	}
	return []string{
		"Ingredients the user already has: " + have,
		"Ingredients the recipe requires:\n" + bulleted(required),
		"List the required ingredients the user still needs to buy, copied exactly as written in the required list. " +
			"Treat singular and plural forms and close synonyms as the same ingredient, for example tomato and tomatoes. " +
			"Return an empty list when nothing is missing.",
	}
}
