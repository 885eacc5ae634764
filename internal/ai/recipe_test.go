package ai

import (
	"testing"
)

func TestRecipeComputeHash(t *testing.T) {
	recipe := Recipe{
		Title:        "Test Recipe",
		Description:  "A delicious test recipe",
		Ingredients:  []string{"1 cup Ingredient 1", "2 tbsp Ingredient 2"},
		Instructions: []string{"Step 1", "Step 2"},
		PrepTime:     "5 minutes",
		CookTime:     "10 minutes",
	}

	hash1 := recipe.ComputeHash()
	if hash1 == "" {
		t.Fatal("hash should not be empty")
	}

	// Hash should be consistent
	hash2 := recipe.ComputeHash()
	if hash1 != hash2 {
		t.Fatalf("hash should be consistent: %s != %s", hash1, hash2)
	}

	// image is metadata
	recipe.ImageURL = "https://example.com/soup.jpg"
	if got := recipe.ComputeHash(); got != hash1 {
		t.Fatalf("image should not change the hash: %s != %s", got, hash1)
	}

	// Different recipe should have different hash
	recipe2 := recipe
	recipe2.Title = "Different Recipe"
	hash3 := recipe2.ComputeHash()
	if hash1 == hash3 {
		t.Fatalf("different recipes should have different hashes")
	}
}

func TestRecipeCloneIsDeep(t *testing.T) {
	recipe := Recipe{Title: "Soup", Ingredients: []string{"water"}, Instructions: []string{"boil"}}
	clone := recipe.Clone()
	clone.Ingredients[0] = "stock"
	clone.Instructions[0] = "simmer"
	if recipe.Ingredients[0] != "water" || recipe.Instructions[0] != "boil" {
		t.Fatalf("clone shares backing arrays with original: %+v", recipe)
	}
}

func TestRecipeValidate(t *testing.T) {
	valid := Recipe{Title: "Soup", Ingredients: []string{"water"}, Instructions: []string{"boil"}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid recipe, got %v", err)
	}
	for name, r := range map[string]Recipe{
		"title":        {Ingredients: []string{"water"}, Instructions: []string{"boil"}},
		"ingredients":  {Title: "Soup", Instructions: []string{"boil"}},
		"instructions": {Title: "Soup", Ingredients: []string{"water"}},
	} {
		if err := r.Validate(); err == nil {
			t.Fatalf("expected error for missing %s", name)
		}
	}
}
