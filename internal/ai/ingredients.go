package ai

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Casers carry state and must not be shared between goroutines.
func lower(s string) string {
	return cases.Lower(language.English).String(s)
}

// ParseIngredients splits a comma separated ingredient string into lower case,
// de-duplicated entries.
func ParseIngredients(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	parts = lo.Map(parts, func(p string, _ int) string {
		return strings.Join(strings.Fields(lower(p)), " ")
	})
	return lo.Uniq(lo.Compact(parts))
}

// normalizeName folds a recipe name so that "Chicken Soup" and " chicken  soup"
// share a cache entry.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(cases.Fold().String(name)), " ")
}

// singular strips common English plural endings. It is deliberately crude and
// only used by the offline mock backend and the subset check.
func singular(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return strings.TrimSuffix(word, "ies") + "y"
	case strings.HasSuffix(word, "oes") && len(word) > 4:
		return strings.TrimSuffix(word, "es")
	case strings.HasSuffix(word, "ches"), strings.HasSuffix(word, "shes"), strings.HasSuffix(word, "sses"):
		return strings.TrimSuffix(word, "es")
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && len(word) > 3:
		return strings.TrimSuffix(word, "s")
	}
	return word
}

// sameIngredient reports whether two ingredient phrases name the same thing,
// ignoring case, plurals and quantities on either side.
func sameIngredient(a, b string) bool {
	wa := words(a)
	wb := words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	short, long := wa, wb
	if len(short) > len(long) {
		short, long = long, short
	}
	// every word of the shorter phrase must appear, in order, in the longer one
	i := 0
	for _, w := range long {
		if i < len(short) && w == short[i] {
			i++
		}
	}
	return i == len(short)
}

func words(s string) []string {
	fields := strings.FieldsFunc(lower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r < 0x80
	})
	return lo.Map(fields, func(w string, _ int) string { return singular(w) })
}
