// Package inference holds what the model-backed tag inferers share: the
// prompt and a response cache keyed on the prompt's fingerprint.
package inference

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"mealgraph/internal/nutrition"
)

// Prompt asks a model which known dietary preferences and health conditions
// a dish satisfies, as a JSON object.
func Prompt(name string, ingredients []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dish: %s\n", name)
	if len(ingredients) > 0 {
		fmt.Fprintf(&b, "Ingredients: %s\n", strings.Join(ingredients, ", "))
	}
	fmt.Fprintf(&b, "Dietary preferences to choose from: %s\n", joinTags(nutrition.KnownPreferences))
	fmt.Fprintf(&b, "Health conditions to choose from: %s\n", joinTags(nutrition.KnownHealth))
	b.WriteString("Return a single, clean JSON object with two keys: 'dietary_preferences' (array of strings) " +
		"listing every dietary preference the dish satisfies, and 'health_conditions' (array of strings) listing " +
		"every health condition the dish is suitable for. Use only values from the lists above. " +
		"The JSON response should be clean and not contain any markdown formatting.")
	return b.String()
}

func joinTags(s nutrition.TagSet) string {
	parts := make([]string, 0, s.Len())
	for _, t := range s.Sorted() {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ", ")
}

// Fingerprint is the SHA256 of name and ingredients, independent of
// ingredient order.
func Fingerprint(name string, ingredients []string) string {
	sorted := append([]string(nil), ingredients...)
	sort.Strings(sorted)
	hash := sha256.Sum256([]byte(strings.ToLower(name) + "\x00" + strings.ToLower(strings.Join(sorted, "\x00"))))
	return hex.EncodeToString(hash[:])
}
