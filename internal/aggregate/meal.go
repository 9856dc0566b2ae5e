// Package aggregate recomputes derived attributes bottom-up: meal items from
// their source, recipes from their ingredients, meals from their items and
// containers from their meal slots. Every function here mutates only the
// entity it is given and never persists anything.
package aggregate

import (
	"errors"
	"fmt"

	"mealgraph/internal/nutrition"
)

// RecomputeMeal rewrites every derived field of m from its items.
//
// Items without a bound source are left out of every sum, union and
// intersection; each one is reported in the returned error (wrapping
// nutrition.ErrMissingComponent) while the rest of the meal is still
// recomputed. Verification is vacuously true for a meal with no items, and
// the intersections are empty.
func RecomputeMeal(m *nutrition.Meal) error {
	var (
		missing     []error
		macros      nutrition.Macros
		allergens   []nutrition.TagSet
		health      []nutrition.TagSet
		preferences []nutrition.TagSet
		verified    = true
	)

	for i, it := range m.Items {
		if it == nil || !it.HasComponent() {
			missing = append(missing, missingItem(m, i, it))
			continue
		}
		macros = macros.Add(it.Macros)
		allergens = append(allergens, it.Allergens)
		health = append(health, it.Health)
		preferences = append(preferences, it.Preferences)
		verified = verified && it.Verified
	}

	m.Macros = macros
	m.Allergens = withAllergenSentinel(unionAll(allergens))
	m.Health = intersectAll(health)
	m.Preferences = intersectAll(preferences)
	m.Verified = verified

	if m.Name == "" && m.OwnerName != "" {
		m.Name = m.OwnerName + "'s Meal"
	}

	return errors.Join(missing...)
}

func missingItem(m *nutrition.Meal, idx int, it *nutrition.MealItem) error {
	if it == nil {
		return fmt.Errorf("meal %d item #%d: %w", m.ID, idx, nutrition.ErrMissingComponent)
	}
	return fmt.Errorf("meal %d item %d: %w", m.ID, it.ID, nutrition.ErrMissingComponent)
}
