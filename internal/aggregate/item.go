package aggregate

import (
	"fmt"

	"mealgraph/internal/nutrition"
)

// RefreshItem rewrites the cached copy held by it from its current source
// and quantity. On error the cache is left untouched.
func RefreshItem(it *nutrition.MealItem) error {
	if !it.HasComponent() {
		return fmt.Errorf("meal item %d (%s): %w", it.ID, it.Component, nutrition.ErrMissingComponent)
	}

	macros, err := nutrition.Scale(it.Source, it.Quantity, it.Unit)
	if err != nil {
		return fmt.Errorf("meal item %d: %w", it.ID, err)
	}

	s := it.Source.Summary()
	it.Component = it.Source.Ref()
	it.Name = s.Name
	it.Verified = s.Verified
	it.Preferences = s.Preferences.Clone()
	it.Allergens = s.Allergens.Clone()
	it.Health = s.Health.Clone()
	it.Macros = macros
	return nil
}
