package aggregate

import (
	"context"
	"errors"
	"fmt"

	"mealgraph/internal/nutrition"
)

// TagInferer answers which dietary preferences and health conditions a
// source satisfies. It is backed by an external reasoner.
type TagInferer interface {
	InferTags(ctx context.Context, ref nutrition.Ref, name string, ingredients []string) (nutrition.InferredTags, error)
}

// RecomputeRecipe rewrites the derived fields of r from its ingredient
// bindings: total weight, total macros, allergens (with the sentinel rule),
// verification (every bound ingredient verified) and, when inferer is nil or
// fails, preferences and health conditions as intersections over the
// ingredients. Bindings that are unresolved or use an unknown unit are
// skipped and reported.
func RecomputeRecipe(ctx context.Context, r *nutrition.Recipe, inferer TagInferer) error {
	var (
		errs        []error
		weight      float64
		macros      nutrition.Macros
		allergens   []nutrition.TagSet
		health      []nutrition.TagSet
		preferences []nutrition.TagSet
		verified    = true
	)

	for i, b := range r.Ingredients {
		if b.Ingredient == nil {
			errs = append(errs, fmt.Errorf("recipe %d binding #%d (ingredient %d): %w", r.ID, i, b.IngredientID, nutrition.ErrMissingComponent))
			continue
		}
		grams, err := nutrition.ToGrams(b.Quantity, b.Unit)
		if err != nil {
			errs = append(errs, fmt.Errorf("recipe %d binding #%d: %w", r.ID, i, err))
			continue
		}
		contribution, err := nutrition.Scale(b.Ingredient, b.Quantity, b.Unit)
		if err != nil {
			errs = append(errs, fmt.Errorf("recipe %d binding #%d: %w", r.ID, i, err))
			continue
		}

		weight += grams
		macros = macros.Add(contribution)
		allergens = append(allergens, b.Ingredient.Allergens)
		health = append(health, b.Ingredient.Health)
		preferences = append(preferences, b.Ingredient.Preferences)
		verified = verified && b.Ingredient.Verified
	}

	r.TotalWeight = weight
	r.Macros = macros
	r.Allergens = withAllergenSentinel(unionAll(allergens))
	r.Verified = verified
	r.Health = intersectAll(health)
	r.Preferences = intersectAll(preferences)

	if inferer != nil {
		tags, err := inferer.InferTags(ctx, r.Ref(), r.Name, r.IngredientNames())
		if err != nil {
			errs = append(errs, fmt.Errorf("recipe %d: infer tags: %w", r.ID, err))
		} else {
			r.Preferences = tags.Preferences.Clone()
			r.Health = tags.Health.Clone()
		}
	}

	return errors.Join(errs...)
}
