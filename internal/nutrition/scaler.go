package nutrition

import "fmt"

// Scale returns the macronutrient contribution of qty units of src.
//
// A nil source, a zero quantity or an empty unit yields the zero value and
// no error. Ingredients scale their per-100g values by grams/100. Recipes
// scale their total by grams/TotalWeight, where a Serving quantity is first
// converted to grams through the recipe's serving count; a recipe without
// total weight fails with ErrDivisionUndefined.
func Scale(src Source, qty float64, unit Unit) (Macros, error) {
	if src == nil || qty == 0 || unit == "" {
		return Macros{}, nil
	}
	if qty < 0 {
		return Macros{}, fmt.Errorf("%w: negative quantity %g", ErrInvalidRequest, qty)
	}

	switch s := src.(type) {
	case *Ingredient:
		if s == nil {
			return Macros{}, nil
		}
		grams, err := ToGrams(qty, unit)
		if err != nil {
			return Macros{}, err
		}
		return s.Per100g.Scale(grams / 100), nil
	case *Recipe:
		if s == nil {
			return Macros{}, nil
		}
		return scaleRecipe(s, qty, unit)
	default:
		return Macros{}, fmt.Errorf("unsupported nutritional source %T", src)
	}
}

func scaleRecipe(r *Recipe, qty float64, unit Unit) (Macros, error) {
	if r.TotalWeight <= 0 {
		return Macros{}, fmt.Errorf("recipe %d has no total weight: %w", r.ID, ErrDivisionUndefined)
	}

	var grams float64
	if unit.IsServing() {
		if r.Servings <= 0 {
			return Macros{}, fmt.Errorf("recipe %d has no serving count: %w", r.ID, ErrDivisionUndefined)
		}
		grams = r.TotalWeight / float64(r.Servings) * qty
	} else {
		var err error
		grams, err = ToGrams(qty, unit)
		if err != nil {
			return Macros{}, err
		}
	}
	return r.Macros.Scale(grams / r.TotalWeight), nil
}
