package query

import (
	"strings"

	"mealgraph/internal/nutrition"
)

// predicate reports whether an entity passes one filter. Each predicate
// passes everything when its filter is absent.
type predicate func(e Entity, s nutrition.Summary) bool

func (c *criteria) predicates() []predicate {
	return []predicate{
		c.matchText,
		func(_ Entity, s nutrition.Summary) bool { return s.Preferences.ContainsAll(c.preferences) },
		func(_ Entity, s nutrition.Summary) bool { return s.Allergens.Disjoint(c.allergens) },
		func(_ Entity, s nutrition.Summary) bool { return s.Health.ContainsAll(c.health) },
		inRange(c.MinCalories, c.MaxCalories, func(m nutrition.Macros) float64 { return m.Calories }),
		inRange(c.MinProtein, c.MaxProtein, func(m nutrition.Macros) float64 { return m.Protein }),
		inRange(c.MinFat, c.MaxFat, func(m nutrition.Macros) float64 { return m.Fat }),
		func(_ Entity, s nutrition.Summary) bool { return !c.VerifiedOnly || s.Verified },
		func(_ Entity, s nutrition.Summary) bool { return c.OwnerID == nil || s.OwnerID == *c.OwnerID },
		c.matchRecipe,
		c.matchMeal,
	}
}

func (c *criteria) matches(e Entity) bool {
	s := e.Summary()
	for _, p := range c.predicates() {
		if !p(e, s) {
			return false
		}
	}
	return true
}

func (c *criteria) matchText(e Entity, s nutrition.Summary) bool {
	if c.text == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.Name), c.text) {
		return true
	}
	r, ok := e.(*nutrition.Recipe)
	if !ok {
		return false
	}
	if strings.Contains(strings.ToLower(r.Description), c.text) {
		return true
	}
	for _, name := range r.IngredientNames() {
		if strings.Contains(strings.ToLower(name), c.text) {
			return true
		}
	}
	return false
}

func inRange(lo, hi *float64, field func(nutrition.Macros) float64) predicate {
	return func(_ Entity, s nutrition.Summary) bool {
		v := field(s.Macros)
		if lo != nil && v < *lo {
			return false
		}
		if hi != nil && v > *hi {
			return false
		}
		return true
	}
}

func (c *criteria) matchRecipe(e Entity, _ nutrition.Summary) bool {
	r, ok := e.(*nutrition.Recipe)
	if !ok || c.MaxTotalMinutes == nil {
		return true
	}
	return r.TotalMinutes() <= *c.MaxTotalMinutes
}

func (c *criteria) matchMeal(e Entity, _ nutrition.Summary) bool {
	m, ok := e.(*nutrition.Meal)
	if !ok || c.mealTypes.Len() == 0 {
		return true
	}
	return !m.MealTypes.Disjoint(c.mealTypes)
}
