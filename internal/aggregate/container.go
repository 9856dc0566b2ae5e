package aggregate

import "mealgraph/internal/nutrition"

// RecomputeContainer rewrites the derived fields of c from its non-empty
// slots. Allergens pass through as each meal reports them. With every slot
// empty the macros are zero, the intersections empty and the container
// counts as verified.
func RecomputeContainer(c *nutrition.Container) {
	var (
		macros      nutrition.Macros
		allergens   []nutrition.TagSet
		health      []nutrition.TagSet
		preferences []nutrition.TagSet
		verified    = true
	)

	for _, m := range c.Filled() {
		macros = macros.Add(m.Macros)
		allergens = append(allergens, m.Allergens)
		health = append(health, m.Health)
		preferences = append(preferences, m.Preferences)
		verified = verified && m.Verified
	}

	c.Macros = macros
	c.Allergens = unionAll(allergens)
	c.Health = intersectAll(health)
	c.Preferences = intersectAll(preferences)
	c.Verified = verified
}
