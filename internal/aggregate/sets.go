package aggregate

import "mealgraph/internal/nutrition"

// unionAll returns the union of sets; empty input gives an empty set.
func unionAll(sets []nutrition.TagSet) nutrition.TagSet {
	out := nutrition.NewTagSet()
	for _, s := range sets {
		for t := range s {
			out[t] = struct{}{}
		}
	}
	return out
}

// intersectAll seeds with the first set and retains-only for each
// following one. Empty input gives an empty set.
func intersectAll(sets []nutrition.TagSet) nutrition.TagSet {
	if len(sets) == 0 {
		return nutrition.NewTagSet()
	}
	out := sets[0].Clone()
	for _, s := range sets[1:] {
		out = out.Intersect(s)
	}
	return out
}

// withAllergenSentinel drops AllergenFree when real allergens are present
// and adds it when nothing is left.
func withAllergenSentinel(s nutrition.TagSet) nutrition.TagSet {
	if s.Len() > 0 {
		s = s.Without(nutrition.AllergenFree)
	}
	if s.Len() == 0 {
		return nutrition.NewTagSet(nutrition.AllergenFree)
	}
	return s
}
