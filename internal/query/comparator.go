package query

import (
	"context"

	"mealgraph/internal/nutrition"
)

// sortValue is an entity's value under the chosen sort key. A null value
// sorts after every non-null one in either direction.
type sortValue struct {
	v    float64
	null bool
}

type ranked struct {
	e   Entity
	ref nutrition.Ref
	key sortValue
}

// keyFunc extracts the sort value of an entity.
type keyFunc func(ctx context.Context, e Entity) sortValue

func (eng *Engine) keyFor(sortBy string) keyFunc {
	switch sortBy {
	case SortLikes:
		return eng.likeCount
	case SortCalories:
		return macroKey(func(m nutrition.Macros) float64 { return m.Calories })
	case SortProtein:
		return macroKey(func(m nutrition.Macros) float64 { return m.Protein })
	default:
		return func(_ context.Context, e Entity) sortValue {
			return sortValue{v: float64(e.Ref().ID)}
		}
	}
}

// macroKey treats a recipe without total weight as having no known
// macronutrients.
func macroKey(field func(nutrition.Macros) float64) keyFunc {
	return func(_ context.Context, e Entity) sortValue {
		if r, ok := e.(*nutrition.Recipe); ok && r.TotalWeight <= 0 {
			return sortValue{null: true}
		}
		return sortValue{v: field(e.Summary().Macros)}
	}
}

func (eng *Engine) likeCount(ctx context.Context, e Entity) sortValue {
	if eng.likes == nil {
		return sortValue{null: true}
	}
	n, err := eng.likes.Likes(ctx, e.Ref())
	if err != nil {
		eng.log.Warn("like count for %s: %v", e.Ref(), err)
		return sortValue{null: true}
	}
	return sortValue{v: float64(n)}
}

// less orders a before b: non-null before null, then by value (reversed when
// desc), then by kind and id ascending so the order is total.
func less(a, b ranked, desc bool) bool {
	if a.key.null != b.key.null {
		return !a.key.null
	}
	if !a.key.null && a.key.v != b.key.v {
		if desc {
			return a.key.v > b.key.v
		}
		return a.key.v < b.key.v
	}
	if a.ref.Kind != b.ref.Kind {
		return a.ref.Kind < b.ref.Kind
	}
	return a.ref.ID < b.ref.ID
}
