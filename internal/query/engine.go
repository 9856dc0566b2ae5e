// Package query filters, sorts and truncates searchable entities.
package query

import (
	"context"
	"reflect"
	"sort"

	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
)

// Entity is anything search can rank: ingredients, recipes and meals.
type Entity interface {
	Ref() nutrition.Ref
	Summary() nutrition.Summary
}

// LikeCounter returns the favorite count of an entity.
type LikeCounter interface {
	Likes(ctx context.Context, ref nutrition.Ref) (int64, error)
}

// Entities adapts a typed slice for Search. Nil elements are dropped.
func Entities[T Entity](xs []T) []Entity {
	out := make([]Entity, 0, len(xs))
	for _, x := range xs {
		if isNil(x) {
			continue
		}
		out = append(out, x)
	}
	return out
}

// isNil reports whether e is nil or holds a nil pointer.
func isNil(e Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Engine runs searches. It has no state beyond its collaborators and is
// safe for concurrent use.
type Engine struct {
	likes LikeCounter
	log   *logger.Logger
}

// NewEngine creates an Engine. likes may be nil; sorting by likes then
// treats every count as unknown.
func NewEngine(likes LikeCounter, log *logger.Logger) *Engine {
	return &Engine{likes: likes, log: log}
}

// Search returns the candidates matching every filter of req, ordered by its
// sort key and truncated to its limit. The candidates are not modified.
func (eng *Engine) Search(ctx context.Context, req Request, candidates []Entity) ([]Entity, error) {
	c, err := req.normalize()
	if err != nil {
		return nil, err
	}

	key := eng.keyFor(c.SortBy)
	matched := make([]ranked, 0, len(candidates))
	for _, e := range candidates {
		if isNil(e) || !c.matches(e) {
			continue
		}
		matched = append(matched, ranked{e: e, ref: e.Ref()})
	}
	for i := range matched {
		matched[i].key = key(ctx, matched[i].e)
	}

	sort.SliceStable(matched, func(i, j int) bool { return less(matched[i], matched[j], c.desc) })

	if len(matched) > c.Limit {
		matched = matched[:c.Limit]
	}
	out := make([]Entity, len(matched))
	for i, r := range matched {
		out[i] = r.e
	}
	eng.log.Debug("search sort=%s %s limit=%d: %d of %d candidates", c.SortBy, c.SortDirection, c.Limit, len(out), len(candidates))
	return out, nil
}
