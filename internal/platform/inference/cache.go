package inference

import (
	"context"
	"sync"

	"mealgraph/internal/aggregate"
	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
)

// Compile-time interface check.
var _ aggregate.TagInferer = (*Cache)(nil)

// Cache remembers successful answers of an inferer by Fingerprint, so a
// cascade that recomputes the same recipe twice asks the model once.
// Failures are not cached.
type Cache struct {
	next aggregate.TagInferer
	log  *logger.Logger

	mu      sync.RWMutex
	answers map[string]nutrition.InferredTags
}

// NewCache wraps next.
func NewCache(next aggregate.TagInferer, log *logger.Logger) *Cache {
	return &Cache{next: next, log: log, answers: make(map[string]nutrition.InferredTags)}
}

func (c *Cache) InferTags(ctx context.Context, ref nutrition.Ref, name string, ingredients []string) (nutrition.InferredTags, error) {
	key := Fingerprint(name, ingredients)

	c.mu.RLock()
	tags, ok := c.answers[key]
	c.mu.RUnlock()
	if ok {
		c.log.Debug("inferred tags for %s found in cache", ref)
		return clone(tags), nil
	}

	c.log.Debug("inferred tags for %s not cached, asking model", ref)
	tags, err := c.next.InferTags(ctx, ref, name, ingredients)
	if err != nil {
		return nutrition.InferredTags{}, err
	}

	c.mu.Lock()
	c.answers[key] = clone(tags)
	c.mu.Unlock()
	return tags, nil
}

func clone(t nutrition.InferredTags) nutrition.InferredTags {
	return nutrition.InferredTags{Preferences: t.Preferences.Clone(), Health: t.Health.Clone()}
}
