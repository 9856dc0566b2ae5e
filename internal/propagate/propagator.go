// Package propagate pushes a leaf-level change up the ownership graph
// ingredient -> recipe -> meal item -> meal -> container, recomputing every
// dependent node once per cascade.
package propagate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mealgraph/internal/aggregate"
	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
)

// Propagator runs cascades against a Graph. Cascades started through the same
// Propagator never interleave; atomicity across processes is the Graph's
// concern.
type Propagator struct {
	graph   Graph
	inferer aggregate.TagInferer
	log     *logger.Logger

	mu sync.Mutex
}

// New creates a Propagator. inferer may be nil, in which case recipe
// preferences and health conditions are intersections over the ingredients.
func New(graph Graph, inferer aggregate.TagInferer, log *logger.Logger) *Propagator {
	return &Propagator{graph: graph, inferer: inferer, log: log}
}

// OnBaseIngredientChanged recomputes every recipe binding the ingredient and
// refreshes every meal item bound to it directly, then everything above them.
func (p *Propagator) OnBaseIngredientChanged(ctx context.Context, ingredientID int64) (*Report, error) {
	ref := nutrition.Ref{Kind: nutrition.KindIngredient, ID: ingredientID}
	if _, err := p.graph.Ingredient(ctx, ingredientID); err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	recipes, err := p.graph.RecipesWithIngredient(ctx, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("recipes with %s: %w", ref, err)
	}
	items, err := p.graph.MealItemsWithSource(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("meal items with %s: %w", ref, err)
	}

	return p.run(ctx, ref, func(c *cascade) {
		c.push(layerRecipe, recipes...)
		c.push(layerItem, items...)
	}), nil
}

// OnRecipeChanged refreshes every meal item bound to the recipe and
// everything above them. The recipe's own derived fields are taken as they
// are stored.
func (p *Propagator) OnRecipeChanged(ctx context.Context, recipeID int64) (*Report, error) {
	ref := nutrition.Ref{Kind: nutrition.KindRecipe, ID: recipeID}
	if _, err := p.graph.Recipe(ctx, recipeID); err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	items, err := p.graph.MealItemsWithSource(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("meal items with %s: %w", ref, err)
	}

	return p.run(ctx, ref, func(c *cascade) {
		c.push(layerItem, items...)
	}), nil
}

// OnRecipeEdited recomputes the recipe itself from its ingredients before
// cascading like OnRecipeChanged. Use it after the recipe's bindings change.
func (p *Propagator) OnRecipeEdited(ctx context.Context, recipeID int64) (*Report, error) {
	ref := nutrition.Ref{Kind: nutrition.KindRecipe, ID: recipeID}
	if _, err := p.graph.Recipe(ctx, recipeID); err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	return p.run(ctx, ref, func(c *cascade) {
		c.push(layerRecipe, recipeID)
	}), nil
}

// OnMealItemChanged recomputes the item's owning meal and every container
// referencing it. The item's cached fields are taken as they are stored.
func (p *Propagator) OnMealItemChanged(ctx context.Context, itemID int64) (*Report, error) {
	ref := nutrition.Ref{Kind: nutrition.KindMealItem, ID: itemID}
	it, err := p.graph.MealItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	return p.run(ctx, ref, func(c *cascade) {
		c.push(layerMeal, it.MealID)
	}), nil
}

// OnMealChanged recomputes every container with a slot referencing the meal.
func (p *Propagator) OnMealChanged(ctx context.Context, mealID int64) (*Report, error) {
	ref := nutrition.Ref{Kind: nutrition.KindMeal, ID: mealID}
	if _, err := p.graph.Meal(ctx, mealID); err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	containers, err := p.graph.ContainersWithMeal(ctx, mealID)
	if err != nil {
		return nil, fmt.Errorf("containers with %s: %w", ref, err)
	}

	return p.run(ctx, ref, func(c *cascade) {
		c.push(layerContainer, containers...)
	}), nil
}

// OnMealItemEdited refreshes the item from its source before recomputing
// its meal and containers. Use it after the item's quantity or component
// changes.
func (p *Propagator) OnMealItemEdited(ctx context.Context, itemID int64) (*Report, error) {
	ref := nutrition.Ref{Kind: nutrition.KindMealItem, ID: itemID}
	if _, err := p.graph.MealItem(ctx, itemID); err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	return p.run(ctx, ref, func(c *cascade) {
		c.push(layerItem, itemID)
	}), nil
}

// OnMealEdited refreshes every item of the meal, recomputes the meal and
// then its containers. The meal is recomputed even when an item fails.
func (p *Propagator) OnMealEdited(ctx context.Context, mealID int64) (*Report, error) {
	ref := nutrition.Ref{Kind: nutrition.KindMeal, ID: mealID}
	m, err := p.graph.Meal(ctx, mealID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	return p.run(ctx, ref, func(c *cascade) {
		for _, it := range m.Items {
			if it != nil {
				c.push(layerItem, it.ID)
			}
		}
		c.push(layerMeal, mealID)
	}), nil
}

// OnContainerEdited recomputes one container from its slot meals as stored.
func (p *Propagator) OnContainerEdited(ctx context.Context, containerID int64) (*Report, error) {
	ref := nutrition.Ref{Kind: nutrition.KindContainer, ID: containerID}
	if _, err := p.graph.Container(ctx, containerID); err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	return p.run(ctx, ref, func(c *cascade) {
		c.push(layerContainer, containerID)
	}), nil
}

func (p *Propagator) run(ctx context.Context, trigger nutrition.Ref, seed func(*cascade)) *Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := newCascade(p, trigger)
	seed(c)
	p.log.Debug("cascade %s from %s started", c.report.ID, trigger)

	c.drain(ctx)

	r := c.report
	r.Duration = time.Since(r.Started)
	if len(r.Failures) > 0 {
		p.log.Warn("cascade %s from %s: %d nodes recomputed, %d failures", r.ID, trigger, r.Recomputed(), len(r.Failures))
	} else {
		p.log.Info("cascade %s from %s: %d nodes recomputed in %s", r.ID, trigger, r.Recomputed(), r.Duration)
	}
	return r
}
