package propagate

import (
	"context"

	"mealgraph/internal/aggregate"
	"mealgraph/internal/nutrition"
)

// layer orders node kinds so that every node is visited after all of the
// nodes it can depend on within the same cascade.
type layer int

const (
	layerRecipe layer = iota
	layerItem
	layerMeal
	layerContainer

	layerCount
)

var layerKinds = [layerCount]nutrition.Kind{
	nutrition.KindRecipe,
	nutrition.KindMealItem,
	nutrition.KindMeal,
	nutrition.KindContainer,
}

// cascade is the worklist of one run. A node is queued at most once; layers
// drain in order and a visit only ever queues into a later layer.
type cascade struct {
	p       *Propagator
	report  *Report
	pending [layerCount][]int64
	queued  [layerCount]map[int64]struct{}
}

func newCascade(p *Propagator, trigger nutrition.Ref) *cascade {
	c := &cascade{p: p, report: newReport(trigger)}
	for i := range c.queued {
		c.queued[i] = make(map[int64]struct{})
	}
	return c
}

func (c *cascade) push(l layer, ids ...int64) {
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := c.queued[l][id]; ok {
			continue
		}
		c.queued[l][id] = struct{}{}
		c.pending[l] = append(c.pending[l], id)
	}
}

func (c *cascade) drain(ctx context.Context) {
	for l := layerRecipe; l < layerCount; l++ {
		for len(c.pending[l]) > 0 {
			id := c.pending[l][0]
			c.pending[l] = c.pending[l][1:]
			c.visit(ctx, l, id)
		}
	}
}

func (c *cascade) visit(ctx context.Context, l layer, id int64) {
	switch l {
	case layerRecipe:
		c.recipe(ctx, id)
	case layerItem:
		c.item(ctx, id)
	case layerMeal:
		c.meal(ctx, id)
	case layerContainer:
		c.container(ctx, id)
	}
}

func (c *cascade) fail(l layer, id int64, err error) {
	node := nutrition.Ref{Kind: layerKinds[l], ID: id}
	c.report.fail(node, err)
	c.p.log.Warn("cascade %s: %s: %v", c.report.ID, node, err)
}

// recipe recomputes and saves a recipe, then queues the items bound to it.
// Skipped bindings are reported but do not stop the branch.
func (c *cascade) recipe(ctx context.Context, id int64) {
	g := c.p.graph
	r, err := g.Recipe(ctx, id)
	if err != nil {
		c.fail(layerRecipe, id, err)
		return
	}
	if err := aggregate.RecomputeRecipe(ctx, r, c.p.inferer); err != nil {
		c.fail(layerRecipe, id, err)
	}
	if err := g.SaveRecipe(ctx, r); err != nil {
		c.fail(layerRecipe, id, err)
		return
	}
	c.report.Recipes++

	items, err := g.MealItemsWithSource(ctx, r.Ref())
	if err != nil {
		c.fail(layerRecipe, id, err)
		return
	}
	c.push(layerItem, items...)
}

// item refreshes a meal item's cache. A failed refresh leaves the stored
// cache as it was and stops the branch; the owning meal is not recomputed.
func (c *cascade) item(ctx context.Context, id int64) {
	g := c.p.graph
	it, err := g.MealItem(ctx, id)
	if err != nil {
		c.fail(layerItem, id, err)
		return
	}
	if err := aggregate.RefreshItem(it); err != nil {
		c.fail(layerItem, id, err)
		return
	}
	if err := g.SaveMealItem(ctx, it); err != nil {
		c.fail(layerItem, id, err)
		return
	}
	c.report.Items++
	c.push(layerMeal, it.MealID)
}

// meal recomputes a meal from its stored items. Items without a source are
// reported and left out; the meal is still saved and its containers queued.
func (c *cascade) meal(ctx context.Context, id int64) {
	g := c.p.graph
	m, err := g.Meal(ctx, id)
	if err != nil {
		c.fail(layerMeal, id, err)
		return
	}
	if err := aggregate.RecomputeMeal(m); err != nil {
		c.fail(layerMeal, id, err)
	}
	if err := g.SaveMeal(ctx, m); err != nil {
		c.fail(layerMeal, id, err)
		return
	}
	c.report.Meals++

	containers, err := g.ContainersWithMeal(ctx, id)
	if err != nil {
		c.fail(layerMeal, id, err)
		return
	}
	c.push(layerContainer, containers...)
}

func (c *cascade) container(ctx context.Context, id int64) {
	g := c.p.graph
	ct, err := g.Container(ctx, id)
	if err != nil {
		c.fail(layerContainer, id, err)
		return
	}
	aggregate.RecomputeContainer(ct)
	if err := g.SaveContainer(ctx, ct); err != nil {
		c.fail(layerContainer, id, err)
		return
	}
	c.report.Containers++
}
