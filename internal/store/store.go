// Package store persists the food graph. MemoryStore backs tests and the
// CLI's dry runs; PostgresStore backs the service.
package store

import (
	"context"

	"mealgraph/internal/nutrition"
	"mealgraph/internal/propagate"
)

// Store defines the data operations of the food graph. It embeds the
// cascade's Graph, adding writes of user-owned fields and listings for search.
//
// Put* methods insert when the entity's ID is zero (assigning it) and update
// otherwise; they write both user-owned and derived fields. Save* methods
// from propagate.Graph write derived fields only.
type Store interface {
	propagate.Graph

	PutIngredient(ctx context.Context, i *nutrition.Ingredient) error
	PutRecipe(ctx context.Context, r *nutrition.Recipe) error
	PutMeal(ctx context.Context, m *nutrition.Meal) error
	PutMealItem(ctx context.Context, it *nutrition.MealItem) error
	PutContainer(ctx context.Context, c *nutrition.Container) error

	ListIngredients(ctx context.Context) ([]*nutrition.Ingredient, error)
	ListRecipes(ctx context.Context) ([]*nutrition.Recipe, error)
	ListMeals(ctx context.Context) ([]*nutrition.Meal, error)

	Close() error
}
