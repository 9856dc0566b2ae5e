package propagate

import (
	"context"

	"mealgraph/internal/nutrition"
)

// Graph is the persistence collaborator a cascade reads and writes through.
//
// Loads return nutrition.ErrNotFound (wrapped) for a missing id and resolve
// the references one level down: a recipe comes with its ingredients, a meal
// item with its source, a meal with its items and a container with its slot
// meals. Reverse lookups return ids in ascending order. Saves persist only
// the derived fields of the entity.
type Graph interface {
	Ingredient(ctx context.Context, id int64) (*nutrition.Ingredient, error)
	Recipe(ctx context.Context, id int64) (*nutrition.Recipe, error)
	MealItem(ctx context.Context, id int64) (*nutrition.MealItem, error)
	Meal(ctx context.Context, id int64) (*nutrition.Meal, error)
	Container(ctx context.Context, id int64) (*nutrition.Container, error)

	RecipesWithIngredient(ctx context.Context, ingredientID int64) ([]int64, error)
	MealItemsWithSource(ctx context.Context, source nutrition.Ref) ([]int64, error)
	ContainersWithMeal(ctx context.Context, mealID int64) ([]int64, error)

	SaveRecipe(ctx context.Context, r *nutrition.Recipe) error
	SaveMealItem(ctx context.Context, it *nutrition.MealItem) error
	SaveMeal(ctx context.Context, m *nutrition.Meal) error
	SaveContainer(ctx context.Context, c *nutrition.Container) error
}
