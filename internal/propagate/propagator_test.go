package propagate_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
	"mealgraph/internal/propagate"
	"mealgraph/internal/store"
)

type fixture struct {
	store     *store.MemoryStore
	p         *propagate.Propagator
	oats      *nutrition.Ingredient
	milk      *nutrition.Ingredient
	porridge  *nutrition.Recipe
	breakfast *nutrition.Meal
	lunch     *nutrition.Meal
	day       *nutrition.Container
}

// newFixture builds: porridge = 80 g oats + 1 cup milk (2 servings);
// breakfast = 1 serving porridge + 40 g oats; lunch = 1 cup milk;
// day = breakfast + lunch.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore(logger.New(logger.LevelOff, nil))
	f := &fixture{store: s, p: propagate.New(s, nil, logger.New(logger.LevelOff, nil))}

	f.oats = &nutrition.Ingredient{
		Name: "Oats", Verified: true,
		Preferences: nutrition.NewTagSet(nutrition.Vegan, nutrition.Vegetarian),
		Allergens:   nutrition.NewTagSet(nutrition.Gluten),
		Per100g:     nutrition.Macros{Calories: 380},
	}
	f.milk = &nutrition.Ingredient{
		Name: "Milk", Verified: true,
		Preferences: nutrition.NewTagSet(nutrition.Vegetarian),
		Allergens:   nutrition.NewTagSet(nutrition.Dairy),
		Per100g:     nutrition.Macros{Calories: 60},
	}
	require.NoError(t, s.PutIngredient(ctx, f.oats))
	require.NoError(t, s.PutIngredient(ctx, f.milk))

	f.porridge = &nutrition.Recipe{Name: "Porridge", Servings: 2, Ingredients: []nutrition.RecipeIngredient{
		{IngredientID: f.oats.ID, Quantity: 80, Unit: nutrition.Grams},
		{IngredientID: f.milk.ID, Quantity: 1, Unit: nutrition.Cup},
	}}
	require.NoError(t, s.PutRecipe(ctx, f.porridge))

	f.breakfast = &nutrition.Meal{OwnerName: "Ada", Items: []*nutrition.MealItem{
		{Component: f.porridge.Ref(), Quantity: 1, Unit: nutrition.Serving},
		{Component: f.oats.Ref(), Quantity: 40, Unit: nutrition.Grams},
	}}
	f.lunch = &nutrition.Meal{Name: "Glass of milk", Items: []*nutrition.MealItem{
		{Component: f.milk.Ref(), Quantity: 1, Unit: nutrition.Cup},
	}}
	require.NoError(t, s.PutMeal(ctx, f.breakfast))
	require.NoError(t, s.PutMeal(ctx, f.lunch))

	f.day = &nutrition.Container{Kind: nutrition.DayEntry}
	f.day.SetSlot(nutrition.SlotBreakfast, f.breakfast)
	f.day.SetSlot(nutrition.SlotLunch, f.lunch)
	require.NoError(t, s.PutContainer(ctx, f.day))

	for _, id := range []int64{f.oats.ID, f.milk.ID} {
		report, err := f.p.OnBaseIngredientChanged(ctx, id)
		require.NoError(t, err)
		require.NoError(t, report.Err())
	}
	return f
}

func (f *fixture) meal(t *testing.T, id int64) *nutrition.Meal {
	t.Helper()
	m, err := f.store.Meal(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *fixture) container(t *testing.T, id int64) *nutrition.Container {
	t.Helper()
	c, err := f.store.Container(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestCascadePrimesDerivedFields(t *testing.T) {
	f := newFixture(t)

	r, err := f.store.Recipe(context.Background(), f.porridge.ID)
	require.NoError(t, err)
	assert.InDelta(t, 320, r.TotalWeight, 1e-9)
	assert.InDelta(t, 448, r.Macros.Calories, 1e-9)
	assert.True(t, r.Verified)

	breakfast := f.meal(t, f.breakfast.ID)
	assert.InDelta(t, 224+152, breakfast.Macros.Calories, 1e-9)
	assert.Equal(t, "Ada's Meal", breakfast.Name)
	assert.True(t, breakfast.Preferences.Equal(nutrition.NewTagSet(nutrition.Vegetarian)))
	assert.True(t, breakfast.Allergens.Equal(nutrition.NewTagSet(nutrition.Gluten, nutrition.Dairy)))

	day := f.container(t, f.day.ID)
	assert.InDelta(t, 376+144, day.Macros.Calories, 1e-9)
	assert.True(t, day.Verified)
}

func TestUnverifyingIngredientReachesEveryContainer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.milk.Verified = false
	require.NoError(t, f.store.PutIngredient(ctx, f.milk))

	report, err := f.p.OnBaseIngredientChanged(ctx, f.milk.ID)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 1, report.Recipes)
	assert.Equal(t, 2, report.Items)
	assert.Equal(t, 2, report.Meals)
	assert.Equal(t, 1, report.Containers)
	assert.NotEqual(t, uuid.Nil, report.ID)
	assert.Equal(t, f.milk.Ref(), report.Trigger)

	assert.False(t, f.meal(t, f.breakfast.ID).Verified)
	assert.False(t, f.meal(t, f.lunch.ID).Verified)
	assert.False(t, f.container(t, f.day.ID).Verified)

	f.milk.Verified = true
	require.NoError(t, f.store.PutIngredient(ctx, f.milk))
	_, err = f.p.OnBaseIngredientChanged(ctx, f.milk.ID)
	require.NoError(t, err)
	assert.True(t, f.container(t, f.day.ID).Verified)
}

func TestDiamondIsRecomputedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Oats reach breakfast both through the porridge and directly.
	f.oats.Per100g.Calories = 400
	require.NoError(t, f.store.PutIngredient(ctx, f.oats))

	report, err := f.p.OnBaseIngredientChanged(ctx, f.oats.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Recipes)
	assert.Equal(t, 2, report.Items)
	assert.Equal(t, 1, report.Meals)
	assert.Equal(t, 1, report.Containers)

	// porridge = 320 + 144 = 464, one serving 232; 40 g oats = 160.
	assert.InDelta(t, 392, f.meal(t, f.breakfast.ID).Macros.Calories, 1e-9)
	assert.InDelta(t, 392+144, f.container(t, f.day.ID).Macros.Calories, 1e-9)
}

func TestCascadeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.container(t, f.day.ID)
	_, err := f.p.OnBaseIngredientChanged(ctx, f.oats.ID)
	require.NoError(t, err)
	after := f.container(t, f.day.ID)

	assert.Equal(t, before.Macros, after.Macros)
	assert.True(t, before.Preferences.Equal(after.Preferences))
	assert.True(t, before.Allergens.Equal(after.Allergens))
	assert.Equal(t, before.Verified, after.Verified)
}

func TestOnRecipeChangedTakesRecipeAsStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.store.Recipe(ctx, f.porridge.ID)
	require.NoError(t, err)
	r.Macros.Calories = 1000
	require.NoError(t, f.store.SaveRecipe(ctx, r))

	report, err := f.p.OnRecipeChanged(ctx, f.porridge.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Recipes)
	assert.Equal(t, 1, report.Items)
	assert.Equal(t, 1, report.Meals)
	assert.InDelta(t, 500+152, f.meal(t, f.breakfast.ID).Macros.Calories, 1e-9)

	report, err = f.p.OnRecipeEdited(ctx, f.porridge.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Recipes)
	assert.InDelta(t, 224+152, f.meal(t, f.breakfast.ID).Macros.Calories, 1e-9)
}

func TestOnMealItemChangedAndOnMealChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.meal(t, f.lunch.ID)
	it := m.Items[0]
	it.Macros.Calories = 10
	require.NoError(t, f.store.SaveMealItem(ctx, it))

	report, err := f.p.OnMealItemChanged(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Items)
	assert.Equal(t, 1, report.Meals)
	assert.Equal(t, 1, report.Containers)
	assert.InDelta(t, 376+10, f.container(t, f.day.ID).Macros.Calories, 1e-9)

	report, err = f.p.OnMealChanged(ctx, f.lunch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Meals)
	assert.Equal(t, 1, report.Containers)
}

func TestFailingNodeDoesNotAbortSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	water := &nutrition.Ingredient{Name: "Water", Verified: true}
	require.NoError(t, f.store.PutIngredient(ctx, water))
	// Zero grams of water leave the recipe without total weight.
	broth := &nutrition.Recipe{Name: "Broth", Servings: 1, Ingredients: []nutrition.RecipeIngredient{
		{IngredientID: water.ID, Quantity: 0, Unit: nutrition.Grams},
	}}
	require.NoError(t, f.store.PutRecipe(ctx, broth))

	good := &nutrition.Meal{Name: "Good", Items: []*nutrition.MealItem{
		{Component: water.Ref(), Quantity: 250, Unit: nutrition.Millilitres},
	}}
	bad := &nutrition.Meal{Name: "Bad", Items: []*nutrition.MealItem{
		{Component: broth.Ref(), Quantity: 1, Unit: nutrition.Serving, Name: "stale"},
	}}
	require.NoError(t, f.store.PutMeal(ctx, good))
	require.NoError(t, f.store.PutMeal(ctx, bad))

	report, err := f.p.OnBaseIngredientChanged(ctx, water.ID)
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, nutrition.Ref{Kind: nutrition.KindMealItem, ID: bad.Items[0].ID}, report.Failures[0].Node)
	assert.ErrorIs(t, report.Err(), nutrition.ErrDivisionUndefined)
	assert.Equal(t, 1, report.Recipes)
	assert.Equal(t, 1, report.Items)
	assert.Equal(t, 1, report.Meals)

	assert.True(t, f.meal(t, good.ID).Verified)
	item, err := f.store.MealItem(ctx, bad.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "stale", item.Name, "failed refresh keeps the cached copy")
}

func TestMissingItemSourceIsReportedButMealIsSaved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.meal(t, f.lunch.ID)
	orphan := &nutrition.MealItem{MealID: m.ID, Quantity: 1, Unit: nutrition.Grams}
	require.NoError(t, f.store.PutMealItem(ctx, orphan))

	report, err := f.p.OnMealItemChanged(ctx, orphan.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Err(), nutrition.ErrMissingComponent)
	assert.Equal(t, 1, report.Meals)
	assert.Equal(t, 1, report.Containers)
	assert.InDelta(t, 144, f.meal(t, f.lunch.ID).Macros.Calories, 1e-9)
}

func TestDanglingComponentIsLeftOutOfMeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := &nutrition.Meal{Name: "Oats and a ghost", Items: []*nutrition.MealItem{
		{Component: f.oats.Ref(), Quantity: 100, Unit: nutrition.Grams},
		{Component: nutrition.Ref{Kind: nutrition.KindIngredient, ID: 999}, Quantity: 50, Unit: nutrition.Grams},
	}}
	require.NoError(t, f.store.PutMeal(ctx, m))
	ghost := m.Items[1].ID

	report, err := f.p.OnMealEdited(ctx, m.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Err(), nutrition.ErrMissingComponent)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, nutrition.Ref{Kind: nutrition.KindMealItem, ID: ghost}, report.Failures[0].Node)
	assert.Equal(t, 1, report.Items)
	assert.Equal(t, 1, report.Meals)

	got := f.meal(t, m.ID)
	assert.InDelta(t, 380, got.Macros.Calories, 1e-9)
	assert.True(t, got.Verified)
	assert.True(t, got.Preferences.Equal(nutrition.NewTagSet(nutrition.Vegan, nutrition.Vegetarian)))
	assert.True(t, got.Allergens.Equal(nutrition.NewTagSet(nutrition.Gluten)))
}

func TestEntryPointsRejectUnknownIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.p.OnBaseIngredientChanged(ctx, 999)
	assert.ErrorIs(t, err, nutrition.ErrNotFound)
	_, err = f.p.OnRecipeChanged(ctx, 999)
	assert.ErrorIs(t, err, nutrition.ErrNotFound)
	_, err = f.p.OnRecipeEdited(ctx, 999)
	assert.ErrorIs(t, err, nutrition.ErrNotFound)
	_, err = f.p.OnMealItemChanged(ctx, 999)
	assert.ErrorIs(t, err, nutrition.ErrNotFound)
	_, err = f.p.OnMealChanged(ctx, 999)
	assert.ErrorIs(t, err, nutrition.ErrNotFound)
}

func TestEditedEntryPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lunch := f.meal(t, f.lunch.ID)
	it := lunch.Items[0]
	it.Quantity = 2
	require.NoError(t, f.store.PutMealItem(ctx, it))

	report, err := f.p.OnMealItemEdited(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Items)
	assert.Equal(t, 1, report.Meals)
	assert.InDelta(t, 288, f.meal(t, f.lunch.ID).Macros.Calories, 1e-9)
	assert.InDelta(t, 376+288, f.container(t, f.day.ID).Macros.Calories, 1e-9)

	empty := &nutrition.Meal{OwnerName: "Bo"}
	require.NoError(t, f.store.PutMeal(ctx, empty))
	report, err = f.p.OnMealEdited(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Items)
	assert.Equal(t, 1, report.Meals)
	got := f.meal(t, empty.ID)
	assert.Equal(t, "Bo's Meal", got.Name)
	assert.True(t, got.Verified)
	assert.True(t, got.Allergens.Equal(nutrition.NewTagSet(nutrition.AllergenFree)))

	report, err = f.p.OnMealEdited(ctx, f.breakfast.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Items)
	assert.Equal(t, 1, report.Meals)
	assert.Equal(t, 1, report.Containers)

	plan := &nutrition.Container{Kind: nutrition.MealPlan}
	plan.SetSlot(nutrition.SlotSnack, f.lunch)
	require.NoError(t, f.store.PutContainer(ctx, plan))
	report, err = f.p.OnContainerEdited(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Containers)
	assert.InDelta(t, 288, f.container(t, plan.ID).Macros.Calories, 1e-9)
}
