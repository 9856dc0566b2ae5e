package store

import "mealgraph/internal/nutrition"

// The memory store hands out copies so that callers can mutate what they
// load without touching stored state.

func cloneIngredient(i nutrition.Ingredient) *nutrition.Ingredient {
	i.Preferences = i.Preferences.Clone()
	i.Allergens = i.Allergens.Clone()
	i.Health = i.Health.Clone()
	return &i
}

func cloneRecipe(r nutrition.Recipe) *nutrition.Recipe {
	r.Ingredients = append([]nutrition.RecipeIngredient(nil), r.Ingredients...)
	r.Preferences = r.Preferences.Clone()
	r.Allergens = r.Allergens.Clone()
	r.Health = r.Health.Clone()
	return &r
}

func cloneItem(it nutrition.MealItem) *nutrition.MealItem {
	it.Source = nil
	it.Preferences = it.Preferences.Clone()
	it.Allergens = it.Allergens.Clone()
	it.Health = it.Health.Clone()
	return &it
}

func cloneMeal(m nutrition.Meal) *nutrition.Meal {
	m.Items = nil
	m.MealTypes = m.MealTypes.Clone()
	m.Preferences = m.Preferences.Clone()
	m.Allergens = m.Allergens.Clone()
	m.Health = m.Health.Clone()
	return &m
}

func cloneContainer(c nutrition.Container) *nutrition.Container {
	c.Meals = [nutrition.SlotCount]*nutrition.Meal{}
	c.Preferences = c.Preferences.Clone()
	c.Allergens = c.Allergens.Clone()
	c.Health = c.Health.Clone()
	return &c
}
