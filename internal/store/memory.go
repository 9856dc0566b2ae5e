package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore holds the graph in memory. Safe for concurrent use.
type MemoryStore struct {
	mu  sync.RWMutex
	log *logger.Logger

	nextID      int64
	ingredients map[int64]nutrition.Ingredient
	recipes     map[int64]nutrition.Recipe
	items       map[int64]nutrition.MealItem
	meals       map[int64]nutrition.Meal
	mealItems   map[int64][]int64
	containers  map[int64]nutrition.Container
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		log:         log,
		ingredients: make(map[int64]nutrition.Ingredient),
		recipes:     make(map[int64]nutrition.Recipe),
		items:       make(map[int64]nutrition.MealItem),
		meals:       make(map[int64]nutrition.Meal),
		mealItems:   make(map[int64][]int64),
		containers:  make(map[int64]nutrition.Container),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) id(current int64) int64 {
	if current != 0 {
		if current > s.nextID {
			s.nextID = current
		}
		return current
	}
	s.nextID++
	return s.nextID
}

func notFound(kind nutrition.Kind, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, nutrition.ErrNotFound)
}

// Ingredient returns an ingredient by ID.
func (s *MemoryStore) Ingredient(ctx context.Context, id int64) (*nutrition.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingredient(id)
}

func (s *MemoryStore) ingredient(id int64) (*nutrition.Ingredient, error) {
	i, ok := s.ingredients[id]
	if !ok {
		return nil, notFound(nutrition.KindIngredient, id)
	}
	return cloneIngredient(i), nil
}

// Recipe returns a recipe with its ingredient bindings resolved. Bindings to
// a missing ingredient are returned unresolved.
func (s *MemoryStore) Recipe(ctx context.Context, id int64) (*nutrition.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recipe(id)
}

func (s *MemoryStore) recipe(id int64) (*nutrition.Recipe, error) {
	stored, ok := s.recipes[id]
	if !ok {
		return nil, notFound(nutrition.KindRecipe, id)
	}
	r := cloneRecipe(stored)
	for i := range r.Ingredients {
		r.Ingredients[i].Ingredient = nil
		if ing, err := s.ingredient(r.Ingredients[i].IngredientID); err == nil {
			r.Ingredients[i].Ingredient = ing
		}
	}
	return r, nil
}

// MealItem returns an item with its source resolved. An item whose
// component no longer exists is returned with a nil Source.
func (s *MemoryStore) MealItem(ctx context.Context, id int64) (*nutrition.MealItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.item(id)
}

func (s *MemoryStore) item(id int64) (*nutrition.MealItem, error) {
	stored, ok := s.items[id]
	if !ok {
		return nil, notFound(nutrition.KindMealItem, id)
	}
	it := cloneItem(stored)
	switch it.Component.Kind {
	case nutrition.KindIngredient:
		if ing, err := s.ingredient(it.Component.ID); err == nil {
			it.Source = ing
		}
	case nutrition.KindRecipe:
		if r, err := s.recipe(it.Component.ID); err == nil {
			it.Source = r
		}
	}
	return it, nil
}

// Meal returns a meal with its items.
func (s *MemoryStore) Meal(ctx context.Context, id int64) (*nutrition.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meal(id)
}

func (s *MemoryStore) meal(id int64) (*nutrition.Meal, error) {
	stored, ok := s.meals[id]
	if !ok {
		return nil, notFound(nutrition.KindMeal, id)
	}
	m := cloneMeal(stored)
	for _, itemID := range s.mealItems[id] {
		it, err := s.item(itemID)
		if err != nil {
			return nil, err
		}
		m.Items = append(m.Items, it)
	}
	return m, nil
}

// Container returns a container with its slot meals.
func (s *MemoryStore) Container(ctx context.Context, id int64) (*nutrition.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.containers[id]
	if !ok {
		return nil, notFound(nutrition.KindContainer, id)
	}
	c := cloneContainer(stored)
	for slot, mealID := range c.MealIDs {
		if mealID == 0 {
			continue
		}
		m, err := s.meal(mealID)
		if err != nil {
			return nil, fmt.Errorf("container %d %s slot: %w", id, nutrition.Slot(slot), err)
		}
		c.Meals[slot] = m
	}
	return c, nil
}

func sortedIDs(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RecipesWithIngredient returns the recipes binding the ingredient at least once.
func (s *MemoryStore) RecipesWithIngredient(ctx context.Context, ingredientID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int64
	for id, r := range s.recipes {
		for _, b := range r.Ingredients {
			if b.IngredientID == ingredientID {
				out = append(out, id)
				break
			}
		}
	}
	return sortedIDs(out), nil
}

// MealItemsWithSource returns the items whose component is source.
func (s *MemoryStore) MealItemsWithSource(ctx context.Context, source nutrition.Ref) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int64
	for id, it := range s.items {
		if it.Component == source {
			out = append(out, id)
		}
	}
	return sortedIDs(out), nil
}

// ContainersWithMeal returns the containers with any slot referencing the meal.
func (s *MemoryStore) ContainersWithMeal(ctx context.Context, mealID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int64
	for id, c := range s.containers {
		for _, ref := range c.MealIDs {
			if ref == mealID {
				out = append(out, id)
				break
			}
		}
	}
	return sortedIDs(out), nil
}

// SaveRecipe writes the recipe's derived fields.
func (s *MemoryStore) SaveRecipe(ctx context.Context, r *nutrition.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.recipes[r.ID]
	if !ok {
		return notFound(nutrition.KindRecipe, r.ID)
	}
	stored.Verified = r.Verified
	stored.Preferences = r.Preferences.Clone()
	stored.Allergens = r.Allergens.Clone()
	stored.Health = r.Health.Clone()
	stored.Macros = r.Macros
	stored.TotalWeight = r.TotalWeight
	s.recipes[r.ID] = stored
	return nil
}

// SaveMealItem writes the item's cached copy of its source.
func (s *MemoryStore) SaveMealItem(ctx context.Context, it *nutrition.MealItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.items[it.ID]
	if !ok {
		return notFound(nutrition.KindMealItem, it.ID)
	}
	stored.Component = it.Component
	stored.Name = it.Name
	stored.Verified = it.Verified
	stored.Preferences = it.Preferences.Clone()
	stored.Allergens = it.Allergens.Clone()
	stored.Health = it.Health.Clone()
	stored.Macros = it.Macros
	s.items[it.ID] = stored
	return nil
}

// SaveMeal writes the meal's derived fields, including a defaulted name.
func (s *MemoryStore) SaveMeal(ctx context.Context, m *nutrition.Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.meals[m.ID]
	if !ok {
		return notFound(nutrition.KindMeal, m.ID)
	}
	stored.Name = m.Name
	stored.Verified = m.Verified
	stored.Preferences = m.Preferences.Clone()
	stored.Allergens = m.Allergens.Clone()
	stored.Health = m.Health.Clone()
	stored.Macros = m.Macros
	s.meals[m.ID] = stored
	return nil
}

// SaveContainer writes the container's derived fields.
func (s *MemoryStore) SaveContainer(ctx context.Context, c *nutrition.Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.containers[c.ID]
	if !ok {
		return notFound(nutrition.KindContainer, c.ID)
	}
	stored.Verified = c.Verified
	stored.Preferences = c.Preferences.Clone()
	stored.Allergens = c.Allergens.Clone()
	stored.Health = c.Health.Clone()
	stored.Macros = c.Macros
	s.containers[c.ID] = stored
	return nil
}

// PutIngredient inserts or replaces an ingredient.
func (s *MemoryStore) PutIngredient(ctx context.Context, i *nutrition.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i.ID = s.id(i.ID)
	s.ingredients[i.ID] = *cloneIngredient(*i)
	s.log.Debug("ingredient %d stored", i.ID)
	return nil
}

// PutRecipe inserts or replaces a recipe with its bindings.
func (s *MemoryStore) PutRecipe(ctx context.Context, r *nutrition.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.id(r.ID)
	stored := *cloneRecipe(*r)
	for i := range stored.Ingredients {
		stored.Ingredients[i].Ingredient = nil
	}
	s.recipes[r.ID] = stored
	s.log.Debug("recipe %d stored with %d bindings", r.ID, len(stored.Ingredients))
	return nil
}

// PutMeal inserts or replaces a meal and its items. Items dropped from the
// meal are deleted.
func (s *MemoryStore) PutMeal(ctx context.Context, m *nutrition.Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.id(m.ID)
	for _, old := range s.mealItems[m.ID] {
		delete(s.items, old)
	}
	ids := make([]int64, 0, len(m.Items))
	for _, it := range m.Items {
		if it == nil {
			continue
		}
		it.MealID = m.ID
		s.putItem(it)
		ids = append(ids, it.ID)
	}
	s.mealItems[m.ID] = ids
	s.meals[m.ID] = *cloneMeal(*m)
	s.log.Debug("meal %d stored with %d items", m.ID, len(ids))
	return nil
}

// PutMealItem inserts or replaces one item of an existing meal.
func (s *MemoryStore) PutMealItem(ctx context.Context, it *nutrition.MealItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meals[it.MealID]; !ok {
		return notFound(nutrition.KindMeal, it.MealID)
	}
	isNew := it.ID == 0
	s.putItem(it)
	if isNew {
		s.mealItems[it.MealID] = append(s.mealItems[it.MealID], it.ID)
	}
	return nil
}

func (s *MemoryStore) putItem(it *nutrition.MealItem) {
	it.ID = s.id(it.ID)
	if it.Source != nil && it.Component.ID == 0 {
		it.Component = it.Source.Ref()
	}
	s.items[it.ID] = *cloneItem(*it)
}

// PutContainer inserts or replaces a container. Slot meals must exist.
func (s *MemoryStore) PutContainer(ctx context.Context, c *nutrition.Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for slot, m := range c.Meals {
		if m != nil {
			c.MealIDs[slot] = m.ID
		}
	}
	for slot, mealID := range c.MealIDs {
		if _, ok := s.meals[mealID]; mealID != 0 && !ok {
			return fmt.Errorf("container %s slot: %w", nutrition.Slot(slot), notFound(nutrition.KindMeal, mealID))
		}
	}
	c.ID = s.id(c.ID)
	s.containers[c.ID] = *cloneContainer(*c)
	return nil
}

// ListIngredients returns every ingredient ordered by ID.
func (s *MemoryStore) ListIngredients(ctx context.Context) ([]*nutrition.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.ingredients))
	for id := range s.ingredients {
		ids = append(ids, id)
	}
	out := make([]*nutrition.Ingredient, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		out = append(out, cloneIngredient(s.ingredients[id]))
	}
	return out, nil
}

// ListRecipes returns every recipe, bindings resolved, ordered by ID.
func (s *MemoryStore) ListRecipes(ctx context.Context) ([]*nutrition.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.recipes))
	for id := range s.recipes {
		ids = append(ids, id)
	}
	out := make([]*nutrition.Recipe, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		r, err := s.recipe(id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ListMeals returns every meal with its items, ordered by ID.
func (s *MemoryStore) ListMeals(ctx context.Context) ([]*nutrition.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.meals))
	for id := range s.meals {
		ids = append(ids, id)
	}
	out := make([]*nutrition.Meal, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		m, err := s.meal(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
