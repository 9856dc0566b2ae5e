// Package nutrition defines the composable food entities, their derived
// attributes, the unit table and the macronutrient scaler. It depends on
// nothing else in this module.
package nutrition

import (
	"fmt"
	"strings"
	"time"
)

// Kind names an entity type.
type Kind string

const (
	KindIngredient Kind = "ingredient"
	KindRecipe     Kind = "recipe"
	KindMealItem   Kind = "meal_item"
	KindMeal       Kind = "meal"
	KindContainer  Kind = "container"
)

// ParseKind accepts singular or plural kind names ("recipes", "meal").
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch k {
	case KindIngredient, KindRecipe, KindMealItem, KindMeal, KindContainer:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, s)
}

// Ref identifies an entity by kind and id. An id of zero means unset.
type Ref struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

func (r Ref) String() string { return fmt.Sprintf("%s:%d", r.Kind, r.ID) }

// Summary is the attribute set shared by every searchable entity and every
// nutritional source. Its tag sets are shared with the entity; clone them
// before mutating.
type Summary struct {
	Name        string
	OwnerID     int64
	Verified    bool
	Preferences TagSet
	Allergens   TagSet
	Health      TagSet
	Macros      Macros
}

// Source is a nutritional source a meal item can bind to. The set of
// implementations is closed: *Ingredient and *Recipe.
type Source interface {
	Ref() Ref
	Summary() Summary
	isSource()
}

// Ingredient is a leaf nutritional source. Its macronutrients are per 100 grams.
type Ingredient struct {
	ID          int64  `json:"id"`
	OwnerID     int64  `json:"owner_id"`
	Name        string `json:"name"`
	Verified    bool   `json:"verified"`
	Preferences TagSet `json:"dietary_preferences"`
	Allergens   TagSet `json:"allergens"`
	Health      TagSet `json:"health_conditions"`
	Per100g     Macros `json:"macros_per_100g"`
}

func (i *Ingredient) Ref() Ref { return Ref{Kind: KindIngredient, ID: i.ID} }

func (i *Ingredient) Summary() Summary {
	return Summary{
		Name:        i.Name,
		OwnerID:     i.OwnerID,
		Verified:    i.Verified,
		Preferences: i.Preferences,
		Allergens:   i.Allergens,
		Health:      i.Health,
		Macros:      i.Per100g,
	}
}

func (*Ingredient) isSource() {}

// RecipeIngredient binds a quantity of one ingredient into a recipe.
type RecipeIngredient struct {
	IngredientID int64       `json:"ingredient_id"`
	Ingredient   *Ingredient `json:"-"`
	Quantity     float64     `json:"quantity"`
	Unit         Unit        `json:"unit"`
}

// Recipe is a nutritional source composed of ingredient bindings. Macros is
// the total for the whole recipe, TotalWeight its summed grams.
type Recipe struct {
	ID          int64              `json:"id"`
	OwnerID     int64              `json:"owner_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Servings    int                `json:"servings"`
	PrepMinutes int                `json:"prep_minutes"`
	CookMinutes int                `json:"cook_minutes"`
	Ingredients []RecipeIngredient `json:"ingredients"`

	// Derived by the recipe aggregator.
	Verified    bool    `json:"verified"`
	Preferences TagSet  `json:"dietary_preferences"`
	Allergens   TagSet  `json:"allergens"`
	Health      TagSet  `json:"health_conditions"`
	Macros      Macros  `json:"macros"`
	TotalWeight float64 `json:"total_weight"`
}

func (r *Recipe) Ref() Ref { return Ref{Kind: KindRecipe, ID: r.ID} }

func (r *Recipe) Summary() Summary {
	return Summary{
		Name:        r.Name,
		OwnerID:     r.OwnerID,
		Verified:    r.Verified,
		Preferences: r.Preferences,
		Allergens:   r.Allergens,
		Health:      r.Health,
		Macros:      r.Macros,
	}
}

func (*Recipe) isSource() {}

// TotalMinutes is prep plus cook time.
func (r *Recipe) TotalMinutes() int { return r.PrepMinutes + r.CookMinutes }

// IngredientNames lists the names of the resolved ingredient bindings.
func (r *Recipe) IngredientNames() []string {
	names := make([]string, 0, len(r.Ingredients))
	for _, b := range r.Ingredients {
		if b.Ingredient != nil {
			names = append(names, b.Ingredient.Name)
		}
	}
	return names
}

// MealItem binds a quantity of one source into a meal and caches the
// source's attributes scaled to that quantity. The cached fields are only
// written by the item refresh in package aggregate.
type MealItem struct {
	ID        int64   `json:"id"`
	MealID    int64   `json:"meal_id"`
	Component Ref     `json:"component"`
	Source    Source  `json:"-"`
	Quantity  float64 `json:"quantity"`
	Unit      Unit    `json:"unit"`

	Name        string `json:"name"`
	Verified    bool   `json:"verified"`
	Preferences TagSet `json:"dietary_preferences"`
	Allergens   TagSet `json:"allergens"`
	Health      TagSet `json:"health_conditions"`
	Macros      Macros `json:"macros"`
}

func (it *MealItem) Ref() Ref { return Ref{Kind: KindMealItem, ID: it.ID} }

// HasComponent reports whether the item's source is resolved. A Component
// reference whose entity is gone leaves Source nil and does not count.
func (it *MealItem) HasComponent() bool {
	switch s := it.Source.(type) {
	case *Ingredient:
		return s != nil
	case *Recipe:
		return s != nil
	}
	return false
}

// Meal owns a set of items. Every derived field is written by the meal
// aggregator only.
type Meal struct {
	ID        int64       `json:"id"`
	OwnerID   int64       `json:"owner_id"`
	OwnerName string      `json:"owner_name,omitempty"`
	Name      string      `json:"name"`
	MealTypes TagSet      `json:"meal_types"`
	Public    bool        `json:"public"`
	Items     []*MealItem `json:"items"`

	Verified    bool   `json:"verified"`
	Preferences TagSet `json:"dietary_preferences"`
	Allergens   TagSet `json:"allergens"`
	Health      TagSet `json:"health_conditions"`
	Macros      Macros `json:"macros"`
}

func (m *Meal) Ref() Ref { return Ref{Kind: KindMeal, ID: m.ID} }

func (m *Meal) Summary() Summary {
	return Summary{
		Name:        m.Name,
		OwnerID:     m.OwnerID,
		Verified:    m.Verified,
		Preferences: m.Preferences,
		Allergens:   m.Allergens,
		Health:      m.Health,
		Macros:      m.Macros,
	}
}

// ContainerKind distinguishes the two uses of a four-slot container.
type ContainerKind string

const (
	DayEntry ContainerKind = "day"
	MealPlan ContainerKind = "plan"
)

// Slot is one of the four meal slots of a container.
type Slot int

const (
	SlotBreakfast Slot = iota
	SlotLunch
	SlotDinner
	SlotSnack

	SlotCount = 4
)

var slotNames = [SlotCount]string{"breakfast", "lunch", "dinner", "snack"}

func (s Slot) String() string {
	if s < 0 || int(s) >= SlotCount {
		return fmt.Sprintf("slot(%d)", int(s))
	}
	return slotNames[s]
}

// ParseSlot maps "breakfast", "lunch", "dinner" and "snack" to a Slot.
func ParseSlot(s string) (Slot, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range slotNames {
		if name == s {
			return Slot(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown slot %q", ErrInvalidRequest, s)
}

// Container is a day diary entry or a meal plan. It references (does not
// own) up to four meals; MealIDs[s] is zero for an empty slot. Meals holds
// the resolved meals and is populated by the store.
type Container struct {
	ID      int64            `json:"id"`
	OwnerID int64            `json:"owner_id"`
	Kind    ContainerKind    `json:"kind"`
	Name    string           `json:"name,omitempty"`
	Day     time.Time        `json:"day,omitempty"`
	MealIDs [SlotCount]int64 `json:"meal_ids"`
	Meals   [SlotCount]*Meal `json:"-"`

	Verified    bool   `json:"verified"`
	Preferences TagSet `json:"dietary_preferences"`
	Allergens   TagSet `json:"allergens"`
	Health      TagSet `json:"health_conditions"`
	Macros      Macros `json:"macros"`
}

func (c *Container) Ref() Ref { return Ref{Kind: KindContainer, ID: c.ID} }

// SetSlot places m in slot s; a nil meal empties the slot.
func (c *Container) SetSlot(s Slot, m *Meal) {
	c.Meals[s] = m
	c.MealIDs[s] = 0
	if m != nil {
		c.MealIDs[s] = m.ID
	}
}

// Filled returns the non-empty slots' meals in slot order.
func (c *Container) Filled() []*Meal {
	out := make([]*Meal, 0, SlotCount)
	for _, m := range c.Meals {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
