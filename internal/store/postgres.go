package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store for PostgreSQL. Tag sets live in JSONB
// columns; each write is a single statement or a single transaction.
type PostgresStore struct {
	db  *sqlx.DB
	log *logger.Logger
}

var schema = []string{`
	CREATE TABLE IF NOT EXISTS ingredients (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		dietary_preferences JSONB NOT NULL DEFAULT '[]',
		allergens JSONB NOT NULL DEFAULT '[]',
		health_conditions JSONB NOT NULL DEFAULT '[]',
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		protein DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat DOUBLE PRECISION NOT NULL DEFAULT 0,
		sugar DOUBLE PRECISION NOT NULL DEFAULT 0,
		salt DOUBLE PRECISION NOT NULL DEFAULT 0
	);`, `
	CREATE TABLE IF NOT EXISTS recipes (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		servings INTEGER NOT NULL DEFAULT 0,
		prep_minutes INTEGER NOT NULL DEFAULT 0,
		cook_minutes INTEGER NOT NULL DEFAULT 0,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		dietary_preferences JSONB NOT NULL DEFAULT '[]',
		allergens JSONB NOT NULL DEFAULT '[]',
		health_conditions JSONB NOT NULL DEFAULT '[]',
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		protein DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat DOUBLE PRECISION NOT NULL DEFAULT 0,
		sugar DOUBLE PRECISION NOT NULL DEFAULT 0,
		salt DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_weight DOUBLE PRECISION NOT NULL DEFAULT 0
	);`, `
	CREATE TABLE IF NOT EXISTS recipe_ingredients (
		recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		ingredient_id BIGINT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		unit TEXT NOT NULL,
		PRIMARY KEY (recipe_id, position)
	);`, `
	CREATE INDEX IF NOT EXISTS recipe_ingredients_ingredient_idx ON recipe_ingredients (ingredient_id);`, `
	CREATE TABLE IF NOT EXISTS meals (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL DEFAULT 0,
		owner_name TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		meal_types JSONB NOT NULL DEFAULT '[]',
		public BOOLEAN NOT NULL DEFAULT FALSE,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		dietary_preferences JSONB NOT NULL DEFAULT '[]',
		allergens JSONB NOT NULL DEFAULT '[]',
		health_conditions JSONB NOT NULL DEFAULT '[]',
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		protein DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat DOUBLE PRECISION NOT NULL DEFAULT 0,
		sugar DOUBLE PRECISION NOT NULL DEFAULT 0,
		salt DOUBLE PRECISION NOT NULL DEFAULT 0
	);`, `
	CREATE TABLE IF NOT EXISTS meal_items (
		id BIGSERIAL PRIMARY KEY,
		meal_id BIGINT NOT NULL REFERENCES meals(id) ON DELETE CASCADE,
		component_kind TEXT NOT NULL DEFAULT '',
		component_id BIGINT NOT NULL DEFAULT 0,
		quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		dietary_preferences JSONB NOT NULL DEFAULT '[]',
		allergens JSONB NOT NULL DEFAULT '[]',
		health_conditions JSONB NOT NULL DEFAULT '[]',
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		protein DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat DOUBLE PRECISION NOT NULL DEFAULT 0,
		sugar DOUBLE PRECISION NOT NULL DEFAULT 0,
		salt DOUBLE PRECISION NOT NULL DEFAULT 0
	);`, `
	CREATE INDEX IF NOT EXISTS meal_items_component_idx ON meal_items (component_kind, component_id);`, `
	CREATE TABLE IF NOT EXISTS containers (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		day DATE,
		breakfast_id BIGINT REFERENCES meals(id) ON DELETE SET NULL,
		lunch_id BIGINT REFERENCES meals(id) ON DELETE SET NULL,
		dinner_id BIGINT REFERENCES meals(id) ON DELETE SET NULL,
		snack_id BIGINT REFERENCES meals(id) ON DELETE SET NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		dietary_preferences JSONB NOT NULL DEFAULT '[]',
		allergens JSONB NOT NULL DEFAULT '[]',
		health_conditions JSONB NOT NULL DEFAULT '[]',
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		protein DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat DOUBLE PRECISION NOT NULL DEFAULT 0,
		sugar DOUBLE PRECISION NOT NULL DEFAULT 0,
		salt DOUBLE PRECISION NOT NULL DEFAULT 0
	);`,
}

// NewPostgresStore connects and creates missing tables.
func NewPostgresStore(dataSourceName string, log *logger.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &PostgresStore{db: db, log: log}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// Row types mirror the tables. Macros embeds so its db tags map onto the
// macro columns.

type ingredientRow struct {
	ID          int64            `db:"id"`
	OwnerID     int64            `db:"owner_id"`
	Name        string           `db:"name"`
	Verified    bool             `db:"verified"`
	Preferences nutrition.TagSet `db:"dietary_preferences"`
	Allergens   nutrition.TagSet `db:"allergens"`
	Health      nutrition.TagSet `db:"health_conditions"`
	nutrition.Macros
}

func (r ingredientRow) toModel() *nutrition.Ingredient {
	return &nutrition.Ingredient{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Verified:    r.Verified,
		Preferences: r.Preferences,
		Allergens:   r.Allergens,
		Health:      r.Health,
		Per100g:     r.Macros,
	}
}

type recipeRow struct {
	ID          int64            `db:"id"`
	OwnerID     int64            `db:"owner_id"`
	Name        string           `db:"name"`
	Description string           `db:"description"`
	Servings    int              `db:"servings"`
	PrepMinutes int              `db:"prep_minutes"`
	CookMinutes int              `db:"cook_minutes"`
	Verified    bool             `db:"verified"`
	Preferences nutrition.TagSet `db:"dietary_preferences"`
	Allergens   nutrition.TagSet `db:"allergens"`
	Health      nutrition.TagSet `db:"health_conditions"`
	TotalWeight float64          `db:"total_weight"`
	nutrition.Macros
}

func newRecipeRow(r *nutrition.Recipe) recipeRow {
	return recipeRow{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, Description: r.Description,
		Servings: r.Servings, PrepMinutes: r.PrepMinutes, CookMinutes: r.CookMinutes,
		Verified: r.Verified, Preferences: r.Preferences, Allergens: r.Allergens, Health: r.Health,
		TotalWeight: r.TotalWeight, Macros: r.Macros,
	}
}

func (r recipeRow) toModel() *nutrition.Recipe {
	return &nutrition.Recipe{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, Description: r.Description,
		Servings: r.Servings, PrepMinutes: r.PrepMinutes, CookMinutes: r.CookMinutes,
		Verified: r.Verified, Preferences: r.Preferences, Allergens: r.Allergens, Health: r.Health,
		TotalWeight: r.TotalWeight, Macros: r.Macros,
	}
}

type bindingRow struct {
	RecipeID     int64          `db:"recipe_id"`
	Position     int            `db:"position"`
	IngredientID int64          `db:"ingredient_id"`
	Quantity     float64        `db:"quantity"`
	Unit         nutrition.Unit `db:"unit"`
}

type itemRow struct {
	ID            int64            `db:"id"`
	MealID        int64            `db:"meal_id"`
	ComponentKind nutrition.Kind   `db:"component_kind"`
	ComponentID   int64            `db:"component_id"`
	Quantity      float64          `db:"quantity"`
	Unit          nutrition.Unit   `db:"unit"`
	Name          string           `db:"name"`
	Verified      bool             `db:"verified"`
	Preferences   nutrition.TagSet `db:"dietary_preferences"`
	Allergens     nutrition.TagSet `db:"allergens"`
	Health        nutrition.TagSet `db:"health_conditions"`
	nutrition.Macros
}

func newItemRow(it *nutrition.MealItem) itemRow {
	component := it.Component
	if it.Source != nil && component.ID == 0 {
		component = it.Source.Ref()
	}
	return itemRow{
		ID: it.ID, MealID: it.MealID, ComponentKind: component.Kind, ComponentID: component.ID,
		Quantity: it.Quantity, Unit: it.Unit, Name: it.Name, Verified: it.Verified,
		Preferences: it.Preferences, Allergens: it.Allergens, Health: it.Health, Macros: it.Macros,
	}
}

func (r itemRow) toModel() *nutrition.MealItem {
	it := &nutrition.MealItem{
		ID: r.ID, MealID: r.MealID, Quantity: r.Quantity, Unit: r.Unit, Name: r.Name, Verified: r.Verified,
		Preferences: r.Preferences, Allergens: r.Allergens, Health: r.Health, Macros: r.Macros,
	}
	it.Component = nutrition.Ref{Kind: r.ComponentKind, ID: r.ComponentID}
	return it
}

type mealRow struct {
	ID          int64            `db:"id"`
	OwnerID     int64            `db:"owner_id"`
	OwnerName   string           `db:"owner_name"`
	Name        string           `db:"name"`
	MealTypes   nutrition.TagSet `db:"meal_types"`
	Public      bool             `db:"public"`
	Verified    bool             `db:"verified"`
	Preferences nutrition.TagSet `db:"dietary_preferences"`
	Allergens   nutrition.TagSet `db:"allergens"`
	Health      nutrition.TagSet `db:"health_conditions"`
	nutrition.Macros
}

func newMealRow(m *nutrition.Meal) mealRow {
	return mealRow{
		ID: m.ID, OwnerID: m.OwnerID, OwnerName: m.OwnerName, Name: m.Name,
		MealTypes: m.MealTypes, Public: m.Public, Verified: m.Verified,
		Preferences: m.Preferences, Allergens: m.Allergens, Health: m.Health, Macros: m.Macros,
	}
}

func (r mealRow) toModel() *nutrition.Meal {
	return &nutrition.Meal{
		ID: r.ID, OwnerID: r.OwnerID, OwnerName: r.OwnerName, Name: r.Name,
		MealTypes: r.MealTypes, Public: r.Public, Verified: r.Verified,
		Preferences: r.Preferences, Allergens: r.Allergens, Health: r.Health, Macros: r.Macros,
	}
}

type containerRow struct {
	ID          int64                   `db:"id"`
	OwnerID     int64                   `db:"owner_id"`
	Kind        nutrition.ContainerKind `db:"kind"`
	Name        string                  `db:"name"`
	Day         sql.NullTime            `db:"day"`
	BreakfastID sql.NullInt64           `db:"breakfast_id"`
	LunchID     sql.NullInt64           `db:"lunch_id"`
	DinnerID    sql.NullInt64           `db:"dinner_id"`
	SnackID     sql.NullInt64           `db:"snack_id"`
	Verified    bool                    `db:"verified"`
	Preferences nutrition.TagSet        `db:"dietary_preferences"`
	Allergens   nutrition.TagSet        `db:"allergens"`
	Health      nutrition.TagSet        `db:"health_conditions"`
	nutrition.Macros
}

func nullID(id int64) sql.NullInt64 { return sql.NullInt64{Int64: id, Valid: id != 0} }

func newContainerRow(c *nutrition.Container) containerRow {
	return containerRow{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Kind:        c.Kind,
		Name:        c.Name,
		Day:         sql.NullTime{Time: c.Day, Valid: !c.Day.IsZero()},
		BreakfastID: nullID(c.MealIDs[nutrition.SlotBreakfast]),
		LunchID:     nullID(c.MealIDs[nutrition.SlotLunch]),
		DinnerID:    nullID(c.MealIDs[nutrition.SlotDinner]),
		SnackID:     nullID(c.MealIDs[nutrition.SlotSnack]),
		Verified:    c.Verified,
		Preferences: c.Preferences,
		Allergens:   c.Allergens,
		Health:      c.Health,
		Macros:      c.Macros,
	}
}

func (r containerRow) toModel() *nutrition.Container {
	c := &nutrition.Container{
		ID: r.ID, OwnerID: r.OwnerID, Kind: r.Kind, Name: r.Name,
		Verified: r.Verified, Preferences: r.Preferences, Allergens: r.Allergens, Health: r.Health,
		Macros: r.Macros,
	}
	if r.Day.Valid {
		c.Day = r.Day.Time
	}
	c.MealIDs[nutrition.SlotBreakfast] = r.BreakfastID.Int64
	c.MealIDs[nutrition.SlotLunch] = r.LunchID.Int64
	c.MealIDs[nutrition.SlotDinner] = r.DinnerID.Int64
	c.MealIDs[nutrition.SlotSnack] = r.SnackID.Int64
	return c
}

const (
	ingredientColumns = `id, owner_id, name, verified, dietary_preferences, allergens, health_conditions, calories, protein, fat, sugar, salt`
	recipeColumns     = `id, owner_id, name, description, servings, prep_minutes, cook_minutes, verified, dietary_preferences, allergens, health_conditions, calories, protein, fat, sugar, salt, total_weight`
	itemColumns       = `id, meal_id, component_kind, component_id, quantity, unit, name, verified, dietary_preferences, allergens, health_conditions, calories, protein, fat, sugar, salt`
	mealColumns       = `id, owner_id, owner_name, name, meal_types, public, verified, dietary_preferences, allergens, health_conditions, calories, protein, fat, sugar, salt`
	containerColumns  = `id, owner_id, kind, name, day, breakfast_id, lunch_id, dinner_id, snack_id, verified, dietary_preferences, allergens, health_conditions, calories, protein, fat, sugar, salt`
)

// get runs a single-row query and maps sql.ErrNoRows to ErrNotFound.
func (s *PostgresStore) get(ctx context.Context, dest any, kind nutrition.Kind, id int64, query string) error {
	err := s.db.GetContext(ctx, dest, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s %d: %w", kind, id, err)
	}
	return nil
}

// Ingredient retrieves an ingredient by ID.
func (s *PostgresStore) Ingredient(ctx context.Context, id int64) (*nutrition.Ingredient, error) {
	var row ingredientRow
	if err := s.get(ctx, &row, nutrition.KindIngredient, id, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = $1`); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// Recipe retrieves a recipe with its bindings and their ingredients.
func (s *PostgresStore) Recipe(ctx context.Context, id int64) (*nutrition.Recipe, error) {
	var row recipeRow
	if err := s.get(ctx, &row, nutrition.KindRecipe, id, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`); err != nil {
		return nil, err
	}
	r := row.toModel()
	if err := s.loadBindings(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) loadBindings(ctx context.Context, r *nutrition.Recipe) error {
	var bindings []bindingRow
	err := s.db.SelectContext(ctx, &bindings,
		`SELECT recipe_id, position, ingredient_id, quantity, unit FROM recipe_ingredients WHERE recipe_id = $1 ORDER BY position`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to get bindings of recipe %d: %w", r.ID, err)
	}

	var ingredients []ingredientRow
	err = s.db.SelectContext(ctx, &ingredients,
		`SELECT `+ingredientColumns+` FROM ingredients WHERE id IN (SELECT ingredient_id FROM recipe_ingredients WHERE recipe_id = $1)`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to get ingredients of recipe %d: %w", r.ID, err)
	}
	byID := make(map[int64]ingredientRow, len(ingredients))
	for _, ing := range ingredients {
		byID[ing.ID] = ing
	}

	r.Ingredients = make([]nutrition.RecipeIngredient, 0, len(bindings))
	for _, b := range bindings {
		ri := nutrition.RecipeIngredient{IngredientID: b.IngredientID, Quantity: b.Quantity, Unit: b.Unit}
		if ing, ok := byID[b.IngredientID]; ok {
			ri.Ingredient = ing.toModel()
		}
		r.Ingredients = append(r.Ingredients, ri)
	}
	return nil
}

// MealItem retrieves an item and resolves its source.
func (s *PostgresStore) MealItem(ctx context.Context, id int64) (*nutrition.MealItem, error) {
	var row itemRow
	if err := s.get(ctx, &row, nutrition.KindMealItem, id, `SELECT `+itemColumns+` FROM meal_items WHERE id = $1`); err != nil {
		return nil, err
	}
	it := row.toModel()
	if err := s.resolveSource(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// resolveSource leaves Source nil when the component row is gone.
func (s *PostgresStore) resolveSource(ctx context.Context, it *nutrition.MealItem) error {
	var (
		src nutrition.Source
		err error
	)
	switch it.Component.Kind {
	case nutrition.KindIngredient:
		var ing *nutrition.Ingredient
		if ing, err = s.Ingredient(ctx, it.Component.ID); err == nil {
			src = ing
		}
	case nutrition.KindRecipe:
		var r *nutrition.Recipe
		if r, err = s.Recipe(ctx, it.Component.ID); err == nil {
			src = r
		}
	default:
		return nil
	}
	if err != nil && !errors.Is(err, nutrition.ErrNotFound) {
		return err
	}
	it.Source = src
	return nil
}

// Meal retrieves a meal with its items.
func (s *PostgresStore) Meal(ctx context.Context, id int64) (*nutrition.Meal, error) {
	var row mealRow
	if err := s.get(ctx, &row, nutrition.KindMeal, id, `SELECT `+mealColumns+` FROM meals WHERE id = $1`); err != nil {
		return nil, err
	}
	m := row.toModel()

	var items []itemRow
	if err := s.db.SelectContext(ctx, &items, `SELECT `+itemColumns+` FROM meal_items WHERE meal_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("failed to get items of meal %d: %w", id, err)
	}
	for _, ir := range items {
		it := ir.toModel()
		if err := s.resolveSource(ctx, it); err != nil {
			return nil, err
		}
		m.Items = append(m.Items, it)
	}
	return m, nil
}

// Container retrieves a container with its slot meals.
func (s *PostgresStore) Container(ctx context.Context, id int64) (*nutrition.Container, error) {
	var row containerRow
	if err := s.get(ctx, &row, nutrition.KindContainer, id, `SELECT `+containerColumns+` FROM containers WHERE id = $1`); err != nil {
		return nil, err
	}
	c := row.toModel()
	for slot, mealID := range c.MealIDs {
		if mealID == 0 {
			continue
		}
		m, err := s.Meal(ctx, mealID)
		if err != nil {
			return nil, fmt.Errorf("container %d %s slot: %w", id, nutrition.Slot(slot), err)
		}
		c.Meals[slot] = m
	}
	return c, nil
}

// RecipesWithIngredient returns the recipes binding the ingredient.
func (s *PostgresStore) RecipesWithIngredient(ctx context.Context, ingredientID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT recipe_id FROM recipe_ingredients WHERE ingredient_id = $1 ORDER BY recipe_id`, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipes with ingredient %d: %w", ingredientID, err)
	}
	return ids, nil
}

// MealItemsWithSource returns the items bound to source.
func (s *PostgresStore) MealItemsWithSource(ctx context.Context, source nutrition.Ref) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM meal_items WHERE component_kind = $1 AND component_id = $2 ORDER BY id`, source.Kind, source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get meal items with %s: %w", source, err)
	}
	return ids, nil
}

// ContainersWithMeal returns the containers referencing the meal in any slot.
func (s *PostgresStore) ContainersWithMeal(ctx context.Context, mealID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM containers WHERE $1 IN (breakfast_id, lunch_id, dinner_id, snack_id) ORDER BY id`, mealID)
	if err != nil {
		return nil, fmt.Errorf("failed to get containers with meal %d: %w", mealID, err)
	}
	return ids, nil
}

// exec runs a named update and maps zero affected rows to ErrNotFound.
func (s *PostgresStore) exec(ctx context.Context, kind nutrition.Kind, id int64, query string, arg any) error {
	res, err := s.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("failed to save %s %d: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save %s %d: %w", kind, id, err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// SaveRecipe writes the recipe's derived fields.
func (s *PostgresStore) SaveRecipe(ctx context.Context, r *nutrition.Recipe) error {
	return s.exec(ctx, nutrition.KindRecipe, r.ID, `UPDATE recipes SET
		verified = :verified, dietary_preferences = :dietary_preferences, allergens = :allergens,
		health_conditions = :health_conditions, calories = :calories, protein = :protein, fat = :fat,
		sugar = :sugar, salt = :salt, total_weight = :total_weight
		WHERE id = :id`, newRecipeRow(r))
}

// SaveMealItem writes the item's cached copy of its source.
func (s *PostgresStore) SaveMealItem(ctx context.Context, it *nutrition.MealItem) error {
	return s.exec(ctx, nutrition.KindMealItem, it.ID, `UPDATE meal_items SET
		component_kind = :component_kind, component_id = :component_id, name = :name, verified = :verified,
		dietary_preferences = :dietary_preferences, allergens = :allergens, health_conditions = :health_conditions,
		calories = :calories, protein = :protein, fat = :fat, sugar = :sugar, salt = :salt
		WHERE id = :id`, newItemRow(it))
}

// SaveMeal writes the meal's derived fields.
func (s *PostgresStore) SaveMeal(ctx context.Context, m *nutrition.Meal) error {
	return s.exec(ctx, nutrition.KindMeal, m.ID, `UPDATE meals SET
		name = :name, verified = :verified, dietary_preferences = :dietary_preferences, allergens = :allergens,
		health_conditions = :health_conditions, calories = :calories, protein = :protein, fat = :fat,
		sugar = :sugar, salt = :salt
		WHERE id = :id`, newMealRow(m))
}

// SaveContainer writes the container's derived fields.
func (s *PostgresStore) SaveContainer(ctx context.Context, c *nutrition.Container) error {
	return s.exec(ctx, nutrition.KindContainer, c.ID, `UPDATE containers SET
		verified = :verified, dietary_preferences = :dietary_preferences, allergens = :allergens,
		health_conditions = :health_conditions, calories = :calories, protein = :protein, fat = :fat,
		sugar = :sugar, salt = :salt
		WHERE id = :id`, newContainerRow(c))
}

// insert runs a named INSERT ... RETURNING id through q.
func insert(ctx context.Context, q sqlx.ExtContext, query string, arg any) (int64, error) {
	rows, err := sqlx.NamedQueryContext(ctx, q, query, arg)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, rows.Err()
}

// PutIngredient inserts or updates an ingredient.
func (s *PostgresStore) PutIngredient(ctx context.Context, i *nutrition.Ingredient) error {
	row := ingredientRow{
		ID: i.ID, OwnerID: i.OwnerID, Name: i.Name, Verified: i.Verified,
		Preferences: i.Preferences, Allergens: i.Allergens, Health: i.Health, Macros: i.Per100g,
	}
	if i.ID != 0 {
		return s.exec(ctx, nutrition.KindIngredient, i.ID, `UPDATE ingredients SET
			owner_id = :owner_id, name = :name, verified = :verified, dietary_preferences = :dietary_preferences,
			allergens = :allergens, health_conditions = :health_conditions, calories = :calories,
			protein = :protein, fat = :fat, sugar = :sugar, salt = :salt
			WHERE id = :id`, row)
	}

	id, err := insert(ctx, s.db, `INSERT INTO ingredients
		(owner_id, name, verified, dietary_preferences, allergens, health_conditions, calories, protein, fat, sugar, salt)
		VALUES (:owner_id, :name, :verified, :dietary_preferences, :allergens, :health_conditions, :calories, :protein, :fat, :sugar, :salt)
		RETURNING id`, row)
	if err != nil {
		return fmt.Errorf("failed to save ingredient: %w", err)
	}
	i.ID = id
	return nil
}

// PutRecipe inserts or updates a recipe and replaces its bindings in one
// transaction.
func (s *PostgresStore) PutRecipe(ctx context.Context, r *nutrition.Recipe) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := newRecipeRow(r)
	if r.ID == 0 {
		id, err := insert(ctx, tx, `INSERT INTO recipes
			(owner_id, name, description, servings, prep_minutes, cook_minutes, verified, dietary_preferences,
			 allergens, health_conditions, calories, protein, fat, sugar, salt, total_weight)
			VALUES (:owner_id, :name, :description, :servings, :prep_minutes, :cook_minutes, :verified,
			 :dietary_preferences, :allergens, :health_conditions, :calories, :protein, :fat, :sugar, :salt, :total_weight)
			RETURNING id`, row)
		if err != nil {
			return fmt.Errorf("failed to save recipe: %w", err)
		}
		r.ID = id
	} else {
		res, err := tx.NamedExecContext(ctx, `UPDATE recipes SET
			owner_id = :owner_id, name = :name, description = :description, servings = :servings,
			prep_minutes = :prep_minutes, cook_minutes = :cook_minutes, verified = :verified,
			dietary_preferences = :dietary_preferences, allergens = :allergens, health_conditions = :health_conditions,
			calories = :calories, protein = :protein, fat = :fat, sugar = :sugar, salt = :salt, total_weight = :total_weight
			WHERE id = :id`, row)
		if err != nil {
			return fmt.Errorf("failed to save recipe %d: %w", r.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(nutrition.KindRecipe, r.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = $1`, r.ID); err != nil {
			return fmt.Errorf("failed to clear bindings of recipe %d: %w", r.ID, err)
		}
	}

	for pos, b := range r.Ingredients {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO recipe_ingredients (recipe_id, position, ingredient_id, quantity, unit)
			VALUES (:recipe_id, :position, :ingredient_id, :quantity, :unit)`,
			bindingRow{RecipeID: r.ID, Position: pos, IngredientID: b.IngredientID, Quantity: b.Quantity, Unit: b.Unit})
		if err != nil {
			return fmt.Errorf("failed to save binding #%d of recipe %d: %w", pos, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recipe %d: %w", r.ID, err)
	}
	s.log.Debug("recipe %d saved with %d bindings", r.ID, len(r.Ingredients))
	return nil
}

// PutMeal inserts or updates a meal and replaces its items in one
// transaction. Items keep their IDs when they have one.
func (s *PostgresStore) PutMeal(ctx context.Context, m *nutrition.Meal) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := newMealRow(m)
	if m.ID == 0 {
		id, err := insert(ctx, tx, `INSERT INTO meals
			(owner_id, owner_name, name, meal_types, public, verified, dietary_preferences, allergens,
			 health_conditions, calories, protein, fat, sugar, salt)
			VALUES (:owner_id, :owner_name, :name, :meal_types, :public, :verified, :dietary_preferences,
			 :allergens, :health_conditions, :calories, :protein, :fat, :sugar, :salt)
			RETURNING id`, row)
		if err != nil {
			return fmt.Errorf("failed to save meal: %w", err)
		}
		m.ID = id
	} else {
		res, err := tx.NamedExecContext(ctx, `UPDATE meals SET
			owner_id = :owner_id, owner_name = :owner_name, name = :name, meal_types = :meal_types,
			public = :public, verified = :verified, dietary_preferences = :dietary_preferences,
			allergens = :allergens, health_conditions = :health_conditions, calories = :calories,
			protein = :protein, fat = :fat, sugar = :sugar, salt = :salt
			WHERE id = :id`, row)
		if err != nil {
			return fmt.Errorf("failed to save meal %d: %w", m.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(nutrition.KindMeal, m.ID)
		}
	}

	keep := make([]int64, 0, len(m.Items))
	for _, it := range m.Items {
		if it == nil {
			continue
		}
		it.MealID = m.ID
		if err := putItem(ctx, tx, it); err != nil {
			return err
		}
		keep = append(keep, it.ID)
	}
	query, args, err := sqlx.In(`DELETE FROM meal_items WHERE meal_id = ? AND id NOT IN (?)`, m.ID, append(keep, 0))
	if err != nil {
		return fmt.Errorf("failed to build item cleanup for meal %d: %w", m.ID, err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete dropped items of meal %d: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit meal %d: %w", m.ID, err)
	}
	return nil
}

// PutMealItem inserts or updates one item.
func (s *PostgresStore) PutMealItem(ctx context.Context, it *nutrition.MealItem) error {
	return putItem(ctx, s.db, it)
}

func putItem(ctx context.Context, q sqlx.ExtContext, it *nutrition.MealItem) error {
	row := newItemRow(it)
	it.Component = nutrition.Ref{Kind: row.ComponentKind, ID: row.ComponentID}

	if it.ID == 0 {
		id, err := insert(ctx, q, `INSERT INTO meal_items
			(meal_id, component_kind, component_id, quantity, unit, name, verified, dietary_preferences,
			 allergens, health_conditions, calories, protein, fat, sugar, salt)
			VALUES (:meal_id, :component_kind, :component_id, :quantity, :unit, :name, :verified,
			 :dietary_preferences, :allergens, :health_conditions, :calories, :protein, :fat, :sugar, :salt)
			RETURNING id`, row)
		if err != nil {
			return fmt.Errorf("failed to save item of meal %d: %w", it.MealID, err)
		}
		it.ID = id
		return nil
	}

	res, err := sqlx.NamedExecContext(ctx, q, `UPDATE meal_items SET
		meal_id = :meal_id, component_kind = :component_kind, component_id = :component_id,
		quantity = :quantity, unit = :unit, name = :name, verified = :verified,
		dietary_preferences = :dietary_preferences, allergens = :allergens, health_conditions = :health_conditions,
		calories = :calories, protein = :protein, fat = :fat, sugar = :sugar, salt = :salt
		WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("failed to save meal item %d: %w", it.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(nutrition.KindMealItem, it.ID)
	}
	return nil
}

// PutContainer inserts or updates a container.
func (s *PostgresStore) PutContainer(ctx context.Context, c *nutrition.Container) error {
	for slot, m := range c.Meals {
		if m != nil {
			c.MealIDs[slot] = m.ID
		}
	}
	row := newContainerRow(c)
	if c.ID != 0 {
		return s.exec(ctx, nutrition.KindContainer, c.ID, `UPDATE containers SET
			owner_id = :owner_id, kind = :kind, name = :name, day = :day, breakfast_id = :breakfast_id,
			lunch_id = :lunch_id, dinner_id = :dinner_id, snack_id = :snack_id, verified = :verified,
			dietary_preferences = :dietary_preferences, allergens = :allergens, health_conditions = :health_conditions,
			calories = :calories, protein = :protein, fat = :fat, sugar = :sugar, salt = :salt
			WHERE id = :id`, row)
	}

	id, err := insert(ctx, s.db, `INSERT INTO containers
		(owner_id, kind, name, day, breakfast_id, lunch_id, dinner_id, snack_id, verified,
		 dietary_preferences, allergens, health_conditions, calories, protein, fat, sugar, salt)
		VALUES (:owner_id, :kind, :name, :day, :breakfast_id, :lunch_id, :dinner_id, :snack_id, :verified,
		 :dietary_preferences, :allergens, :health_conditions, :calories, :protein, :fat, :sugar, :salt)
		RETURNING id`, row)
	if err != nil {
		return fmt.Errorf("failed to save container: %w", err)
	}
	c.ID = id
	return nil
}

// ListIngredients returns every ingredient ordered by ID.
func (s *PostgresStore) ListIngredients(ctx context.Context) ([]*nutrition.Ingredient, error) {
	var rows []ingredientRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+ingredientColumns+` FROM ingredients ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	out := make([]*nutrition.Ingredient, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ListRecipes returns every recipe with its bindings, ordered by ID.
func (s *PostgresStore) ListRecipes(ctx context.Context) ([]*nutrition.Recipe, error) {
	var rows []recipeRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+recipeColumns+` FROM recipes ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	out := make([]*nutrition.Recipe, 0, len(rows))
	for _, row := range rows {
		r := row.toModel()
		if err := s.loadBindings(ctx, r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ListMeals returns every meal ordered by ID. Items are not loaded; search
// only needs the derived fields.
func (s *PostgresStore) ListMeals(ctx context.Context) ([]*nutrition.Meal, error) {
	var rows []mealRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+mealColumns+` FROM meals ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	out := make([]*nutrition.Meal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
