package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
	"mealgraph/internal/propagate"
	"mealgraph/internal/query"
)

const (
	readTimeout    = 5 * time.Second
	cascadeTimeout = 45 * time.Second
)

// FoodStore defines the data operations the handlers need.
type FoodStore interface {
	Ingredient(ctx context.Context, id int64) (*nutrition.Ingredient, error)
	Recipe(ctx context.Context, id int64) (*nutrition.Recipe, error)
	MealItem(ctx context.Context, id int64) (*nutrition.MealItem, error)
	Meal(ctx context.Context, id int64) (*nutrition.Meal, error)
	Container(ctx context.Context, id int64) (*nutrition.Container, error)

	PutIngredient(ctx context.Context, i *nutrition.Ingredient) error
	PutRecipe(ctx context.Context, r *nutrition.Recipe) error
	PutMeal(ctx context.Context, m *nutrition.Meal) error
	PutMealItem(ctx context.Context, it *nutrition.MealItem) error
	PutContainer(ctx context.Context, c *nutrition.Container) error

	ListIngredients(ctx context.Context) ([]*nutrition.Ingredient, error)
	ListRecipes(ctx context.Context) ([]*nutrition.Recipe, error)
	ListMeals(ctx context.Context) ([]*nutrition.Meal, error)
}

// Cascader pushes an edit up the food graph.
type Cascader interface {
	OnBaseIngredientChanged(ctx context.Context, ingredientID int64) (*propagate.Report, error)
	OnRecipeEdited(ctx context.Context, recipeID int64) (*propagate.Report, error)
	OnMealItemEdited(ctx context.Context, itemID int64) (*propagate.Report, error)
	OnMealEdited(ctx context.Context, mealID int64) (*propagate.Report, error)
	OnContainerEdited(ctx context.Context, containerID int64) (*propagate.Report, error)
}

// Searcher filters, sorts and truncates candidates.
type Searcher interface {
	Search(ctx context.Context, req query.Request, candidates []query.Entity) ([]query.Entity, error)
}

// LikeCounter reads and increments favorite counts.
type LikeCounter interface {
	Likes(ctx context.Context, ref nutrition.Ref) (int64, error)
	Like(ctx context.Context, ref nutrition.Ref) (int64, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Store    FoodStore
	Cascader Cascader
	Searcher Searcher
	Likes    LikeCounter
	log      *logger.Logger
}

// NewHandler creates a new Handler.
func NewHandler(store FoodStore, cascader Cascader, searcher Searcher, likes LikeCounter, log *logger.Logger) *Handler {
	return &Handler{Store: store, Cascader: cascader, Searcher: searcher, Likes: likes, log: log}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/search/:kind", h.Search)

	r.GET("/ingredients", h.ListIngredients)
	r.GET("/ingredients/:id", h.GetIngredient)
	r.POST("/ingredients", h.CreateIngredient)
	r.PUT("/ingredients/:id", h.UpdateIngredient)
	r.PUT("/ingredients/:id/verification", h.SetVerification)

	r.GET("/recipes", h.ListRecipes)
	r.GET("/recipes/:id", h.GetRecipe)
	r.POST("/recipes", h.CreateRecipe)
	r.PUT("/recipes/:id", h.UpdateRecipe)

	r.GET("/meals", h.ListMeals)
	r.GET("/meals/:id", h.GetMeal)
	r.POST("/meals", h.CreateMeal)
	r.PUT("/meals/:id", h.UpdateMeal)
	r.POST("/meals/:id/recompute", h.RecomputeMeal)
	r.PUT("/meal-items/:id", h.UpdateMealItem)

	r.GET("/containers/:id", h.GetContainer)
	r.POST("/containers", h.CreateContainer)
	r.PUT("/containers/:id", h.UpdateContainer)
	r.POST("/containers/:id/recompute", h.RecomputeContainer)

	r.GET("/likes/:kind/:id", h.GetLikes)
	r.POST("/likes/:kind/:id", h.Like)
}

// Search handles GET /search/:kind with query.Request as query parameters.
func (h *Handler) Search(c *gin.Context) {
	kind, err := nutrition.ParseKind(c.Param("kind"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req query.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("bind query err: %s", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	var candidates []query.Entity
	switch kind {
	case nutrition.KindIngredient:
		xs, lerr := h.Store.ListIngredients(ctx)
		candidates, err = query.Entities(xs), lerr
	case nutrition.KindRecipe:
		xs, lerr := h.Store.ListRecipes(ctx)
		candidates, err = query.Entities(xs), lerr
	case nutrition.KindMeal:
		xs, lerr := h.Store.ListMeals(ctx)
		candidates, err = query.Entities(xs), lerr
	default:
		c.String(http.StatusBadRequest, fmt.Sprintf("%s is not searchable", kind))
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	results, err := h.Searcher.Search(ctx, req, candidates)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "results": results})
}

// GetIngredient handles GET /ingredients/:id.
func (h *Handler) GetIngredient(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	i, err := h.Store.Ingredient(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, i)
}

// ListIngredients handles GET /ingredients.
func (h *Handler) ListIngredients(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	xs, err := h.Store.ListIngredients(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, xs)
}

// ListRecipes handles GET /recipes.
func (h *Handler) ListRecipes(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	xs, err := h.Store.ListRecipes(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, xs)
}

// ListMeals handles GET /meals.
func (h *Handler) ListMeals(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	xs, err := h.Store.ListMeals(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, xs)
}

// CreateIngredient handles POST /ingredients. Nothing depends on a new
// ingredient, so no cascade runs.
func (h *Handler) CreateIngredient(c *gin.Context) {
	var i nutrition.Ingredient
	if err := c.ShouldBindJSON(&i); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("bind json err: %s", err.Error()))
		return
	}
	i.ID = 0

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	if err := h.Store.PutIngredient(ctx, &i); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, &i)
}

// UpdateIngredient handles PUT /ingredients/:id and cascades the change to
// every recipe, meal and container above it.
func (h *Handler) UpdateIngredient(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var i nutrition.Ingredient
	if err := c.ShouldBindJSON(&i); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("bind json err: %s", err.Error()))
		return
	}
	i.ID = id

	ctx, cancel := context.WithTimeout(c.Request.Context(), cascadeTimeout)
	defer cancel()

	if _, err := h.Store.Ingredient(ctx, id); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Store.PutIngredient(ctx, &i); err != nil {
		h.writeError(c, err)
		return
	}
	report, err := h.Cascader.OnBaseIngredientChanged(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingredient": &i, "cascade": report})
}

type verificationBody struct {
	Verified *bool `json:"verified" binding:"required"`
}

// SetVerification handles PUT /ingredients/:id/verification, the
// moderator's switch for an ingredient's verified flag.
func (h *Handler) SetVerification(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var body verificationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("bind json err: %s", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), cascadeTimeout)
	defer cancel()

	i, err := h.Store.Ingredient(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	i.Verified = *body.Verified
	if err := h.Store.PutIngredient(ctx, i); err != nil {
		h.writeError(c, err)
		return
	}
	report, err := h.Cascader.OnBaseIngredientChanged(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.log.Info("ingredient %d verified=%t", id, i.Verified)
	c.JSON(http.StatusOK, gin.H{"ingredient": i, "cascade": report})
}

// GetRecipe handles GET /recipes/:id.
func (h *Handler) GetRecipe(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	r, err := h.Store.Recipe(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// CreateRecipe handles POST /recipes. The recipe's derived fields are
// computed from its ingredients before it is returned.
func (h *Handler) CreateRecipe(c *gin.Context) {
	h.putRecipe(c, 0, http.StatusCreated)
}

// UpdateRecipe handles PUT /recipes/:id.
func (h *Handler) UpdateRecipe(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	h.putRecipe(c, id, http.StatusOK)
}

func (h *Handler) putRecipe(c *gin.Context, id int64, status int) {
	var r nutrition.Recipe
	if err := c.ShouldBindJSON(&r); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("bind json err: %s", err.Error()))
		return
	}
	r.ID = id
	for i := range r.Ingredients {
		u, err := nutrition.ParseUnit(string(r.Ingredients[i].Unit))
		if err != nil {
			h.writeError(c, err)
			return
		}
		r.Ingredients[i].Unit = u
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), cascadeTimeout)
	defer cancel()

	if id != 0 {
		if _, err := h.Store.Recipe(ctx, id); err != nil {
			h.writeError(c, err)
			return
		}
	}
	for _, b := range r.Ingredients {
		if _, err := h.Store.Ingredient(ctx, b.IngredientID); err != nil {
			h.writeError(c, fmt.Errorf("ingredient %d: %w", b.IngredientID, err))
			return
		}
	}
	if err := h.Store.PutRecipe(ctx, &r); err != nil {
		h.writeError(c, err)
		return
	}
	report, err := h.Cascader.OnRecipeEdited(ctx, r.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	saved, err := h.Store.Recipe(ctx, r.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"recipe": saved, "cascade": report})
}

// GetMeal handles GET /meals/:id.
func (h *Handler) GetMeal(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	m, err := h.Store.Meal(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// CreateMeal handles POST /meals. Each item names its component by kind and
// id, e.g. {"component": {"kind": "recipe", "id": 3}, "quantity": 1, "unit": "serving"}.
func (h *Handler) CreateMeal(c *gin.Context) {
	h.putMeal(c, 0, http.StatusCreated)
}

// UpdateMeal handles PUT /meals/:id. The item list replaces the stored one.
func (h *Handler) UpdateMeal(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	h.putMeal(c, id, http.StatusOK)
}

func (h *Handler) putMeal(c *gin.Context, id int64, status int) {
	var m nutrition.Meal
	if err := c.ShouldBindJSON(&m); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("bind json err: %s", err.Error()))
		return
	}
	m.ID = id

	ctx, cancel := context.WithTimeout(c.Request.Context(), cascadeTimeout)
	defer cancel()

	if id != 0 {
		if _, err := h.Store.Meal(ctx, id); err != nil {
			h.writeError(c, err)
			return
		}
	}
	items := m.Items[:0]
	for _, it := range m.Items {
		if it == nil {
			continue
		}
		it.ID = 0
		if err := h.checkItem(ctx, it); err != nil {
			h.writeError(c, err)
			return
		}
		items = append(items, it)
	}
	m.Items = items

	if err := h.Store.PutMeal(ctx, &m); err != nil {
		h.writeError(c, err)
		return
	}
	report, err := h.Cascader.OnMealEdited(ctx, m.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	saved, err := h.Store.Meal(ctx, m.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"meal": saved, "cascade": report})
}

// RecomputeMeal handles POST /meals/:id/recompute, refreshing every item
// from its current source.
func (h *Handler) RecomputeMeal(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), cascadeTimeout)
	defer cancel()

	report, err := h.Cascader.OnMealEdited(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	m, err := h.Store.Meal(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal": m, "cascade": report})
}

type mealItemBody struct {
	Component *nutrition.Ref `json:"component"`
	Quantity  *float64       `json:"quantity"`
	Unit      *string        `json:"unit"`
}

// UpdateMealItem handles PUT /meal-items/:id. Omitted fields keep their
// stored value.
func (h *Handler) UpdateMealItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var body mealItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("bind json err: %s", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), cascadeTimeout)
	defer cancel()

	it, err := h.Store.MealItem(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if body.Component != nil {
		it.Component = *body.Component
		it.Source = nil
	}
	if body.Quantity != nil {
		it.Quantity = *body.Quantity
	}
	if body.Unit != nil {
		it.Unit = nutrition.Unit(*body.Unit)
	}
	if err := h.checkItem(ctx, it); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Store.PutMealItem(ctx, it); err != nil {
		h.writeError(c, err)
		return
	}
	report, err := h.Cascader.OnMealItemEdited(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	saved, err := h.Store.MealItem(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal_item": saved, "cascade": report})
}

// checkItem normalizes the item's unit and checks that its component exists.
func (h *Handler) checkItem(ctx context.Context, it *nutrition.MealItem) error {
	u, err := nutrition.ParseUnit(string(it.Unit))
	if err != nil {
		return err
	}
	it.Unit = u
	if it.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity", nutrition.ErrInvalidRequest)
	}

	switch it.Component.Kind {
	case nutrition.KindIngredient:
		_, err = h.Store.Ingredient(ctx, it.Component.ID)
	case nutrition.KindRecipe:
		if u != nutrition.Serving {
			_, err = h.Store.Recipe(ctx, it.Component.ID)
			break
		}
		var r *nutrition.Recipe
		r, err = h.Store.Recipe(ctx, it.Component.ID)
		if err == nil && r.Servings <= 0 {
			err = fmt.Errorf("%w: recipe %d has no servings", nutrition.ErrInvalidRequest, r.ID)
		}
	default:
		return fmt.Errorf("%w: component must be an ingredient or a recipe", nutrition.ErrInvalidRequest)
	}
	if err != nil {
		return fmt.Errorf("component %s: %w", it.Component, err)
	}
	return nil
}

// GetContainer handles GET /containers/:id.
func (h *Handler) GetContainer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	ct, err := h.Store.Container(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// CreateContainer handles POST /containers. Slots are given as meal ids in
// breakfast, lunch, dinner, snack order; zero leaves a slot empty.
func (h *Handler) CreateContainer(c *gin.Context) {
	h.putContainer(c, 0, http.StatusCreated)
}

// UpdateContainer handles PUT /containers/:id.
func (h *Handler) UpdateContainer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	h.putContainer(c, id, http.StatusOK)
}

func (h *Handler) putContainer(c *gin.Context, id int64, status int) {
	var ct nutrition.Container
	if err := c.ShouldBindJSON(&ct); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("bind json err: %s", err.Error()))
		return
	}
	ct.ID = id
	switch ct.Kind {
	case nutrition.DayEntry, nutrition.MealPlan:
	case "":
		ct.Kind = nutrition.DayEntry
	default:
		c.String(http.StatusBadRequest, fmt.Sprintf("unknown container kind %q", ct.Kind))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), cascadeTimeout)
	defer cancel()

	if id != 0 {
		if _, err := h.Store.Container(ctx, id); err != nil {
			h.writeError(c, err)
			return
		}
	}
	for slot, mealID := range ct.MealIDs {
		if mealID == 0 {
			continue
		}
		if _, err := h.Store.Meal(ctx, mealID); err != nil {
			h.writeError(c, fmt.Errorf("%s slot: %w", nutrition.Slot(slot), err))
			return
		}
	}
	if err := h.Store.PutContainer(ctx, &ct); err != nil {
		h.writeError(c, err)
		return
	}
	report, err := h.Cascader.OnContainerEdited(ctx, ct.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	saved, err := h.Store.Container(ctx, ct.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"container": saved, "cascade": report})
}

// RecomputeContainer handles POST /containers/:id/recompute.
func (h *Handler) RecomputeContainer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), cascadeTimeout)
	defer cancel()

	report, err := h.Cascader.OnContainerEdited(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ct, err := h.Store.Container(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"container": ct, "cascade": report})
}

// GetLikes handles GET /likes/:kind/:id.
func (h *Handler) GetLikes(c *gin.Context) {
	ref, ok := h.likeRef(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	n, err := h.Likes.Likes(ctx, ref)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ref": ref, "likes": n})
}

// Like handles POST /likes/:kind/:id.
func (h *Handler) Like(c *gin.Context) {
	ref, ok := h.likeRef(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	var err error
	switch ref.Kind {
	case nutrition.KindIngredient:
		_, err = h.Store.Ingredient(ctx, ref.ID)
	case nutrition.KindRecipe:
		_, err = h.Store.Recipe(ctx, ref.ID)
	case nutrition.KindMeal:
		_, err = h.Store.Meal(ctx, ref.ID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	n, err := h.Likes.Like(ctx, ref)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ref": ref, "likes": n})
}

func (h *Handler) likeRef(c *gin.Context) (nutrition.Ref, bool) {
	kind, err := nutrition.ParseKind(c.Param("kind"))
	if err != nil {
		h.writeError(c, err)
		return nutrition.Ref{}, false
	}
	switch kind {
	case nutrition.KindIngredient, nutrition.KindRecipe, nutrition.KindMeal:
	default:
		c.String(http.StatusBadRequest, fmt.Sprintf("%s cannot be liked", kind))
		return nutrition.Ref{}, false
	}
	id, ok := h.pathID(c)
	if !ok {
		return nutrition.Ref{}, false
	}
	return nutrition.Ref{Kind: kind, ID: id}, true
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, nutrition.ErrNotFound):
		c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, nutrition.ErrInvalidRequest), errors.Is(err, nutrition.ErrUnknownUnit):
		c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		c.String(http.StatusRequestTimeout, "request timed out")
	default:
		h.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.String(http.StatusInternalServerError, fmt.Sprintf("internal error: %s", err.Error()))
	}
}
