package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
	"mealgraph/internal/platform/likes"
	"mealgraph/internal/propagate"
	"mealgraph/internal/query"
	"mealgraph/internal/store"
)

type testServer struct {
	r     *gin.Engine
	store *store.MemoryStore
	likes *likes.MemoryCounter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Nop()
	s := store.NewMemoryStore(log)
	counter := likes.NewMemoryCounter()
	h := NewHandler(s, propagate.New(s, nil, log), query.NewEngine(counter, log), counter, log)

	r := gin.Default()
	h.Register(r)
	return &testServer{r: r, store: s, likes: counter}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

type cascadeResponse struct {
	Cascade struct {
		Recipes    int `json:"recipes"`
		Items      int `json:"meal_items"`
		Meals      int `json:"meals"`
		Containers int `json:"containers"`
	} `json:"cascade"`
	Recipe    *nutrition.Recipe    `json:"recipe"`
	Meal      *nutrition.Meal      `json:"meal"`
	Container *nutrition.Container `json:"container"`
}

// seed creates oats and milk, a porridge recipe, a breakfast meal and a day
// entry through the API.
func (ts *testServer) seed(t *testing.T) (oats, milk, porridge, breakfast, day int64) {
	t.Helper()

	rr := ts.do(t, http.MethodPost, "/ingredients", map[string]any{
		"name": "Oats", "verified": true,
		"dietary_preferences": []string{"VEGAN"},
		"allergens":           []string{"GLUTEN"},
		"macros_per_100g":     map[string]float64{"calories": 380, "protein": 13},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	oats = decode[nutrition.Ingredient](t, rr).ID

	rr = ts.do(t, http.MethodPost, "/ingredients", map[string]any{
		"name": "Milk", "verified": true,
		"dietary_preferences": []string{"VEGETARIAN"},
		"allergens":           []string{"DAIRY"},
		"macros_per_100g":     map[string]float64{"calories": 60, "protein": 3},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	milk = decode[nutrition.Ingredient](t, rr).ID

	rr = ts.do(t, http.MethodPost, "/recipes", map[string]any{
		"name": "Porridge", "servings": 2,
		"ingredients": []map[string]any{
			{"ingredient_id": oats, "quantity": 80, "unit": "g"},
			{"ingredient_id": milk, "quantity": 1, "unit": "cup"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[cascadeResponse](t, rr)
	assert.InDelta(t, 320, res.Recipe.TotalWeight, 1e-9)
	assert.InDelta(t, 448, res.Recipe.Macros.Calories, 1e-9)
	porridge = res.Recipe.ID

	rr = ts.do(t, http.MethodPost, "/meals", map[string]any{
		"owner_name": "Ada",
		"items": []map[string]any{
			{"component": map[string]any{"kind": "recipe", "id": porridge}, "quantity": 1, "unit": "serving"},
			{"component": map[string]any{"kind": "ingredient", "id": oats}, "quantity": 40, "unit": "grams"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res = decode[cascadeResponse](t, rr)
	assert.Equal(t, "Ada's Meal", res.Meal.Name)
	assert.InDelta(t, 224+152, res.Meal.Macros.Calories, 1e-9)
	breakfast = res.Meal.ID

	rr = ts.do(t, http.MethodPost, "/containers", map[string]any{
		"kind": "day", "meal_ids": []int64{breakfast, 0, 0, 0},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res = decode[cascadeResponse](t, rr)
	assert.InDelta(t, 376, res.Container.Macros.Calories, 1e-9)
	assert.Equal(t, 1, res.Cascade.Containers)
	day = res.Container.ID
	return oats, milk, porridge, breakfast, day
}

func TestCreateAndGet(t *testing.T) {
	ts := newTestServer(t)
	oats, _, porridge, breakfast, day := ts.seed(t)

	rr := ts.do(t, http.MethodGet, "/ingredients/"+itoa(oats), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Oats", decode[nutrition.Ingredient](t, rr).Name)

	rr = ts.do(t, http.MethodGet, "/recipes/"+itoa(porridge), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[nutrition.Recipe](t, rr).Allergens.Equal(nutrition.NewTagSet(nutrition.Gluten, nutrition.Dairy)))

	rr = ts.do(t, http.MethodGet, "/meals/"+itoa(breakfast), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[nutrition.Meal](t, rr).Items, 2)

	rr = ts.do(t, http.MethodGet, "/containers/"+itoa(day), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[nutrition.Container](t, rr).Verified)
}

func TestListRoutes(t *testing.T) {
	ts := newTestServer(t)
	oats, milk, porridge, breakfast, _ := ts.seed(t)

	rr := ts.do(t, http.MethodGet, "/ingredients", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got []int64
	for _, i := range decode[[]nutrition.Ingredient](t, rr) {
		got = append(got, i.ID)
	}
	assert.ElementsMatch(t, []int64{oats, milk}, got)

	rr = ts.do(t, http.MethodGet, "/recipes", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	recipes := decode[[]nutrition.Recipe](t, rr)
	require.Len(t, recipes, 1)
	assert.Equal(t, porridge, recipes[0].ID)

	rr = ts.do(t, http.MethodGet, "/meals", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	meals := decode[[]nutrition.Meal](t, rr)
	require.Len(t, meals, 1)
	assert.Equal(t, breakfast, meals[0].ID)
	assert.InDelta(t, 376, meals[0].Macros.Calories, 1e-9)

	rr = ts.do(t, http.MethodGet, "/containers", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetVerificationCascades(t *testing.T) {
	ts := newTestServer(t)
	_, milk, _, breakfast, day := ts.seed(t)

	rr := ts.do(t, http.MethodPut, "/ingredients/"+itoa(milk)+"/verification", map[string]bool{"verified": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[cascadeResponse](t, rr)
	assert.Equal(t, 1, res.Cascade.Recipes)
	assert.Equal(t, 1, res.Cascade.Items)
	assert.Equal(t, 1, res.Cascade.Meals)
	assert.Equal(t, 1, res.Cascade.Containers)

	m, err := ts.store.Meal(context.Background(), breakfast)
	require.NoError(t, err)
	assert.False(t, m.Verified)
	ct, err := ts.store.Container(context.Background(), day)
	require.NoError(t, err)
	assert.False(t, ct.Verified)

	rr = ts.do(t, http.MethodPut, "/ingredients/"+itoa(milk)+"/verification", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateIngredientCascades(t *testing.T) {
	ts := newTestServer(t)
	oats, _, _, _, day := ts.seed(t)

	rr := ts.do(t, http.MethodPut, "/ingredients/"+itoa(oats), map[string]any{
		"name": "Oats", "verified": true,
		"allergens":       []string{"GLUTEN"},
		"macros_per_100g": map[string]float64{"calories": 400},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	ct, err := ts.store.Container(context.Background(), day)
	require.NoError(t, err)
	// porridge = 320 + 144 = 464, one serving 232; 40 g oats = 160.
	assert.InDelta(t, 392, ct.Macros.Calories, 1e-9)

	rr = ts.do(t, http.MethodPut, "/ingredients/999", map[string]any{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateMealItem(t *testing.T) {
	ts := newTestServer(t)
	_, _, _, breakfast, day := ts.seed(t)

	m, err := ts.store.Meal(context.Background(), breakfast)
	require.NoError(t, err)
	itemID := m.Items[1].ID

	rr := ts.do(t, http.MethodPut, "/meal-items/"+itoa(itemID), map[string]any{"quantity": 80})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[cascadeResponse](t, rr)
	assert.Equal(t, 1, res.Cascade.Items)
	assert.Equal(t, 1, res.Cascade.Containers)

	ct, err := ts.store.Container(context.Background(), day)
	require.NoError(t, err)
	assert.InDelta(t, 224+304, ct.Macros.Calories, 1e-9)

	rr = ts.do(t, http.MethodPut, "/meal-items/"+itoa(itemID), map[string]any{"unit": "bucket"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown unit")
}

func TestRecomputeRoutes(t *testing.T) {
	ts := newTestServer(t)
	_, _, _, breakfast, day := ts.seed(t)

	rr := ts.do(t, http.MethodPost, "/meals/"+itoa(breakfast)+"/recompute", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[cascadeResponse](t, rr)
	assert.Equal(t, 2, res.Cascade.Items)
	assert.Equal(t, 1, res.Cascade.Meals)

	rr = ts.do(t, http.MethodPost, "/containers/"+itoa(day)+"/recompute", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.InDelta(t, 376, decode[cascadeResponse](t, rr).Container.Macros.Calories, 1e-9)

	rr = ts.do(t, http.MethodPost, "/containers/77/recompute", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	oats, _, _, _, _ := ts.seed(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown unit", "/recipes", map[string]any{
			"name": "X", "ingredients": []map[string]any{{"ingredient_id": oats, "quantity": 1, "unit": "bucket"}},
		}, http.StatusBadRequest},
		{"missing ingredient", "/recipes", map[string]any{
			"name": "X", "ingredients": []map[string]any{{"ingredient_id": 999, "quantity": 1, "unit": "g"}},
		}, http.StatusNotFound},
		{"meal item of a meal", "/meals", map[string]any{
			"items": []map[string]any{{"component": map[string]any{"kind": "meal", "id": 1}, "quantity": 1, "unit": "g"}},
		}, http.StatusBadRequest},
		{"container with missing meal", "/containers", map[string]any{
			"kind": "plan", "meal_ids": []int64{0, 999},
		}, http.StatusNotFound},
		{"unknown container kind", "/containers", map[string]any{"kind": "week"}, http.StatusBadRequest},
		{"malformed json", "/ingredients", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	oats, milk, _, _, _ := ts.seed(t)

	rr := ts.do(t, http.MethodGet, "/search/ingredients?sort_by=calories&sort_direction=desc", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res struct {
		Kind    string `json:"kind"`
		Results []struct {
			ID int64 `json:"id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "ingredient", res.Kind)
	require.Len(t, res.Results, 2)
	assert.Equal(t, oats, res.Results[0].ID)
	assert.Equal(t, milk, res.Results[1].ID)

	rr = ts.do(t, http.MethodGet, "/search/recipes?exclude_allergen=dairy", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Empty(t, res.Results)

	rr = ts.do(t, http.MethodGet, "/search/meals?q=ada", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Len(t, res.Results, 1)

	rr = ts.do(t, http.MethodGet, "/search/containers", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodGet, "/search/meals?sort_by=color", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLikes(t *testing.T) {
	ts := newTestServer(t)
	_, _, porridge, _, _ := ts.seed(t)

	for i := 0; i < 3; i++ {
		rr := ts.do(t, http.MethodPost, "/likes/recipe/"+itoa(porridge), nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	rr := ts.do(t, http.MethodGet, "/likes/recipes/"+itoa(porridge), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res struct {
		Likes int64 `json:"likes"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.EqualValues(t, 3, res.Likes)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/likes/meal/404", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/likes/container/1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/likes/recipe/abc", nil).Code)
}

// mockCascader fails every cascade.
type mockCascader struct{ err error }

func (m *mockCascader) OnBaseIngredientChanged(context.Context, int64) (*propagate.Report, error) {
	return nil, m.err
}
func (m *mockCascader) OnRecipeEdited(context.Context, int64) (*propagate.Report, error) {
	return nil, m.err
}
func (m *mockCascader) OnMealItemEdited(context.Context, int64) (*propagate.Report, error) {
	return nil, m.err
}
func (m *mockCascader) OnMealEdited(context.Context, int64) (*propagate.Report, error) {
	return nil, m.err
}
func (m *mockCascader) OnContainerEdited(context.Context, int64) (*propagate.Report, error) {
	return nil, m.err
}

func TestWriteErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := store.NewMemoryStore(logger.Nop())
	oats := &nutrition.Ingredient{Name: "Oats"}
	require.NoError(t, s.PutIngredient(context.Background(), oats))

	tests := []struct {
		err  error
		want int
	}{
		{context.DeadlineExceeded, http.StatusRequestTimeout},
		{errors.New("database is on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewHandler(s, &mockCascader{err: tt.err}, query.NewEngine(nil, logger.Nop()), likes.NewMemoryCounter(), logger.Nop())
		r := gin.Default()
		h.Register(r)

		req := httptest.NewRequest(http.MethodPut, "/ingredients/"+itoa(oats.ID)+"/verification", strings.NewReader(`{"verified": true}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, tt.want, rr.Code)
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
