package nutrition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagSetOperations(t *testing.T) {
	a := NewTagSet(Vegan, GlutenFree, DairyFree)
	b := NewTagSet(Vegan, Halal)

	assert.True(t, a.Union(b).Equal(NewTagSet(Vegan, GlutenFree, DairyFree, Halal)))
	assert.True(t, a.Intersect(b).Equal(NewTagSet(Vegan)))
	assert.True(t, a.ContainsAll(NewTagSet(Vegan, DairyFree)))
	assert.False(t, a.ContainsAll(b))
	assert.True(t, a.Disjoint(NewTagSet(Peanuts)))
	assert.False(t, a.Disjoint(b))
	assert.True(t, a.Without(Vegan).Equal(NewTagSet(GlutenFree, DairyFree)))

	// Operands stay untouched.
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestTagSetNilBehavesEmpty(t *testing.T) {
	var s TagSet

	assert.False(t, s.Has(Vegan))
	assert.True(t, s.ContainsAll(nil))
	assert.True(t, s.Union(NewTagSet(Vegan)).Equal(NewTagSet(Vegan)))
	assert.Equal(t, 0, s.Intersect(NewTagSet(Vegan)).Len())
	assert.NotNil(t, s.Clone())
}

func TestTagSetJSON(t *testing.T) {
	s := NewTagSet(Vegan, DairyFree)
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["DAIRY_FREE","VEGAN"]`, string(data))

	var back TagSet
	require.NoError(t, json.Unmarshal([]byte(`["vegan", "gluten-free", " Dairy Free "]`), &back))
	assert.True(t, back.Equal(NewTagSet(Vegan, GlutenFree, DairyFree)))
}

func TestTagSetScan(t *testing.T) {
	var s TagSet
	require.NoError(t, s.Scan([]byte(`["PEANUTS"]`)))
	assert.True(t, s.Equal(NewTagSet(Peanuts)))

	require.NoError(t, s.Scan(nil))
	assert.Equal(t, 0, s.Len())

	assert.Error(t, s.Scan(42))

	v, err := NewTagSet(Soy).Value()
	require.NoError(t, err)
	assert.Equal(t, `["SOY"]`, v)
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in   string
		want Unit
	}{
		{"g", Grams},
		{"GRAMS", Grams},
		{" Tbsp ", Tablespoon},
		{"medium egg", MediumEgg},
		{"servings", Serving},
		{"cup", Cup},
	}
	for _, tt := range tests {
		got, err := ParseUnit(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseUnit("handful")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestDecodeInferredTags(t *testing.T) {
	raw := "Here you go:\n```json\n{\"dietary_preferences\": [\"vegan\", \"made-up\"], \"health_conditions\": [\"heart healthy\"]}\n```"

	got, err := DecodeInferredTags(raw)
	require.NoError(t, err)
	assert.True(t, got.Preferences.Equal(NewTagSet(Vegan)))
	assert.True(t, got.Health.Equal(NewTagSet(HeartHealthy)))

	_, err = DecodeInferredTags("no json here")
	assert.Error(t, err)
}

func TestMacrosSumIsOrderIndependent(t *testing.T) {
	a := Macros{Calories: 100, Protein: 5, Fat: 1, Sugar: 2, Salt: 0.1}
	b := Macros{Calories: 250, Protein: 12, Fat: 8, Sugar: 0, Salt: 0.4}
	c := Macros{Calories: 75, Protein: 1, Fat: 3, Sugar: 9, Salt: 0}

	assert.Equal(t, SumMacros(a, b, c), SumMacros(c, a, b))
	assert.Equal(t, a, a.Add(Macros{}))
	assert.True(t, SumMacros().IsZero())
}
