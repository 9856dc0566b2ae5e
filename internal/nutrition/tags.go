package nutrition

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Tag is a dietary preference, allergen, health condition or meal type label.
type Tag string

// AllergenFree is the sentinel allergen tag. It never appears alongside a
// real allergen.
const AllergenFree Tag = "ALLERGEN_FREE"

// Dietary preferences.
const (
	Vegan       Tag = "VEGAN"
	Vegetarian  Tag = "VEGETARIAN"
	Pescatarian Tag = "PESCATARIAN"
	GlutenFree  Tag = "GLUTEN_FREE"
	DairyFree   Tag = "DAIRY_FREE"
	Halal       Tag = "HALAL"
	Kosher      Tag = "KOSHER"
	LowCarb     Tag = "LOW_CARB"
)

// Allergens.
const (
	Gluten    Tag = "GLUTEN"
	Dairy     Tag = "DAIRY"
	Eggs      Tag = "EGGS"
	Peanuts   Tag = "PEANUTS"
	TreeNuts  Tag = "TREE_NUTS"
	Soy       Tag = "SOY"
	Fish      Tag = "FISH"
	Shellfish Tag = "SHELLFISH"
	Sesame    Tag = "SESAME"
)

// Health conditions a food can be suitable for.
const (
	DiabetesFriendly Tag = "DIABETES_FRIENDLY"
	HeartHealthy     Tag = "HEART_HEALTHY"
	LowSodium        Tag = "LOW_SODIUM"
	KidneyFriendly   Tag = "KIDNEY_FRIENDLY"
	CeliacSafe       Tag = "CELIAC_SAFE"
)

// Meal types. A meal may serve several.
const (
	MealBreakfast Tag = "BREAKFAST"
	MealLunch     Tag = "LUNCH"
	MealDinner    Tag = "DINNER"
	MealSnack     Tag = "SNACK"
)

var (
	KnownPreferences = NewTagSet(Vegan, Vegetarian, Pescatarian, GlutenFree, DairyFree, Halal, Kosher, LowCarb)
	KnownAllergens   = NewTagSet(AllergenFree, Gluten, Dairy, Eggs, Peanuts, TreeNuts, Soy, Fish, Shellfish, Sesame)
	KnownHealth      = NewTagSet(DiabetesFriendly, HeartHealthy, LowSodium, KidneyFriendly, CeliacSafe)
	KnownMealTypes   = NewTagSet(MealBreakfast, MealLunch, MealDinner, MealSnack)
)

// NormalizeTag upper-cases s and turns spaces and dashes into underscores,
// so "gluten-free" and "Gluten Free" both become GLUTEN_FREE.
func NormalizeTag(s string) Tag {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return Tag(s)
}

// TagSet is an unordered set of tags. Set operations return new sets and
// leave their operands untouched.
type TagSet map[Tag]struct{}

// NewTagSet builds a set from tags.
func NewTagSet(tags ...Tag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

func (s TagSet) Has(t Tag) bool {
	_, ok := s[t]
	return ok
}

func (s TagSet) Len() int { return len(s) }

// Clone returns an independent copy. A nil set clones to an empty one.
func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Union returns s ∪ o.
func (s TagSet) Union(o TagSet) TagSet {
	out := s.Clone()
	for t := range o {
		out[t] = struct{}{}
	}
	return out
}

// Intersect returns s ∩ o.
func (s TagSet) Intersect(o TagSet) TagSet {
	out := make(TagSet)
	for t := range s {
		if o.Has(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

// Without returns s with t removed.
func (s TagSet) Without(t Tag) TagSet {
	out := s.Clone()
	delete(out, t)
	return out
}

// ContainsAll reports whether s is a superset of o.
func (s TagSet) ContainsAll(o TagSet) bool {
	for t := range o {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// Disjoint reports whether s and o share no tag.
func (s TagSet) Disjoint(o TagSet) bool {
	for t := range o {
		if s.Has(t) {
			return false
		}
	}
	return true
}

func (s TagSet) Equal(o TagSet) bool {
	return len(s) == len(o) && s.ContainsAll(o)
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []Tag {
	out := make([]Tag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s TagSet) String() string {
	parts := make([]string, 0, len(s))
	for _, t := range s.Sorted() {
		parts = append(parts, string(t))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the set as a sorted array.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON accepts an array of tag names; names are normalized.
func (s *TagSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(TagSet, len(raw))
	for _, r := range raw {
		if t := NormalizeTag(r); t != "" {
			out[t] = struct{}{}
		}
	}
	*s = out
	return nil
}

// Value stores the set as a JSON array (JSONB column).
func (s TagSet) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON array column into the set.
func (s *TagSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = TagSet{}
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into TagSet", src)
	}
}
