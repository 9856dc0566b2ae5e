package query

import (
	"fmt"
	"strings"

	"mealgraph/internal/nutrition"
)

// Sort keys.
const (
	SortID       = "id"
	SortRecent   = "recent"
	SortLikes    = "likes"
	SortCalories = "calories"
	SortProtein  = "protein"
)

const (
	DirectionAsc  = "asc"
	DirectionDesc = "desc"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Request is a search request. Every filter is optional; the zero Request
// matches everything, sorted by ascending id, limited to DefaultLimit.
type Request struct {
	Text             string   `form:"q" json:"q"`
	Preferences      []string `form:"preference" json:"dietary_preferences"`
	ExcludeAllergens []string `form:"exclude_allergen" json:"exclude_allergens"`
	Health           []string `form:"health" json:"health_conditions"`

	MinCalories *float64 `form:"min_calories" json:"min_calories"`
	MaxCalories *float64 `form:"max_calories" json:"max_calories"`
	MinProtein  *float64 `form:"min_protein" json:"min_protein"`
	MaxProtein  *float64 `form:"max_protein" json:"max_protein"`
	MinFat      *float64 `form:"min_fat" json:"min_fat"`
	MaxFat      *float64 `form:"max_fat" json:"max_fat"`

	VerifiedOnly bool   `form:"verified_only" json:"verified_only"`
	OwnerID      *int64 `form:"owner_id" json:"owner_id"`

	// MaxTotalMinutes applies to recipes only.
	MaxTotalMinutes *int `form:"max_total_minutes" json:"max_total_minutes"`
	// MealTypes applies to meals only: at least one must match.
	MealTypes []string `form:"meal_type" json:"meal_types"`

	SortBy        string `form:"sort_by" json:"sort_by"`
	SortDirection string `form:"sort_direction" json:"sort_direction"`
	Limit         int    `form:"limit" json:"limit"`
}

// criteria is a validated Request with tag names parsed into sets.
type criteria struct {
	Request
	preferences nutrition.TagSet
	allergens   nutrition.TagSet
	health      nutrition.TagSet
	mealTypes   nutrition.TagSet
	text        string
	desc        bool
}

func tagSet(names []string) nutrition.TagSet {
	s := nutrition.NewTagSet()
	for _, n := range names {
		// Accept comma-separated values as well as repeated parameters.
		for _, part := range strings.Split(n, ",") {
			if t := nutrition.NormalizeTag(part); t != "" {
				s[t] = struct{}{}
			}
		}
	}
	return s
}

func checkRange(name string, lo, hi *float64) error {
	if lo != nil && hi != nil && *lo > *hi {
		return fmt.Errorf("%w: min_%s %g is above max_%s %g", nutrition.ErrInvalidRequest, name, *lo, name, *hi)
	}
	return nil
}

// normalize applies the defaults and validates the request.
func (r Request) normalize() (*criteria, error) {
	c := &criteria{Request: r}

	c.SortBy = strings.ToLower(strings.TrimSpace(c.SortBy))
	switch c.SortBy {
	case "":
		c.SortBy = SortID
	case SortID, SortRecent, SortLikes, SortCalories, SortProtein:
	default:
		return nil, fmt.Errorf("%w: unknown sort key %q", nutrition.ErrInvalidRequest, r.SortBy)
	}

	switch strings.ToLower(strings.TrimSpace(c.SortDirection)) {
	case "", DirectionAsc:
		c.SortDirection = DirectionAsc
	case DirectionDesc:
		c.SortDirection = DirectionDesc
		c.desc = true
	default:
		return nil, fmt.Errorf("%w: unknown sort direction %q", nutrition.ErrInvalidRequest, r.SortDirection)
	}

	switch {
	case c.Limit < 0:
		return nil, fmt.Errorf("%w: negative limit %d", nutrition.ErrInvalidRequest, c.Limit)
	case c.Limit == 0:
		c.Limit = DefaultLimit
	case c.Limit > MaxLimit:
		c.Limit = MaxLimit
	}

	for _, rg := range []struct {
		name   string
		lo, hi *float64
	}{
		{"calories", c.MinCalories, c.MaxCalories},
		{"protein", c.MinProtein, c.MaxProtein},
		{"fat", c.MinFat, c.MaxFat},
	} {
		if err := checkRange(rg.name, rg.lo, rg.hi); err != nil {
			return nil, err
		}
	}

	c.text = strings.ToLower(strings.TrimSpace(c.Text))
	c.preferences = tagSet(c.Preferences)
	c.allergens = tagSet(c.ExcludeAllergens)
	c.health = tagSet(c.Health)
	c.mealTypes = tagSet(c.MealTypes)
	return c, nil
}
