package nutrition

import (
	"fmt"
	"strings"
)

// Unit is a quantity unit. Every unit except Serving maps to a
// grams-equivalent factor.
type Unit string

const (
	Grams       Unit = "GRAMS"
	Kilograms   Unit = "KILOGRAMS"
	Milligrams  Unit = "MILLIGRAMS"
	Ounces      Unit = "OUNCES"
	Pounds      Unit = "POUNDS"
	Millilitres Unit = "MILLILITRES"
	Litres      Unit = "LITRES"
	Teaspoon    Unit = "TEASPOON"
	Tablespoon  Unit = "TABLESPOON"
	Cup         Unit = "CUP"
	Pinch       Unit = "PINCH"
	Slice       Unit = "SLICE"
	Clove       Unit = "CLOVE"
	SmallEgg    Unit = "SMALL_EGG"
	MediumEgg   Unit = "MEDIUM_EGG"
	LargeEgg    Unit = "LARGE_EGG"

	// Serving counts whole servings of a recipe.
	Serving Unit = "SERVING"
)

// gramsPerUnit is the conversion table. Volumes assume water density.
var gramsPerUnit = map[Unit]float64{
	Grams:       1,
	Kilograms:   1000,
	Milligrams:  0.001,
	Ounces:      28.349523125,
	Pounds:      453.59237,
	Millilitres: 1,
	Litres:      1000,
	Teaspoon:    5,
	Tablespoon:  15,
	Cup:         240,
	Pinch:       0.36,
	Slice:       30,
	Clove:       5,
	SmallEgg:    38,
	MediumEgg:   50,
	LargeEgg:    60,
}

var unitAliases = map[string]Unit{
	"g":        Grams,
	"gram":     Grams,
	"kg":       Kilograms,
	"kilo":     Kilograms,
	"mg":       Milligrams,
	"oz":       Ounces,
	"ounce":    Ounces,
	"lb":       Pounds,
	"lbs":      Pounds,
	"pound":    Pounds,
	"ml":       Millilitres,
	"l":        Litres,
	"litre":    Litres,
	"liter":    Litres,
	"liters":   Litres,
	"tsp":      Teaspoon,
	"tbsp":     Tablespoon,
	"cups":     Cup,
	"egg":      MediumEgg,
	"eggs":     MediumEgg,
	"slices":   Slice,
	"cloves":   Clove,
	"serv":     Serving,
	"servings": Serving,
	"portion":  Serving,
}

// ParseUnit resolves a user supplied unit name. Matching is
// case-insensitive and accepts common abbreviations.
func ParseUnit(s string) (Unit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if u, ok := unitAliases[key]; ok {
		return u, nil
	}
	u := Unit(strings.ToUpper(strings.ReplaceAll(key, " ", "_")))
	if _, ok := gramsPerUnit[u]; ok || u == Serving {
		return u, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// IsServing reports whether u counts whole recipe servings.
func (u Unit) IsServing() bool { return u == Serving }

// GramsPer returns the grams-equivalent of one u.
func GramsPer(u Unit) (float64, error) {
	g, ok := gramsPerUnit[u]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, string(u))
	}
	return g, nil
}

// ToGrams converts qty of u to grams.
func ToGrams(qty float64, u Unit) (float64, error) {
	g, err := GramsPer(u)
	if err != nil {
		return 0, err
	}
	return qty * g, nil
}
