package nutrition

// Macros holds the five tracked macronutrients. It is a value type: Add and
// Scale return new values, so two aggregates never share an instance.
// The zero value is the identity for Add.
type Macros struct {
	Calories float64 `json:"calories" db:"calories"`
	Protein  float64 `json:"protein" db:"protein"`
	Fat      float64 `json:"fat" db:"fat"`
	Sugar    float64 `json:"sugar" db:"sugar"`
	Salt     float64 `json:"salt" db:"salt"`
}

// Add returns the pointwise sum of m and o.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Fat:      m.Fat + o.Fat,
		Sugar:    m.Sugar + o.Sugar,
		Salt:     m.Salt + o.Salt,
	}
}

// Scale multiplies every nutrient by factor.
func (m Macros) Scale(factor float64) Macros {
	return Macros{
		Calories: m.Calories * factor,
		Protein:  m.Protein * factor,
		Fat:      m.Fat * factor,
		Sugar:    m.Sugar * factor,
		Salt:     m.Salt * factor,
	}
}

// IsZero reports whether every nutrient is zero.
func (m Macros) IsZero() bool {
	return m == Macros{}
}

// SumMacros folds Add over ms starting from the zero value.
func SumMacros(ms ...Macros) Macros {
	var total Macros
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}
