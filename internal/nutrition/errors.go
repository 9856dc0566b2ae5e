package nutrition

import "errors"

// Sentinel errors shared by the scaler, the aggregators and the cascade.
var (
	// ErrDivisionUndefined is returned when a recipe has no total weight
	// (or no serving count for a per-serving quantity) and cannot be scaled.
	ErrDivisionUndefined = errors.New("division undefined")
	// ErrUnknownUnit is returned for a quantity unit missing from the unit table.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrMissingComponent marks a meal item or recipe binding with no nutritional source.
	ErrMissingComponent = errors.New("missing component")
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
)
