package propagate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mealgraph/internal/nutrition"
)

// NodeError is a failure at one node of a cascade.
type NodeError struct {
	Node nutrition.Ref
	Err  error
}

func (e NodeError) Error() string { return fmt.Sprintf("%s: %v", e.Node, e.Err) }

func (e NodeError) Unwrap() error { return e.Err }

func (e NodeError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Node  nutrition.Ref `json:"node"`
		Error string        `json:"error"`
	}{e.Node, e.Err.Error()})
}

// Report describes one finished cascade.
type Report struct {
	ID       uuid.UUID     `json:"id"`
	Trigger  nutrition.Ref `json:"trigger"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	Recipes    int `json:"recipes"`
	Items      int `json:"meal_items"`
	Meals      int `json:"meals"`
	Containers int `json:"containers"`

	Failures []NodeError `json:"failures,omitempty"`
}

func newReport(trigger nutrition.Ref) *Report {
	return &Report{ID: uuid.New(), Trigger: trigger, Started: time.Now()}
}

func (r *Report) fail(node nutrition.Ref, err error) {
	r.Failures = append(r.Failures, NodeError{Node: node, Err: err})
}

// Recomputed is the number of nodes rewritten by the cascade.
func (r *Report) Recomputed() int { return r.Recipes + r.Items + r.Meals + r.Containers }

// Err joins every node failure, or returns nil for a clean cascade.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
