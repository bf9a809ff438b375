// Package tour defines guided tours and the immutable registry that serves
// them to the runtime.
//
// A tour is an ordered list of steps. Each step names a locator for the
// element to highlight (or "body" for an untargeted, centred step), the
// copy shown in the callout, and presentation hints.
package tour

import (
	"errors"
	"fmt"

	"github.com/vanderheijden86/tourkit/pkg/layout"
)

// BodyTarget marks a step that highlights nothing and shows a centred callout.
const BodyTarget = "body"

// Action is an interaction performed on the target once it resolves.
type Action string

const (
	ActionNone   Action = ""
	ActionClick  Action = "click"
	ActionScroll Action = "scroll"
)

// Valid reports whether a is a known action (or none).
func (a Action) Valid() bool {
	switch a {
	case ActionNone, ActionClick, ActionScroll:
		return true
	}
	return false
}

// Common errors.
var (
	ErrEmptyID      = errors.New("tour id is empty")
	ErrEmptyTour    = errors.New("tour has no steps")
	ErrDuplicateID  = errors.New("duplicate tour id")
	ErrNotFound     = errors.New("tour not found")
	ErrInvalidValue = errors.New("invalid step value")
)

// Step is one stage of a tour.
type Step struct {
	Target         string           `yaml:"target" json:"target"`
	Title          string           `yaml:"title" json:"title"`
	Description    string           `yaml:"description" json:"description"`
	Placement      layout.Placement `yaml:"placement,omitempty" json:"placement,omitempty"`
	SpotlightShape layout.Shape     `yaml:"spotlight_shape,omitempty" json:"spotlightShape,omitempty"`
	HighlightPulse *bool            `yaml:"highlight_pulse,omitempty" json:"highlightPulse,omitempty"`
	Action         Action           `yaml:"action,omitempty" json:"action,omitempty"`
}

// Untargeted reports whether the step deliberately highlights nothing.
func (s Step) Untargeted() bool {
	return s.Target == "" || s.Target == BodyTarget || s.SpotlightShape == layout.ShapeNone
}

// PreferredPlacement returns the authored placement, defaulting to bottom.
func (s Step) PreferredPlacement() layout.Placement {
	if s.Placement == "" {
		return layout.PlacementBottom
	}
	return s.Placement
}

// Shape returns the authored spotlight shape, defaulting to rect.
func (s Step) Shape() layout.Shape {
	if s.SpotlightShape == "" {
		return layout.ShapeRect
	}
	return s.SpotlightShape
}

// Pulse reports whether the step asks for a pulsing highlight. Pulse is on
// unless the step explicitly turns it off.
func (s Step) Pulse() bool {
	return s.HighlightPulse == nil || *s.HighlightPulse
}

func (s Step) clone() Step {
	if s.HighlightPulse != nil {
		v := *s.HighlightPulse
		s.HighlightPulse = &v
	}
	return s
}

// Validate checks the enumerated fields.
func (s Step) Validate() error {
	if s.Placement != "" && !s.Placement.Valid() {
		return fmt.Errorf("%w: placement %q", ErrInvalidValue, s.Placement)
	}
	if s.SpotlightShape != "" && !s.SpotlightShape.Valid() {
		return fmt.Errorf("%w: spotlight shape %q", ErrInvalidValue, s.SpotlightShape)
	}
	if !s.Action.Valid() {
		return fmt.Errorf("%w: action %q", ErrInvalidValue, s.Action)
	}
	if s.Action != ActionNone && s.Untargeted() {
		return fmt.Errorf("%w: action %q on a step without a target", ErrInvalidValue, s.Action)
	}
	return nil
}

// Definition is a complete tour.
type Definition struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	// Route is the page path the tour belongs to. Empty means the tour is
	// global and can start on any page.
	Route string `yaml:"route,omitempty" json:"route,omitempty"`
	// Navigable controls whether the help center may navigate to Route
	// before launching. Defaults to true.
	Navigable *bool  `yaml:"navigable,omitempty" json:"navigable,omitempty"`
	Steps     []Step `yaml:"steps" json:"steps"`
}

// Len returns the number of steps.
func (d Definition) Len() int { return len(d.Steps) }

// Step returns the step at index i.
func (d Definition) Step(i int) (Step, bool) {
	if i < 0 || i >= len(d.Steps) {
		return Step{}, false
	}
	return d.Steps[i], true
}

// CanNavigate reports whether the tour's route may be navigated to directly.
func (d Definition) CanNavigate() bool {
	return d.Route != "" && (d.Navigable == nil || *d.Navigable)
}

// Validate checks the definition and every step.
func (d Definition) Validate() error {
	if d.ID == "" {
		return ErrEmptyID
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%s: %w", d.ID, ErrEmptyTour)
	}
	for i, s := range d.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s step %d: %w", d.ID, i, err)
		}
	}
	return nil
}

func (d Definition) clone() Definition {
	steps := make([]Step, len(d.Steps))
	for i, s := range d.Steps {
		steps[i] = s.clone()
	}
	d.Steps = steps
	if d.Navigable != nil {
		v := *d.Navigable
		d.Navigable = &v
	}
	return d
}
