package overlay

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrValidation is matched by every overlay validation failure.
var ErrValidation = errors.New("overlay validation failed")

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid overlay %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ClampPercent bounds v to [0,100].
func ClampPercent(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func normalizePosition(p Position) (Position, error) {
	if !finite(p.X) || !finite(p.Y) {
		return p, invalid("position", "coordinates must be finite numbers")
	}
	return Position{X: ClampPercent(p.X), Y: ClampPercent(p.Y)}, nil
}

func validateSize(s Size) error {
	if !finite(s.Width) || !finite(s.Height) {
		return invalid("size", "dimensions must be finite numbers")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return invalid("size", "width and height must be greater than zero")
	}
	return nil
}

// Normalize validates r in place: trims text fields, clamps the position and
// fills the default style. It never touches the network.
func (r *CreateRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return invalid("name", "is required")
	}
	if !r.Kind.Valid() {
		return invalid("type", fmt.Sprintf("must be %q or %q", KindText, KindImage))
	}
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" {
		return invalid("content", "is required")
	}
	pos, err := normalizePosition(r.Position)
	if err != nil {
		return err
	}
	r.Position = pos
	if err := validateSize(r.Size); err != nil {
		return err
	}
	if len(r.Style) == 0 {
		r.Style = DefaultStyle(r.Kind)
	}
	if r.IsActive == nil {
		active := true
		r.IsActive = &active
	}
	return nil
}

// Normalize validates the fields present in r.
func (r *UpdateRequest) Normalize() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return invalid("name", "must not be empty")
		}
		r.Name = &name
	}
	if r.Kind != nil && !r.Kind.Valid() {
		return invalid("type", fmt.Sprintf("must be %q or %q", KindText, KindImage))
	}
	if r.Content != nil {
		content := strings.TrimSpace(*r.Content)
		if content == "" {
			return invalid("content", "must not be empty")
		}
		r.Content = &content
	}
	if r.Position != nil {
		pos, err := normalizePosition(*r.Position)
		if err != nil {
			return err
		}
		r.Position = &pos
	}
	if r.Size != nil {
		if err := validateSize(*r.Size); err != nil {
			return err
		}
	}
	if r.Name == nil && r.Kind == nil && r.Content == nil && r.Position == nil &&
		r.Size == nil && r.Style == nil && r.IsActive == nil {
		return invalid("update", "no fields to update")
	}
	return nil
}
