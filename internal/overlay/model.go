// Package overlay models the text/image overlays composited over the live
// picture and turns them into render frames.
package overlay

import (
	"maps"
	"regexp"
	"time"
)

// Kind discriminates overlay payloads.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Valid reports whether k is a known overlay kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Position is expressed in percent of the viewport, each axis in [0,100].
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is expressed in device-independent pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style is a free-form mapping of visual attributes (color, fontSize, ...).
type Style map[string]any

// Clone returns an independent copy of s.
func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	return maps.Clone(s)
}

// Overlay is a persisted overlay as served by the backend.
type Overlay struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"type"`
	Content   string    `json:"content"`
	Position  Position  `json:"position"`
	Size      Size      `json:"size"`
	Style     Style     `json:"style,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of o.
func (o Overlay) Clone() Overlay {
	o.Style = o.Style.Clone()
	return o
}

// CreateRequest is the payload for a new overlay.
type CreateRequest struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"type"`
	Content  string   `json:"content"`
	Position Position `json:"position"`
	Size     Size     `json:"size"`
	Style    Style    `json:"style,omitempty"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// UpdateRequest is a partial replace. Nil fields are left untouched by the
// backend, which refreshes updated_at itself.
type UpdateRequest struct {
	Name     *string   `json:"name,omitempty"`
	Kind     *Kind     `json:"type,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Position *Position `json:"position,omitempty"`
	Size     *Size     `json:"size,omitempty"`
	Style    Style     `json:"style,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
}

// Apply merges the non-nil fields of r into o. Used by in-memory stores.
func (r UpdateRequest) Apply(o Overlay) Overlay {
	if r.Name != nil {
		o.Name = *r.Name
	}
	if r.Kind != nil {
		o.Kind = *r.Kind
	}
	if r.Content != nil {
		o.Content = *r.Content
	}
	if r.Position != nil {
		o.Position = *r.Position
	}
	if r.Size != nil {
		o.Size = *r.Size
	}
	if r.Style != nil {
		o.Style = r.Style.Clone()
	}
	if r.IsActive != nil {
		o.IsActive = *r.IsActive
	}
	return o
}

// DefaultStyle returns the style applied to new overlays that carry none.
func DefaultStyle(k Kind) Style {
	if k != KindText {
		return Style{}
	}
	return Style{
		"color":           "#ffffff",
		"fontSize":        "16px",
		"backgroundColor": "transparent",
		"fontWeight":      "normal",
		"textShadow":      "2px 2px 4px rgba(0,0,0,0.5)",
	}
}

var imageURLPattern = regexp.MustCompile(`(?i)\.(jpeg|jpg|gif|png|svg|webp)$`)

// LooksLikeImageURL reports whether ref ends in a known image extension.
func LooksLikeImageURL(ref string) bool {
	return imageURLPattern.MatchString(ref)
}
