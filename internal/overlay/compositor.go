package overlay

import (
	"slices"
	"strings"
)

// Viewport is the current presentation surface size in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RenderItem is one positioned box of a render frame.
type RenderItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Kind   Kind    `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// Text is set for text overlays and must be displayed literally.
	Text string `json:"text,omitempty"`
	// ImageRef is set for image overlays.
	ImageRef string `json:"image_ref,omitempty"`
	Style    Style  `json:"style,omitempty"`
	// Visible is false when the overlay's image failed to load.
	Visible bool `json:"visible"`
}

// FailureSet records image overlays whose content failed to load, keyed by
// overlay id. The stored content pins the failure to one image reference so a
// content change makes the overlay visible again.
type FailureSet map[string]string

// Failed reports whether o's current image is known to be broken.
func (f FailureSet) Failed(o Overlay) bool {
	if o.Kind != KindImage {
		return false
	}
	content, ok := f[o.ID]
	return ok && content == o.Content
}

// Compose maps the active overlays onto vp. Stored positions are clamped to
// [0,100] since the backend accepts any number. It does not modify its inputs and
// returns identical output for identical input; items are ordered by creation
// time so later overlays paint above earlier ones.
func Compose(overlays []Overlay, vp Viewport, failed FailureSet) []RenderItem {
	active := make([]Overlay, 0, len(overlays))
	for _, o := range overlays {
		if o.IsActive {
			active = append(active, o)
		}
	}
	slices.SortStableFunc(active, func(a, b Overlay) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	items := make([]RenderItem, 0, len(active))
	for _, o := range active {
		item := RenderItem{
			ID:      o.ID,
			Name:    o.Name,
			Kind:    o.Kind,
			X:       ClampPercent(o.Position.X) * vp.Width / 100,
			Y:       ClampPercent(o.Position.Y) * vp.Height / 100,
			Width:   o.Size.Width,
			Height:  o.Size.Height,
			Style:   o.Style.Clone(),
			Visible: true,
		}
		switch o.Kind {
		case KindImage:
			item.ImageRef = o.Content
			item.Visible = !failed.Failed(o)
		default:
			item.Text = o.Content
		}
		items = append(items, item)
	}
	return items
}
