package overlay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreate() CreateRequest {
	return CreateRequest{
		Name:     "title",
		Kind:     KindText,
		Content:  "Hello",
		Position: Position{X: 10, Y: 10},
		Size:     Size{Width: 200, Height: 50},
	}
}

func TestCreateNormalizeDefaults(t *testing.T) {
	req := validCreate()
	require.NoError(t, req.Normalize())
	assert.Equal(t, DefaultStyle(KindText), req.Style)
	require.NotNil(t, req.IsActive)
	assert.True(t, *req.IsActive)
}

func TestCreateNormalizeClampsPosition(t *testing.T) {
	req := validCreate()
	req.Position = Position{X: -5, Y: 140}
	require.NoError(t, req.Normalize())
	assert.Equal(t, Position{X: 0, Y: 100}, req.Position)
}

func TestCreateNormalizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"empty name", func(r *CreateRequest) { r.Name = "  " }, "name"},
		{"bad kind", func(r *CreateRequest) { r.Kind = "video" }, "type"},
		{"empty content", func(r *CreateRequest) { r.Content = "" }, "content"},
		{"nan position", func(r *CreateRequest) { r.Position.X = math.NaN() }, "position"},
		{"zero width", func(r *CreateRequest) { r.Size.Width = 0 }, "size"},
		{"negative height", func(r *CreateRequest) { r.Size.Height = -1 }, "size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(&req)
			err := req.Normalize()
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestUpdateNormalize(t *testing.T) {
	empty := UpdateRequest{}
	require.ErrorIs(t, empty.Normalize(), ErrValidation)

	pos := Position{X: 120, Y: 50}
	req := UpdateRequest{Position: &pos}
	require.NoError(t, req.Normalize())
	assert.Equal(t, 100.0, req.Position.X)

	blank := " "
	require.ErrorIs(t, (&UpdateRequest{Content: &blank}).Normalize(), ErrValidation)
}

func TestUpdateApply(t *testing.T) {
	name := "renamed"
	off := false
	o := Overlay{ID: "1", Name: "title", Kind: KindText, Content: "Hello", IsActive: true}
	got := UpdateRequest{Name: &name, IsActive: &off}.Apply(o)
	assert.Equal(t, "renamed", got.Name)
	assert.False(t, got.IsActive)
	assert.Equal(t, "Hello", got.Content)
}

func TestLooksLikeImageURL(t *testing.T) {
	assert.True(t, LooksLikeImageURL("https://x/y/logo.PNG"))
	assert.True(t, LooksLikeImageURL("/static/a.webp"))
	assert.False(t, LooksLikeImageURL("https://x/y/logo.png?v=2"))
	assert.False(t, LooksLikeImageURL("hello"))
}
