package viz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contactsim/internal/scene"
)

func TestCanvasLine(t *testing.T) {
	c := NewCanvas(4, 2)
	w, h := c.Pixels()
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)

	c.DrawLine(0, 0, 7, 0)
	assert.Equal(t, 8, c.Lit())
	c.Set(-1, 3)
	c.Set(8, 0)
	assert.Equal(t, 8, c.Lit())

	c.Clear()
	assert.Equal(t, 0, c.Lit())
	assert.Equal(t, 2, strings.Count(c.String(), "\n"))
}

func TestCanvasClearReusesGrid(t *testing.T) {
	c := NewCanvas(3, 1)
	row := c.Grid[0]
	c.DrawLine(0, 0, 5, 3)
	require.Positive(t, c.Lit())

	c.Clear()
	assert.Zero(t, c.Lit())
	assert.Equal(t, strings.Repeat(string(blank), 3)+"\n", c.String())
	c.Grid[0][0] = 'x'
	assert.Equal(t, 'x', row[0])

	c.Set(1, 1)
	assert.Equal(t, 1, c.Lit())
}

func TestFrame2D(t *testing.T) {
	s := scene.TwoBlocks2D()
	f := NewFrame(s, make([]float64, s.Body.Size()))
	assert.Len(t, f.Edges, len(s.Edges))

	b := f.Bounds()
	assert.InDelta(t, 0, b.MinX, 1e-12)
	assert.InDelta(t, 1, b.MaxX, 1e-12)
	assert.InDelta(t, 0, b.MinY, 1e-12)
	assert.InDelta(t, 1.1, b.MaxY, 1e-12)

	x := s.Target(1)
	moved := NewFrame(s, x).Bounds()
	assert.InDelta(t, 0.85, moved.MaxY, 1e-12)
}

func TestFrame3DProjectsOntoXZ(t *testing.T) {
	s := scene.Cubes3D()
	f := NewFrame(s, make([]float64, s.Body.Size()))
	require.NotEmpty(t, f.Edges)
	for _, e := range f.Edges {
		assert.Less(t, e[0], e[1])
		assert.Less(t, e[1], len(f.Points))
	}
	b := f.Bounds()
	assert.InDelta(t, 1.1, b.MaxY, 1e-12)
}

func TestRender(t *testing.T) {
	s := scene.TwoBlocks2D()
	out := Render(NewFrame(s, make([]float64, s.Body.Size())), 30, 12)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, 12)
	assert.NotEqual(t, strings.Repeat(string(blank), 30), lines[0])
}

func TestBounds(t *testing.T) {
	a := Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 2}
	b := Bounds{MinX: -1, MinY: 1, MaxX: 0.5, MaxY: 3}
	u := a.Union(b)
	assert.Equal(t, Bounds{MinX: -1, MinY: 0, MaxX: 1, MaxY: 3}, u)
	p := a.Pad(0.5)
	assert.Equal(t, Bounds{MinX: -1, MinY: -1, MaxX: 2, MaxY: 3}, p)
}
