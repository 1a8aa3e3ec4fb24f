package viz

import (
	"math"
	"sort"

	"github.com/san-kum/contactsim/internal/scene"
)

// Frame is a displaced surface as 2D points and the edges joining them.
type Frame struct {
	Points [][2]float64
	Edges  [][2]int
}

type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

func (b Bounds) Width() float64  { return b.MaxX - b.MinX }
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX), MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX), MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Pad grows b by frac of its larger side on every edge.
func (b Bounds) Pad(frac float64) Bounds {
	p := frac * math.Max(b.Width(), b.Height())
	return Bounds{MinX: b.MinX - p, MinY: b.MinY - p, MaxX: b.MaxX + p, MaxY: b.MaxY + p}
}

// NewFrame projects the surface of s displaced by the full vector x.
func NewFrame(s *scene.Scene, x []float64) Frame {
	dim := s.Body.Dim
	n := s.Body.NumVertices()
	f := Frame{Points: make([][2]float64, n)}
	for v := 0; v < n; v++ {
		px := s.Body.Rest[v*dim] + x[v*dim]
		py := s.Body.Rest[v*dim+1] + x[v*dim+1]
		if dim == 3 {
			py = s.Body.Rest[v*dim+2] + x[v*dim+2]
		}
		f.Points[v] = [2]float64{px, py}
	}

	if dim == 2 {
		f.Edges = append(f.Edges, s.Edges...)
		return f
	}
	seen := make(map[[2]int]bool)
	for _, face := range s.Faces {
		for k := 0; k < 3; k++ {
			a, b := face[k], face[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			if !seen[[2]int{a, b}] {
				seen[[2]int{a, b}] = true
				f.Edges = append(f.Edges, [2]int{a, b})
			}
		}
	}
	sort.Slice(f.Edges, func(i, j int) bool {
		if f.Edges[i][0] != f.Edges[j][0] {
			return f.Edges[i][0] < f.Edges[j][0]
		}
		return f.Edges[i][1] < f.Edges[j][1]
	})
	return f
}

// Bounds covers the points used by edges.
func (f Frame) Bounds() Bounds {
	b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, e := range f.Edges {
		for _, v := range e {
			p := f.Points[v]
			b.MinX, b.MaxX = math.Min(b.MinX, p[0]), math.Max(b.MaxX, p[0])
			b.MinY, b.MaxY = math.Min(b.MinY, p[1]), math.Max(b.MaxY, p[1])
		}
	}
	return b
}

// Draw rasterises f onto c with a uniform scale that fits view.
func (f Frame) Draw(c *Canvas, view Bounds) {
	pw, ph := c.Pixels()
	scale := math.Min(float64(pw-1)/view.Width(), float64(ph-1)/view.Height())
	if math.IsInf(scale, 0) || math.IsNaN(scale) || scale <= 0 {
		scale = 1
	}
	project := func(p [2]float64) (int, int) {
		x := (p[0] - view.MinX) * scale
		y := (view.MaxY - p[1]) * scale
		return int(math.Round(x)), int(math.Round(y))
	}
	for _, e := range f.Edges {
		x0, y0 := project(f.Points[e[0]])
		x1, y1 := project(f.Points[e[1]])
		c.DrawLine(x0, y0, x1, y1)
	}
}

// Render draws f on a fresh w×h canvas fitted to its own bounds.
func Render(f Frame, w, h int) string {
	c := NewCanvas(w, h)
	f.Draw(c, f.Bounds().Pad(0.02))
	return c.String()
}
