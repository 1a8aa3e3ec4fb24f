// Package scene builds the procedural block scenes used by the CLI and the
// solver scenario tests.
package scene

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/contactsim/internal/collision"
	"github.com/san-kum/contactsim/internal/dof"
	"github.com/san-kum/contactsim/internal/forms"
)

var ErrUnknownScene = errors.New("scene: unknown scene")

const (
	DefaultGravity = 9.81
	DefaultDensity = 1.0
)

// Scene is a body with its contact surface and Dirichlet conditions.
// Fixed vertices are prescribed; the Moving subset follows Displacement,
// ramped over the run.
type Scene struct {
	Name  string
	Body  *forms.Body
	Edges [][2]int
	Faces [][3]int

	Fixed        []int
	Moving       []int
	Displacement []float64

	Gravity []float64
	Density float64
	// Static scenes are solved once at full load.
	Static bool
}

func (s *Scene) Dim() int { return s.Body.Dim }

// Boundary returns the sorted Dirichlet DOF indices.
func (s *Scene) Boundary() []int { return dof.NodeBoundary(s.Fixed, s.Body.Dim) }

// Target returns the prescribed full displacement at load fraction
// progress, clamped to [0,1]. Free DOFs are zero.
func (s *Scene) Target(progress float64) []float64 {
	progress = math.Max(0, math.Min(1, progress))
	t := make([]float64, s.Body.Size())
	for _, v := range s.Moving {
		for d := 0; d < s.Body.Dim; d++ {
			t[v*s.Body.Dim+d] = progress * s.Displacement[d]
		}
	}
	return t
}

func (s *Scene) CollisionMesh() (*collision.Mesh, error) {
	return collision.NewMesh(s.Body.Dim, s.Body.Rest, s.Edges, s.Faces)
}

// Masses returns the lumped per-DOF masses.
func (s *Scene) Masses() []float64 { return s.Body.LumpedMasses(s.Density) }

// GravityForce returns the per-DOF gravity acceleration, nil when the scene
// has none.
func (s *Scene) GravityForce() []float64 {
	if s.Gravity == nil {
		return nil
	}
	g := make([]float64, s.Body.Size())
	for i := range g {
		g[i] = s.Gravity[i%s.Body.Dim]
	}
	return g
}

var builders = map[string]func() *Scene{
	"two_blocks_2d": TwoBlocks2D,
	"drop_2d":       Drop2D,
	"cubes_3d":      Cubes3D,
}

func New(name string) (*Scene, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScene, name)
	}
	return build(), nil
}

func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func finish(name string, b *builder) *Scene {
	s := &Scene{
		Name:    name,
		Body:    &forms.Body{Dim: b.dim, Rest: b.rest, Edges: b.edges(), Cells: b.cells},
		Density: DefaultDensity,
	}
	if b.dim == 2 {
		s.Edges = b.boundaryEdges()
	} else {
		s.Faces = b.boundaryFaces()
	}
	return s
}

// TwoBlocks2D stacks two blocks with a 0.1 gap. The bottom row of the lower
// block is clamped and the top row of the upper block is pressed down by
// 0.3, further than the upper block's rows are apart, so imposing the
// boundary directly inverts cells.
func TwoBlocks2D() *Scene {
	b := &builder{dim: 2}
	lower := b.block2D(0, 0, 1, 0.5, 4, 2)
	upper := b.block2D(0, 0.6, 1, 0.5, 4, 2)

	s := finish("two_blocks_2d", b)
	s.Moving = upper[len(upper)-1]
	s.Fixed = append(append([]int(nil), lower[0]...), s.Moving...)
	s.Displacement = []float64{0, -0.3}
	s.Static = true
	return s
}

// Drop2D drops a block under gravity onto a clamped slab.
func Drop2D() *Scene {
	b := &builder{dim: 2}
	ground := b.block2D(-0.5, 0, 2, 0.2, 8, 1)
	b.block2D(0.25, 0.3, 0.5, 0.5, 2, 2)

	s := finish("drop_2d", b)
	s.Fixed = append([]int(nil), ground[0]...)
	s.Displacement = []float64{0, 0}
	s.Gravity = []float64{0, -DefaultGravity}
	return s
}

// Cubes3D is the three-dimensional TwoBlocks2D.
func Cubes3D() *Scene {
	b := &builder{dim: 3}
	lower := b.block3D([3]float64{0, 0, 0}, [3]float64{1, 1, 0.5}, 2, 2, 1)
	upper := b.block3D([3]float64{0, 0, 0.6}, [3]float64{1, 1, 0.5}, 2, 2, 1)

	s := finish("cubes_3d", b)
	for _, row := range lower[0] {
		s.Fixed = append(s.Fixed, row...)
	}
	for _, row := range upper[len(upper)-1] {
		s.Moving = append(s.Moving, row...)
	}
	s.Fixed = append(s.Fixed, s.Moving...)
	s.Displacement = []float64{0, 0, -0.3}
	s.Static = true
	return s
}
