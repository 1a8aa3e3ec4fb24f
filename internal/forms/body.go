package forms

import (
	"fmt"
	"math"
)

// Body is the discretised simulation body the energies are built on. Rest
// is flattened with Dim entries per vertex. Cells are triangles in 2D and
// tetrahedra in 3D.
type Body struct {
	Dim   int
	Rest  []float64
	Edges [][2]int
	Cells [][]int
}

func (b *Body) NumVertices() int { return len(b.Rest) / b.Dim }
func (b *Body) Size() int        { return len(b.Rest) }

// Validate checks index ranges and cell arity.
func (b *Body) Validate() error {
	if b.Dim != 2 && b.Dim != 3 {
		return fmt.Errorf("%w: dimension %d", ErrParameter, b.Dim)
	}
	if len(b.Rest) == 0 || len(b.Rest)%b.Dim != 0 {
		return fmt.Errorf("%w: %d rest coordinates", ErrParameter, len(b.Rest))
	}
	n := b.NumVertices()
	for _, e := range b.Edges {
		if e[0] < 0 || e[0] >= n || e[1] < 0 || e[1] >= n || e[0] == e[1] {
			return fmt.Errorf("%w: edge %v", ErrParameter, e)
		}
	}
	for _, c := range b.Cells {
		if len(c) != b.Dim+1 {
			return fmt.Errorf("%w: cell %v has %d vertices", ErrParameter, c, len(c))
		}
		for _, v := range c {
			if v < 0 || v >= n {
				return fmt.Errorf("%w: cell %v", ErrParameter, c)
			}
		}
	}
	return nil
}

func (b *Body) position(x []float64, v int) [3]float64 {
	var p [3]float64
	for d := 0; d < b.Dim; d++ {
		p[d] = b.Rest[v*b.Dim+d] + x[v*b.Dim+d]
	}
	return p
}

// SignedMeasure is the signed area (2D) or volume (3D) of cell c under
// displacement x.
func (b *Body) SignedMeasure(x []float64, c []int) float64 {
	p0 := b.position(x, c[0])
	var e [3][3]float64
	for k := 1; k < len(c); k++ {
		p := b.position(x, c[k])
		for d := 0; d < 3; d++ {
			e[k-1][d] = p[d] - p0[d]
		}
	}
	if b.Dim == 2 {
		return 0.5 * (e[0][0]*e[1][1] - e[0][1]*e[1][0])
	}
	return (e[0][0]*(e[1][1]*e[2][2]-e[1][2]*e[2][1]) -
		e[0][1]*(e[1][0]*e[2][2]-e[1][2]*e[2][0]) +
		e[0][2]*(e[1][0]*e[2][1]-e[1][1]*e[2][0])) / 6
}

// LumpedMasses spreads density times each cell measure evenly over its
// vertices and returns one mass per DOF.
func (b *Body) LumpedMasses(density float64) []float64 {
	zero := make([]float64, b.Size())
	m := make([]float64, b.Size())
	for _, c := range b.Cells {
		share := density * math.Abs(b.SignedMeasure(zero, c)) / float64(len(c))
		for _, v := range c {
			for d := 0; d < b.Dim; d++ {
				m[v*b.Dim+d] += share
			}
		}
	}
	return m
}
