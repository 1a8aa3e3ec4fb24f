// Package collision holds the collision mesh and the broad and narrow
// phase queries of the contact model: candidate pairs, continuous step
// bounds and active distance constraints.
package collision

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/contactsim/internal/sparse"
)

// ErrMesh indicates an inconsistent collision mesh description.
var ErrMesh = errors.New("collision: invalid mesh")

// Mesh is the surface subset of the simulation mesh that takes part in
// contact. Vertex indices in edges and faces are collision-vertex indices;
// FullID maps them back to simulation vertices.
type Mesh struct {
	dim             int
	numFullVertices int
	rest            []r3.Vec
	fullIDs         []int
	edges           [][2]int
	faces           [][3]int
	vertexWeights   []float64
}

// NewMesh builds a collision mesh from the full rest positions (flattened,
// dim entries per vertex) and surface edges and faces given in full vertex
// indices. In 3D, edges are derived from faces when none are given.
func NewMesh(dim int, fullRest []float64, edges [][2]int, faces [][3]int) (*Mesh, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("%w: dimension %d", ErrMesh, dim)
	}
	if len(fullRest)%dim != 0 {
		return nil, fmt.Errorf("%w: %d coordinates not divisible by %d", ErrMesh, len(fullRest), dim)
	}
	if dim == 2 && len(faces) > 0 {
		return nil, fmt.Errorf("%w: faces given for a 2D mesh", ErrMesh)
	}
	if dim == 3 && len(edges) == 0 {
		edges = faceEdges(faces)
	}

	n := len(fullRest) / dim
	m := &Mesh{dim: dim, numFullVertices: n}

	toSurface := make(map[int]int)
	add := func(v int) (int, error) {
		if v < 0 || v >= n {
			return 0, fmt.Errorf("%w: vertex %d not in [0,%d)", ErrMesh, v, n)
		}
		if id, ok := toSurface[v]; ok {
			return id, nil
		}
		id := len(m.fullIDs)
		toSurface[v] = id
		m.fullIDs = append(m.fullIDs, v)
		p := r3.Vec{X: fullRest[v*dim], Y: fullRest[v*dim+1]}
		if dim == 3 {
			p.Z = fullRest[v*dim+2]
		}
		m.rest = append(m.rest, p)
		return id, nil
	}

	for _, e := range edges {
		if e[0] == e[1] {
			return nil, fmt.Errorf("%w: degenerate edge %v", ErrMesh, e)
		}
		a, err := add(e[0])
		if err != nil {
			return nil, err
		}
		b, err := add(e[1])
		if err != nil {
			return nil, err
		}
		m.edges = append(m.edges, [2]int{a, b})
	}
	for _, f := range faces {
		var ids [3]int
		for k := range f {
			id, err := add(f[k])
			if err != nil {
				return nil, err
			}
			ids[k] = id
		}
		m.faces = append(m.faces, ids)
	}

	m.vertexWeights = m.restWeights()
	return m, nil
}

func faceEdges(faces [][3]int) [][2]int {
	seen := make(map[[2]int]bool)
	var out [][2]int
	for _, f := range faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			if !seen[[2]int{a, b}] {
				seen[[2]int{a, b}] = true
				out = append(out, [2]int{a, b})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// restWeights lumps rest edge lengths (2D) or face areas (3D) onto vertices.
func (m *Mesh) restWeights() []float64 {
	w := make([]float64, len(m.rest))
	if m.dim == 2 {
		for _, e := range m.edges {
			l := r3.Norm(r3.Sub(m.rest[e[1]], m.rest[e[0]]))
			w[e[0]] += l / 2
			w[e[1]] += l / 2
		}
		return w
	}
	for _, f := range m.faces {
		a := 0.5 * r3.Norm(r3.Cross(r3.Sub(m.rest[f[1]], m.rest[f[0]]), r3.Sub(m.rest[f[2]], m.rest[f[0]])))
		for _, v := range f {
			w[v] += a / 3
		}
	}
	return w
}

func (m *Mesh) Dim() int             { return m.dim }
func (m *Mesh) NumVertices() int     { return len(m.rest) }
func (m *Mesh) NumFullVertices() int { return m.numFullVertices }
func (m *Mesh) FullSize() int        { return m.numFullVertices * m.dim }
func (m *Mesh) Rest() []r3.Vec       { return m.rest }
func (m *Mesh) Edges() [][2]int      { return m.edges }
func (m *Mesh) Faces() [][3]int      { return m.faces }
func (m *Mesh) FullID(v int) int     { return m.fullIDs[v] }

// VertexWeight is the rest length or area lumped onto a collision vertex.
func (m *Mesh) VertexWeight(v int) float64 { return m.vertexWeights[v] }

// DisplaceVertices returns the collision vertex positions for a full
// displacement vector u.
func (m *Mesh) DisplaceVertices(u []float64) []r3.Vec {
	if len(u) != m.FullSize() {
		panic(fmt.Sprintf("collision: displacement has %d entries, want %d", len(u), m.FullSize()))
	}
	out := make([]r3.Vec, len(m.rest))
	for i, p := range m.rest {
		base := m.fullIDs[i] * m.dim
		p.X += u[base]
		p.Y += u[base+1]
		if m.dim == 3 {
			p.Z += u[base+2]
		}
		out[i] = p
	}
	return out
}

// SurfaceDOF is the collision-space DOF index of component d of vertex v.
func (m *Mesh) SurfaceDOF(v, d int) int { return v*m.dim + d }

// FullDOF is the full DOF index of component d of collision vertex v.
func (m *Mesh) FullDOF(v, d int) int { return m.fullIDs[v]*m.dim + d }

// ToFullDOF scatters a collision-space vector into a full DOF vector.
func (m *Mesh) ToFullDOF(surface []float64) []float64 {
	out := make([]float64, m.FullSize())
	for v := range m.rest {
		for d := 0; d < m.dim; d++ {
			out[m.FullDOF(v, d)] += surface[m.SurfaceDOF(v, d)]
		}
	}
	return out
}

// HessianToFullDOF maps a collision-space matrix into the full DOF space.
func (m *Mesh) HessianToFullDOF(h *sparse.Matrix) *sparse.Matrix {
	n := m.FullSize()
	t := sparse.NewTriplet(n, n, h.NNZ())
	h.Do(func(i, j int, v float64) {
		t.Put(m.fullIDs[i/m.dim]*m.dim+i%m.dim, m.fullIDs[j/m.dim]*m.dim+j%m.dim, v)
	})
	return t.ToMatrix()
}

// BBoxDiagonal is the diagonal length of the axis-aligned box around V.
func BBoxDiagonal(V []r3.Vec) float64 {
	if len(V) == 0 {
		return 0
	}
	lo, hi := V[0], V[0]
	for _, p := range V[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return r3.Norm(r3.Sub(hi, lo))
}
