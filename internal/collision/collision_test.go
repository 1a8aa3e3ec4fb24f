package collision

import (
	"math"
	"testing"

	"github.com/curioloop/optimizer/numdiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// twoSegments is a 2D mesh of a bottom segment (vertices 0,1) and a top
// segment (vertices 2,3).
func twoSegments(t *testing.T, bottom, top [2]r3.Vec) *Mesh {
	t.Helper()
	rest := []float64{
		bottom[0].X, bottom[0].Y, bottom[1].X, bottom[1].Y,
		top[0].X, top[0].Y, top[1].X, top[1].Y,
	}
	m, err := NewMesh(2, rest, [][2]int{{0, 1}, {2, 3}}, nil)
	require.NoError(t, err)
	return m
}

// ring approximates a circle with n segments.
func ring(center r3.Vec, radius float64, n, offset int) ([]float64, [][2]int) {
	var rest []float64
	var edges [][2]int
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		rest = append(rest, center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a))
		edges = append(edges, [2]int{offset + i, offset + (i+1)%n})
	}
	return rest, edges
}

func translate(V []r3.Vec, from int, d r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(V))
	for i, p := range V {
		if i >= from {
			p = r3.Add(p, d)
		}
		out[i] = p
	}
	return out
}

func TestNewMeshErrors(t *testing.T) {
	_, err := NewMesh(4, nil, nil, nil)
	assert.ErrorIs(t, err, ErrMesh)

	_, err = NewMesh(2, []float64{0, 0, 1}, nil, nil)
	assert.ErrorIs(t, err, ErrMesh)

	_, err = NewMesh(2, []float64{0, 0, 1, 0}, [][2]int{{0, 5}}, nil)
	assert.ErrorIs(t, err, ErrMesh)

	_, err = NewMesh(2, []float64{0, 0, 1, 0}, [][2]int{{1, 1}}, nil)
	assert.ErrorIs(t, err, ErrMesh)
}

func TestMeshMaps(t *testing.T) {
	// Vertex 1 is interior and never part of the surface.
	rest := []float64{0, 0, 0.5, 0.5, 1, 0, 1, 1}
	m, err := NewMesh(2, rest, [][2]int{{0, 2}, {2, 3}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumVertices())
	assert.Equal(t, 4, m.NumFullVertices())
	assert.Equal(t, 8, m.FullSize())
	assert.Equal(t, 3, m.FullID(2))

	u := []float64{0.1, 0, 9, 9, 0, 0.2, 0, 0}
	V := m.DisplaceVertices(u)
	assert.InDelta(t, 0.1, V[0].X, 1e-15)
	assert.InDelta(t, 0.2, V[1].Y, 1e-15)

	full := m.ToFullDOF([]float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []float64{1, 2, 0, 0, 3, 4, 5, 6}, full)

	assert.InDelta(t, 0.5, m.VertexWeight(0), 1e-15)
	assert.InDelta(t, 1.0, m.VertexWeight(1), 1e-15)
	assert.InDelta(t, math.Sqrt2, BBoxDiagonal(m.Rest()), 1e-15)
}

func TestMesh3DDerivesEdges(t *testing.T) {
	rest := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1}
	faces := [][3]int{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}}
	m, err := NewMesh(3, rest, nil, faces)
	require.NoError(t, err)
	assert.Len(t, m.Edges(), 6)
	assert.InDelta(t, 0.5, m.VertexWeight(0), 1e-12)

	total := 0.0
	for v := 0; v < m.NumVertices(); v++ {
		total += m.VertexWeight(v)
	}
	assert.InDelta(t, 1.5+math.Sqrt(3)/2, total, 1e-12)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("brute_force")
	require.NoError(t, err)
	assert.Equal(t, BruteForce, m)

	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, HashGrid, m)

	_, err = ParseMethod("octree")
	assert.Error(t, err)
}

func TestBroadPhaseMethodsAgree(t *testing.T) {
	r1, e1 := ring(r3.Vec{}, 1, 60, 0)
	r2, e2 := ring(r3.Vec{X: 1.9}, 1, 45, 60)
	m, err := NewMesh(2, append(r1, r2...), append(e1, e2...), nil)
	require.NoError(t, err)

	v0 := m.Rest()
	v1 := translate(v0, 60, r3.Vec{X: -0.3, Y: 0.05})

	brute := BuildCandidates(m, v0, v1, 0.01, BruteForce)
	grid := BuildCandidates(m, v0, v1, 0.01, HashGrid)
	assert.NotZero(t, brute.Len())
	assert.Equal(t, brute, grid)

	static := BuildCandidates(m, v0, v0, 0.01, HashGrid)
	assert.Equal(t, BuildCandidates(m, v0, v0, 0.01, BruteForce), static)
	assert.Less(t, static.Len(), brute.Len())
}

func TestBroadPhaseMethodsAgree3D(t *testing.T) {
	rest := []float64{
		0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1,
		0.2, 0.2, 0.5, 1.2, 0.2, 0.5, 0.2, 1.2, 0.5, 0.2, 0.2, 1.5,
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2},
		{4, 6, 5}, {4, 5, 7}, {5, 6, 7}, {4, 7, 6},
	}
	m, err := NewMesh(3, rest, nil, faces)
	require.NoError(t, err)

	v0 := m.Rest()
	v1 := translate(v0, 4, r3.Vec{Z: -0.4})
	brute := BuildCandidates(m, v0, v1, 1e-3, BruteForce)
	grid := BuildCandidates(m, v0, v1, 1e-3, HashGrid)
	assert.NotEmpty(t, brute.FaceVertex)
	assert.NotEmpty(t, brute.EdgeEdge)
	assert.Empty(t, brute.EdgeVertex)
	assert.Equal(t, brute, grid)
}

func TestCandidatesSkipAdjacent(t *testing.T) {
	rest := []float64{0, 0, 1, 0, 1, 1}
	m, err := NewMesh(2, rest, [][2]int{{0, 1}, {1, 2}}, nil)
	require.NoError(t, err)
	c := BuildCandidates(m, m.Rest(), m.Rest(), 10, BruteForce)
	assert.Equal(t, []EdgeVertex{{Edge: 0, Vertex: 2}, {Edge: 1, Vertex: 0}}, c.EdgeVertex)
}

func fallingSegment(t *testing.T) (*Mesh, []r3.Vec, []r3.Vec) {
	m := twoSegments(t,
		[2]r3.Vec{{X: -1}, {X: 1}},
		[2]r3.Vec{{X: -0.1, Y: 1}, {X: 0.1, Y: 1}})
	v0 := m.Rest()
	v1 := translate(v0, 2, r3.Vec{Y: -2})
	return m, v0, v1
}

func TestCollisionFreeStepSize(t *testing.T) {
	m, v0, v1 := fallingSegment(t)
	c := BuildCandidates(m, v0, v1, 0, HashGrid)
	require.False(t, c.Empty())

	opts := DefaultStepOptions()
	step := c.CollisionFreeStepSize(m, v0, v1, opts)
	assert.LessOrEqual(t, step, 0.5)
	assert.Greater(t, step, 0.3)

	mid := Interpolate(v0, v1, step)
	assert.False(t, HasIntersections(m, mid))

	assert.False(t, c.IsStepCollisionFree(m, v0, v1, opts))

	half := translate(v0, 2, r3.Vec{Y: -0.5})
	ch := BuildCandidates(m, v0, half, 0, HashGrid)
	assert.True(t, ch.IsStepCollisionFree(m, v0, half, opts))
	assert.Equal(t, 1.0, ch.CollisionFreeStepSize(m, v0, half, opts))
}

func TestCollisionFreeStepSizeNoCandidates(t *testing.T) {
	c := &Candidates{}
	m, v0, v1 := fallingSegment(t)
	assert.Equal(t, 1.0, c.CollisionFreeStepSize(m, v0, v1, DefaultStepOptions()))
	assert.True(t, c.IsStepCollisionFree(m, v0, v1, DefaultStepOptions()))
}

func TestHasIntersections(t *testing.T) {
	m := twoSegments(t,
		[2]r3.Vec{{X: -1}, {X: 1}},
		[2]r3.Vec{{Y: -1}, {Y: 1}})
	assert.True(t, HasIntersections(m, m.Rest()))

	m = twoSegments(t,
		[2]r3.Vec{{X: -1}, {X: 1}},
		[2]r3.Vec{{Y: 0.1}, {Y: 1}})
	assert.False(t, HasIntersections(m, m.Rest()))
}

func TestHasIntersections3D(t *testing.T) {
	rest := []float64{
		0, 0, 0, 1, 0, 0, 0, 1, 0,
		0.2, 0.2, -1, 0.2, 0.2, 1, 5, 5, 5,
	}
	m, err := NewMesh(3, rest, nil, [][3]int{{0, 1, 2}, {3, 4, 5}})
	require.NoError(t, err)
	assert.True(t, HasIntersections(m, m.Rest()))

	lifted := translate(m.Rest(), 3, r3.Vec{Z: 3})
	assert.False(t, HasIntersections(m, lifted))
}

func nearSegments(t *testing.T) (*Mesh, Options) {
	m := twoSegments(t,
		[2]r3.Vec{{X: 0}, {X: 1}},
		[2]r3.Vec{{X: 0.3, Y: 0.04}, {X: 0.8, Y: 0.06}})
	return m, Options{DHat: 0.1, Method: HashGrid}
}

func TestBuildConstraints(t *testing.T) {
	m, opts := nearSegments(t)
	cs := BuildConstraints(m, m.Rest(), opts)
	require.Equal(t, 2, cs.Len())
	for _, c := range cs.Items() {
		assert.Equal(t, "point-edge", c.Type.String())
		assert.Equal(t, 1.0, c.Weight)
	}
	assert.InDelta(t, 0.04*0.04, cs.MinDistance(m.Rest()), 1e-15)
	assert.Greater(t, cs.Potential(m.Rest()), 0.0)

	far := translate(m.Rest(), 2, r3.Vec{Y: 0.5})
	empty := BuildConstraints(m, far, opts)
	assert.True(t, empty.Empty())
	assert.Zero(t, empty.Potential(far))
	assert.True(t, math.IsInf(empty.MinDistance(far), 1))

	cands := BuildCandidates(m, m.Rest(), m.Rest(), opts.Inflation(), BruteForce)
	assert.Equal(t, cs.Items(), FromCandidates(m, cands, m.Rest(), opts).Items())
}

func TestConvergentWeights(t *testing.T) {
	m, opts := nearSegments(t)
	opts.Convergent = true
	cs := BuildConstraints(m, m.Rest(), opts)
	require.Equal(t, 2, cs.Len())
	for _, c := range cs.Items() {
		assert.Greater(t, c.Weight, 0.0)
		assert.NotEqual(t, 1.0, c.Weight)
	}
	plain := cs.WithOptions(Options{DHat: opts.DHat})
	assert.Greater(t, cs.Potential(m.Rest()), plain.Potential(m.Rest()))
}

func TestConstraintsDeduplicate(t *testing.T) {
	// Vertex 3 sits straight above vertex 1 shared by both bottom edges, so
	// both edges report the same point-point pair.
	rest := []float64{0, 0, 1, 0, 2, 0, 1, 0.05, 1.5, 0.6}
	m, err := NewMesh(2, rest, [][2]int{{0, 1}, {1, 2}, {3, 4}}, nil)
	require.NoError(t, err)
	cs := BuildConstraints(m, m.Rest(), Options{DHat: 0.1})
	count := 0
	for _, c := range cs.Items() {
		if c.Type.String() == "point-point" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func surfacePositions(x []float64) []r3.Vec {
	V := make([]r3.Vec, len(x)/2)
	for i := range V {
		V[i] = r3.Vec{X: x[2*i], Y: x[2*i+1]}
	}
	return V
}

func flatten(V []r3.Vec) []float64 {
	x := make([]float64, 0, 2*len(V))
	for _, p := range V {
		x = append(x, p.X, p.Y)
	}
	return x
}

func TestConstraintDerivatives(t *testing.T) {
	m, opts := nearSegments(t)
	x0 := flatten(m.Rest())
	cs := BuildConstraints(m, m.Rest(), opts)
	n := len(x0)

	want := make([]float64, n)
	approx := numdiff.ApproxSpec{N: n, M: 1, Method: numdiff.Central, AbsStep: 1e-8, Object: func(x, y []float64) {
		y[0] = cs.Potential(surfacePositions(x))
	}}
	require.NoError(t, approx.Diff(x0, want))
	got := cs.Gradient(m, m.Rest())
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4*math.Abs(want[i])+1e-10, "dof %d", i)
	}

	jac := make([]float64, n*n)
	approx = numdiff.ApproxSpec{N: n, M: n, Method: numdiff.Central, AbsStep: 1e-8, Object: func(x, y []float64) {
		copy(y, cs.Gradient(m, surfacePositions(x)))
	}}
	require.NoError(t, approx.Diff(x0, jac))
	h := cs.Hessian(m, m.Rest(), false)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w := jac[i+j*n]
			assert.InDelta(t, w, h.At(j, i), 1e-3*math.Abs(w)+1e-6, "entry %d,%d", j, i)
		}
	}
}

func TestProjectedHessianIsPSD(t *testing.T) {
	m, opts := nearSegments(t)
	h := BuildConstraints(m, m.Rest(), opts).Hessian(m, m.Rest(), true)
	sym := h.ToSymDense()
	n := sym.SymmetricDim()
	for trial := 0; trial < 5; trial++ {
		v := make([]float64, n)
		for i := range v {
			v[i] = math.Sin(float64(7*trial + 3*i + 1))
		}
		q := 0.0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				q += v[i] * sym.At(i, j) * v[j]
			}
		}
		assert.GreaterOrEqual(t, q, -1e-9)
	}
}

func TestProjectPSD(t *testing.T) {
	h := []float64{1, 0, 0, -1}
	projectPSD(h, 2)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0}, h, 1e-12)

	h = []float64{2, 1, 1, 2}
	projectPSD(h, 2)
	assert.InDeltaSlice(t, []float64{2, 1, 1, 2}, h, 1e-12)
}

// crossingEdges is a 3D mesh of edge a (vertices 0,1) along x and edge b
// (vertices 2,3) perpendicular to it at rest.
func crossingEdges(t *testing.T) *Mesh {
	t.Helper()
	rest := []float64{0, 0, 0, 1, 0, 0, 0.5, -0.5, 0.3, 0.5, 0.5, 0.3}
	m, err := NewMesh(3, rest, [][2]int{{0, 1}, {2, 3}}, nil)
	require.NoError(t, err)
	return m
}

// tiltedB places edge b at height h above edge a, nearly parallel to it,
// with y spread 2·dy.
func tiltedB(h, dy float64) []r3.Vec {
	return []r3.Vec{{}, {X: 1}, {X: 0.3, Y: -dy, Z: h}, {X: 0.7, Y: dy, Z: h}}
}

func positions3(x []float64) []r3.Vec {
	V := make([]r3.Vec, len(x)/3)
	for i := range V {
		V[i] = r3.Vec{X: x[3*i], Y: x[3*i+1], Z: x[3*i+2]}
	}
	return V
}

func flatten3(V []r3.Vec) []float64 {
	x := make([]float64, 0, 3*len(V))
	for _, p := range V {
		x = append(x, p.X, p.Y, p.Z)
	}
	return x
}

func maxAbs(h interface{ Do(func(i, j int, v float64)) }) float64 {
	out := 0.0
	h.Do(func(_, _ int, v float64) { out = math.Max(out, math.Abs(v)) })
	return out
}

func TestEdgeEdgeConstraintsAreMollified(t *testing.T) {
	m := crossingEdges(t)
	opts := Options{DHat: 0.1, Method: HashGrid}
	V := tiltedB(0.02, 0.005)
	cs := BuildConstraints(m, V, opts)
	require.Equal(t, 1, cs.Len())
	c := cs.At(0)
	assert.Equal(t, "edge-edge", c.Type.String())
	assert.Equal(t, [4]int{0, 1, 2, 3}, c.Edges)
	assert.InDelta(t, 1e-3, c.EpsX, 1e-15)

	plain := &Constraints{opts: opts, items: []Constraint{{Type: c.Type, Vertices: c.Vertices, Weight: 1}}}
	// |u×v|² = 1e-4 is a tenth of the threshold, so the mollifier is 0.19.
	assert.InDelta(t, 0.19*plain.Potential(V), cs.Potential(V), 1e-12)

	x0 := flatten3(V)
	n := len(x0)
	want := make([]float64, n)
	approx := numdiff.ApproxSpec{N: n, M: 1, Method: numdiff.Central, AbsStep: 1e-8, Object: func(x, y []float64) {
		y[0] = cs.Potential(positions3(x))
	}}
	require.NoError(t, approx.Diff(x0, want))
	got := cs.Gradient(m, V)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4*math.Abs(want[i])+1e-10, "dof %d", i)
	}

	jac := make([]float64, n*n)
	approx = numdiff.ApproxSpec{N: n, M: n, Method: numdiff.Central, AbsStep: 1e-8, Object: func(x, y []float64) {
		copy(y, cs.Gradient(m, positions3(x)))
	}}
	require.NoError(t, approx.Diff(x0, jac))
	h := cs.Hessian(m, V, false)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w := jac[i+j*n]
			assert.InDelta(t, w, h.At(j, i), 1e-3*math.Abs(w)+1e-6, "entry %d,%d", j, i)
		}
	}
}

func TestNearParallelEdgeHessianIsBounded(t *testing.T) {
	m := crossingEdges(t)
	opts := Options{DHat: 0.1, Method: HashGrid}
	V := tiltedB(3e-4, 1e-4)
	cs := BuildConstraints(m, V, opts)
	require.Equal(t, 1, cs.Len())
	c := cs.At(0)
	require.Equal(t, "edge-edge", c.Type.String())

	plain := &Constraints{opts: opts, items: []Constraint{{Type: c.Type, Vertices: c.Vertices, Weight: 1}}}
	unmollified := maxAbs(plain.Hessian(m, V, false))
	mollified := maxAbs(cs.Hessian(m, V, false))
	assert.Greater(t, unmollified, 100.0)
	assert.Less(t, mollified, 0.05*unmollified)
	assert.Less(t, cs.Potential(V), 1e-3*plain.Potential(V))
}

func TestParallelEdgesCarryNoEnergy(t *testing.T) {
	m := crossingEdges(t)
	V := tiltedB(0.01, 0)
	cs := BuildConstraints(m, V, Options{DHat: 0.1})
	require.False(t, cs.Empty())
	for _, c := range cs.Items() {
		assert.Positive(t, c.EpsX)
	}
	assert.Zero(t, cs.Potential(V))
	for _, g := range cs.Gradient(m, V) {
		assert.False(t, math.IsNaN(g))
	}
}

func TestVertexPotentialSumsToPotential(t *testing.T) {
	m2, opts := nearSegments(t)
	cs := BuildConstraints(m2, m2.Rest(), opts)
	per := cs.VertexPotential(m2, m2.Rest())
	require.Len(t, per, m2.NumVertices())
	assert.InDelta(t, cs.Potential(m2.Rest()), floats.Sum(per), 1e-12*cs.Potential(m2.Rest()))

	m3 := crossingEdges(t)
	V := tiltedB(0.02, 0.005)
	cs = BuildConstraints(m3, V, Options{DHat: 0.1})
	per = cs.VertexPotential(m3, V)
	require.Len(t, per, 4)
	for v, e := range per {
		assert.Positive(t, e, "vertex %d", v)
	}
	assert.InDelta(t, cs.Potential(V), floats.Sum(per), 1e-12*cs.Potential(V))
}
