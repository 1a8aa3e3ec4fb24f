package collision

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/contactsim/internal/barrier"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/parallel"
	"github.com/san-kum/contactsim/internal/sparse"
)

// Constraint is one active primitive pair. Vertices are collision vertex
// ids ordered as Type expects; only the first Type.NumVertices() are used.
//
// Pairs found through an edge-edge candidate keep both edges in Edges and
// a positive EpsX. Their barrier is multiplied by the mollifier of the
// edges' squared cross product, so it vanishes smoothly as the edges turn
// parallel.
type Constraint struct {
	Type     geometry.DistanceType
	Vertices [4]int
	Weight   float64
	Edges    [4]int
	EpsX     float64
}

func (c Constraint) ids() []int { return c.Vertices[:c.Type.NumVertices()] }

// support is the vertex set the energy of c depends on.
func (c Constraint) support() []int {
	if c.EpsX > 0 {
		return c.Edges[:]
	}
	return c.ids()
}

// eval returns the unweighted energy of c. With order ≥ 1 it adds the
// gradient, with order 2 the row-major Hessian, both over the stacked xyz
// coordinates of support(). Inactive pairs return nil derivatives.
func (c Constraint) eval(V []r3.Vec, dmin2, shat float64, order int) (float64, []float64, []float64) {
	x := c.gather(V)
	var d float64
	var dg, dh []float64
	switch order {
	case 0:
		d = geometry.DistanceSq(c.Type, x)
	case 1:
		d, dg = geometry.DistanceSqGradient(c.Type, x)
	default:
		d, dg, dh = geometry.DistanceSqHessian(c.Type, x)
	}
	if d-dmin2 >= shat {
		return 0, nil, nil
	}
	b := barrier.Barrier(d-dmin2, shat)
	if math.IsInf(b, 1) {
		return b, nil, nil
	}
	b1 := barrier.FirstDerivative(d-dmin2, shat)
	b2 := barrier.SecondDerivative(d-dmin2, shat)

	if c.EpsX <= 0 {
		if order == 0 {
			return b, nil, nil
		}
		n := len(dg)
		g := make([]float64, n)
		for r := range g {
			g[r] = b1 * dg[r]
		}
		if order == 1 {
			return b, g, nil
		}
		h := make([]float64, n*n)
		for r := 0; r < n; r++ {
			for s := 0; s < n; s++ {
				h[r*n+s] = b2*dg[r]*dg[s] + b1*dh[r*n+s]
			}
		}
		return b, g, h
	}

	edges := make([]r3.Vec, 4)
	for k, v := range c.Edges {
		edges[k] = V[v]
	}
	if order == 0 {
		mo, _, _ := geometry.Mollifier(geometry.EdgeEdgeCrossSq(edges), c.EpsX)
		if mo == 0 {
			return 0, nil, nil
		}
		return mo * b, nil, nil
	}
	cr, cg, ch := geometry.EdgeEdgeCrossSqHessian(edges)
	mo, m1, m2 := geometry.Mollifier(cr, c.EpsX)
	e := 0.0
	if mo != 0 {
		e = mo * b
	}

	// distance derivatives over the four edge vertices
	pos := c.edgeSlots()
	G := make([]float64, 12)
	for k, slot := range pos {
		for i := 0; i < 3; i++ {
			G[3*slot+i] = dg[3*k+i]
		}
	}
	g := make([]float64, 12)
	for r := range g {
		g[r] = m1*b*cg[r] + mo*b1*G[r]
	}
	if order == 1 {
		return e, g, nil
	}

	D := make([]float64, 144)
	n := 3 * len(pos)
	for ka, sa := range pos {
		for kb, sb := range pos {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					D[(3*sa+i)*12+3*sb+j] = dh[(3*ka+i)*n+3*kb+j]
				}
			}
		}
	}
	h := make([]float64, 144)
	for r := 0; r < 12; r++ {
		for s := 0; s < 12; s++ {
			h[r*12+s] = m2*b*cg[r]*cg[s] +
				m1*b1*(cg[r]*G[s]+G[r]*cg[s]) +
				m1*b*ch[r*12+s] +
				mo*b2*G[r]*G[s] +
				mo*b1*D[r*12+s]
		}
	}
	return e, g, h
}

// edgeSlots maps each of ids() to its position in Edges.
func (c Constraint) edgeSlots() []int {
	ids := c.ids()
	pos := make([]int, len(ids))
	for k, v := range ids {
		for slot, e := range c.Edges {
			if e == v {
				pos[k] = slot
				break
			}
		}
	}
	return pos
}

func (c Constraint) gather(V []r3.Vec) []r3.Vec {
	ids := c.ids()
	x := make([]r3.Vec, len(ids))
	for k, v := range ids {
		x[k] = V[v]
	}
	return x
}

// DistanceSq is the squared distance of the pair in configuration V.
func (c Constraint) DistanceSq(V []r3.Vec) float64 {
	return geometry.DistanceSq(c.Type, c.gather(V))
}

// canonical orders vertices so that the same pair found through different
// candidates compares equal.
func (c Constraint) canonical() Constraint {
	v := &c.Vertices
	switch c.Type {
	case geometry.PointPoint:
		if v[0] > v[1] {
			v[0], v[1] = v[1], v[0]
		}
	case geometry.PointEdge:
		if v[1] > v[2] {
			v[1], v[2] = v[2], v[1]
		}
	case geometry.PointTriangle:
		sort.Ints(v[1:4])
	case geometry.EdgeEdge:
		if v[0] > v[1] {
			v[0], v[1] = v[1], v[0]
		}
		if v[2] > v[3] {
			v[2], v[3] = v[3], v[2]
		}
		if v[0] > v[2] || (v[0] == v[2] && v[1] > v[3]) {
			v[0], v[1], v[2], v[3] = v[2], v[3], v[0], v[1]
		}
	}
	for k := c.Type.NumVertices(); k < 4; k++ {
		v[k] = 0
	}
	if c.EpsX > 0 {
		e := &c.Edges
		if e[0] > e[1] {
			e[0], e[1] = e[1], e[0]
		}
		if e[2] > e[3] {
			e[2], e[3] = e[3], e[2]
		}
		if e[0] > e[2] || (e[0] == e[2] && e[1] > e[3]) {
			e[0], e[1], e[2], e[3] = e[2], e[3], e[0], e[1]
		}
	}
	return c
}

// Options configure the barrier over a constraint set.
type Options struct {
	DHat float64
	DMin float64
	// Convergent selects area-weighted constraints with the barrier
	// normalised by dhat·(dhat+2·dmin)².
	Convergent bool
	Method     Method
}

// Inflation is the box padding that makes the broad phase report every pair
// that can become active.
func (o Options) Inflation() float64 { return 0.5 * (o.DHat + o.DMin) }

func (o Options) activation() float64 { return barrier.Activation(o.DHat, o.DMin) }

func (o Options) scale() float64 {
	if !o.Convergent {
		return 1
	}
	return 1 / (o.DHat * (o.DHat + 2*o.DMin) * (o.DHat + 2*o.DMin))
}

// Constraints is the active set for one displaced surface.
type Constraints struct {
	opts  Options
	items []Constraint
}

// BuildConstraints runs a static broad phase and narrow phase on V.
func BuildConstraints(m *Mesh, V []r3.Vec, opts Options) *Constraints {
	return FromCandidates(m, BuildCandidates(m, V, V, opts.Inflation(), opts.Method), V, opts)
}

// FromCandidates runs the narrow phase over precomputed candidates.
func FromCandidates(m *Mesh, c *Candidates, V []r3.Vec, opts Options) *Constraints {
	shat := opts.activation()
	dmin2 := opts.DMin * opts.DMin

	found := parallel.NewStorage(func() []Constraint { return nil })
	parallel.For(c.Len(), minChunk, func(start, end, worker int) {
		out := found.Local(worker)
		for k := start; k < end; k++ {
			ids, n, t := c.vertices(m, k)
			var prim geometry.Primitive
			switch t {
			case geometry.PointEdge:
				prim = geometry.ClassifyPointEdge(V[ids[0]], V[ids[1]], V[ids[2]])
			case geometry.EdgeEdge:
				prim = geometry.ClassifyEdgeEdge(V[ids[0]], V[ids[1]], V[ids[2]], V[ids[3]])
			default:
				prim = geometry.ClassifyPointTriangle(V[ids[0]], V[ids[1]], V[ids[2]], V[ids[3]])
			}
			con := Constraint{Type: prim.Type, Weight: 1}
			for i := 0; i < prim.Type.NumVertices(); i++ {
				con.Vertices[i] = ids[prim.Local[i]]
			}
			if t == geometry.EdgeEdge {
				rest := m.Rest()
				con.Edges = ids
				con.EpsX = geometry.EdgeEdgeMollifierThreshold(rest[ids[0]], rest[ids[1]], rest[ids[2]], rest[ids[3]])
			}
			if con.DistanceSq(V)-dmin2 >= shat {
				continue
			}
			if opts.Convergent {
				w := 0.0
				for _, v := range ids[:n] {
					w += m.VertexWeight(v)
				}
				con.Weight = w / float64(n)
			}
			out = append(out, con.canonical())
		}
		found.Set(worker, out)
	})

	var all []Constraint
	for _, l := range found.All() {
		all = append(all, l...)
	}
	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j]) })

	cs := &Constraints{opts: opts}
	for i, con := range all {
		if i > 0 && sameKey(con, all[i-1]) {
			continue
		}
		cs.items = append(cs.items, con)
	}
	return cs
}

func less(a, b Constraint) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	for k := 0; k < 4; k++ {
		if a.Vertices[k] != b.Vertices[k] {
			return a.Vertices[k] < b.Vertices[k]
		}
	}
	for k := 0; k < 4; k++ {
		if a.Edges[k] != b.Edges[k] {
			return a.Edges[k] < b.Edges[k]
		}
	}
	return a.Weight < b.Weight
}

// sameKey reports duplicates. Mollified pairs are distinct per edge pair.
func sameKey(a, b Constraint) bool {
	return a.Type == b.Type && a.Vertices == b.Vertices && a.Edges == b.Edges
}

func (cs *Constraints) Len() int            { return len(cs.items) }
func (cs *Constraints) Empty() bool         { return len(cs.items) == 0 }
func (cs *Constraints) At(i int) Constraint { return cs.items[i] }
func (cs *Constraints) Options() Options    { return cs.opts }
func (cs *Constraints) Items() []Constraint { return cs.items }

// WithOptions shares the active set under different barrier options.
func (cs *Constraints) WithOptions(o Options) *Constraints {
	return &Constraints{opts: o, items: cs.items}
}

// Potential is the weighted barrier summed over the set.
func (cs *Constraints) Potential(V []r3.Vec) float64 {
	shat := cs.opts.activation()
	dmin2 := cs.opts.DMin * cs.opts.DMin
	sums := parallel.NewStorage(func() float64 { return 0 })
	parallel.For(len(cs.items), minChunk, func(start, end, worker int) {
		s := sums.Local(worker)
		for _, c := range cs.items[start:end] {
			e, _, _ := c.eval(V, dmin2, shat, 0)
			s += c.Weight * e
		}
		sums.Set(worker, s)
	})
	total := 0.0
	for _, s := range sums.All() {
		total += s
	}
	return cs.opts.scale() * total
}

// VertexPotential splits each constraint's weighted barrier evenly over its
// vertices. The result is indexed by collision vertex and sums to Potential.
func (cs *Constraints) VertexPotential(m *Mesh, V []r3.Vec) []float64 {
	shat := cs.opts.activation()
	dmin2 := cs.opts.DMin * cs.opts.DMin
	scale := cs.opts.scale()

	shares := parallel.NewStorage(func() []float64 { return make([]float64, m.NumVertices()) })
	parallel.For(len(cs.items), minChunk, func(start, end, worker int) {
		local := shares.Local(worker)
		for _, c := range cs.items[start:end] {
			e, _, _ := c.eval(V, dmin2, shat, 0)
			if e == 0 {
				continue
			}
			ids := c.support()
			share := scale * c.Weight * e / float64(len(ids))
			for _, v := range ids {
				local[v] += share
			}
		}
	})

	out := make([]float64, m.NumVertices())
	for _, local := range shares.All() {
		for v, e := range local {
			out[v] += e
		}
	}
	return out
}

// Gradient is the potential gradient in collision-space DOFs.
func (cs *Constraints) Gradient(m *Mesh, V []r3.Vec) []float64 {
	dim := m.Dim()
	size := m.NumVertices() * dim
	shat := cs.opts.activation()
	dmin2 := cs.opts.DMin * cs.opts.DMin
	scale := cs.opts.scale()

	grads := parallel.NewStorage(func() []float64 { return make([]float64, size) })
	parallel.For(len(cs.items), minChunk, func(start, end, worker int) {
		g := grads.Local(worker)
		for _, c := range cs.items[start:end] {
			_, cg, _ := c.eval(V, dmin2, shat, 1)
			if cg == nil {
				continue
			}
			w := scale * c.Weight
			for k, v := range c.support() {
				for j := 0; j < dim; j++ {
					g[m.SurfaceDOF(v, j)] += w * cg[3*k+j]
				}
			}
		}
	})

	out := make([]float64, size)
	for _, g := range grads.All() {
		for i, v := range g {
			out[i] += v
		}
	}
	return out
}

// Hessian is the potential Hessian in collision-space DOFs. With
// project every local block is projected onto the positive
// semidefinite cone before assembly.
func (cs *Constraints) Hessian(m *Mesh, V []r3.Vec, project bool) *sparse.Matrix {
	dim := m.Dim()
	size := m.NumVertices() * dim
	shat := cs.opts.activation()
	dmin2 := cs.opts.DMin * cs.opts.DMin
	scale := cs.opts.scale()

	accs := parallel.NewStorage(func() *sparse.Accumulator {
		return sparse.NewAccumulator(size, size, sparse.DefaultFlushThreshold)
	})
	parallel.For(len(cs.items), minChunk, func(start, end, worker int) {
		acc := accs.Local(worker)
		for _, c := range cs.items[start:end] {
			_, _, ch := c.eval(V, dmin2, shat, 2)
			if ch == nil {
				continue
			}
			ids := c.support()
			n := len(ids)
			w := scale * c.Weight

			ln := n * dim
			local := make([]float64, ln*ln)
			idx := make([]int, ln)
			for a := 0; a < n; a++ {
				for i := 0; i < dim; i++ {
					r := a*dim + i
					idx[r] = m.SurfaceDOF(ids[a], i)
					for b := 0; b < n; b++ {
						for j := 0; j < dim; j++ {
							local[r*ln+b*dim+j] = w * ch[(3*a+i)*3*n+3*b+j]
						}
					}
				}
			}
			if project {
				projectPSD(local, ln)
			}
			acc.PutBlock(idx, local)
		}
	})
	return sparse.Sum(size, size, accs.All()...)
}

// MinDistance is the smallest squared distance over the set, or +Inf when
// the set is empty.
func (cs *Constraints) MinDistance(V []r3.Vec) float64 {
	best := parallel.NewStorage(func() float64 { return math.Inf(1) })
	parallel.For(len(cs.items), minChunk, func(start, end, worker int) {
		b := best.Local(worker)
		for _, c := range cs.items[start:end] {
			b = math.Min(b, c.DistanceSq(V))
		}
		best.Set(worker, b)
	})
	out := math.Inf(1)
	for _, b := range best.All() {
		out = math.Min(out, b)
	}
	return out
}
