package collision

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/contactsim/internal/parallel"
)

// Method selects the broad-phase algorithm.
type Method int

const (
	HashGrid Method = iota
	BruteForce
)

func (m Method) String() string {
	if m == BruteForce {
		return "brute_force"
	}
	return "hash_grid"
}

// ParseMethod resolves a broad-phase method name.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "", "hash_grid":
		return HashGrid, nil
	case "brute_force":
		return BruteForce, nil
	}
	return 0, fmt.Errorf("%w: unknown broad phase method %q", ErrMesh, name)
}

// maxCellsPerBox bounds the grid cells a single box may occupy before the
// primitive is tested against every other primitive instead.
const maxCellsPerBox = 4096

// minChunk is the smallest number of primitives handed to one worker.
const minChunk = 64

type aabb struct {
	lo, hi r3.Vec
}

func (b aabb) overlaps(o aabb) bool {
	return b.lo.X <= o.hi.X && o.lo.X <= b.hi.X &&
		b.lo.Y <= o.hi.Y && o.lo.Y <= b.hi.Y &&
		b.lo.Z <= o.hi.Z && o.lo.Z <= b.hi.Z
}

func (b aabb) extent() float64 {
	d := r3.Sub(b.hi, b.lo)
	return math.Max(d.X, math.Max(d.Y, d.Z))
}

func boxOf(inflation float64, pts ...r3.Vec) aabb {
	b := aabb{lo: pts[0], hi: pts[0]}
	for _, p := range pts[1:] {
		b.lo = r3.Vec{X: math.Min(b.lo.X, p.X), Y: math.Min(b.lo.Y, p.Y), Z: math.Min(b.lo.Z, p.Z)}
		b.hi = r3.Vec{X: math.Max(b.hi.X, p.X), Y: math.Max(b.hi.Y, p.Y), Z: math.Max(b.hi.Z, p.Z)}
	}
	r := r3.Vec{X: inflation, Y: inflation, Z: inflation}
	b.lo = r3.Sub(b.lo, r)
	b.hi = r3.Add(b.hi, r)
	return b
}

type sweptBoxes struct {
	vertices, edges, faces []aabb
}

func buildBoxes(m *Mesh, v0, v1 []r3.Vec, inflation float64) sweptBoxes {
	var sb sweptBoxes
	sb.vertices = make([]aabb, len(v0))
	for i := range v0 {
		sb.vertices[i] = boxOf(inflation, v0[i], v1[i])
	}
	sb.edges = make([]aabb, len(m.edges))
	for i, e := range m.edges {
		sb.edges[i] = boxOf(inflation, v0[e[0]], v0[e[1]], v1[e[0]], v1[e[1]])
	}
	sb.faces = make([]aabb, len(m.faces))
	for i, f := range m.faces {
		sb.faces[i] = boxOf(inflation, v0[f[0]], v0[f[1]], v0[f[2]], v1[f[0]], v1[f[1]], v1[f[2]])
	}
	return sb
}

type cellKey [3]int

// grid is a uniform spatial hash of boxes.
type grid struct {
	cell  float64
	cells map[cellKey][]int
	large []int
}

func newGrid(cell float64) *grid {
	return &grid{cell: cell, cells: make(map[cellKey][]int)}
}

func (g *grid) span(b aabb) (cellKey, cellKey, bool) {
	lo := cellKey{
		int(math.Floor(b.lo.X / g.cell)),
		int(math.Floor(b.lo.Y / g.cell)),
		int(math.Floor(b.lo.Z / g.cell)),
	}
	hi := cellKey{
		int(math.Floor(b.hi.X / g.cell)),
		int(math.Floor(b.hi.Y / g.cell)),
		int(math.Floor(b.hi.Z / g.cell)),
	}
	count := (hi[0] - lo[0] + 1) * (hi[1] - lo[1] + 1) * (hi[2] - lo[2] + 1)
	return lo, hi, count > 0 && count <= maxCellsPerBox
}

func (g *grid) insert(id int, b aabb) {
	lo, hi, ok := g.span(b)
	if !ok {
		g.large = append(g.large, id)
		return
	}
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				k := cellKey{x, y, z}
				g.cells[k] = append(g.cells[k], id)
			}
		}
	}
}

// query returns the sorted unique ids sharing a cell with b, plus the
// oversized boxes. all reports that b itself is oversized and must be
// tested against everything.
func (g *grid) query(b aabb) (ids []int, all bool) {
	lo, hi, ok := g.span(b)
	if !ok {
		return nil, true
	}
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				ids = append(ids, g.cells[cellKey{x, y, z}]...)
			}
		}
	}
	ids = append(ids, g.large...)
	sort.Ints(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out, false
}

func cellSize(boxes ...[]aabb) float64 {
	sum, n := 0.0, 0
	for _, set := range boxes {
		for _, b := range set {
			sum += b.extent()
			n++
		}
	}
	if n == 0 || sum == 0 {
		return 1
	}
	return 2 * sum / float64(n)
}

func rangeIDs(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func containsVertex(v int, ids ...int) bool {
	for _, id := range ids {
		if id == v {
			return true
		}
	}
	return false
}

// BuildCandidates returns the primitive pairs whose boxes, swept from v0 to
// v1 and inflated by inflation, overlap. Pairs sharing a vertex are skipped.
// v0 == v1 gives a static query.
func BuildCandidates(m *Mesh, v0, v1 []r3.Vec, inflation float64, method Method) *Candidates {
	sb := buildBoxes(m, v0, v1, inflation)
	c := &Candidates{}

	var vgrid, egrid *grid
	if method == HashGrid {
		cell := cellSize(sb.edges, sb.faces)
		vgrid = newGrid(cell)
		for i, b := range sb.vertices {
			vgrid.insert(i, b)
		}
		if m.dim == 3 {
			egrid = newGrid(cell)
			for i, b := range sb.edges {
				egrid.insert(i, b)
			}
		}
	}

	nearVertices := func(b aabb) []int {
		if vgrid == nil {
			return rangeIDs(len(sb.vertices))
		}
		ids, all := vgrid.query(b)
		if all {
			return rangeIDs(len(sb.vertices))
		}
		return ids
	}
	nearEdges := func(b aabb) []int {
		if egrid == nil {
			return rangeIDs(len(sb.edges))
		}
		ids, all := egrid.query(b)
		if all {
			return rangeIDs(len(sb.edges))
		}
		return ids
	}

	if m.dim == 2 {
		local := parallel.NewStorage(func() []EdgeVertex { return nil })
		parallel.For(len(m.edges), minChunk, func(start, end, worker int) {
			out := local.Local(worker)
			for ei := start; ei < end; ei++ {
				e := m.edges[ei]
				for _, v := range nearVertices(sb.edges[ei]) {
					if containsVertex(v, e[0], e[1]) || !sb.edges[ei].overlaps(sb.vertices[v]) {
						continue
					}
					out = append(out, EdgeVertex{Edge: ei, Vertex: v})
				}
			}
			local.Set(worker, out)
		})
		for _, l := range local.All() {
			c.EdgeVertex = append(c.EdgeVertex, l...)
		}
		c.sort()
		return c
	}

	eeLocal := parallel.NewStorage(func() []EdgeEdge { return nil })
	parallel.For(len(m.edges), minChunk, func(start, end, worker int) {
		out := eeLocal.Local(worker)
		for a := start; a < end; a++ {
			ea := m.edges[a]
			for _, b := range nearEdges(sb.edges[a]) {
				if b <= a {
					continue
				}
				eb := m.edges[b]
				if containsVertex(eb[0], ea[0], ea[1]) || containsVertex(eb[1], ea[0], ea[1]) {
					continue
				}
				if !sb.edges[a].overlaps(sb.edges[b]) {
					continue
				}
				out = append(out, EdgeEdge{EdgeA: a, EdgeB: b})
			}
		}
		eeLocal.Set(worker, out)
	})
	fvLocal := parallel.NewStorage(func() []FaceVertex { return nil })
	parallel.For(len(m.faces), minChunk, func(start, end, worker int) {
		out := fvLocal.Local(worker)
		for fi := start; fi < end; fi++ {
			f := m.faces[fi]
			for _, v := range nearVertices(sb.faces[fi]) {
				if containsVertex(v, f[0], f[1], f[2]) || !sb.faces[fi].overlaps(sb.vertices[v]) {
					continue
				}
				out = append(out, FaceVertex{Face: fi, Vertex: v})
			}
		}
		fvLocal.Set(worker, out)
	})
	for _, l := range eeLocal.All() {
		c.EdgeEdge = append(c.EdgeEdge, l...)
	}
	for _, l := range fvLocal.All() {
		c.FaceVertex = append(c.FaceVertex, l...)
	}
	c.sort()
	return c
}
