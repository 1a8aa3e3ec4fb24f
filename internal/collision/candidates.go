package collision

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/parallel"
)

type EdgeVertex struct {
	Edge, Vertex int
}

type EdgeEdge struct {
	EdgeA, EdgeB int
}

type FaceVertex struct {
	Face, Vertex int
}

// Candidates are the broad-phase pairs between two configurations. 2D
// meshes only produce edge-vertex pairs; 3D meshes produce edge-edge and
// face-vertex pairs.
type Candidates struct {
	EdgeVertex []EdgeVertex
	EdgeEdge   []EdgeEdge
	FaceVertex []FaceVertex
}

func (c *Candidates) Len() int {
	return len(c.EdgeVertex) + len(c.EdgeEdge) + len(c.FaceVertex)
}

func (c *Candidates) Empty() bool { return c.Len() == 0 }

func (c *Candidates) sort() {
	sort.Slice(c.EdgeVertex, func(i, j int) bool {
		a, b := c.EdgeVertex[i], c.EdgeVertex[j]
		if a.Edge != b.Edge {
			return a.Edge < b.Edge
		}
		return a.Vertex < b.Vertex
	})
	sort.Slice(c.EdgeEdge, func(i, j int) bool {
		a, b := c.EdgeEdge[i], c.EdgeEdge[j]
		if a.EdgeA != b.EdgeA {
			return a.EdgeA < b.EdgeA
		}
		return a.EdgeB < b.EdgeB
	})
	sort.Slice(c.FaceVertex, func(i, j int) bool {
		a, b := c.FaceVertex[i], c.FaceVertex[j]
		if a.Face != b.Face {
			return a.Face < b.Face
		}
		return a.Vertex < b.Vertex
	})
}

// vertices returns the collision vertex ids of candidate k in the order the
// CCD kernels expect: point first for point-primitive pairs, a0 a1 b0 b1 for
// edge pairs. Candidates are indexed edge-vertex, then edge-edge, then
// face-vertex.
func (c *Candidates) vertices(m *Mesh, k int) (ids [4]int, n int, t geometry.DistanceType) {
	if k < len(c.EdgeVertex) {
		ev := c.EdgeVertex[k]
		e := m.edges[ev.Edge]
		return [4]int{ev.Vertex, e[0], e[1]}, 3, geometry.PointEdge
	}
	k -= len(c.EdgeVertex)
	if k < len(c.EdgeEdge) {
		ee := c.EdgeEdge[k]
		a, b := m.edges[ee.EdgeA], m.edges[ee.EdgeB]
		return [4]int{a[0], a[1], b[0], b[1]}, 4, geometry.EdgeEdge
	}
	fv := c.FaceVertex[k-len(c.EdgeEdge)]
	f := m.faces[fv.Face]
	return [4]int{fv.Vertex, f[0], f[1], f[2]}, 4, geometry.PointTriangle
}

func timeOfImpact(t geometry.DistanceType, ids [4]int, v0, v1 []r3.Vec, opts geometry.CCDOptions) (float64, bool) {
	switch t {
	case geometry.PointEdge:
		return geometry.PointEdgeCCD(
			v0[ids[0]], v0[ids[1]], v0[ids[2]],
			v1[ids[0]], v1[ids[1]], v1[ids[2]], opts)
	case geometry.EdgeEdge:
		return geometry.EdgeEdgeCCD(
			v0[ids[0]], v0[ids[1]], v0[ids[2]], v0[ids[3]],
			v1[ids[0]], v1[ids[1]], v1[ids[2]], v1[ids[3]], opts)
	default:
		return geometry.PointTriangleCCD(
			v0[ids[0]], v0[ids[1]], v0[ids[2]], v0[ids[3]],
			v1[ids[0]], v1[ids[1]], v1[ids[2]], v1[ids[3]], opts)
	}
}

// DefaultStepOptions are the CCD settings for line-search step bounds.
func DefaultStepOptions() geometry.CCDOptions {
	return geometry.DefaultCCDOptions()
}

// Interpolate returns v0 + alpha·(v1 - v0).
func Interpolate(v0, v1 []r3.Vec, alpha float64) []r3.Vec {
	out := make([]r3.Vec, len(v0))
	for i := range v0 {
		out[i] = r3.Add(v0[i], r3.Scale(alpha, r3.Sub(v1[i], v0[i])))
	}
	return out
}

// CollisionFreeStepSize returns the largest α in [0, opts.TMax] such that
// moving every vertex from v0 towards v1 by α keeps all candidate pairs
// apart. It returns opts.TMax when no pair comes into contact.
func (c *Candidates) CollisionFreeStepSize(m *Mesh, v0, v1 []r3.Vec, opts geometry.CCDOptions) float64 {
	if opts.TMax <= 0 {
		opts.TMax = 1
	}
	best := parallel.NewStorage(func() float64 { return math.Inf(1) })
	parallel.For(c.Len(), minChunk, func(start, end, worker int) {
		local := best.Local(worker)
		for k := start; k < end; k++ {
			ids, _, t := c.vertices(m, k)
			o := opts
			if local < o.TMax {
				o.TMax = local
			}
			if toi, hit := timeOfImpact(t, ids, v0, v1, o); hit && toi < local {
				local = toi
			}
		}
		best.Set(worker, local)
	})

	step := opts.TMax
	for _, s := range best.All() {
		step = math.Min(step, s)
	}
	return step
}

// IsStepCollisionFree reports whether no candidate pair comes into contact
// on the straight path from v0 to v1.
func (c *Candidates) IsStepCollisionFree(m *Mesh, v0, v1 []r3.Vec, opts geometry.CCDOptions) bool {
	opts.TMax = 1
	hits := parallel.NewStorage(func() bool { return false })
	parallel.For(c.Len(), minChunk, func(start, end, worker int) {
		for k := start; k < end; k++ {
			ids, _, t := c.vertices(m, k)
			if _, hit := timeOfImpact(t, ids, v0, v1, opts); hit {
				hits.Set(worker, true)
				return
			}
		}
	})
	for _, h := range hits.All() {
		if h {
			return false
		}
	}
	return true
}
