package collision

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/parallel"
)

// HasIntersections reports whether the surface in configuration V
// intersects itself: crossing non-adjacent edges in 2D, or an edge piercing
// a face it does not share a vertex with in 3D.
func HasIntersections(m *Mesh, V []r3.Vec) bool {
	edgeBoxes := make([]aabb, len(m.edges))
	for i, e := range m.edges {
		edgeBoxes[i] = boxOf(0, V[e[0]], V[e[1]])
	}

	found := parallel.NewStorage(func() bool { return false })
	if m.dim == 2 {
		parallel.For(len(m.edges), minChunk, func(start, end, worker int) {
			for a := start; a < end; a++ {
				ea := m.edges[a]
				for b := a + 1; b < len(m.edges); b++ {
					eb := m.edges[b]
					if containsVertex(eb[0], ea[0], ea[1]) || containsVertex(eb[1], ea[0], ea[1]) {
						continue
					}
					if !edgeBoxes[a].overlaps(edgeBoxes[b]) {
						continue
					}
					if geometry.SegmentsIntersect2D(V[ea[0]], V[ea[1]], V[eb[0]], V[eb[1]]) {
						found.Set(worker, true)
						return
					}
				}
			}
		})
	} else {
		faceBoxes := make([]aabb, len(m.faces))
		for i, f := range m.faces {
			faceBoxes[i] = boxOf(0, V[f[0]], V[f[1]], V[f[2]])
		}
		parallel.For(len(m.edges), minChunk, func(start, end, worker int) {
			for ei := start; ei < end; ei++ {
				e := m.edges[ei]
				for fi, f := range m.faces {
					if containsVertex(e[0], f[0], f[1], f[2]) || containsVertex(e[1], f[0], f[1], f[2]) {
						continue
					}
					if !edgeBoxes[ei].overlaps(faceBoxes[fi]) {
						continue
					}
					if geometry.EdgeTriangleIntersect(V[e[0]], V[e[1]], V[f[0]], V[f[1]], V[f[2]]) {
						found.Set(worker, true)
						return
					}
				}
			}
		})
	}

	for _, f := range found.All() {
		if f {
			return true
		}
	}
	return false
}
