// Package geometry implements the primitive distance, continuous collision
// and intersection kernels used by the contact model.
//
// Points are gonum r3 vectors. Two-dimensional meshes embed into the z=0
// plane, so every kernel serves both dimensions.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DistanceType names the primitive pair that realises a distance.
type DistanceType int

const (
	PointPoint DistanceType = iota
	PointEdge
	PointTriangle
	EdgeEdge
)

func (t DistanceType) String() string {
	switch t {
	case PointPoint:
		return "point-point"
	case PointEdge:
		return "point-edge"
	case PointTriangle:
		return "point-triangle"
	case EdgeEdge:
		return "edge-edge"
	}
	return "unknown"
}

// NumVertices is the number of vertices a primitive pair of this type uses.
func (t DistanceType) NumVertices() int {
	switch t {
	case PointPoint:
		return 2
	case PointEdge:
		return 3
	default:
		return 4
	}
}

// Primitive is the closest-feature classification of a query. Local holds
// indices into the query's vertex list, ordered as the type expects
// (point first, then edge or triangle vertices; edge-edge as a0 a1 b0 b1).
type Primitive struct {
	Type  DistanceType
	Local [4]int
}

// parallelThreshold bounds sin² of the angle between edges treated as parallel.
const parallelThreshold = 1e-10

// ClassifyPointEdge classifies the distance from p to segment [e0,e1].
// Local indices refer to (p, e0, e1).
func ClassifyPointEdge(p, e0, e1 r3.Vec) Primitive {
	e := r3.Sub(e1, e0)
	l2 := r3.Norm2(e)
	if l2 == 0 {
		return Primitive{Type: PointPoint, Local: [4]int{0, 1}}
	}
	t := r3.Dot(r3.Sub(p, e0), e) / l2
	switch {
	case t <= 0:
		return Primitive{Type: PointPoint, Local: [4]int{0, 1}}
	case t >= 1:
		return Primitive{Type: PointPoint, Local: [4]int{0, 2}}
	}
	return Primitive{Type: PointEdge, Local: [4]int{0, 1, 2}}
}

// ClassifyPointTriangle classifies the distance from p to triangle (t0,t1,t2).
// Local indices refer to (p, t0, t1, t2).
func ClassifyPointTriangle(p, t0, t1, t2 r3.Vec) Primitive {
	e0, e1 := r3.Sub(t1, t0), r3.Sub(t2, t0)
	a, b, c := r3.Dot(e0, e0), r3.Dot(e0, e1), r3.Dot(e1, e1)
	det := a*c - b*b
	if det > 1e-14*a*c {
		q := r3.Sub(p, t0)
		r0, r1 := r3.Dot(e0, q), r3.Dot(e1, q)
		u := (c*r0 - b*r1) / det
		v := (a*r1 - b*r0) / det
		if u >= 0 && v >= 0 && u+v <= 1 {
			return Primitive{Type: PointTriangle, Local: [4]int{0, 1, 2, 3}}
		}
	}

	verts := [4]r3.Vec{p, t0, t1, t2}
	edges := [3][2]int{{1, 2}, {2, 3}, {3, 1}}
	best := Primitive{}
	bestDist := math.Inf(1)
	for _, e := range edges {
		pe := ClassifyPointEdge(p, verts[e[0]], verts[e[1]])
		local := [3]int{0, e[0], e[1]}
		mapped := Primitive{Type: pe.Type}
		for k := 0; k < pe.Type.NumVertices(); k++ {
			mapped.Local[k] = local[pe.Local[k]]
		}
		if d := mapped.distanceSq(verts[:]); d < bestDist {
			best, bestDist = mapped, d
		}
	}
	return best
}

// ClassifyEdgeEdge classifies the distance between segments [a0,a1] and
// [b0,b1]. Local indices refer to (a0, a1, b0, b1).
func ClassifyEdgeEdge(a0, a1, b0, b1 r3.Vec) Primitive {
	d1, d2 := r3.Sub(a1, a0), r3.Sub(b1, b0)
	r := r3.Sub(a0, b0)
	a, e := r3.Dot(d1, d1), r3.Dot(d2, d2)
	b, c, f := r3.Dot(d1, d2), r3.Dot(d1, r), r3.Dot(d2, r)
	denom := a*e - b*b

	if a > 0 && e > 0 && denom > parallelThreshold*a*e {
		s := (b*f - c*e) / denom
		t := (a*f - b*c) / denom
		if s > 0 && s < 1 && t > 0 && t < 1 {
			return Primitive{Type: EdgeEdge, Local: [4]int{0, 1, 2, 3}}
		}
	}

	verts := [4]r3.Vec{a0, a1, b0, b1}
	queries := [4][3]int{{0, 2, 3}, {1, 2, 3}, {2, 0, 1}, {3, 0, 1}}
	best := Primitive{}
	bestDist := math.Inf(1)
	for _, q := range queries {
		pe := ClassifyPointEdge(verts[q[0]], verts[q[1]], verts[q[2]])
		mapped := Primitive{Type: pe.Type}
		for k := 0; k < pe.Type.NumVertices(); k++ {
			mapped.Local[k] = q[pe.Local[k]]
		}
		if d := mapped.distanceSq(verts[:]); d < bestDist {
			best, bestDist = mapped, d
		}
	}
	return best
}

func (p Primitive) distanceSq(verts []r3.Vec) float64 {
	x := make([]r3.Vec, p.Type.NumVertices())
	for k := range x {
		x[k] = verts[p.Local[k]]
	}
	return DistanceSq(p.Type, x)
}

// Gather returns the primitive's vertices taken from verts.
func (p Primitive) Gather(verts []r3.Vec) []r3.Vec {
	x := make([]r3.Vec, p.Type.NumVertices())
	for k := range x {
		x[k] = verts[p.Local[k]]
	}
	return x
}

// PointEdgeDistanceSq is the squared distance from p to segment [e0,e1].
func PointEdgeDistanceSq(p, e0, e1 r3.Vec) float64 {
	verts := []r3.Vec{p, e0, e1}
	return ClassifyPointEdge(p, e0, e1).distanceSq(verts)
}

// PointTriangleDistanceSq is the squared distance from p to a triangle.
func PointTriangleDistanceSq(p, t0, t1, t2 r3.Vec) float64 {
	verts := []r3.Vec{p, t0, t1, t2}
	return ClassifyPointTriangle(p, t0, t1, t2).distanceSq(verts)
}

// EdgeEdgeDistanceSq is the squared distance between two segments.
func EdgeEdgeDistanceSq(a0, a1, b0, b1 r3.Vec) float64 {
	verts := []r3.Vec{a0, a1, b0, b1}
	return ClassifyEdgeEdge(a0, a1, b0, b1).distanceSq(verts)
}

// DistanceSq evaluates the squared distance of an already classified
// primitive pair: point-point, point-line, point-plane or line-line.
func DistanceSq(t DistanceType, x []r3.Vec) float64 {
	s, _, _ := closest(t, x, false, false)
	return s
}
