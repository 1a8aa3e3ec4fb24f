package geometry

import "gonum.org/v1/gonum/spatial/r3"

func orient2D(a, b, c r3.Vec) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment2D(a, b, p r3.Vec) bool {
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

// SegmentsIntersect2D reports whether two segments in the xy-plane touch or cross.
func SegmentsIntersect2D(a0, a1, b0, b1 r3.Vec) bool {
	o1 := orient2D(a0, a1, b0)
	o2 := orient2D(a0, a1, b1)
	o3 := orient2D(b0, b1, a0)
	o4 := orient2D(b0, b1, a1)

	if ((o1 > 0 && o2 < 0) || (o1 < 0 && o2 > 0)) && ((o3 > 0 && o4 < 0) || (o3 < 0 && o4 > 0)) {
		return true
	}
	switch {
	case o1 == 0 && onSegment2D(a0, a1, b0):
		return true
	case o2 == 0 && onSegment2D(a0, a1, b1):
		return true
	case o3 == 0 && onSegment2D(b0, b1, a0):
		return true
	case o4 == 0 && onSegment2D(b0, b1, a1):
		return true
	}
	return false
}

// EdgeTriangleIntersect reports whether segment [e0,e1] crosses triangle
// (t0,t1,t2). Coplanar configurations are reported as non-intersecting.
func EdgeTriangleIntersect(e0, e1, t0, t1, t2 r3.Vec) bool {
	const eps = 1e-14
	dir := r3.Sub(e1, e0)
	edge1, edge2 := r3.Sub(t1, t0), r3.Sub(t2, t0)
	h := r3.Cross(dir, edge2)
	a := r3.Dot(edge1, h)
	if a > -eps && a < eps {
		return false
	}
	f := 1 / a
	s := r3.Sub(e0, t0)
	u := f * r3.Dot(s, h)
	if u < 0 || u > 1 {
		return false
	}
	q := r3.Cross(s, edge1)
	v := f * r3.Dot(dir, q)
	if v < 0 || u+v > 1 {
		return false
	}
	t := f * r3.Dot(edge2, q)
	return t >= 0 && t <= 1
}
