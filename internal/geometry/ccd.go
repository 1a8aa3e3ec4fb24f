package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CCDOptions configures additive continuous collision detection.
type CCDOptions struct {
	// MinDistance is the separation treated as contact.
	MinDistance float64
	// TMax bounds the returned time of impact.
	TMax float64
	// Tolerance stops the advance once a step becomes shorter than it.
	// The time reached so far is returned.
	Tolerance float64
	// MaxIterations caps the number of advances. Reaching it reports the
	// time reached so far.
	MaxIterations int
	// Rescaling in (0,1) is the fraction of the remaining gap consumed per
	// advance; the query stops once the gap falls below (1-Rescaling) of
	// its initial value.
	Rescaling float64
}

// DefaultCCDOptions are used for step-size queries.
func DefaultCCDOptions() CCDOptions {
	return CCDOptions{
		TMax:          1,
		Tolerance:     1e-6,
		MaxIterations: 1_000_000,
		Rescaling:     0.9,
	}
}

// AdditiveCCD advances a primitive pair along its linear trajectory by
// conservative lower bounds on the time of impact. x holds the start
// positions, dx the displacements; the first split entries form one
// primitive and the rest the other. distSq evaluates the squared distance of
// a configuration.
//
// It returns (toi, true) when the pair comes within the stopping gap before
// TMax and (TMax, false) otherwise. The returned toi never exceeds the exact
// time of first contact.
func AdditiveCCD(x, dx []r3.Vec, split int, distSq func([]r3.Vec) float64, opts CCDOptions) (float64, bool) {
	if opts.TMax <= 0 {
		opts.TMax = 1
	}
	s := opts.Rescaling
	if s <= 0 || s >= 1 {
		s = 0.9
	}

	var mean r3.Vec
	for _, v := range dx {
		mean = r3.Add(mean, v)
	}
	mean = r3.Scale(1/float64(len(dx)), mean)

	rel := make([]r3.Vec, len(dx))
	maxA, maxB := 0.0, 0.0
	for i, v := range dx {
		rel[i] = r3.Sub(v, mean)
		n2 := r3.Norm2(rel[i])
		if i < split {
			maxA = math.Max(maxA, n2)
		} else {
			maxB = math.Max(maxB, n2)
		}
	}
	lp := math.Sqrt(maxA) + math.Sqrt(maxB)
	if lp == 0 {
		return opts.TMax, false
	}

	cur := make([]r3.Vec, len(x))
	copy(cur, x)

	dmin2 := opts.MinDistance * opts.MinDistance
	d2 := distSq(cur)
	dfunc := d2 - dmin2
	if dfunc <= 0 {
		return 0, true
	}
	d := math.Sqrt(d2)
	gap := (1 - s) * dfunc / (d + opts.MinDistance)

	toi := 0.0
	for iter := 0; ; iter++ {
		tl := s * dfunc / ((d + opts.MinDistance) * lp)
		for i := range cur {
			cur[i] = r3.Add(cur[i], r3.Scale(tl, rel[i]))
		}
		d2 = distSq(cur)
		dfunc = d2 - dmin2
		d = math.Sqrt(d2)
		if dfunc <= 0 {
			return toi, true
		}
		if toi > 0 && dfunc/(d+opts.MinDistance) < gap {
			return toi, true
		}
		toi += tl
		if toi > opts.TMax {
			return opts.TMax, false
		}
		if opts.MaxIterations > 0 && iter+1 >= opts.MaxIterations {
			return toi, true
		}
		if tl < opts.Tolerance {
			return toi, true
		}
	}
}

// PointEdgeCCD runs additive CCD for a point against a segment.
func PointEdgeCCD(p0, e00, e10, p1, e01, e11 r3.Vec, opts CCDOptions) (float64, bool) {
	x := []r3.Vec{p0, e00, e10}
	dx := []r3.Vec{r3.Sub(p1, p0), r3.Sub(e01, e00), r3.Sub(e11, e10)}
	return AdditiveCCD(x, dx, 1, func(v []r3.Vec) float64 {
		return PointEdgeDistanceSq(v[0], v[1], v[2])
	}, opts)
}

// PointTriangleCCD runs additive CCD for a point against a triangle.
func PointTriangleCCD(p0, t00, t10, t20, p1, t01, t11, t21 r3.Vec, opts CCDOptions) (float64, bool) {
	x := []r3.Vec{p0, t00, t10, t20}
	dx := []r3.Vec{r3.Sub(p1, p0), r3.Sub(t01, t00), r3.Sub(t11, t10), r3.Sub(t21, t20)}
	return AdditiveCCD(x, dx, 1, func(v []r3.Vec) float64 {
		return PointTriangleDistanceSq(v[0], v[1], v[2], v[3])
	}, opts)
}

// EdgeEdgeCCD runs additive CCD for two segments.
func EdgeEdgeCCD(a00, a10, b00, b10, a01, a11, b01, b11 r3.Vec, opts CCDOptions) (float64, bool) {
	x := []r3.Vec{a00, a10, b00, b10}
	dx := []r3.Vec{r3.Sub(a01, a00), r3.Sub(a11, a10), r3.Sub(b01, b00), r3.Sub(b11, b10)}
	return AdditiveCCD(x, dx, 2, func(v []r3.Vec) float64 {
		return EdgeEdgeDistanceSq(v[0], v[1], v[2], v[3])
	}, opts)
}
