package geometry

import "gonum.org/v1/gonum/spatial/r3"

// EdgeEdgeMollifierThreshold is the squared cross product norm below which
// an edge-edge barrier is mollified. It is taken from rest positions.
func EdgeEdgeMollifierThreshold(a0, a1, b0, b1 r3.Vec) float64 {
	return 1e-3 * r3.Norm2(r3.Sub(a1, a0)) * r3.Norm2(r3.Sub(b1, b0))
}

// EdgeEdgeCrossSq is |(a1−a0)×(b1−b0)|² for x = (a0, a1, b0, b1).
func EdgeEdgeCrossSq(x []r3.Vec) float64 {
	return r3.Norm2(r3.Cross(r3.Sub(x[1], x[0]), r3.Sub(x[3], x[2])))
}

// EdgeEdgeCrossSqHessian returns EdgeEdgeCrossSq, its gradient and the
// 12×12 row-major Hessian with respect to the stacked coordinates of x.
func EdgeEdgeCrossSqHessian(x []r3.Vec) (float64, []float64, []float64) {
	u, v := r3.Sub(x[1], x[0]), r3.Sub(x[3], x[2])
	uu, vv, uv := r3.Dot(u, u), r3.Dot(v, v), r3.Dot(u, v)
	c := uu*vv - uv*uv

	// c = |u|²|v|² − (u·v)²
	du := r3.Sub(r3.Scale(2*vv, u), r3.Scale(2*uv, v))
	dv := r3.Sub(r3.Scale(2*uu, v), r3.Scale(2*uv, u))

	su := [4]float64{-1, 1, 0, 0}
	sv := [4]float64{0, 0, -1, 1}
	g := make([]float64, 12)
	for a := 0; a < 4; a++ {
		for i := 0; i < 3; i++ {
			g[3*a+i] = su[a]*comp(du, i) + sv[a]*comp(dv, i)
		}
	}

	var huu, hvv, huv [3][3]float64
	for i := 0; i < 3; i++ {
		ui, vi := comp(u, i), comp(v, i)
		for j := 0; j < 3; j++ {
			uj, vj := comp(u, j), comp(v, j)
			huu[i][j] = -2 * vi * vj
			hvv[i][j] = -2 * ui * uj
			huv[i][j] = 4*ui*vj - 2*vi*uj
		}
		huu[i][i] += 2 * vv
		hvv[i][i] += 2 * uu
		huv[i][i] -= 2 * uv
	}

	h := make([]float64, 144)
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					h[(3*a+i)*12+3*b+j] = su[a]*su[b]*huu[i][j] +
						su[a]*sv[b]*huv[i][j] +
						sv[a]*su[b]*huv[j][i] +
						sv[a]*sv[b]*hvv[i][j]
				}
			}
		}
	}
	return c, g, h
}

// Mollifier is (2 − c/eps)·c/eps below eps and 1 otherwise. It returns the
// value with its first and second derivatives in c.
func Mollifier(c, eps float64) (float64, float64, float64) {
	if c >= eps {
		return 1, 0, 0
	}
	r := c / eps
	return (2 - r) * r, 2 * (1 - r) / eps, -2 / (eps * eps)
}
