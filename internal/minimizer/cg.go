package minimizer

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/contactsim/internal/sparse"
)

// conjugateGradient solves (H + shift·I)·d = b from d = 0 with a Jacobi
// preconditioner. ok is false on non-positive curvature or when the
// residual does not reach tol·‖b‖ within maxIter iterations.
func conjugateGradient(h *sparse.Matrix, b []float64, shift, tol float64, maxIter int) ([]float64, bool) {
	size := len(b)
	x := make([]float64, size)
	bNorm := floats.Norm(b, 2)
	if bNorm == 0 {
		return x, true
	}

	inv := h.Diagonal()
	for i, d := range inv {
		if d += shift; d > 0 {
			inv[i] = 1 / d
		} else {
			inv[i] = 1
		}
	}

	r := append([]float64(nil), b...)
	z := make([]float64, size)
	floats.MulTo(z, inv, r)
	p := append([]float64(nil), z...)
	hp := make([]float64, size)
	rz := floats.Dot(r, z)

	for k := 0; k < maxIter; k++ {
		h.MulVec(hp, p)
		if shift != 0 {
			floats.AddScaled(hp, shift, p)
		}
		curv := floats.Dot(p, hp)
		if !(curv > 0) || math.IsInf(curv, 0) {
			return x, false
		}
		alpha := rz / curv
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, hp)
		if floats.Norm(r, 2) <= tol*bNorm {
			return x, true
		}

		floats.MulTo(z, inv, r)
		rzNext := floats.Dot(r, z)
		floats.AddScaledTo(p, z, rzNext/rz, p)
		rz = rzNext
	}
	return x, false
}

func cgIterations(size int) int { return 2*size + 20 }
