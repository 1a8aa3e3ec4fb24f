package geometry

import "gonum.org/v1/gonum/spatial/r3"

// The squared distance of every classified pair is min over θ of |Σ wᵢ(θ) xᵢ|²
// with weights affine in θ: wᵢ = aᵢ + Σⱼ Bᵢⱼ θⱼ. At the optimum the gradient is
// the partial in x and the Hessian is f_xx − f_xθ f_θθ⁻¹ f_θx.
type affineForm struct {
	a []float64
	b [][2]float64
	k int
}

var affineForms = [...]affineForm{
	PointPoint:    {a: []float64{1, -1}, b: [][2]float64{{}, {}}, k: 0},
	PointEdge:     {a: []float64{1, -1, 0}, b: [][2]float64{{0, 0}, {1, 0}, {-1, 0}}, k: 1},
	PointTriangle: {a: []float64{1, -1, 0, 0}, b: [][2]float64{{0, 0}, {1, 1}, {-1, 0}, {0, -1}}, k: 2},
	EdgeEdge:      {a: []float64{1, 0, -1, 0}, b: [][2]float64{{-1, 0}, {1, 0}, {0, 1}, {0, -1}}, k: 2},
}

// DistanceSqGradient returns the squared distance and its gradient with
// respect to the 3n stacked vertex coordinates.
func DistanceSqGradient(t DistanceType, x []r3.Vec) (float64, []float64) {
	s, g, _ := closest(t, x, true, false)
	return s, g
}

// DistanceSqHessian returns the squared distance, gradient and the 3n×3n
// row-major Hessian.
func DistanceSqHessian(t DistanceType, x []r3.Vec) (float64, []float64, []float64) {
	return closest(t, x, true, true)
}

func comp(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func closest(t DistanceType, x []r3.Vec, wantGrad, wantHess bool) (float64, []float64, []float64) {
	f := affineForms[t]
	n := len(x)
	if n != len(f.a) {
		panic("geometry: wrong vertex count for " + t.String())
	}

	var r0 r3.Vec
	var d [2]r3.Vec
	for i := 0; i < n; i++ {
		r0 = r3.Add(r0, r3.Scale(f.a[i], x[i]))
		for j := 0; j < f.k; j++ {
			d[j] = r3.Add(d[j], r3.Scale(f.b[i][j], x[i]))
		}
	}

	// A θ = -Dᵀ r0 with A = DᵀD.
	var A [2][2]float64
	var inv [2][2]float64
	var theta [2]float64
	k := f.k
	switch k {
	case 1:
		A[0][0] = r3.Dot(d[0], d[0])
		if A[0][0] > 0 {
			inv[0][0] = 1 / A[0][0]
			theta[0] = -r3.Dot(d[0], r0) * inv[0][0]
		} else {
			k = 0
		}
	case 2:
		A[0][0] = r3.Dot(d[0], d[0])
		A[0][1] = r3.Dot(d[0], d[1])
		A[1][1] = r3.Dot(d[1], d[1])
		A[1][0] = A[0][1]
		det := A[0][0]*A[1][1] - A[0][1]*A[0][1]
		if det > 1e-300 {
			inv[0][0] = A[1][1] / det
			inv[1][1] = A[0][0] / det
			inv[0][1] = -A[0][1] / det
			inv[1][0] = inv[0][1]
			rhs0, rhs1 := -r3.Dot(d[0], r0), -r3.Dot(d[1], r0)
			theta[0] = inv[0][0]*rhs0 + inv[0][1]*rhs1
			theta[1] = inv[1][0]*rhs0 + inv[1][1]*rhs1
		} else {
			k = 0
		}
	}

	w := make([]float64, n)
	var r r3.Vec
	for i := 0; i < n; i++ {
		w[i] = f.a[i]
		for j := 0; j < k; j++ {
			w[i] += f.b[i][j] * theta[j]
		}
		r = r3.Add(r, r3.Scale(w[i], x[i]))
	}
	s := r3.Norm2(r)
	if !wantGrad {
		return s, nil, nil
	}

	m := 3 * n
	grad := make([]float64, m)
	for i := 0; i < n; i++ {
		grad[3*i] = 2 * w[i] * r.X
		grad[3*i+1] = 2 * w[i] * r.Y
		grad[3*i+2] = 2 * w[i] * r.Z
	}
	if !wantHess {
		return s, grad, nil
	}

	hess := make([]float64, m*m)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := 2 * w[i] * w[j]
			for a := 0; a < 3; a++ {
				hess[(3*i+a)*m+3*j+a] = v
			}
		}
	}
	if k == 0 {
		return s, grad, hess
	}

	// f_xθ column j at (i, α): 2 (wᵢ Dⱼ[α] + Bᵢⱼ r[α]); f_θθ = 2A.
	cross := make([][2]float64, m)
	for i := 0; i < n; i++ {
		for a := 0; a < 3; a++ {
			for j := 0; j < k; j++ {
				cross[3*i+a][j] = 2 * (w[i]*comp(d[j], a) + f.b[i][j]*comp(r, a))
			}
		}
	}
	for p := 0; p < m; p++ {
		for q := 0; q < m; q++ {
			corr := 0.0
			for j := 0; j < k; j++ {
				for l := 0; l < k; l++ {
					corr += cross[p][j] * 0.5 * inv[j][l] * cross[q][l]
				}
			}
			hess[p*m+q] -= corr
		}
	}
	return s, grad, hess
}
