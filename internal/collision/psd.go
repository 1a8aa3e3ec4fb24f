package collision

import (
	"gonum.org/v1/gonum/mat"
)

// projectPSD clamps the negative eigenvalues of the symmetric n×n row-major
// block h to zero in place.
func projectPSD(h []float64, n int) {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(h[i*n+j]+h[j*n+i]))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return
	}
	vals := eig.Values(nil)
	negative := false
	for i, v := range vals {
		if v < 0 {
			vals[i] = 0
			negative = true
		}
	}
	if !negative {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				h[i*n+j] = sym.At(i, j)
			}
		}
		return
	}
	var q mat.Dense
	eig.VectorsTo(&q)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s := 0.0
			for k, v := range vals {
				s += q.At(i, k) * v * q.At(j, k)
			}
			h[i*n+j] = s
		}
	}
}
