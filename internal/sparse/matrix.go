// Package sparse assembles the compressed sparse row matrices used for
// objective Hessians. Products and element access go through
// github.com/james-bowman/sparse so a Hessian can be handed to any
// gonum mat.Matrix consumer.
package sparse

import (
	"errors"
	"fmt"
	"sort"

	csr "github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// ErrShape indicates incompatible matrix dimensions.
var ErrShape = errors.New("sparse: dimension mismatch")

// Triplet collects (i, j, x) entries. Duplicates are summed on conversion.
type Triplet struct {
	m, n int
	i, j []int
	x    []float64
}

func NewTriplet(m, n, capacity int) *Triplet {
	return &Triplet{
		m: m,
		n: n,
		i: make([]int, 0, capacity),
		j: make([]int, 0, capacity),
		x: make([]float64, 0, capacity),
	}
}

func (t *Triplet) Dims() (int, int) { return t.m, t.n }
func (t *Triplet) Len() int         { return len(t.x) }

func (t *Triplet) Put(i, j int, x float64) {
	if i < 0 || i >= t.m || j < 0 || j >= t.n {
		panic(fmt.Sprintf("sparse: index (%d,%d) out of range %dx%d", i, j, t.m, t.n))
	}
	t.i = append(t.i, i)
	t.j = append(t.j, j)
	t.x = append(t.x, x)
}

// Reset drops all entries and keeps the allocated capacity.
func (t *Triplet) Reset() {
	t.i = t.i[:0]
	t.j = t.j[:0]
	t.x = t.x[:0]
}

// ToMatrix converts to CSR, summing duplicate entries.
func (t *Triplet) ToMatrix() *Matrix {
	counts := make([]int, t.m+1)
	for _, r := range t.i {
		counts[r+1]++
	}
	for r := 0; r < t.m; r++ {
		counts[r+1] += counts[r]
	}

	cols := make([]int, len(t.x))
	vals := make([]float64, len(t.x))
	next := make([]int, t.m)
	copy(next, counts[:t.m])
	for k, r := range t.i {
		p := next[r]
		cols[p] = t.j[k]
		vals[p] = t.x[k]
		next[r]++
	}

	rowPtr := make([]int, t.m+1)
	outCols := make([]int, 0, len(cols))
	outVals := make([]float64, 0, len(vals))
	for r := 0; r < t.m; r++ {
		lo, hi := counts[r], counts[r+1]
		sort.Sort(rowSorter{cols[lo:hi], vals[lo:hi]})
		for p := lo; p < hi; p++ {
			last := len(outCols) - 1
			if last >= rowPtr[r] && outCols[last] == cols[p] {
				outVals[last] += vals[p]
				continue
			}
			outCols = append(outCols, cols[p])
			outVals = append(outVals, vals[p])
		}
		rowPtr[r+1] = len(outCols)
	}
	return newMatrix(t.m, t.n, rowPtr, outCols, outVals)
}

type rowSorter struct {
	cols []int
	vals []float64
}

func (s rowSorter) Len() int           { return len(s.cols) }
func (s rowSorter) Less(a, b int) bool { return s.cols[a] < s.cols[b] }
func (s rowSorter) Swap(a, b int) {
	s.cols[a], s.cols[b] = s.cols[b], s.cols[a]
	s.vals[a], s.vals[b] = s.vals[b], s.vals[a]
}

// Matrix is a CSR matrix with sorted, unique column indices per row. The
// index arrays are shared with the wrapped *csr.CSR.
type Matrix struct {
	m, n   int
	rowPtr []int
	cols   []int
	vals   []float64
	csr    *csr.CSR
}

func newMatrix(m, n int, rowPtr, cols []int, vals []float64) *Matrix {
	a := &Matrix{m: m, n: n, rowPtr: rowPtr, cols: cols, vals: vals}
	if m > 0 && n > 0 {
		a.csr = csr.NewCSR(m, n, rowPtr, cols, vals)
	}
	return a
}

// Zero returns an empty m×n matrix.
func Zero(m, n int) *Matrix {
	return newMatrix(m, n, make([]int, m+1), nil, nil)
}

func (a *Matrix) Dims() (int, int) { return a.m, a.n }
func (a *Matrix) NNZ() int         { return len(a.vals) }

// CSR exposes the matrix as a gonum mat.Matrix. It is nil for matrices
// with a zero dimension.
func (a *Matrix) CSR() *csr.CSR { return a.csr }

// At returns the (i, j) entry, zero when it is not stored.
func (a *Matrix) At(i, j int) float64 {
	if i < 0 || i >= a.m || j < 0 || j >= a.n {
		panic(fmt.Sprintf("sparse: index (%d,%d) out of range %dx%d", i, j, a.m, a.n))
	}
	return a.csr.At(i, j)
}

// Diagonal returns the main diagonal of a square matrix.
func (a *Matrix) Diagonal() []float64 {
	if a.m != a.n {
		panic(ErrShape)
	}
	d := make([]float64, a.n)
	for i := range d {
		d[i] = a.csr.At(i, i)
	}
	return d
}

// Do calls fn for every stored entry in row-major order.
func (a *Matrix) Do(fn func(i, j int, v float64)) {
	if a.csr == nil {
		return
	}
	a.csr.DoNonZero(fn)
}

// MulVec computes dst = A x.
func (a *Matrix) MulVec(dst, x []float64) {
	if len(x) != a.n || len(dst) != a.m {
		panic(ErrShape)
	}
	for i := range dst {
		dst[i] = 0
	}
	if a.csr == nil {
		return
	}
	a.csr.MulVecTo(dst, false, x)
}

// Scale returns alpha·A.
func (a *Matrix) Scale(alpha float64) *Matrix {
	out := a.Clone()
	for k := range out.vals {
		out.vals[k] *= alpha
	}
	return out
}

func (a *Matrix) Clone() *Matrix {
	return newMatrix(a.m, a.n,
		append([]int(nil), a.rowPtr...),
		append([]int(nil), a.cols...),
		append([]float64(nil), a.vals...))
}

// Add returns A + B. The patterns may differ; the result holds their union.
func (a *Matrix) Add(b *Matrix) (*Matrix, error) {
	return a.AddScaled(1, b)
}

// AddScaled returns A + alpha·B over the union of both sparsity patterns.
func (a *Matrix) AddScaled(alpha float64, b *Matrix) (*Matrix, error) {
	if a.m != b.m || a.n != b.n {
		return nil, fmt.Errorf("%w: %dx%d + %dx%d", ErrShape, a.m, a.n, b.m, b.n)
	}
	out := &Matrix{
		m:      a.m,
		n:      a.n,
		rowPtr: make([]int, a.m+1),
		cols:   make([]int, 0, len(a.cols)+len(b.cols)),
		vals:   make([]float64, 0, len(a.vals)+len(b.vals)),
	}
	for r := 0; r < a.m; r++ {
		p, pe := a.rowPtr[r], a.rowPtr[r+1]
		q, qe := b.rowPtr[r], b.rowPtr[r+1]
		for p < pe || q < qe {
			switch {
			case q >= qe || (p < pe && a.cols[p] < b.cols[q]):
				out.cols = append(out.cols, a.cols[p])
				out.vals = append(out.vals, a.vals[p])
				p++
			case p >= pe || b.cols[q] < a.cols[p]:
				out.cols = append(out.cols, b.cols[q])
				out.vals = append(out.vals, alpha*b.vals[q])
				q++
			default:
				out.cols = append(out.cols, a.cols[p])
				out.vals = append(out.vals, a.vals[p]+alpha*b.vals[q])
				p++
				q++
			}
		}
		out.rowPtr[r+1] = len(out.cols)
	}
	return newMatrix(out.m, out.n, out.rowPtr, out.cols, out.vals), nil
}

// Select returns the principal submatrix on the given sorted row/column
// indices. keep[k] is the original index of the k-th retained index.
func (a *Matrix) Select(keep []int) *Matrix {
	remap := make([]int, a.n)
	for i := range remap {
		remap[i] = -1
	}
	for k, idx := range keep {
		remap[idx] = k
	}
	out := &Matrix{m: len(keep), n: len(keep), rowPtr: make([]int, len(keep)+1)}
	for k, r := range keep {
		for p := a.rowPtr[r]; p < a.rowPtr[r+1]; p++ {
			if c := remap[a.cols[p]]; c >= 0 {
				out.cols = append(out.cols, c)
				out.vals = append(out.vals, a.vals[p])
			}
		}
		out.rowPtr[k+1] = len(out.cols)
	}
	return newMatrix(out.m, out.n, out.rowPtr, out.cols, out.vals)
}

// ToSymDense expands a square matrix into a dense symmetric matrix using
// the average of (i, j) and (j, i).
func (a *Matrix) ToSymDense() *mat.SymDense {
	if a.m != a.n {
		panic(ErrShape)
	}
	dense := make([]float64, a.n*a.n)
	a.Do(func(i, j int, v float64) {
		dense[i*a.n+j] += 0.5 * v
		dense[j*a.n+i] += 0.5 * v
	})
	return mat.NewSymDense(a.n, dense)
}
