// Package dof maps between the full degree-of-freedom vector and the
// reduced vector with Dirichlet (boundary) entries removed.
package dof

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/contactsim/internal/sparse"
)

var (
	// ErrSizeMismatch indicates a vector whose length does not match the reducer.
	ErrSizeMismatch = errors.New("dof: vector size mismatch")

	// ErrBoundaryIndex indicates a boundary index outside the full vector.
	ErrBoundaryIndex = errors.New("dof: boundary index out of range")
)

// Reducer holds the boundary index set. It is immutable after construction;
// a changed boundary set requires a new Reducer.
type Reducer struct {
	fullSize   int
	boundary   []int
	isBoundary []bool
	free       []int
}

// NewReducer builds a reducer for a full vector of fullSize entries.
// Boundary indices are sorted and deduplicated.
func NewReducer(fullSize int, boundary []int) (*Reducer, error) {
	if fullSize < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrSizeMismatch, fullSize)
	}

	r := &Reducer{
		fullSize:   fullSize,
		isBoundary: make([]bool, fullSize),
	}
	for _, b := range boundary {
		if b < 0 || b >= fullSize {
			return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrBoundaryIndex, b, fullSize)
		}
		r.isBoundary[b] = true
	}

	r.boundary = make([]int, 0, len(boundary))
	r.free = make([]int, 0, fullSize-len(boundary))
	for i, isB := range r.isBoundary {
		if isB {
			r.boundary = append(r.boundary, i)
		} else {
			r.free = append(r.free, i)
		}
	}
	return r, nil
}

func (r *Reducer) FullSize() int    { return r.fullSize }
func (r *Reducer) ReducedSize() int { return len(r.free) }

// Boundary returns the sorted boundary indices.
func (r *Reducer) Boundary() []int { return r.boundary }

// Free returns the full index of every reduced entry, in order.
func (r *Reducer) Free() []int { return r.free }

func (r *Reducer) IsBoundary(i int) bool { return r.isBoundary[i] }

// ToReduced drops the boundary entries of full.
func (r *Reducer) ToReduced(full []float64) ([]float64, error) {
	if len(full) != r.fullSize {
		return nil, fmt.Errorf("%w: full vector has %d entries, want %d", ErrSizeMismatch, len(full), r.fullSize)
	}
	out := make([]float64, len(r.free))
	for k, i := range r.free {
		out[k] = full[i]
	}
	return out, nil
}

// ToFull reinserts boundary entries as zero.
func (r *Reducer) ToFull(reduced []float64) ([]float64, error) {
	return r.ToFullWith(reduced, nil)
}

// ToFullWith reinserts boundary entries taken from prescribed, a full-size
// vector. A nil prescribed vector inserts zeros.
func (r *Reducer) ToFullWith(reduced, prescribed []float64) ([]float64, error) {
	if len(reduced) != len(r.free) {
		return nil, fmt.Errorf("%w: reduced vector has %d entries, want %d", ErrSizeMismatch, len(reduced), len(r.free))
	}
	if prescribed != nil && len(prescribed) != r.fullSize {
		return nil, fmt.Errorf("%w: prescribed vector has %d entries, want %d", ErrSizeMismatch, len(prescribed), r.fullSize)
	}
	out := make([]float64, r.fullSize)
	for k, i := range r.free {
		out[i] = reduced[k]
	}
	if prescribed != nil {
		for _, b := range r.boundary {
			out[b] = prescribed[b]
		}
	}
	return out, nil
}

// ReduceMatrix removes boundary rows and columns.
func (r *Reducer) ReduceMatrix(h *sparse.Matrix) (*sparse.Matrix, error) {
	m, n := h.Dims()
	if m != r.fullSize || n != r.fullSize {
		return nil, fmt.Errorf("%w: matrix is %dx%d, want %dx%d", ErrSizeMismatch, m, n, r.fullSize, r.fullSize)
	}
	return h.Select(r.free), nil
}

// NodeBoundary expands node indices into DOF indices for dim components per node.
func NodeBoundary(nodes []int, dim int) []int {
	out := make([]int, 0, len(nodes)*dim)
	for _, n := range nodes {
		for d := 0; d < dim; d++ {
			out = append(out, n*dim+d)
		}
	}
	sort.Ints(out)
	return out
}
