package forms

import (
	"fmt"

	"github.com/san-kum/contactsim/internal/sparse"
)

// ALForm penalises the violation of Dirichlet conditions,
// ½·κ·Σ_{i∈B} mᵢ(xᵢ−tᵢ)², while the boundary DOFs are free variables.
// It is disabled until a continuation solve enables it.
type ALForm struct {
	Base
	boundary []int
	masses   []float64
	penalty  float64
	target   []float64
}

// NewALForm builds the penalty over the full-space boundary DOF indices.
// masses has one entry per full DOF.
func NewALForm(boundary []int, masses []float64, penalty float64) (*ALForm, error) {
	if penalty <= 0 {
		return nil, fmt.Errorf("%w: AL penalty %g", ErrParameter, penalty)
	}
	for _, i := range boundary {
		if i < 0 || i >= len(masses) {
			return nil, fmt.Errorf("%w: boundary DOF %d", ErrParameter, i)
		}
	}
	f := &ALForm{
		Base:     NewBase(),
		boundary: boundary,
		masses:   masses,
		penalty:  penalty,
		target:   make([]float64, len(masses)),
	}
	f.Disable()
	return f, nil
}

func (f *ALForm) Name() string { return "augmented_lagrangian" }

// SetTarget sets the prescribed full displacement; only boundary entries
// are read.
func (f *ALForm) SetTarget(t []float64) error {
	if len(t) != len(f.masses) {
		return fmt.Errorf("%w: target has %d entries, want %d", ErrParameter, len(t), len(f.masses))
	}
	f.target = append(f.target[:0], t...)
	return nil
}

func (f *ALForm) Target() []float64 { return f.target }

func (f *ALForm) Value(x []float64) float64 {
	v := 0.0
	for _, i := range f.boundary {
		d := x[i] - f.target[i]
		v += f.masses[i] * d * d
	}
	return 0.5 * f.penalty * v
}

func (f *ALForm) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for _, i := range f.boundary {
		g[i] = f.penalty * f.masses[i] * (x[i] - f.target[i])
	}
	return g
}

func (f *ALForm) Hessian(x []float64) *sparse.Matrix {
	t := sparse.NewTriplet(len(x), len(x), len(f.boundary))
	for _, i := range f.boundary {
		t.Put(i, i, f.penalty*f.masses[i])
	}
	return t.ToMatrix()
}
