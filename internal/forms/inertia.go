package forms

import (
	"fmt"

	"github.com/san-kum/contactsim/internal/sparse"
)

// InertiaForm is ½/s·(x−x̃)ᵀM(x−x̃) with a lumped (diagonal) mass matrix.
// x̃ and s come from the time integrator.
type InertiaForm struct {
	Base
	masses  []float64
	xTilde  []float64
	scaling float64
}

func NewInertiaForm(masses []float64) *InertiaForm {
	return &InertiaForm{
		Base:    NewBase(),
		masses:  masses,
		xTilde:  make([]float64, len(masses)),
		scaling: 1,
	}
}

func (f *InertiaForm) Name() string { return "inertia" }

// SetPrediction updates the predicted position and acceleration scaling.
func (f *InertiaForm) SetPrediction(xTilde []float64, scaling float64) error {
	if len(xTilde) != len(f.masses) {
		return fmt.Errorf("%w: prediction has %d entries, want %d", ErrParameter, len(xTilde), len(f.masses))
	}
	if scaling <= 0 {
		return fmt.Errorf("%w: acceleration scaling %g", ErrParameter, scaling)
	}
	f.xTilde = append(f.xTilde[:0], xTilde...)
	f.scaling = scaling
	return nil
}

func (f *InertiaForm) Value(x []float64) float64 {
	v := 0.0
	for i, m := range f.masses {
		d := x[i] - f.xTilde[i]
		v += m * d * d
	}
	return 0.5 * v / f.scaling
}

func (f *InertiaForm) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i, m := range f.masses {
		g[i] = m * (x[i] - f.xTilde[i]) / f.scaling
	}
	return g
}

func (f *InertiaForm) Hessian(x []float64) *sparse.Matrix {
	t := sparse.NewTriplet(len(x), len(x), len(f.masses))
	for i, m := range f.masses {
		t.Put(i, i, m/f.scaling)
	}
	return t.ToMatrix()
}
