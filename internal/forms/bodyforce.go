package forms

import (
	"fmt"

	"github.com/san-kum/contactsim/internal/sparse"
)

// BodyForceForm is the potential −fᵀx of a constant external force, such
// as gravity acting on lumped masses.
type BodyForceForm struct {
	Base
	force []float64
}

// NewGravity builds the body force m·g for per-DOF masses and an
// acceleration with one entry per dimension.
func NewGravity(masses, accel []float64) (*BodyForceForm, error) {
	dim := len(accel)
	if dim == 0 || len(masses)%dim != 0 {
		return nil, fmt.Errorf("%w: %d masses for a %dD acceleration", ErrParameter, len(masses), dim)
	}
	f := make([]float64, len(masses))
	for i, m := range masses {
		f[i] = m * accel[i%dim]
	}
	return &BodyForceForm{Base: NewBase(), force: f}, nil
}

func (f *BodyForceForm) Name() string { return "body_force" }

func (f *BodyForceForm) Value(x []float64) float64 {
	v := 0.0
	for i, fi := range f.force {
		v -= fi * x[i]
	}
	return v
}

func (f *BodyForceForm) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i, fi := range f.force {
		g[i] = -fi
	}
	return g
}

func (f *BodyForceForm) Hessian(x []float64) *sparse.Matrix { return sparse.Zero(len(x), len(x)) }
