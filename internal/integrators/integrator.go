// Package integrators implements the implicit time integrators that feed
// the inertia form with a predicted position and an acceleration scaling.
package integrators

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownIntegrator = errors.New("integrators: unknown integrator")
	ErrParameter         = errors.New("integrators: invalid parameter")
)

// TimeIntegrator advances x, v and a of one time step. The incremental
// potential of a step is ½/s·‖x−x̃‖²_M plus the remaining energies, with
// x̃ = XTilde() and s = AccelerationScaling().
type TimeIntegrator interface {
	Init(x0, v0, a0 []float64, dt float64) error
	XTilde() []float64
	AccelerationScaling() float64
	// Update accepts the solution x of the step.
	Update(x []float64)
	Position() []float64
	Velocity() []float64
	Acceleration() []float64
	Dt() float64
}

// state holds the history shared by the integrators.
type state struct {
	x, v, a []float64
	dt      float64
}

func (s *state) init(x0, v0, a0 []float64, dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("%w: dt %g", ErrParameter, dt)
	}
	if len(v0) != len(x0) || len(a0) != len(x0) {
		return fmt.Errorf("%w: x, v and a have %d, %d and %d entries", ErrParameter, len(x0), len(v0), len(a0))
	}
	s.x = append([]float64(nil), x0...)
	s.v = append([]float64(nil), v0...)
	s.a = append([]float64(nil), a0...)
	s.dt = dt
	return nil
}

func (s *state) Position() []float64     { return s.x }
func (s *state) Velocity() []float64     { return s.v }
func (s *state) Acceleration() []float64 { return s.a }
func (s *state) Dt() float64             { return s.dt }

// New resolves an integrator by name.
func New(name string) (TimeIntegrator, error) {
	switch name {
	case "implicit_euler":
		return NewImplicitEuler(), nil
	case "implicit_newmark", "":
		return NewImplicitNewmark(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownIntegrator, name)
}

func Names() []string {
	names := []string{"implicit_euler", "implicit_newmark"}
	sort.Strings(names)
	return names
}
