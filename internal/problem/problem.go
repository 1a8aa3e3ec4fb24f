// Package problem wraps the composite objective as a nonlinear problem
// over either the reduced DOFs (Dirichlet entries eliminated) or the full
// DOFs (Dirichlet conditions left to a penalty form).
package problem

import (
	"fmt"
	"math"

	"github.com/san-kum/contactsim/internal/dof"
	"github.com/san-kum/contactsim/internal/forms"
	"github.com/san-kum/contactsim/internal/sparse"
)

// targetSetter is implemented by forms that track the Dirichlet target.
type targetSetter interface {
	SetTarget(t []float64) error
}

// Problem evaluates the objective in the current space. Vectors passed to
// the plain methods are in the current space; the Full variants always
// take full vectors.
type Problem struct {
	objective *forms.Composite
	reducer   *dof.Reducer

	target   []float64
	boundary []float64

	fullSpace bool
	applyDBC  bool
}

func New(objective *forms.Composite, reducer *dof.Reducer) *Problem {
	return &Problem{
		objective: objective,
		reducer:   reducer,
		target:    make([]float64, reducer.FullSize()),
		boundary:  make([]float64, reducer.FullSize()),
		applyDBC:  true,
	}
}

func (p *Problem) Objective() *forms.Composite { return p.objective }
func (p *Problem) Forms() []forms.Form         { return p.objective.Forms() }
func (p *Problem) Reducer() *dof.Reducer       { return p.reducer }
func (p *Problem) FullSize() int               { return p.reducer.FullSize() }
func (p *Problem) ReducedSize() int            { return p.reducer.ReducedSize() }
func (p *Problem) IsFullSpace() bool           { return p.fullSpace }
func (p *Problem) ApplyDBC() bool              { return p.applyDBC }
func (p *Problem) Target() []float64           { return p.target }

// Size is the length of vectors in the current space.
func (p *Problem) Size() int {
	if p.fullSpace {
		return p.FullSize()
	}
	return p.ReducedSize()
}

// SetTarget sets the prescribed full displacement and forwards it to forms
// that track it.
func (p *Problem) SetTarget(t []float64) error {
	if len(t) != p.FullSize() {
		return fmt.Errorf("%w: target has %d entries, want %d", dof.ErrSizeMismatch, len(t), p.FullSize())
	}
	p.target = append(p.target[:0], t...)
	for _, f := range p.Forms() {
		if ts, ok := f.(targetSetter); ok {
			if err := ts.SetTarget(t); err != nil {
				return fmt.Errorf("form %s: %w", f.Name(), err)
			}
		}
	}
	return nil
}

func (p *Problem) UseFullSize()    { p.fullSpace = true }
func (p *Problem) UseReducedSize() { p.fullSpace = false }

// SetApplyDBC selects whether reduced vectors expand with the Dirichlet
// target or with the boundary values of the full vector x.
func (p *Problem) SetApplyDBC(x []float64, apply bool) error {
	if len(x) != p.FullSize() {
		return fmt.Errorf("%w: got %d entries, want %d", dof.ErrSizeMismatch, len(x), p.FullSize())
	}
	p.boundary = append(p.boundary[:0], x...)
	p.applyDBC = apply
	return nil
}

// FullToReduced maps a full vector into the current space.
func (p *Problem) FullToReduced(full []float64) ([]float64, error) {
	if p.fullSpace {
		if len(full) != p.FullSize() {
			return nil, fmt.Errorf("%w: got %d entries, want %d", dof.ErrSizeMismatch, len(full), p.FullSize())
		}
		return append([]float64(nil), full...), nil
	}
	return p.reducer.ToReduced(full)
}

// ReducedToFull maps a current-space vector to the full space.
func (p *Problem) ReducedToFull(x []float64) ([]float64, error) {
	if p.fullSpace {
		if len(x) != p.FullSize() {
			return nil, fmt.Errorf("%w: got %d entries, want %d", dof.ErrSizeMismatch, len(x), p.FullSize())
		}
		return append([]float64(nil), x...), nil
	}
	if p.applyDBC {
		return p.reducer.ToFullWith(x, p.target)
	}
	return p.reducer.ToFullWith(x, p.boundary)
}

// full expands x. A size mismatch is a programming error.
func (p *Problem) full(x []float64) []float64 {
	f, err := p.ReducedToFull(x)
	if err != nil {
		panic(err)
	}
	return f
}

func (p *Problem) reduce(full []float64) []float64 {
	r, err := p.FullToReduced(full)
	if err != nil {
		panic(err)
	}
	return r
}

func (p *Problem) Value(x []float64) float64 { return p.objective.Value(p.full(x)) }

func (p *Problem) Gradient(x []float64) []float64 {
	return p.reduce(p.objective.Gradient(p.full(x)))
}

func (p *Problem) Hessian(x []float64) (*sparse.Matrix, error) {
	h, err := p.objective.Hessian(p.full(x))
	if err != nil || p.fullSpace {
		return h, err
	}
	return p.reducer.ReduceMatrix(h)
}

func (p *Problem) enabled() []forms.Form {
	var out []forms.Form
	for _, f := range p.Forms() {
		if f.Enabled() {
			out = append(out, f)
		}
	}
	return out
}

// Init resets form caches at the full vector x.
func (p *Problem) Init(x []float64) {
	for _, f := range p.Forms() {
		if in, ok := f.(forms.Initializer); ok {
			in.Init(x)
		}
	}
}

func (p *Problem) SolutionChanged(x []float64) {
	full := p.full(x)
	for _, f := range p.Forms() {
		if so, ok := f.(forms.SolutionObserver); ok {
			so.SolutionChanged(full)
		}
	}
}

func (p *Problem) PostStep(x []float64) {
	full := p.full(x)
	for _, f := range p.enabled() {
		if ps, ok := f.(forms.PostStepper); ok {
			ps.PostStep(full)
		}
	}
}

func (p *Problem) LineSearchBegin(x0, x1 []float64) {
	p.LineSearchBeginFull(p.full(x0), p.full(x1))
}

func (p *Problem) LineSearchBeginFull(x0, x1 []float64) {
	for _, f := range p.Forms() {
		if ls, ok := f.(forms.LineSearcher); ok {
			ls.LineSearchBegin(x0, x1)
		}
	}
}

func (p *Problem) LineSearchEnd() {
	for _, f := range p.Forms() {
		if ls, ok := f.(forms.LineSearcher); ok {
			ls.LineSearchEnd()
		}
	}
}

// MaxStepSize is the smallest step bound over the enabled forms, at most 1.
func (p *Problem) MaxStepSize(x0, x1 []float64) (float64, error) {
	full0, full1 := p.full(x0), p.full(x1)
	step := 1.0
	for _, f := range p.enabled() {
		if sl, ok := f.(forms.StepLimiter); ok {
			s, err := sl.MaxStepSize(full0, full1)
			if err != nil {
				return 0, fmt.Errorf("form %s: %w", f.Name(), err)
			}
			step = math.Min(step, s)
		}
	}
	return step, nil
}

func (p *Problem) IsStepValid(x0, x1 []float64) bool {
	return p.IsStepValidFull(p.full(x0), p.full(x1))
}

func (p *Problem) IsStepValidFull(x0, x1 []float64) bool {
	for _, f := range p.enabled() {
		if sv, ok := f.(forms.StepValidator); ok && !sv.IsStepValid(x0, x1) {
			return false
		}
	}
	return true
}

func (p *Problem) IsStepCollisionFree(x0, x1 []float64) bool {
	return p.IsStepCollisionFreeFull(p.full(x0), p.full(x1))
}

func (p *Problem) IsStepCollisionFreeFull(x0, x1 []float64) bool {
	for _, f := range p.enabled() {
		if cc, ok := f.(forms.CollisionChecker); ok && !cc.IsStepCollisionFree(x0, x1) {
			return false
		}
	}
	return true
}

// ValueFull evaluates the objective at a full vector.
func (p *Problem) ValueFull(x []float64) float64 { return p.objective.Value(x) }

// UpdateQuantities refreshes time-dependent coefficients at the full x.
func (p *Problem) UpdateQuantities(t float64, x []float64) {
	for _, f := range p.Forms() {
		if qu, ok := f.(forms.QuantityUpdater); ok {
			qu.UpdateQuantities(t, x)
		}
	}
}

// UpdateBarrierStiffness lets stiffness-adapting forms balance themselves
// against the weighted gradient of every other enabled form at the full x.
func (p *Problem) UpdateBarrierStiffness(x []float64) error {
	if len(x) != p.FullSize() {
		return fmt.Errorf("%w: got %d entries, want %d", dof.ErrSizeMismatch, len(x), p.FullSize())
	}
	var adapters []forms.StiffnessAdapter
	grad := make([]float64, len(x))
	for _, f := range p.enabled() {
		if sa, ok := f.(forms.StiffnessAdapter); ok {
			adapters = append(adapters, sa)
			continue
		}
		w := f.Weight()
		if w == 0 {
			continue
		}
		for i, g := range f.Gradient(x) {
			grad[i] += w * g
		}
	}
	for _, sa := range adapters {
		sa.UpdateBarrierStiffness(x, grad)
	}
	return nil
}
