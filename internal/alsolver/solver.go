// Package alsolver implements the augmented Lagrangian continuation that
// drives an unconstrained minimizer until boundary conditions can be imposed
// exactly on a finite, valid and collision-free configuration.
package alsolver

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"github.com/san-kum/contactsim/internal/forms"
	"github.com/san-kum/contactsim/internal/minimizer"
)

// Problem is the nonlinear problem the solver switches between full and
// reduced operation.
type Problem interface {
	minimizer.Problem

	Objective() *forms.Composite
	FullSize() int
	FullToReduced(full []float64) ([]float64, error)
	ReducedToFull(x []float64) ([]float64, error)
	UseFullSize()
	UseReducedSize()
	SetApplyDBC(x []float64, apply bool) error

	Init(x []float64)
	ValueFull(x []float64) float64
	LineSearchBeginFull(x0, x1 []float64)
	IsStepValidFull(x0, x1 []float64) bool
	IsStepCollisionFreeFull(x0, x1 []float64) bool
	UpdateBarrierStiffness(x []float64) error
}

type Phase int

const (
	Escalating Phase = iota
	Converged
	FinalSolve
)

func (p Phase) String() string {
	switch p {
	case Escalating:
		return "escalating"
	case Converged:
		return "converged"
	case FinalSolve:
		return "final_solve"
	}
	return "unknown"
}

type Options struct {
	// InitialWeight in (0,1] scales the ordinary forms on the first
	// escalation; the AL form gets 1 minus it.
	InitialWeight float64
	// Scaling in (0,1) multiplies the weight after every escalation.
	Scaling  float64
	MaxSteps int
}

func DefaultOptions() Options {
	return Options{InitialWeight: 0.5, Scaling: 0.5, MaxSteps: 20}
}

func (o Options) Validate() error {
	if o.InitialWeight <= 0 || o.InitialWeight > 1 {
		return fmt.Errorf("%w: initial weight %g not in (0,1]", ErrOptions, o.InitialWeight)
	}
	if o.Scaling <= 0 || o.Scaling >= 1 {
		return fmt.Errorf("%w: scaling %g not in (0,1)", ErrOptions, o.Scaling)
	}
	if o.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps %d", ErrOptions, o.MaxSteps)
	}
	return nil
}

type Option func(*Solver)

func WithLogger(log logr.Logger) Option {
	return func(s *Solver) { s.log = log }
}

// WithPostSubsolve registers a callback invoked with the AL weight after
// every escalation and with 0 after the final solve.
func WithPostSubsolve(fn func(weight float64)) Option {
	return func(s *Solver) { s.postSubsolve = fn }
}

// WithStiffnessUpdate replaces the barrier stiffness refresh run before
// every minimization. The default asks the problem.
func WithStiffnessUpdate(fn func(p Problem, x []float64) error) Option {
	return func(s *Solver) { s.updateStiffness = fn }
}

// Report summarises one solve.
type Report struct {
	ALSteps   int
	Weight    float64
	Subsolves []*minimizer.Result
	Final     *minimizer.Result
}

type Solver struct {
	min    minimizer.Minimizer
	alForm forms.Form
	opts   Options
	log    logr.Logger

	postSubsolve    func(float64)
	updateStiffness func(Problem, []float64) error

	phase Phase
}

func New(min minimizer.Minimizer, alForm forms.Form, opts Options, options ...Option) (*Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if min == nil || alForm == nil {
		return nil, fmt.Errorf("%w: minimizer and AL form are required", ErrOptions)
	}
	s := &Solver{
		min:          min,
		alForm:       alForm,
		opts:         opts,
		log:          logr.Discard(),
		postSubsolve: func(float64) {},
		updateStiffness: func(p Problem, x []float64) error {
			return p.UpdateBarrierStiffness(x)
		},
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

func (s *Solver) Phase() Phase     { return s.phase }
func (s *Solver) Options() Options { return s.opts }

// Solve overwrites the full vector sol with the solution. forceAL runs at
// least one penalised sub-solve even if sol is already admissible.
func (s *Solver) Solve(p Problem, sol []float64, forceAL bool) (*Report, error) {
	if len(sol) != p.FullSize() {
		return nil, fmt.Errorf("%w: got %d entries, want %d", ErrSize, len(sol), p.FullSize())
	}
	s.phase = Escalating

	tmp, err := p.FullToReduced(sol)
	if err != nil {
		return nil, err
	}
	initial := p.Objective().Weights()

	report := &Report{}
	weight := s.opts.InitialWeight
	steps := 0

	x1, err := p.ReducedToFull(tmp)
	if err != nil {
		return nil, err
	}
	p.LineSearchBeginFull(sol, x1)
	for forceAL || !isFinite(p.ValueFull(x1)) || !p.IsStepValidFull(sol, x1) || !p.IsStepCollisionFreeFull(sol, x1) {
		forceAL = false
		p.LineSearchEnd()

		if err := s.setWeight(p, sol, weight, initial); err != nil {
			return report, err
		}
		s.log.V(1).Info("solving AL problem", "weight", weight, "step", steps)

		p.Init(sol)
		if err := s.updateStiffness(p, sol); err != nil {
			return report, err
		}
		tmp = append(tmp[:0], sol...)
		res, err := s.min.Minimize(p, tmp)
		if err != nil {
			_ = s.setWeight(p, sol, -1, initial)
			return report, fmt.Errorf("AL sub-solve with weight %g: %w", weight, err)
		}
		report.Subsolves = append(report.Subsolves, res)
		copy(sol, tmp)

		if err := s.setWeight(p, sol, -1, initial); err != nil {
			return report, err
		}
		if tmp, err = p.FullToReduced(sol); err != nil {
			return report, err
		}
		if x1, err = p.ReducedToFull(tmp); err != nil {
			return report, err
		}
		p.LineSearchBeginFull(sol, x1)

		weight *= s.opts.Scaling
		if steps >= s.opts.MaxSteps {
			p.LineSearchEnd()
			err := &EscalationError{Weight: weight, Steps: steps + 1, MaxSteps: s.opts.MaxSteps}
			s.log.Error(err, "AL escalation exhausted")
			return report, err
		}

		s.postSubsolve(weight)
		steps++
	}
	p.LineSearchEnd()
	s.phase = Converged
	report.ALSteps = steps
	report.Weight = weight

	p.Init(sol)
	if err := s.updateStiffness(p, sol); err != nil {
		return report, err
	}
	res, err := s.min.Minimize(p, tmp)
	if err != nil {
		return report, fmt.Errorf("final solve: %w", err)
	}
	report.Final = res
	full, err := p.ReducedToFull(tmp)
	if err != nil {
		return report, err
	}
	copy(sol, full)

	s.phase = FinalSolve
	s.postSubsolve(0)
	return report, nil
}

// setWeight switches p into penalised full-space operation for weight > 0
// and restores the original weights and reduced operation otherwise.
func (s *Solver) setWeight(p Problem, x []float64, weight float64, initial []float64) error {
	objective := p.Objective()
	if weight > 0 {
		w := make([]float64, len(initial))
		for i, iw := range initial {
			w[i] = iw * weight
		}
		if err := objective.SetWeights(w); err != nil {
			return err
		}
		s.alForm.Enable()
		s.alForm.SetWeight(1 - weight)
		p.UseFullSize()
		return p.SetApplyDBC(x, false)
	}

	if err := objective.SetWeights(initial); err != nil {
		return err
	}
	s.alForm.Disable()
	p.UseReducedSize()
	return p.SetApplyDBC(x, true)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
