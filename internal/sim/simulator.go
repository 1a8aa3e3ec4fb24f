// Package sim drives the constrained solver through a scene: it ramps the
// Dirichlet targets, feeds the time integrator prediction to the inertia
// form and reports per-step metrics to observers.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/contactsim/internal/alsolver"
	"github.com/san-kum/contactsim/internal/contact"
	"github.com/san-kum/contactsim/internal/dof"
	"github.com/san-kum/contactsim/internal/forms"
	"github.com/san-kum/contactsim/internal/integrators"
	"github.com/san-kum/contactsim/internal/minimizer"
	"github.com/san-kum/contactsim/internal/problem"
	"github.com/san-kum/contactsim/internal/scene"
)

var ErrConfig = errors.New("sim: invalid configuration")

// Setup names the components a simulator is assembled from.
type Setup struct {
	Scene          *scene.Scene
	Material       string
	MaterialParams map[string]float64
	Contact        contact.Options
	AL             alsolver.Options
	ALPenalty      float64
	Newton         minimizer.Options
	Integrator     string
}

type Option func(*Simulator)

func WithLogger(log logr.Logger) Option {
	return func(s *Simulator) { s.log = log }
}

type Simulator struct {
	scene      *scene.Scene
	problem    *problem.Problem
	solver     *alsolver.Solver
	integrator integrators.TimeIntegrator
	inertia    *forms.InertiaForm
	contact    *contact.Form
	metrics    []Metric
	observers  []Observer
	log        logr.Logger
}

// New assembles the objective, the problem and the solver of setup.
// Unknown material or integrator names are configuration errors.
func New(setup Setup, options ...Option) (*Simulator, error) {
	s := &Simulator{scene: setup.Scene, log: logr.Discard()}
	for _, o := range options {
		o(s)
	}
	if setup.Scene == nil {
		return nil, fmt.Errorf("%w: no scene", ErrConfig)
	}
	sc := setup.Scene

	elastic, err := forms.NewEnergy(setup.Material, sc.Body, setup.MaterialParams)
	if err != nil {
		return nil, err
	}
	masses := sc.Masses()

	mesh, err := sc.CollisionMesh()
	if err != nil {
		return nil, err
	}
	copts := setup.Contact
	copts.AvgMass = mean(masses)
	copts.TimeDependent = !sc.Static
	s.contact, err = contact.NewForm(mesh, copts, contact.WithLogger(s.log.WithName("contact")))
	if err != nil {
		return nil, err
	}

	al, err := forms.NewALForm(sc.Boundary(), masses, setup.ALPenalty)
	if err != nil {
		return nil, err
	}

	objective := forms.NewComposite()
	if !sc.Static {
		s.integrator, err = integrators.New(setup.Integrator)
		if err != nil {
			return nil, err
		}
		s.inertia = forms.NewInertiaForm(masses)
		objective.Add(s.inertia)
	}
	objective.Add(elastic)
	if g := sc.GravityForce(); g != nil {
		gravity, err := forms.NewGravity(masses, g)
		if err != nil {
			return nil, err
		}
		objective.Add(gravity)
	}
	objective.Add(s.contact)
	objective.Add(al)

	reducer, err := dof.NewReducer(sc.Body.Size(), sc.Boundary())
	if err != nil {
		return nil, err
	}
	s.problem = problem.New(objective, reducer)

	newton, err := minimizer.NewNewton(setup.Newton, minimizer.WithLogger(s.log.WithName("newton")))
	if err != nil {
		return nil, err
	}
	s.solver, err = alsolver.New(newton, al, setup.AL, alsolver.WithLogger(s.log.WithName("al")))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Scene() *scene.Scene         { return s.scene }
func (s *Simulator) Problem() *problem.Problem   { return s.problem }
func (s *Simulator) Contact() *contact.Form      { return s.contact }
func (s *Simulator) Solver() *alsolver.Solver    { return s.solver }
func (s *Simulator) Static() bool                { return s.scene.Static }
func (s *Simulator) Objective() *forms.Composite { return s.problem.Objective() }

// NumSteps is the number of solves Run performs for cfg.
func (s *Simulator) NumSteps(cfg Config) int {
	if s.scene.Static {
		return 1
	}
	return int(math.Round(cfg.Duration / cfg.Dt))
}

func (s *Simulator) validateConfig(cfg Config) error {
	if s.scene.Static {
		return nil
	}
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrConfig, cfg.Duration)
	}
	return nil
}

// Run solves every step of cfg starting from the rest state. The context is
// checked between steps; a cancelled run returns the steps solved so far.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := s.NumSteps(cfg)
	result := &Result{
		States:  make([]State, 0, steps+1),
		Times:   make([]float64, 0, steps+1),
		Steps:   make([]Step, 0, steps),
		Metrics: make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	x := make(State, s.problem.FullSize())
	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, 0)

	if s.integrator != nil {
		zero := make([]float64, len(x))
		if err := s.integrator.Init(x, zero, zero, cfg.Dt); err != nil {
			return nil, err
		}
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		t, progress := 1.0, 1.0
		if !s.scene.Static {
			t = float64(i+1) * cfg.Dt
			progress = t / cfg.Duration
		}

		step, err := s.solveStep(i, t, progress, x, cfg.ForceAL && i == 0)
		if err != nil {
			return result, fmt.Errorf("step %d (t=%g): %w", i, t, err)
		}

		for _, m := range s.metrics {
			m.Observe(step, x)
		}
		for _, obs := range s.observers {
			obs.OnStep(step, x)
		}

		result.StepsTaken++
		result.Steps = append(result.Steps, step)
		result.States = append(result.States, x.Clone())
		result.Times = append(result.Times, t)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func (s *Simulator) solveStep(index int, t, progress float64, x State, forceAL bool) (Step, error) {
	if err := s.problem.SetTarget(s.scene.Target(progress)); err != nil {
		return Step{}, err
	}
	if s.integrator != nil {
		if err := s.inertia.SetPrediction(s.integrator.XTilde(), s.integrator.AccelerationScaling()); err != nil {
			return Step{}, err
		}
	}
	s.problem.UpdateQuantities(t, x)

	report, err := s.solver.Solve(s.problem, x, forceAL)
	if err != nil {
		return Step{}, err
	}
	if s.integrator != nil {
		s.integrator.Update(x)
	}

	step := Step{
		Index:     index,
		Time:      t,
		ALSteps:   report.ALSteps,
		Energy:    s.problem.ValueFull(x),
		Stiffness: s.contact.Stiffness(),
	}
	for _, r := range report.Subsolves {
		step.NewtonIterations += r.Iterations
	}
	if report.Final != nil {
		step.NewtonIterations += report.Final.Iterations
	}

	step.MinDistance = -1
	if d := s.contact.MinDistance(x); !math.IsInf(d, 1) {
		step.MinDistance = math.Sqrt(d)
	}
	step.Contacts = s.contact.Constraints().Len()
	if step.Contacts > 0 {
		step.PeakVertexContact = floats.Max(s.contact.ValuePerVertex(x))
	}

	s.log.V(1).Info("solved step", "step", index, "time", t, "al_steps", step.ALSteps, "newton_iterations", step.NewtonIterations, "min_distance", step.MinDistance)
	return step, nil
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
