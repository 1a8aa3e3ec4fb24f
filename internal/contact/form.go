// Package contact implements the barrier potential form that keeps the
// collision surface intersection free.
//
// The form owns its active constraint set and rebuilds it whenever it is
// evaluated on a displaced surface that differs, by value, from the last
// one. Between LineSearchBegin and LineSearchEnd the broad-phase candidates
// of the search direction are cached and reused by step-size and validity
// queries.
package contact

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/contactsim/internal/barrier"
	"github.com/san-kum/contactsim/internal/collision"
	"github.com/san-kum/contactsim/internal/forms"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/sparse"
)

type Options struct {
	DHat       float64
	DMin       float64
	Convergent bool
	Method     collision.Method

	// Stiffness is the barrier stiffness used until adaptive stiffness
	// replaces it.
	Stiffness         float64
	AdaptiveStiffness bool
	// MaxStiffness caps the adaptive upper bound when positive.
	MaxStiffness  float64
	AvgMass       float64
	TimeDependent bool

	VerifyStepSize    bool
	ProjectHessianPSD bool
	CCD               geometry.CCDOptions
}

// DefaultOptions returns the settings used by the CLI unless overridden.
func DefaultOptions() Options {
	return Options{
		DHat:              1e-3,
		Stiffness:         1e5,
		AdaptiveStiffness: true,
		AvgMass:           1,
		TimeDependent:     true,
		ProjectHessianPSD: true,
		CCD:               collision.DefaultStepOptions(),
	}
}

func (o Options) validate() error {
	switch {
	case o.DHat <= 0:
		return fmt.Errorf("%w: dhat %g", ErrOptions, o.DHat)
	case o.DMin < 0:
		return fmt.Errorf("%w: dmin %g", ErrOptions, o.DMin)
	case o.Stiffness <= 0:
		return fmt.Errorf("%w: stiffness %g", ErrOptions, o.Stiffness)
	case o.MaxStiffness < 0:
		return fmt.Errorf("%w: max stiffness %g", ErrOptions, o.MaxStiffness)
	}
	return nil
}

func (o Options) constraintOptions() collision.Options {
	return collision.Options{DHat: o.DHat, DMin: o.DMin, Convergent: o.Convergent, Method: o.Method}
}

type Option func(*Form)

func WithLogger(log logr.Logger) Option {
	return func(f *Form) { f.log = log }
}

// Form is the contact barrier potential scaled by the barrier stiffness.
// The stiffness is separate from the form weight, which continuation
// solvers rescale.
type Form struct {
	forms.Base
	mesh *collision.Mesh
	opts Options
	log  logr.Logger

	displaced   []r3.Vec
	constraints *collision.Constraints
	candidates  *collision.Candidates

	stiffness    float64
	bounds       barrier.Bounds
	prevDistance float64
}

func NewForm(mesh *collision.Mesh, opts Options, options ...Option) (*Form, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.CCD.TMax == 0 {
		opts.CCD = collision.DefaultStepOptions()
	}
	opts.CCD.MinDistance = opts.DMin

	f := &Form{
		Base:         forms.NewBase(),
		mesh:         mesh,
		opts:         opts,
		log:          logr.Discard(),
		bounds:       barrier.Bounds{Min: opts.Stiffness, Max: opts.Stiffness},
		prevDistance: -1,
	}
	if opts.MaxStiffness > 0 {
		f.bounds.Max = math.Min(f.bounds.Max, opts.MaxStiffness)
		f.bounds.Min = math.Min(f.bounds.Min, f.bounds.Max)
	}
	f.stiffness = f.bounds.Clamp(opts.Stiffness)
	for _, o := range options {
		o(f)
	}
	return f, nil
}

func (f *Form) Name() string           { return "contact" }
func (f *Form) Mesh() *collision.Mesh  { return f.mesh }
func (f *Form) Options() Options       { return f.opts }
func (f *Form) Stiffness() float64     { return f.stiffness }
func (f *Form) Bounds() barrier.Bounds { return f.bounds }
func (f *Form) PrevDistance() float64  { return f.prevDistance }
func (f *Form) InLineSearch() bool     { return f.candidates != nil }

// Constraints is the active set of the last evaluated surface.
func (f *Form) Constraints() *collision.Constraints { return f.constraints }

func sameSurface(a, b []r3.Vec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// update rebuilds the constraint set when V differs from the cached
// displaced surface and returns V.
func (f *Form) update(x []float64) []r3.Vec {
	V := f.mesh.DisplaceVertices(x)
	if f.constraints != nil && sameSurface(V, f.displaced) {
		return f.displaced
	}
	if f.candidates != nil {
		f.constraints = collision.FromCandidates(f.mesh, f.candidates, V, f.opts.constraintOptions())
	} else {
		f.constraints = collision.BuildConstraints(f.mesh, V, f.opts.constraintOptions())
	}
	f.displaced = V
	return V
}

func (f *Form) Value(x []float64) float64 {
	V := f.update(x)
	return f.stiffness * f.constraints.Potential(V)
}

// ValuePerVertex splits Value over the full mesh vertices. Vertices off the
// collision surface carry zero.
func (f *Form) ValuePerVertex(x []float64) []float64 {
	V := f.update(x)
	surface := f.constraints.VertexPotential(f.mesh, V)
	out := make([]float64, f.mesh.NumFullVertices())
	for v, e := range surface {
		out[f.mesh.FullID(v)] = f.stiffness * e
	}
	return out
}

func (f *Form) Gradient(x []float64) []float64 {
	V := f.update(x)
	g := f.mesh.ToFullDOF(f.constraints.Gradient(f.mesh, V))
	for i := range g {
		g[i] *= f.stiffness
	}
	return g
}

func (f *Form) Hessian(x []float64) *sparse.Matrix {
	V := f.update(x)
	return f.mesh.HessianToFullDOF(f.constraints.Hessian(f.mesh, V, f.opts.ProjectHessianPSD)).Scale(f.stiffness)
}

// Init drops every cache and rebuilds the constraint set at x.
func (f *Form) Init(x []float64) {
	f.displaced = nil
	f.constraints = nil
	f.candidates = nil
	f.update(x)
}

func (f *Form) SolutionChanged(x []float64) { f.update(x) }

// UpdateQuantities rebuilds the constraint set at the start of a step.
func (f *Form) UpdateQuantities(_ float64, x []float64) {
	f.displaced = nil
	f.constraints = nil
	f.update(x)
}

func (f *Form) LineSearchBegin(x0, x1 []float64) {
	V0, V1 := f.mesh.DisplaceVertices(x0), f.mesh.DisplaceVertices(x1)
	f.candidates = collision.BuildCandidates(f.mesh, V0, V1, f.opts.constraintOptions().Inflation(), f.opts.Method)
}

func (f *Form) LineSearchEnd() { f.candidates = nil }

func (f *Form) stepCandidates(V0, V1 []r3.Vec) *collision.Candidates {
	if f.candidates != nil {
		return f.candidates
	}
	return collision.BuildCandidates(f.mesh, V0, V1, f.opts.constraintOptions().Inflation(), f.opts.Method)
}

// MaxStepSize is the largest α in [0,1] that moves the surface from x0
// towards x1 without collisions.
func (f *Form) MaxStepSize(x0, x1 []float64) (float64, error) {
	V0, V1 := f.mesh.DisplaceVertices(x0), f.mesh.DisplaceVertices(x1)
	step := f.stepCandidates(V0, V1).CollisionFreeStepSize(f.mesh, V0, V1, f.opts.CCD)
	if !f.opts.VerifyStepSize {
		return step, nil
	}

	lInf := 0.0
	for i := range x0 {
		lInf = math.Max(lInf, math.Abs(x1[i]-x0[i]))
	}
	verified := step
	for collision.HasIntersections(f.mesh, collision.Interpolate(V0, V1, verified)) {
		f.log.Error(ErrCCDVerification, "step is not intersection free, halving", "step", verified)
		verified /= 2
		if verified == 0 && lInf > 0 {
			return 0, &CCDVerificationError{Step: step, LInf: lInf}
		}
		if verified == 0 {
			break
		}
	}
	return verified, nil
}

// IsStepCollisionFree reports whether the straight path from x0 to x1 is
// free of collisions. Identical surfaces are trivially collision free.
func (f *Form) IsStepCollisionFree(x0, x1 []float64) bool {
	V0, V1 := f.mesh.DisplaceVertices(x0), f.mesh.DisplaceVertices(x1)
	if sameSurface(V0, V1) {
		return true
	}
	return f.stepCandidates(V0, V1).IsStepCollisionFree(f.mesh, V0, V1, f.opts.CCD)
}

// UpdateBarrierStiffness picks the initial stiffness from the gradient of
// the remaining energy. It is a no-op without adaptive stiffness.
func (f *Form) UpdateBarrierStiffness(x, gradEnergy []float64) {
	if !f.opts.AdaptiveStiffness {
		return
	}
	V := f.update(x)

	plain := f.opts.constraintOptions()
	plain.Convergent = false
	nonConvergent := collision.BuildConstraints(f.mesh, V, plain)
	gradBarrier := f.mesh.ToFullDOF(nonConvergent.Gradient(f.mesh, V))

	bbox := collision.BBoxDiagonal(V)
	kappa, bounds := barrier.InitialStiffness(bbox, f.opts.DHat, f.opts.DMin, f.opts.AvgMass, gradEnergy, gradBarrier, f.opts.MaxStiffness)

	if f.opts.Convergent {
		scale := f.opts.DHat * (f.opts.DHat + 2*f.opts.DMin) * (f.opts.DHat + 2*f.opts.DMin)
		if !f.constraints.Empty() {
			if conv := f.constraints.Potential(V); conv > 0 && !math.IsInf(conv, 0) {
				scale = nonConvergent.Potential(V) / conv
			}
		}
		kappa *= scale
		bounds.Max *= scale
		bounds.Min *= scale
		if f.opts.MaxStiffness > 0 {
			bounds.Max = math.Min(bounds.Max, f.opts.MaxStiffness)
			bounds.Min = math.Min(bounds.Min, bounds.Max)
		}
		kappa = bounds.Clamp(kappa)
	}

	f.log.V(1).Info("updated barrier stiffness", "from", f.stiffness, "to", kappa, "max", bounds.Max)
	f.bounds = bounds
	f.stiffness = kappa
}

// PostStep records the minimum separation of the accepted step and, for
// time-dependent adaptive runs, adjusts the stiffness from its trend.
func (f *Form) PostStep(x []float64) {
	V := f.update(x)
	dist := f.constraints.MinDistance(V)

	if f.opts.AdaptiveStiffness && f.opts.TimeDependent {
		prev := f.stiffness
		kappa := barrier.UpdateStiffness(f.prevDistance, dist, prev, f.bounds, collision.BBoxDiagonal(V), f.opts.DMin)
		if kappa != prev {
			f.log.V(1).Info("updated barrier stiffness", "from", prev, "to", kappa, "min_distance", math.Sqrt(dist))
			f.stiffness = kappa
		}
	}
	f.prevDistance = dist
}

// MinDistance is the smallest squared separation of the active set at x,
// +Inf without active constraints.
func (f *Form) MinDistance(x []float64) float64 {
	V := f.update(x)
	return f.constraints.MinDistance(V)
}
