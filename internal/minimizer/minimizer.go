// Package minimizer provides the unconstrained Newton minimizer driven by
// the continuation solver. Line searches respect the step bound, validity
// and collision hooks of the problem.
package minimizer

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/san-kum/contactsim/internal/sparse"
)

var ErrOptions = errors.New("minimizer: invalid options")

// Problem is the objective the minimizer drives. All vectors are in the
// problem's current space.
type Problem interface {
	Value(x []float64) float64
	Gradient(x []float64) []float64
	Hessian(x []float64) (*sparse.Matrix, error)

	LineSearchBegin(x0, x1 []float64)
	LineSearchEnd()
	MaxStepSize(x0, x1 []float64) (float64, error)
	IsStepValid(x0, x1 []float64) bool
	IsStepCollisionFree(x0, x1 []float64) bool

	SolutionChanged(x []float64)
	PostStep(x []float64)
}

// Minimizer minimizes p starting from x, overwriting x with the result.
// Failing to converge is reported in Result, not as an error.
type Minimizer interface {
	Minimize(p Problem, x []float64) (*Result, error)
}

type Result struct {
	Iterations int
	Converged  bool
	GradNorm   float64
	Value      float64
	Message    string
}

const (
	Backtracking = "backtracking"
	MoreThuente  = "more_thuente"
)

// Linear solvers for the Newton system.
const (
	ConjugateGradient = "cg"
	Cholesky          = "cholesky"
)

type Options struct {
	MaxIterations int
	// GradTol is the gradient norm below which the solve converges.
	GradTol float64
	// StepTol is the step norm below which the solve converges.
	StepTol           float64
	LineSearch        string
	MaxLineSearchIter int

	LinearSolver string
	// CGTol is the relative residual at which conjugate gradient stops.
	CGTol float64
	// DenseLimit caps the system size that may be factorized densely.
	// Larger systems only use regularised conjugate gradient.
	DenseLimit int
}

func DefaultOptions() Options {
	return Options{
		MaxIterations:     200,
		GradTol:           1e-8,
		StepTol:           1e-12,
		LineSearch:        Backtracking,
		MaxLineSearchIter: 60,
		LinearSolver:      ConjugateGradient,
		CGTol:             1e-10,
		DenseLimit:        3000,
	}
}

func (o Options) Validate() error {
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations %d", ErrOptions, o.MaxIterations)
	}
	if o.GradTol < 0 || o.StepTol < 0 {
		return fmt.Errorf("%w: negative tolerance", ErrOptions)
	}
	if o.MaxLineSearchIter <= 0 {
		return fmt.Errorf("%w: max line search iterations %d", ErrOptions, o.MaxLineSearchIter)
	}
	switch o.LineSearch {
	case Backtracking, MoreThuente:
	default:
		return fmt.Errorf("%w: unknown line search %q", ErrOptions, o.LineSearch)
	}
	switch o.LinearSolver {
	case ConjugateGradient, Cholesky:
	default:
		return fmt.Errorf("%w: unknown linear solver %q", ErrOptions, o.LinearSolver)
	}
	if o.CGTol <= 0 || o.CGTol >= 1 {
		return fmt.Errorf("%w: cg tolerance %g", ErrOptions, o.CGTol)
	}
	if o.DenseLimit < 0 {
		return fmt.Errorf("%w: dense limit %d", ErrOptions, o.DenseLimit)
	}
	return nil
}

type Option func(*Newton)

func WithLogger(log logr.Logger) Option {
	return func(n *Newton) { n.log = log }
}
