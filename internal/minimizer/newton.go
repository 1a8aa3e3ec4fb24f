package minimizer

import (
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contactsim/internal/sparse"
)

// Newton is a damped Newton method. Indefinite Hessians are regularised
// with a growing diagonal shift; when that fails the step falls back to
// steepest descent.
type Newton struct {
	opts Options
	log  logr.Logger
}

func NewNewton(opts Options, options ...Option) (*Newton, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	n := &Newton{opts: opts, log: logr.Discard()}
	for _, o := range options {
		o(n)
	}
	return n, nil
}

func (n *Newton) Options() Options { return n.opts }

func (n *Newton) Minimize(p Problem, x []float64) (*Result, error) {
	res := &Result{}
	for res.Iterations = 0; res.Iterations < n.opts.MaxIterations; res.Iterations++ {
		g := p.Gradient(x)
		res.GradNorm = floats.Norm(g, 2)
		res.Value = p.Value(x)
		if res.GradNorm <= n.opts.GradTol {
			res.Converged = true
			res.Message = "gradient norm below tolerance"
			return res, nil
		}

		dir, err := n.direction(p, x, g)
		if err != nil {
			return res, err
		}

		x1 := make([]float64, len(x))
		floats.AddTo(x1, x, dir)

		p.LineSearchBegin(x, x1)
		alpha, err := n.lineSearch(p, x, dir, g, res.Value)
		p.LineSearchEnd()
		if err != nil {
			return res, err
		}
		if alpha == 0 {
			res.Message = "line search failed"
			n.log.V(1).Info("line search failed", "iteration", res.Iterations, "grad_norm", res.GradNorm)
			return res, nil
		}

		floats.AddScaled(x, alpha, dir)
		p.SolutionChanged(x)
		p.PostStep(x)

		stepNorm := alpha * floats.Norm(dir, 2)
		n.log.V(2).Info("newton step", "iteration", res.Iterations, "energy", res.Value, "grad_norm", res.GradNorm, "step", alpha)
		if stepNorm <= n.opts.StepTol {
			res.Iterations++
			res.Converged = true
			res.Value = p.Value(x)
			res.GradNorm = floats.Norm(p.Gradient(x), 2)
			res.Message = "step norm below tolerance"
			return res, nil
		}
	}

	res.Value = p.Value(x)
	g := p.Gradient(x)
	res.GradNorm = floats.Norm(g, 2)
	res.Converged = res.GradNorm <= n.opts.GradTol
	res.Message = "iteration limit reached"
	return res, nil
}

// direction solves H·d = −g. The sparse Hessian goes to conjugate
// gradient first. Indefinite or stalled systems are regularised with a
// growing diagonal shift, factorized densely up to DenseLimit unknowns.
// Returns the steepest descent direction when no shift yields a descent
// direction.
func (n *Newton) direction(p Problem, x, g []float64) ([]float64, error) {
	h, err := p.Hessian(x)
	if err != nil {
		return nil, err
	}
	size := len(g)
	descent := make([]float64, size)
	floats.ScaleTo(descent, -1, g)
	if size == 0 {
		return descent, nil
	}

	if n.opts.LinearSolver == ConjugateGradient {
		d, ok := conjugateGradient(h, descent, 0, n.opts.CGTol, cgIterations(size))
		if ok && isDescent(d, g) {
			return d, nil
		}
		n.log.V(2).Info("conjugate gradient failed, regularising", "size", size)
	}

	maxDiag := 0.0
	for _, v := range h.Diagonal() {
		maxDiag = math.Max(maxDiag, math.Abs(v))
	}
	base := 1e-8 * math.Max(maxDiag, 1)

	var solve func(shift float64) ([]float64, bool)
	if size <= n.opts.DenseLimit {
		solve = denseSolver(h, descent)
	} else {
		solve = func(shift float64) ([]float64, bool) {
			return conjugateGradient(h, descent, shift, n.opts.CGTol, cgIterations(size))
		}
	}

	shift := 0.0
	for attempt := 0; attempt < 12; attempt++ {
		if d, ok := solve(shift); ok && isDescent(d, g) {
			return d, nil
		}
		if shift == 0 {
			shift = base
		} else {
			shift *= 10
		}
	}
	n.log.V(1).Info("falling back to gradient descent")
	return descent, nil
}

// denseSolver factorizes H + shift·I with a dense Cholesky decomposition.
func denseSolver(h *sparse.Matrix, rhs []float64) func(float64) ([]float64, bool) {
	a := h.ToSymDense()
	size := len(rhs)
	b := mat.NewVecDense(size, rhs)
	return func(shift float64) ([]float64, bool) {
		shifted := a
		if shift > 0 {
			shifted = mat.NewSymDense(size, nil)
			shifted.CopySym(a)
			for i := 0; i < size; i++ {
				shifted.SetSym(i, i, a.At(i, i)+shift)
			}
		}
		var chol mat.Cholesky
		if !chol.Factorize(shifted) {
			return nil, false
		}
		var d mat.VecDense
		if err := chol.SolveVecTo(&d, b); err != nil {
			return nil, false
		}
		return mat.Col(nil, 0, &d), true
	}
}

func isDescent(d, g []float64) bool {
	return isFinite(d) && floats.Dot(d, g) < 0
}

func isFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
