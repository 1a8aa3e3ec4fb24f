package minimizer

import (
	"math"

	"github.com/curioloop/optimizer/lbfgsb"
	"gonum.org/v1/gonum/floats"
)

// armijo is the sufficient decrease constant.
const armijo = 1e-4

func trial(x, dir []float64, alpha float64) []float64 {
	out := make([]float64, len(x))
	floats.AddScaledTo(out, x, alpha, dir)
	return out
}

// admissible reports whether the problem accepts the step to xt and
// returns its value.
func admissible(p Problem, x, xt []float64) (float64, bool) {
	if !p.IsStepValid(x, xt) {
		return 0, false
	}
	v := p.Value(xt)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v, false
	}
	return v, true
}

// lineSearch returns the accepted step along dir, or zero when none was
// found. The search never exceeds the problem's step bound.
func (n *Newton) lineSearch(p Problem, x, dir, g []float64, f0 float64) (float64, error) {
	maxStep, err := p.MaxStepSize(x, trial(x, dir, 1))
	if err != nil {
		return 0, err
	}
	if maxStep <= 0 {
		return 0, nil
	}
	slope := floats.Dot(g, dir)

	if n.opts.LineSearch == MoreThuente {
		if alpha, ok := n.moreThuente(p, x, dir, f0, slope, maxStep); ok {
			return alpha, nil
		}
	}
	return n.backtracking(p, x, dir, f0, slope, maxStep), nil
}

func (n *Newton) backtracking(p Problem, x, dir []float64, f0, slope, alpha float64) float64 {
	for i := 0; i < n.opts.MaxLineSearchIter; i++ {
		xt := trial(x, dir, alpha)
		if v, ok := admissible(p, x, xt); ok && v <= f0+armijo*alpha*slope && p.IsStepCollisionFree(x, xt) {
			return alpha
		}
		alpha /= 2
	}
	return 0
}

// moreThuente runs the bounded More-Thuente search on [0, upper], after
// shrinking upper until the end point is admissible.
func (n *Newton) moreThuente(p Problem, x, dir []float64, f0, slope, upper float64) (float64, bool) {
	if slope >= 0 {
		return 0, false
	}
	for i := 0; ; i++ {
		if i == n.opts.MaxLineSearchIter {
			return 0, false
		}
		if _, ok := admissible(p, x, trial(x, dir, upper)); ok {
			break
		}
		upper /= 2
	}

	tol := lbfgsb.SearchTol{Alpha: armijo, Beta: 0.9, Eps: 0.1, Lower: 0, Upper: upper}
	var ctx lbfgsb.SearchCtx
	f, g, stp := f0, slope, upper
	task := lbfgsb.SearchStart
	for i := 0; i < n.opts.MaxLineSearchIter; i++ {
		stp, task = lbfgsb.ScalarSearch(f, g, stp, task, &tol, &ctx)
		if task != lbfgsb.SearchFG {
			break
		}
		xt := trial(x, dir, stp)
		v, ok := admissible(p, x, xt)
		if !ok {
			return 0, false
		}
		f, g = v, floats.Dot(p.Gradient(xt), dir)
	}
	if task&lbfgsb.SearchError > 0 || task == lbfgsb.SearchFG || stp <= 0 || math.IsNaN(stp) {
		return 0, false
	}

	xt := trial(x, dir, stp)
	if v, ok := admissible(p, x, xt); !ok || v > f0 || !p.IsStepCollisionFree(x, xt) {
		return 0, false
	}
	return stp, true
}
