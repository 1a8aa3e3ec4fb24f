// Package optim searches solver parameter grids for the setting that
// minimises a run metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var ErrNoTrial = errors.New("optim: no trial succeeded")

// Trial is one evaluated grid point. Err is set when the evaluation failed.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: parameter %s has no values", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every grid point in order and returns the one with the
// smallest value, ties going to the earliest. Failed evaluations are kept
// in the trial list and skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	eval func(ctx context.Context, params map[string]float64) (float64, error),
) (map[string]float64, float64, []Trial, error) {
	s := &search{best: math.Inf(1), trials: make([]Trial, 0, g.Size())}
	if err := g.searchRecursive(ctx, 0, map[string]float64{}, eval, s); err != nil {
		return nil, 0, s.trials, err
	}
	if s.bestParams == nil {
		return nil, 0, s.trials, ErrNoTrial
	}
	return s.bestParams, s.best, s.trials, nil
}

type search struct {
	best       float64
	bestParams map[string]float64
	trials     []Trial
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	eval func(context.Context, map[string]float64) (float64, error),
	s *search,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		val, err := eval(ctx, current)
		s.trials = append(s.trials, Trial{Params: current, Value: val, Err: err})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		if val < s.best {
			s.best, s.bestParams = val, current
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, eval, s); err != nil {
			return err
		}
	}
	return nil
}
