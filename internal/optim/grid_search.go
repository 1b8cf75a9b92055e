// Package optim searches hyperparameter grids.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var ErrNoTrials = errors.New("no successful trials")

// Objective runs one configuration and returns the score to minimize.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

// Trial records one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid search: %d names for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("grid search: empty range for %s", params[i])
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

// Search evaluates every grid point in order and returns the best parameters
// with their score, plus every trial. Failed trials are recorded and skipped;
// NaN scores never win. Cancelling ctx stops the search with ctx.Err().
func (g *GridSearch) Search(ctx context.Context, objective Objective) (map[string]float64, float64, []Trial, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	trials := make([]Trial, 0, g.Size())

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) {
		score, err := objective(ctx, params)
		trials = append(trials, Trial{Params: params, Score: score, Err: err})
		if err == nil && score < best {
			best = score
			bestParams = params
		}
	})
	if err != nil {
		return bestParams, best, trials, err
	}
	if bestParams == nil {
		return nil, best, trials, ErrNoTrials
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) error {
	if depth == len(g.paramNames) {
		if err := ctx.Err(); err != nil {
			return err
		}
		visit(current)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}
