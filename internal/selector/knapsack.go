package selector

import (
	"context"
	"fmt"

	"surveypilot/internal/model"
)

const valueEpsilon = 1e-9

// knapsack solves the 0/1 knapsack over whole seconds. best[i][w] is the best value reachable
// from items i..n-1 with w seconds left, so reconstruction walks forward and prefers earlier
// items when two subsets tie.
func knapsack(ctx context.Context, qs []model.ScoredQuestion, b Budget) ([]pick, error) {
	n, capacity := len(qs), b.Capacity()
	if n == 0 || capacity <= 0 {
		return nil, nil
	}

	costs := make([]int, n)
	for i := range qs {
		costs[i] = b.cost(&qs[i])
	}

	best := make([][]float64, n+1)
	best[n] = make([]float64, capacity+1)
	for i := n - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make([]float64, capacity+1)
		next := best[i+1]
		v := qs[i].Value()
		for w := 0; w <= capacity; w++ {
			row[w] = next[w]
			if v > 0 && costs[i] <= w {
				if take := v + next[w-costs[i]]; take > row[w] {
					row[w] = take
				}
			}
		}
		best[i] = row
	}

	var picks []pick
	w := capacity
	for i := 0; i < n; i++ {
		v := qs[i].Value()
		if v <= 0 || costs[i] > w {
			continue
		}
		if v+best[i+1][w-costs[i]]+valueEpsilon >= best[i][w] {
			picks = append(picks, pick{
				index:  i,
				reason: fmt.Sprintf("knapsack: part of the optimal set (value %.2f)", v),
			})
			w -= costs[i]
		}
	}
	return picks, nil
}
