package selector

import (
	"context"
	"fmt"
	"sort"

	"surveypilot/internal/model"
)

// greedy takes questions by priority, shortest first among equals, skipping any that no longer fit
func greedy(ctx context.Context, qs []model.ScoredQuestion, b Budget) ([]pick, error) {
	order := indexes(qs)
	sort.SliceStable(order, func(i, j int) bool {
		a, c := &qs[order[i]], &qs[order[j]]
		if a.AdjustedPriority != c.AdjustedPriority {
			return a.AdjustedPriority > c.AdjustedPriority
		}
		if a.EstimatedDuration != c.EstimatedDuration {
			return a.EstimatedDuration < c.EstimatedDuration
		}
		return a.ID < c.ID
	})

	return fill(ctx, qs, order, b.Capacity(), b, func(q *model.ScoredQuestion) string {
		return fmt.Sprintf("greedy: priority %.2f fit the remaining budget", q.AdjustedPriority)
	})
}

// fill accepts indexes in order while their cost fits the capacity
func fill(ctx context.Context, qs []model.ScoredQuestion, order []int, capacity int, b Budget, reason func(*model.ScoredQuestion) string) ([]pick, error) {
	var picks []pick
	used := 0
	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := b.cost(&qs[i])
		if used+c > capacity {
			continue
		}
		used += c
		picks = append(picks, pick{index: i, reason: reason(&qs[i])})
	}
	return picks, nil
}

func indexes(qs []model.ScoredQuestion) []int {
	order := make([]int, len(qs))
	for i := range order {
		order[i] = i
	}
	return order
}
