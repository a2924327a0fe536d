package selector

import (
	"context"
	"fmt"
	"sort"

	"surveypilot/internal/model"
)

// Density is adjusted priority per estimated second
func Density(q *model.ScoredQuestion) float64 {
	if q.EstimatedDuration <= 0 {
		return 0
	}
	return q.AdjustedPriority / q.EstimatedDuration
}

// efficiencyRanked takes questions by value density while they fit
func efficiencyRanked(ctx context.Context, qs []model.ScoredQuestion, b Budget) ([]pick, error) {
	order := indexes(qs)
	sort.SliceStable(order, func(i, j int) bool {
		a, c := &qs[order[i]], &qs[order[j]]
		da, dc := Density(a), Density(c)
		if da != dc {
			return da > dc
		}
		if a.AdjustedPriority != c.AdjustedPriority {
			return a.AdjustedPriority > c.AdjustedPriority
		}
		return a.ID < c.ID
	})

	return fill(ctx, qs, order, b.Capacity(), b, func(q *model.ScoredQuestion) string {
		return fmt.Sprintf("efficiency: %.3f priority per second", Density(q))
	})
}
