package selector

import (
	"context"
	"fmt"
	"sort"

	"surveypilot/internal/model"
)

// timeBalanced gives each base priority level a share of the budget proportional to
// level × bucket size, fills each bucket shortest first, then spends what is left on a
// priority-ordered pass over the remaining questions.
func timeBalanced(ctx context.Context, qs []model.ScoredQuestion, b Budget) ([]pick, error) {
	capacity := b.Capacity()
	buckets := make(map[int][]int)
	for i := range qs {
		lvl := bucketLevel(&qs[i])
		buckets[lvl] = append(buckets[lvl], i)
	}

	levels := make([]int, 0, len(buckets))
	total := 0
	for lvl, members := range buckets {
		levels = append(levels, lvl)
		total += lvl * len(members)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))

	var picks []pick
	taken := make([]bool, len(qs))
	used := 0
	for _, lvl := range levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := buckets[lvl]
		share := float64(capacity) * float64(lvl*len(members)) / float64(total)
		sort.SliceStable(members, func(i, j int) bool {
			a, c := &qs[members[i]], &qs[members[j]]
			if a.EstimatedDuration != c.EstimatedDuration {
				return a.EstimatedDuration < c.EstimatedDuration
			}
			return a.ID < c.ID
		})

		bucketUsed := 0
		for _, i := range members {
			c := b.cost(&qs[i])
			if float64(bucketUsed+c) > share+1e-9 || used+c > capacity {
				continue
			}
			bucketUsed += c
			used += c
			taken[i] = true
			picks = append(picks, pick{
				index:  i,
				reason: fmt.Sprintf("time-balanced: priority %d bucket share %.0fs", lvl, share),
			})
		}
	}

	rest := make([]int, 0, len(qs))
	for i := range qs {
		if !taken[i] {
			rest = append(rest, i)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		a, c := &qs[rest[i]], &qs[rest[j]]
		if a.AdjustedPriority != c.AdjustedPriority {
			return a.AdjustedPriority > c.AdjustedPriority
		}
		if a.EstimatedDuration != c.EstimatedDuration {
			return a.EstimatedDuration < c.EstimatedDuration
		}
		return a.ID < c.ID
	})
	spill, err := fill(ctx, qs, rest, capacity-used, b, func(q *model.ScoredQuestion) string {
		return fmt.Sprintf("time-balanced: unused bucket time, priority %.2f", q.AdjustedPriority)
	})
	if err != nil {
		return nil, err
	}
	return append(picks, spill...), nil
}

func bucketLevel(q *model.ScoredQuestion) int {
	if q.PriorityLevel < 1 {
		return 1
	}
	return q.PriorityLevel
}
