// Package selector picks the subset of questions that fits a call's time budget.
// Every strategy is a pure function over the same integer time units, so their
// results are directly comparable.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math"

	"surveypilot/internal/model"
)

const (
	DefaultBufferPercentage  = 10.0
	DefaultTransitionSeconds = 2.0
	MaxBufferPercentage      = 50.0

	// Auto-pick boundaries on the candidate count
	smallSetLimit  = 20
	mediumSetLimit = 50
)

var (
	ErrInvalidBudget   = errors.New("invalid time budget")
	ErrUnknownStrategy = errors.New("unknown selection strategy")
)

// Budget is the time available to one call
type Budget struct {
	MaxDurationSeconds float64
	BufferPercentage   float64
	TransitionSeconds  float64
}

// NewBudget validates and returns a budget
func NewBudget(maxDuration, bufferPct, transition float64) (Budget, error) {
	b := Budget{MaxDurationSeconds: maxDuration, BufferPercentage: bufferPct, TransitionSeconds: transition}
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// Validate checks the budget bounds
func (b Budget) Validate() error {
	if b.MaxDurationSeconds <= 0 || b.MaxDurationSeconds > model.MaxCallDurationSeconds {
		return fmt.Errorf("%w: max duration %.0fs outside (0, %d]", ErrInvalidBudget, b.MaxDurationSeconds, model.MaxCallDurationSeconds)
	}
	if b.BufferPercentage < 0 || b.BufferPercentage >= MaxBufferPercentage {
		return fmt.Errorf("%w: buffer %.1f%% outside [0, %.0f)", ErrInvalidBudget, b.BufferPercentage, MaxBufferPercentage)
	}
	if b.TransitionSeconds < 0 {
		return fmt.Errorf("%w: negative transition time", ErrInvalidBudget)
	}
	return nil
}

// AvailableTime is the call duration minus the reserved buffer
func (b Budget) AvailableTime() float64 {
	return b.MaxDurationSeconds - b.MaxDurationSeconds*b.BufferPercentage/100
}

// Capacity is AvailableTime in whole seconds
func (b Budget) Capacity() int {
	return int(math.Floor(b.AvailableTime() + 1e-9))
}

// Transition is the per-question transition in whole seconds
func (b Budget) Transition() int {
	return int(math.Ceil(b.TransitionSeconds - 1e-9))
}

// cost is the whole seconds a question consumes, transition included
func (b Budget) cost(q *model.ScoredQuestion) int {
	return int(math.Ceil(q.EstimatedDuration-1e-9)) + b.Transition()
}

// Item is one selected question with its share of the budget
type Item struct {
	Question              model.ScoredQuestion
	Reason                string
	TimeAllocationSeconds float64
	TimeAllocationPercent float64
}

// Outcome is the uniform result of every strategy
type Outcome struct {
	Strategy           model.Strategy
	Items              []Item
	AvailableTime      float64
	TotalDuration      float64
	TotalTransition    float64
	TotalTokens        int
	TotalValue         float64
	UtilizationPercent float64
}

// IDs lists selected question IDs in order
func (o *Outcome) IDs() []string {
	ids := make([]string, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.Question.ID
	}
	return ids
}

// pick marks an index of the input slice as selected
type pick struct {
	index  int
	reason string
}

type strategyFunc func(ctx context.Context, qs []model.ScoredQuestion, b Budget) ([]pick, error)

var strategies = map[model.Strategy]strategyFunc{
	model.StrategyGreedy:             greedy,
	model.StrategyDynamicProgramming: knapsack,
	model.StrategyTimeBalanced:       timeBalanced,
	model.StrategyEfficiencyRanked:   efficiencyRanked,
}

// AutoPick maps candidate count and preference onto a strategy
func AutoPick(count int, pref model.Preference) model.Strategy {
	switch {
	case pref == model.PreferenceSpeed || count > mediumSetLimit:
		return model.StrategyGreedy
	case count <= smallSetLimit:
		return model.StrategyDynamicProgramming
	case pref == model.PreferenceAccuracy:
		return model.StrategyTimeBalanced
	default:
		return model.StrategyEfficiencyRanked
	}
}

// Resolve turns an empty or auto strategy into a concrete one
func Resolve(strategy model.Strategy, count int, pref model.Preference) model.Strategy {
	if strategy == "" || strategy == model.StrategyAuto {
		return AutoPick(count, pref)
	}
	return strategy
}

// Valid reports whether a strategy name is known
func Valid(strategy model.Strategy) bool {
	if strategy == "" || strategy == model.StrategyAuto {
		return true
	}
	_, ok := strategies[strategy]
	return ok
}

// Select runs one strategy over questions whose durations are already estimated.
// Selected items keep the input order.
func Select(ctx context.Context, strategy model.Strategy, questions []model.ScoredQuestion, b Budget) (*Outcome, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	strategy = Resolve(strategy, len(questions), model.PreferenceNone)
	fn, ok := strategies[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	picks, err := fn(ctx, questions, b)
	if err != nil {
		return nil, err
	}
	return assemble(strategy, questions, picks, b), nil
}

func assemble(strategy model.Strategy, qs []model.ScoredQuestion, picks []pick, b Budget) *Outcome {
	reasons := make(map[int]string, len(picks))
	for _, p := range picks {
		reasons[p.index] = p.reason
	}

	out := &Outcome{
		Strategy:      strategy,
		Items:         make([]Item, 0, len(picks)),
		AvailableTime: b.AvailableTime(),
	}
	transition := float64(b.Transition())
	used := 0.0
	for i := range qs {
		reason, ok := reasons[i]
		if !ok {
			continue
		}
		q := qs[i]
		alloc := q.EstimatedDuration + transition
		pct := 0.0
		if out.AvailableTime > 0 {
			pct = alloc / out.AvailableTime * 100
		}
		out.Items = append(out.Items, Item{
			Question:              q,
			Reason:                reason,
			TimeAllocationSeconds: alloc,
			TimeAllocationPercent: pct,
		})
		used += alloc
		out.TotalDuration += q.EstimatedDuration
		out.TotalTransition += transition
		out.TotalTokens += q.TokenCount
		out.TotalValue += q.Value()
	}
	if out.AvailableTime > 0 {
		out.UtilizationPercent = used / out.AvailableTime * 100
	}
	return out
}
