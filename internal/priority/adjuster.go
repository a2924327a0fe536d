// Package priority turns trigger output, topic configuration and presentation
// history into one adjusted priority per question.
package priority

import (
	"context"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"surveypilot/internal/model"
)

const (
	DefaultFairnessWeight    = 1.0
	DefaultParallelThreshold = 64
	maxFairnessScore         = 10.0
)

// Adjuster computes adjusted priorities and the conversational ordering
type Adjuster struct {
	logger            *zap.Logger
	fairnessWeight    float64
	parallelThreshold int
}

// Option configures an Adjuster
type Option func(*Adjuster)

// WithFairnessWeight scales the recency bonus; a weight of 1 adds at most one priority point
func WithFairnessWeight(w float64) Option {
	return func(a *Adjuster) {
		if w >= 0 {
			a.fairnessWeight = w
		}
	}
}

// WithParallelThreshold sets the candidate count from which scoring fans out; <= 0 disables fan-out
func WithParallelThreshold(n int) Option {
	return func(a *Adjuster) { a.parallelThreshold = n }
}

// NewAdjuster creates a priority adjuster
func NewAdjuster(logger *zap.Logger, opts ...Option) *Adjuster {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adjuster{
		logger:            logger,
		fairnessWeight:    DefaultFairnessWeight,
		parallelThreshold: DefaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FairnessScore is the recency staircase: recently presented questions earn no credit
func FairnessScore(lastPresented *time.Time, now time.Time) float64 {
	if lastPresented == nil || lastPresented.IsZero() {
		return maxFairnessScore
	}
	age := now.Sub(*lastPresented)
	switch {
	case age < time.Hour:
		return 0
	case age < 6*time.Hour:
		return 2
	case age < 24*time.Hour:
		return 5
	case age < 72*time.Hour:
		return 7
	default:
		return maxFairnessScore
	}
}

// Score applies trigger boosts and fairness to every question in place.
// Each index is written by exactly one worker; the slice is read only after all have joined.
func (a *Adjuster) Score(ctx context.Context, questions []model.ScoredQuestion, eval *model.TriggerEvaluation, now time.Time) error {
	scoreOne := func(i int) {
		q := &questions[i]
		if eval != nil {
			if act, ok := eval.Activations[q.ID]; ok {
				q.Triggered = true
				q.TriggerBoost = act.MaxBoost
				q.TriggerID = act.ReasonTriggerID
				q.TriggerReason = act.Reason
			}
		}
		q.TopicBoost = 1.0
		q.FairnessScore = FairnessScore(q.LastPresentedAt, now)
		a.recompute(q)
	}

	if a.parallelThreshold <= 0 || len(questions) < a.parallelThreshold {
		for i := range questions {
			if err := ctx.Err(); err != nil {
				return err
			}
			scoreOne(i)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range questions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scoreOne(i)
			return nil
		})
	}
	return g.Wait()
}

// recompute derives AdjustedPriority from its parts
func (a *Adjuster) recompute(q *model.ScoredQuestion) {
	base := float64(q.PriorityLevel) + q.TriggerBoost
	q.AdjustedPriority = base*q.TopicBoost + a.fairnessWeight*q.FairnessScore/maxFairnessScore
}

// ApplyTopics multiplies in topic boosts and groups questions by topic. Topics are ordered
// by their strongest question; questions within a topic by adjusted priority.
func (a *Adjuster) ApplyTopics(questions []model.ScoredQuestion, topics []model.TopicGroup) []model.ScoredQuestion {
	groups := make(map[string]model.TopicGroup, len(topics))
	for _, g := range topics {
		groups[g.TopicCategory] = g
	}

	out := make([]model.ScoredQuestion, len(questions))
	copy(out, questions)

	best := make(map[string]float64)
	for i := range out {
		q := &out[i]
		q.TopicBoost = 1.0
		if g, ok := groups[q.TopicCategory]; ok {
			q.TopicBoost = g.EffectiveBoost()
		}
		a.recompute(q)
		if cur, ok := best[q.TopicCategory]; !ok || q.AdjustedPriority > cur {
			best[q.TopicCategory] = q.AdjustedPriority
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].TopicCategory, out[j].TopicCategory
		if ti != tj {
			if best[ti] != best[tj] {
				return best[ti] > best[tj]
			}
			oi, oj := groups[ti].DisplayOrder, groups[tj].DisplayOrder
			if oi != oj {
				return oi < oj
			}
			return ti < tj
		}
		return byPriority(&out[i], &out[j])
	})
	return out
}

// SortByPriority orders questions by adjusted priority alone
func SortByPriority(questions []model.ScoredQuestion) []model.ScoredQuestion {
	out := make([]model.ScoredQuestion, len(questions))
	copy(out, questions)
	sort.SliceStable(out, func(i, j int) bool { return byPriority(&out[i], &out[j]) })
	return out
}

func byPriority(a, b *model.ScoredQuestion) bool {
	if a.AdjustedPriority != b.AdjustedPriority {
		return a.AdjustedPriority > b.AdjustedPriority
	}
	return a.ID < b.ID
}

// Group orders scored questions for the conversation. When topic metadata is unavailable
// it degrades to a pure priority sort and reports a warning.
func (a *Adjuster) Group(questions []model.ScoredQuestion, topics []model.TopicGroup, topicsErr error) ([]model.ScoredQuestion, []string) {
	if topicsErr != nil {
		a.logger.Warn("Topic metadata unavailable, sorting by priority only", zap.Error(topicsErr))
		return SortByPriority(questions), []string{model.WarnTopicMetadataUnavailable}
	}
	return a.ApplyTopics(questions, topics), nil
}
