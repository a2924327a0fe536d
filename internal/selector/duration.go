package selector

import (
	"math"

	"surveypilot/internal/model"
)

// Confidence attached to each duration source
const (
	HistoricalConfidence    = 0.9
	ExplicitConfidence      = 0.7
	TokenEstimateConfidence = 0.6

	minTokenEstimateSeconds = 8.0
	tokensPerSecond         = 4.2
	complexityFactor        = 0.3
	charsPerToken           = 4
)

// DefaultCategoryMultipliers scales estimates for categories that run long or short in practice
func DefaultCategoryMultipliers() map[string]float64 {
	return map[string]float64{
		"product_quality": 1.2,
		"checkout":        0.9,
		"delivery":        1.1,
		"service":         1.0,
		"pricing":         1.0,
	}
}

// Estimator turns question metadata into whole-second duration estimates
type Estimator struct {
	multipliers map[string]float64
}

// NewEstimator creates an estimator; a nil map uses the default multipliers
func NewEstimator(multipliers map[string]float64) *Estimator {
	if multipliers == nil {
		multipliers = DefaultCategoryMultipliers()
	}
	return &Estimator{multipliers: multipliers}
}

// Multiplier returns the category scale, 1.0 for unknown categories
func (e *Estimator) Multiplier(category string) float64 {
	if m, ok := e.multipliers[category]; ok && m > 0 {
		return m
	}
	return 1.0
}

// TokenEstimate is the duration derived from token count and complexity, before the category multiplier
func TokenEstimate(q model.CandidateQuestion) float64 {
	tokens := q.TokenCount
	if tokens <= 0 {
		tokens = (len(q.Text) + charsPerToken - 1) / charsPerToken
	}
	complexity := q.Complexity
	if complexity < 1 {
		complexity = 1
	}
	est := float64(tokens) / tokensPerSecond * (1 + float64(complexity-1)*complexityFactor)
	return math.Max(minTokenEstimateSeconds, est)
}

// Estimate picks the most trusted duration hint: historical, then explicit, then token-derived.
// The result is rounded up to whole seconds and is never below one second.
func (e *Estimator) Estimate(q model.CandidateQuestion) (float64, model.DurationSource, float64) {
	var (
		raw  float64
		src  model.DurationSource
		conf float64
	)
	switch {
	case q.HistoricalDurationSeconds > 0:
		raw, src, conf = q.HistoricalDurationSeconds, model.DurationHistorical, HistoricalConfidence
	case q.EstimatedDurationSeconds > 0:
		raw, src, conf = q.EstimatedDurationSeconds, model.DurationExplicit, ExplicitConfidence
	default:
		raw, src, conf = TokenEstimate(q), model.DurationTokenEstimate, TokenEstimateConfidence
	}
	seconds := math.Ceil(raw*e.Multiplier(q.Category) - 1e-9)
	if seconds < 1 {
		seconds = 1
	}
	return seconds, src, conf
}

// Apply fills the duration fields of every question in place
func (e *Estimator) Apply(questions []model.ScoredQuestion) {
	for i := range questions {
		q := &questions[i]
		q.EstimatedDuration, q.DurationSource, q.DurationConfidence = e.Estimate(q.CandidateQuestion)
	}
}
