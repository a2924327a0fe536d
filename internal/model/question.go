package model

import "time"

// CandidateQuestion is a survey question eligible for selection in a run.
// It is owned by the configuration store and never mutated by a run.
type CandidateQuestion struct {
	ID            string `json:"id" bson:"_id,omitempty" yaml:"id"`
	BusinessID    string `json:"businessId" bson:"businessId" yaml:"businessId"`
	Text          string `json:"text" bson:"text" yaml:"text"`
	Category      string `json:"category" bson:"category" yaml:"category"`                // e.g. "product_quality", "checkout"
	TopicCategory string `json:"topicCategory" bson:"topicCategory" yaml:"topicCategory"` // conversational theme
	PriorityLevel int    `json:"priorityLevel" bson:"priorityLevel" yaml:"priorityLevel"` // 1 (low) - 5 (critical)
	TokenCount    int    `json:"tokenCount,omitempty" bson:"tokenCount,omitempty" yaml:"tokenCount,omitempty"`
	Complexity    int    `json:"complexity,omitempty" bson:"complexity,omitempty" yaml:"complexity,omitempty"` // 1-5, 0 means 1

	// Duration hints, most trusted first
	HistoricalDurationSeconds float64 `json:"historicalDurationSeconds,omitempty" bson:"historicalDurationSeconds,omitempty" yaml:"historicalDurationSeconds,omitempty"`
	EstimatedDurationSeconds  float64 `json:"estimatedDurationSeconds,omitempty" bson:"estimatedDurationSeconds,omitempty" yaml:"estimatedDurationSeconds,omitempty"`

	// RepeatFrequency is how many interactions must elapse before the question is asked again.
	RepeatFrequency int `json:"repeatFrequency" bson:"repeatFrequency" yaml:"repeatFrequency"`

	// Presentation history, merged in from the history store before a run
	LastPresentedAt            *time.Time `json:"lastPresentedAt,omitempty" bson:"lastPresentedAt,omitempty" yaml:"lastPresentedAt,omitempty"`
	InteractionsSinceLastAsked *int       `json:"interactionsSinceLastAsked,omitempty" bson:"-" yaml:"interactionsSinceLastAsked,omitempty"`

	IsActive bool `json:"isActive" bson:"isActive" yaml:"isActive"`
}

// DurationSource records which hint produced a duration estimate
type DurationSource string

const (
	DurationHistorical    DurationSource = "historical"
	DurationExplicit      DurationSource = "explicit"
	DurationTokenEstimate DurationSource = "token_estimate"
)

// ScoredQuestion is a candidate enriched for one selection run. It is never persisted.
type ScoredQuestion struct {
	CandidateQuestion

	// Trigger stage
	Triggered     bool    `json:"triggered"`
	TriggerBoost  float64 `json:"triggerBoost"`
	TriggerID     string  `json:"triggerId,omitempty"` // trigger that owns the activation reason
	TriggerReason string  `json:"triggerReason,omitempty"`

	// Priority stage
	TopicBoost       float64 `json:"topicBoost"`
	FairnessScore    float64 `json:"fairnessScore"`
	AdjustedPriority float64 `json:"adjustedPriority"`
	Tier             Tier    `json:"tier,omitempty"`

	// Selection stage
	EstimatedDuration  float64        `json:"estimatedDuration"`
	DurationSource     DurationSource `json:"durationSource,omitempty"`
	DurationConfidence float64        `json:"durationConfidence"`
	Rank               int            `json:"rank"` // position in conversation order
}

// NewScoredQuestions wraps candidates with neutral enrichment
func NewScoredQuestions(candidates []CandidateQuestion) []ScoredQuestion {
	scored := make([]ScoredQuestion, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredQuestion{
			CandidateQuestion: c,
			TopicBoost:        1.0,
			AdjustedPriority:  float64(c.PriorityLevel),
		}
	}
	return scored
}

// Value is the objective each selection strategy is compared on
func (q *ScoredQuestion) Value() float64 {
	return q.AdjustedPriority * q.DurationConfidence
}
