package model

import "time"

// MaxCallDurationSeconds is the absolute ceiling for any combination rule or request
const MaxCallDurationSeconds = 300

// Strategy names a time-constrained selection algorithm
type Strategy string

const (
	StrategyAuto               Strategy = "auto"
	StrategyGreedy             Strategy = "greedy"
	StrategyDynamicProgramming Strategy = "dynamic_programming"
	StrategyTimeBalanced       Strategy = "time_balanced"
	StrategyEfficiencyRanked   Strategy = "token_estimation"
)

// Preference biases automatic strategy selection
type Preference string

const (
	PreferenceNone     Preference = ""
	PreferenceSpeed    Preference = "speed"
	PreferenceAccuracy Preference = "accuracy"
	PreferenceBalanced Preference = "balanced"
)

// Tier is a named priority band derived from rule thresholds
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierMinimal  Tier = "minimal"
)

// PriorityThresholds are the adjusted-priority floors of each tier
type PriorityThresholds struct {
	Critical float64 `json:"critical" bson:"critical" yaml:"critical"`
	High     float64 `json:"high" bson:"high" yaml:"high"`
	Medium   float64 `json:"medium" bson:"medium" yaml:"medium"`
	Low      float64 `json:"low" bson:"low" yaml:"low"`
}

// DefaultThresholds matches the 1-5 priority scale
func DefaultThresholds() PriorityThresholds {
	return PriorityThresholds{Critical: 5, High: 4, Medium: 3, Low: 1}
}

// IsZero reports whether no threshold was configured
func (t PriorityThresholds) IsZero() bool {
	return t == PriorityThresholds{}
}

// TierFor maps an adjusted priority onto a tier
func (t PriorityThresholds) TierFor(priority float64) Tier {
	switch {
	case priority >= t.Critical:
		return TierCritical
	case priority >= t.High:
		return TierHigh
	case priority >= t.Medium:
		return TierMedium
	case priority >= t.Low:
		return TierLow
	default:
		return TierMinimal
	}
}

// CombinationRule is the per-business selection configuration.
// Exactly one rule per business is active; the configuration store enforces that.
type CombinationRule struct {
	ID                      string             `json:"id" bson:"_id,omitempty" yaml:"id"`
	BusinessID              string             `json:"businessId" bson:"businessId" yaml:"businessId"`
	Name                    string             `json:"name" bson:"name" yaml:"name"`
	MaxTotalDurationSeconds float64            `json:"maxTotalDurationSeconds" bson:"maxTotalDurationSeconds" yaml:"maxTotalDurationSeconds"`
	Thresholds              PriorityThresholds `json:"thresholds" bson:"thresholds" yaml:"thresholds"`
	IsActive                bool               `json:"isActive" bson:"isActive" yaml:"isActive"`
	Strategy                Strategy           `json:"strategy" bson:"strategy" yaml:"strategy"`
	Preference              Preference         `json:"preference,omitempty" bson:"preference,omitempty" yaml:"preference,omitempty"`

	// Optional overrides of the service defaults
	BufferPercentage  *float64 `json:"bufferPercentage,omitempty" bson:"bufferPercentage,omitempty" yaml:"bufferPercentage,omitempty"`
	TransitionSeconds *float64 `json:"transitionSeconds,omitempty" bson:"transitionSeconds,omitempty" yaml:"transitionSeconds,omitempty"`

	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" yaml:"-"`
}

// TopicGroup configures a conversational theme
type TopicGroup struct {
	BusinessID    string  `json:"businessId" bson:"businessId" yaml:"businessId"`
	TopicCategory string  `json:"topicCategory" bson:"topicCategory" yaml:"topicCategory"`
	Boost         float64 `json:"boost" bson:"boost" yaml:"boost"` // multiplicative, 0 means 1.0
	DisplayOrder  int     `json:"displayOrder" bson:"displayOrder" yaml:"displayOrder"`
}

// EffectiveBoost returns the multiplier applied to adjusted priority
func (g TopicGroup) EffectiveBoost() float64 {
	if g.Boost <= 0 {
		return 1.0
	}
	return g.Boost
}

// BusinessConfig is the read-only configuration one run is evaluated against
type BusinessConfig struct {
	BusinessID string              `json:"businessId" yaml:"businessId"`
	Rules      []CombinationRule   `json:"rules" yaml:"rules"`
	Triggers   []TriggerDefinition `json:"triggers" yaml:"triggers"`
	Topics     []TopicGroup        `json:"topics" yaml:"topics"`

	// TopicsErr is set when topic metadata could not be loaded; the run degrades to a priority sort.
	TopicsErr error `json:"-" yaml:"-"`
}
