package model

import (
	"strings"
	"time"
)

// TriggerKind defines what kind of context a trigger reacts to
type TriggerKind string

const (
	TriggerPurchaseCategory TriggerKind = "purchase_category"
	TriggerTimeOfDay        TriggerKind = "time_of_day"
	TriggerAmount           TriggerKind = "amount"
)

// ConditionOperator compares a context field against a condition value
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "not_contains"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpBetween     ConditionOperator = "between"
	OpInRange     ConditionOperator = "in_range"
)

// TriggerCondition is one weighted test against the evaluation context
type TriggerCondition struct {
	Field    string            `json:"field" bson:"field" yaml:"field"`
	Operator ConditionOperator `json:"operator" bson:"operator" yaml:"operator"`
	Value    string            `json:"value,omitempty" bson:"value,omitempty" yaml:"value,omitempty"`
	Values   []string          `json:"values,omitempty" bson:"values,omitempty" yaml:"values,omitempty"`
	Weight   float64           `json:"weight" bson:"weight" yaml:"weight"` // 0 means 1
	Required bool              `json:"required" bson:"required" yaml:"required"`
}

// EffectiveWeight returns the weight used for the confidence average
func (c TriggerCondition) EffectiveWeight() float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}

// TriggerDefinition is a business rule that boosts or activates questions
type TriggerDefinition struct {
	ID                   string             `json:"id" bson:"_id,omitempty" yaml:"id"`
	BusinessID           string             `json:"businessId" bson:"businessId" yaml:"businessId"`
	Name                 string             `json:"name" bson:"name" yaml:"name"`
	Kind                 TriggerKind        `json:"kind" bson:"kind" yaml:"kind"`
	PriorityLevel        int                `json:"priorityLevel" bson:"priorityLevel" yaml:"priorityLevel"`
	SensitivityThreshold float64            `json:"sensitivityThreshold" bson:"sensitivityThreshold" yaml:"sensitivityThreshold"` // 0-100
	Conditions           []TriggerCondition `json:"conditions" bson:"conditions" yaml:"conditions"`
	QuestionIDs          []string           `json:"questionIds,omitempty" bson:"questionIds,omitempty" yaml:"questionIds,omitempty"`
	PriorityBoost        float64            `json:"priorityBoost" bson:"priorityBoost" yaml:"priorityBoost"`
	IsActive             bool               `json:"isActive" bson:"isActive" yaml:"isActive"`
}

// EvaluationContext holds the customer and transaction facts for one run
type EvaluationContext struct {
	CustomerID         string            `json:"customerId" yaml:"customerId"`
	PurchaseCategories []string          `json:"purchaseCategories,omitempty" yaml:"purchaseCategories,omitempty"`
	PurchaseItems      []string          `json:"purchaseItems,omitempty" yaml:"purchaseItems,omitempty"`
	TransactionAmount  float64           `json:"transactionAmount" yaml:"transactionAmount"`
	Currency           string            `json:"currency,omitempty" yaml:"currency,omitempty"`
	TransactionTime    time.Time         `json:"transactionTime" yaml:"transactionTime"`
	DayOfWeek          string            `json:"dayOfWeek,omitempty" yaml:"dayOfWeek,omitempty"`
	IsWeekend          bool              `json:"isWeekend" yaml:"isWeekend"`
	TimeOfDay          string            `json:"timeOfDay,omitempty" yaml:"timeOfDay,omitempty"` // morning, afternoon, evening, night
	Attributes         map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Normalized fills the derived calendar fields from TransactionTime
func (c EvaluationContext) Normalized() EvaluationContext {
	if c.TransactionTime.IsZero() {
		if c.DayOfWeek != "" {
			day := strings.ToLower(c.DayOfWeek)
			c.IsWeekend = day == "saturday" || day == "sunday"
		}
		return c
	}
	wd := c.TransactionTime.Weekday()
	c.IsWeekend = wd == time.Saturday || wd == time.Sunday
	if c.DayOfWeek == "" {
		c.DayOfWeek = strings.ToLower(wd.String())
	}
	if c.TimeOfDay == "" {
		c.TimeOfDay = TimeOfDayFor(c.TransactionTime.Hour())
	}
	return c
}

// TimeOfDayFor buckets an hour of the day
func TimeOfDayFor(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

// TriggerActivation is the folded outcome for one question across all fired triggers
type TriggerActivation struct {
	QuestionID      string   `json:"questionId"`
	MaxBoost        float64  `json:"maxBoost"`
	BoostTriggerID  string   `json:"boostTriggerId"`  // trigger that supplied MaxBoost
	ReasonTriggerID string   `json:"reasonTriggerId"` // trigger whose reason is reported
	Reason          string   `json:"reason"`
	FiringTriggers  []string `json:"firingTriggers"`
}

// FiredTrigger describes a trigger that fired in a run
type FiredTrigger struct {
	TriggerID     string   `json:"triggerId"`
	Name          string   `json:"name"`
	PriorityLevel int      `json:"priorityLevel"`
	Confidence    float64  `json:"confidence"`
	QuestionIDs   []string `json:"questionIds"`
}

// TriggerEvaluation is the output of the trigger stage
type TriggerEvaluation struct {
	Fired       []FiredTrigger               `json:"fired"`
	Activations map[string]TriggerActivation `json:"activations"`
	Evaluated   int                          `json:"evaluated"`
	Skipped     int                          `json:"skipped"`
	Errors      []string                     `json:"errors,omitempty"`
}

// Boost returns the folded boost for a question, zero when not triggered
func (e *TriggerEvaluation) Boost(questionID string) float64 {
	if e == nil {
		return 0
	}
	return e.Activations[questionID].MaxBoost
}
