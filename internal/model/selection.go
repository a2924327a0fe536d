package model

import "time"

// ProcessingMode toggles the optional pipeline stages as a group
type ProcessingMode string

const (
	ModeFast          ProcessingMode = "fast"
	ModeBalanced      ProcessingMode = "balanced"
	ModeComprehensive ProcessingMode = "comprehensive"
)

// Stage names a pipeline stage
type Stage string

const (
	StageInit                   Stage = "init"
	StageTriggerEvaluation      Stage = "trigger_evaluation"
	StageTopicGrouping          Stage = "topic_grouping"
	StagePriorityBalancing      Stage = "priority_balancing"
	StageFrequencyHarmonization Stage = "frequency_harmonization"
	StageTimeOptimization       Stage = "time_optimization"
	StageCombination            Stage = "combination"
	StageDone                   Stage = "done"
	StageFailed                 Stage = "failed"
)

// ReasonCode explains the shape of a result
type ReasonCode string

const (
	ReasonSelected             ReasonCode = "selected"
	ReasonNoActiveQuestions    ReasonCode = "no_active_questions"
	ReasonNoTriggeredQuestions ReasonCode = "no_triggered_questions"
	ReasonNoEligibleQuestions  ReasonCode = "no_eligible_questions"
	ReasonNoQuestionsFitBudget ReasonCode = "no_questions_fit_budget"
)

// Warning codes recorded in EvaluationMetadata.Warnings
const (
	WarnTopicMetadataUnavailable = "topic_metadata_unavailable"
	WarnPerformanceThreshold     = "performance_threshold_exceeded"
	WarnDeadlineFallback         = "deadline_fallback_greedy"
	WarnBelowMinQuestions        = "below_min_questions"
	WarnStageFailed              = "stage_failed"
	WarnTriggerSkipped           = "trigger_skipped"
	WarnRecordFailed             = "selection_log_failed"
	WarnHistoryUnavailable       = "presentation_history_unavailable"
)

// Constraints bound a single selection run
type Constraints struct {
	MaxDurationSeconds   float64 `json:"maxDurationSeconds" yaml:"maxDurationSeconds"`
	MinQuestions         int     `json:"minQuestions,omitempty" yaml:"minQuestions,omitempty"`
	MaxQuestions         int     `json:"maxQuestions,omitempty" yaml:"maxQuestions,omitempty"`
	PriorityThreshold    int     `json:"priorityThreshold,omitempty" yaml:"priorityThreshold,omitempty"`
	IncludeTriggeredOnly bool    `json:"includeTriggeredOnly" yaml:"includeTriggeredOnly"`
}

// ProcessingOptions select which optional stages run
type ProcessingOptions struct {
	Mode       ProcessingMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Stages     map[Stage]bool `json:"stages,omitempty" yaml:"stages,omitempty"`
	Strategy   Strategy       `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Preference Preference     `json:"preference,omitempty" yaml:"preference,omitempty"`
}

// SelectionRequest is the single input of a selection run
type SelectionRequest struct {
	BusinessID  string              `json:"businessId" yaml:"businessId"`
	Context     EvaluationContext   `json:"context" yaml:"context"`
	Candidates  []CandidateQuestion `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Constraints Constraints         `json:"constraints" yaml:"constraints"`
	Options     ProcessingOptions   `json:"options" yaml:"options"`

	// Now anchors recency scoring; zero means the wall clock at run start.
	Now time.Time `json:"now,omitempty" yaml:"now,omitempty"`
}

// SelectedQuestion is one chosen question with its explanation
type SelectedQuestion struct {
	ID                    string  `json:"id" bson:"id"`
	Text                  string  `json:"text" bson:"text"`
	Category              string  `json:"category" bson:"category"`
	TopicCategory         string  `json:"topicCategory" bson:"topicCategory"`
	Reason                string  `json:"reason" bson:"reason"`
	Tier                  Tier    `json:"tier,omitempty" bson:"tier,omitempty"`
	FinalPriority         float64 `json:"finalPriority" bson:"finalPriority"`
	EstimatedDuration     float64 `json:"estimatedDuration" bson:"estimatedDuration"`
	TimeAllocationSeconds float64 `json:"timeAllocationSeconds" bson:"timeAllocationSeconds"`
	TimeAllocationPercent float64 `json:"timeAllocationPercent" bson:"timeAllocationPercent"`
	Confidence            float64 `json:"confidence" bson:"confidence"`
	Triggered             bool    `json:"triggered" bson:"triggered"`
	TriggerID             string  `json:"triggerId,omitempty" bson:"triggerId,omitempty"`
	TokenCount            int     `json:"tokenCount" bson:"tokenCount"`
}

// StageTiming is the elapsed time of one stage
type StageTiming struct {
	Stage     Stage   `json:"stage" bson:"stage"`
	ElapsedMS float64 `json:"elapsedMs" bson:"elapsedMs"`
	Skipped   bool    `json:"skipped,omitempty" bson:"skipped,omitempty"`
}

// EvaluationMetadata describes how a result was produced
type EvaluationMetadata struct {
	ProcessingMode        ProcessingMode `json:"processingMode" bson:"processingMode"`
	FinalState            Stage          `json:"finalState" bson:"finalState"`
	StageTimings          []StageTiming  `json:"stageTimings" bson:"stageTimings"`
	TotalElapsedMS        float64        `json:"totalElapsedMs" bson:"totalElapsedMs"`
	MetLatencyRequirement bool           `json:"metLatencyRequirement" bson:"metLatencyRequirement"`
	FiredTriggers         []FiredTrigger `json:"firedTriggers,omitempty" bson:"firedTriggers,omitempty"`
	Warnings              []string       `json:"warnings" bson:"warnings"`
	Errors                []string       `json:"errors" bson:"errors"`
}

// EffectivenessMetrics summarise a run for the analytics sink
type EffectivenessMetrics struct {
	CandidateCount     int     `json:"candidateCount" bson:"candidateCount"`
	EligibleCount      int     `json:"eligibleCount" bson:"eligibleCount"`
	TriggeredCount     int     `json:"triggeredCount" bson:"triggeredCount"`
	SelectedCount      int     `json:"selectedCount" bson:"selectedCount"`
	TriggeredSelected  int     `json:"triggeredSelected" bson:"triggeredSelected"`
	TriggeredCoverage  float64 `json:"triggeredCoverage" bson:"triggeredCoverage"` // share of triggered questions selected
	AverageConfidence  float64 `json:"averageConfidence" bson:"averageConfidence"`
	UtilizationPercent float64 `json:"utilizationPercent" bson:"utilizationPercent"`
}

// SelectionResult is the single output of a selection run
type SelectionResult struct {
	RunID      string     `json:"runId" bson:"runId"`
	BusinessID string     `json:"businessId" bson:"businessId"`
	CustomerID string     `json:"customerId,omitempty" bson:"customerId,omitempty"`
	RuleID     string     `json:"ruleId,omitempty" bson:"ruleId,omitempty"`
	Strategy   Strategy   `json:"strategy" bson:"strategy"`
	ReasonCode ReasonCode `json:"reasonCode" bson:"reasonCode"`

	SelectedQuestions []SelectedQuestion `json:"selectedQuestions" bson:"selectedQuestions"`

	MaxDurationSeconds     float64 `json:"maxDurationSeconds" bson:"maxDurationSeconds"`
	AvailableTime          float64 `json:"availableTime" bson:"availableTime"`
	TotalEstimatedDuration float64 `json:"totalEstimatedDuration" bson:"totalEstimatedDuration"`
	TotalTransitionTime    float64 `json:"totalTransitionTime" bson:"totalTransitionTime"`
	TotalTokens            int     `json:"totalTokens" bson:"totalTokens"`
	UtilizationPercent     float64 `json:"utilizationPercent" bson:"utilizationPercent"`
	TotalValue             float64 `json:"totalValue" bson:"totalValue"`

	Metrics  EffectivenessMetrics `json:"metrics" bson:"metrics"`
	Metadata EvaluationMetadata   `json:"metadata" bson:"metadata"`
}

// SelectedIDs lists selected question IDs in delivery order
func (r *SelectionResult) SelectedIDs() []string {
	ids := make([]string, len(r.SelectedQuestions))
	for i, q := range r.SelectedQuestions {
		ids[i] = q.ID
	}
	return ids
}

// AddWarning appends a non-fatal issue
func (r *SelectionResult) AddWarning(w string) {
	r.Metadata.Warnings = append(r.Metadata.Warnings, w)
}
