package model

import "time"

// SelectionLog is the audit and effectiveness record of one run
type SelectionLog struct {
	RunID       string               `json:"runId" bson:"_id"`
	BusinessID  string               `json:"businessId" bson:"businessId"`
	CustomerID  string               `json:"customerId" bson:"customerId"`
	RuleID      string               `json:"ruleId" bson:"ruleId"`
	Strategy    Strategy             `json:"strategy" bson:"strategy"`
	ReasonCode  ReasonCode           `json:"reasonCode" bson:"reasonCode"`
	QuestionIDs []string             `json:"questionIds" bson:"questionIds"`
	Metrics     EffectivenessMetrics `json:"metrics" bson:"metrics"`
	Result      *SelectionResult     `json:"result,omitempty" bson:"result,omitempty"`
	Succeeded   bool                 `json:"succeeded" bson:"succeeded"`
	Error       string               `json:"error,omitempty" bson:"error,omitempty"`
	ElapsedMS   float64              `json:"elapsedMs" bson:"elapsedMs"`
	CreatedAt   time.Time            `json:"createdAt" bson:"createdAt"`
}

// NewSelectionLog builds the log entry for a finished run
func NewSelectionLog(result *SelectionResult, runErr error, at time.Time) *SelectionLog {
	entry := &SelectionLog{
		Succeeded: runErr == nil,
		CreatedAt: at,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if result != nil {
		entry.RunID = result.RunID
		entry.BusinessID = result.BusinessID
		entry.CustomerID = result.CustomerID
		entry.RuleID = result.RuleID
		entry.Strategy = result.Strategy
		entry.ReasonCode = result.ReasonCode
		entry.QuestionIDs = result.SelectedIDs()
		entry.Metrics = result.Metrics
		entry.ElapsedMS = result.Metadata.TotalElapsedMS
		entry.Result = result
	}
	return entry
}

// PresentationRecord is the history of one question for one customer
type PresentationRecord struct {
	QuestionID        string    `json:"questionId"`
	LastPresentedAt   time.Time `json:"lastPresentedAt"`
	InteractionsSince int       `json:"interactionsSince"`
}
