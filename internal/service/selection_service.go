package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"surveypilot/internal/model"
	"surveypilot/internal/pipeline"
)

var (
	ErrSelectionNotFound = errors.New("selection not found")
	ErrConfigUnavailable = errors.New("business configuration unavailable")
)

// ConfigStore is the read path to per-business configuration
type ConfigStore interface {
	Rules(ctx context.Context, businessID string) ([]model.CombinationRule, error)
	Triggers(ctx context.Context, businessID string) ([]model.TriggerDefinition, error)
	Topics(ctx context.Context, businessID string) ([]model.TopicGroup, error)
	Questions(ctx context.Context, businessID string) ([]model.CandidateQuestion, error)
}

// HistoryStore tracks which questions a customer has been asked. RecordInteraction is
// called once per completed run, with an empty list when nothing was selected.
type HistoryStore interface {
	History(ctx context.Context, businessID, customerID string) (map[string]model.PresentationRecord, error)
	RecordInteraction(ctx context.Context, businessID, customerID string, questionIDs []string, at time.Time) error
}

// LogStore persists and reads back selection logs
type LogStore interface {
	Record(ctx context.Context, entry *model.SelectionLog) error
	GetByRunID(ctx context.Context, runID string) (*model.SelectionLog, error)
}

// SelectionService performs the setup phase around the selection pipeline
type SelectionService struct {
	logger       *zap.Logger
	configs      ConfigStore
	orchestrator *pipeline.Orchestrator
	history      HistoryStore
	logs         LogStore
}

// NewSelectionService creates a new selection service
func NewSelectionService(logger *zap.Logger, configs ConfigStore, orchestrator *pipeline.Orchestrator) *SelectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionService{
		logger:       logger,
		configs:      configs,
		orchestrator: orchestrator,
	}
}

// SetHistoryStore enables presentation history (optional)
func (s *SelectionService) SetHistoryStore(h HistoryStore) {
	s.history = h
}

// SetLogStore sets where runs are recorded (optional)
func (s *SelectionService) SetLogStore(l LogStore) {
	s.logs = l
	s.orchestrator.SetRecorder(l)
}

// LoadConfig fetches everything a run needs for one business. Rules are required;
// a topic failure only degrades the run.
func (s *SelectionService) LoadConfig(ctx context.Context, businessID string) (model.BusinessConfig, error) {
	cfg := model.BusinessConfig{BusinessID: businessID}

	rules, err := s.configs.Rules(ctx, businessID)
	if err != nil {
		return cfg, fmt.Errorf("%w: rules: %v", ErrConfigUnavailable, err)
	}
	cfg.Rules = rules

	triggers, err := s.configs.Triggers(ctx, businessID)
	if err != nil {
		return cfg, fmt.Errorf("%w: triggers: %v", ErrConfigUnavailable, err)
	}
	cfg.Triggers = triggers

	topics, err := s.configs.Topics(ctx, businessID)
	if err != nil {
		s.logger.Warn("Failed to load topic groups", zap.String("businessId", businessID), zap.Error(err))
		cfg.TopicsErr = err
	}
	cfg.Topics = topics
	return cfg, nil
}

// Select runs one selection for a customer interaction
func (s *SelectionService) Select(ctx context.Context, req *model.SelectionRequest) (*model.SelectionResult, error) {
	cfg, err := s.LoadConfig(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}

	run := *req
	if len(run.Candidates) == 0 {
		questions, err := s.configs.Questions(ctx, req.BusinessID)
		if err != nil {
			return nil, fmt.Errorf("%w: questions: %v", ErrConfigUnavailable, err)
		}
		run.Candidates = questions
	} else {
		run.Candidates = append([]model.CandidateQuestion(nil), req.Candidates...)
	}

	historyErr := s.mergeHistory(ctx, &run)

	result, err := s.orchestrator.Run(ctx, &run, cfg)
	if err != nil {
		return nil, err
	}
	if historyErr != nil {
		result.AddWarning(model.WarnHistoryUnavailable)
	}

	if s.history != nil && run.Context.CustomerID != "" {
		at := run.Now
		if at.IsZero() {
			at = time.Now()
		}
		if err := s.history.RecordInteraction(ctx, run.BusinessID, run.Context.CustomerID, result.SelectedIDs(), at); err != nil {
			s.logger.Warn("Failed to record interaction",
				zap.String("runId", result.RunID),
				zap.String("customerId", run.Context.CustomerID),
				zap.Error(err))
		}
	}
	return result, nil
}

// mergeHistory copies presentation history into candidates that carry none
func (s *SelectionService) mergeHistory(ctx context.Context, req *model.SelectionRequest) error {
	if s.history == nil || req.Context.CustomerID == "" {
		return nil
	}
	records, err := s.history.History(ctx, req.BusinessID, req.Context.CustomerID)
	if err != nil {
		s.logger.Warn("Presentation history unavailable",
			zap.String("businessId", req.BusinessID),
			zap.String("customerId", req.Context.CustomerID),
			zap.Error(err))
		return err
	}
	for i := range req.Candidates {
		q := &req.Candidates[i]
		rec, ok := records[q.ID]
		if !ok {
			continue
		}
		if q.LastPresentedAt == nil {
			last := rec.LastPresentedAt
			q.LastPresentedAt = &last
		}
		if q.InteractionsSinceLastAsked == nil {
			since := rec.InteractionsSince
			q.InteractionsSinceLastAsked = &since
		}
	}
	return nil
}

// GetSelection reads a recorded run back
func (s *SelectionService) GetSelection(ctx context.Context, runID string) (*model.SelectionLog, error) {
	if s.logs == nil {
		return nil, ErrSelectionNotFound
	}
	entry, err := s.logs.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrSelectionNotFound
	}
	return entry, nil
}
