// Package pipeline runs one selection end to end: trigger evaluation, priority
// adjustment, the optional shaping stages, time optimization and combination.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"surveypilot/internal/model"
	"surveypilot/internal/priority"
	"surveypilot/internal/selector"
	"surveypilot/internal/trigger"
)

// DefaultLatencyBudget is the end-to-end latency target of a run
const DefaultLatencyBudget = 500 * time.Millisecond

// Recorder persists the audit log of a run
type Recorder interface {
	Record(ctx context.Context, entry *model.SelectionLog) error
}

// Config holds orchestrator defaults
type Config struct {
	LatencyBudget     time.Duration
	HardDeadline      bool // enforce LatencyBudget by degrading to greedy
	BufferPercentage  float64
	TransitionSeconds float64
	DefaultMode       model.ProcessingMode
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		LatencyBudget:     DefaultLatencyBudget,
		BufferPercentage:  selector.DefaultBufferPercentage,
		TransitionSeconds: selector.DefaultTransitionSeconds,
		DefaultMode:       model.ModeBalanced,
	}
}

// Scorer computes adjusted priorities and the conversational ordering
type Scorer interface {
	Score(ctx context.Context, questions []model.ScoredQuestion, eval *model.TriggerEvaluation, now time.Time) error
	Group(questions []model.ScoredQuestion, topics []model.TopicGroup, topicsErr error) ([]model.ScoredQuestion, []string)
}

// DurationEstimator fills in estimated durations and their confidence
type DurationEstimator interface {
	Apply(questions []model.ScoredQuestion)
}

type stageFunc func(ctx context.Context, r *run, qs []model.ScoredQuestion) ([]model.ScoredQuestion, error)

// Orchestrator drives the selection state machine
type Orchestrator struct {
	logger    *zap.Logger
	triggers  *trigger.Evaluator
	adjuster  Scorer
	estimator DurationEstimator
	recorder  Recorder
	cfg       Config

	clock func() time.Time
	newID func() string
}

// NewOrchestrator creates an orchestrator; nil components get their defaults
func NewOrchestrator(logger *zap.Logger, triggers *trigger.Evaluator, adjuster Scorer, estimator DurationEstimator, cfg Config) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if triggers == nil {
		triggers = trigger.NewEvaluator(logger)
	}
	if adjuster == nil {
		adjuster = priority.NewAdjuster(logger)
	}
	if estimator == nil {
		estimator = selector.NewEstimator(nil)
	}
	if cfg.LatencyBudget <= 0 {
		cfg.LatencyBudget = DefaultLatencyBudget
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = model.ModeBalanced
	}
	return &Orchestrator{
		logger:    logger,
		triggers:  triggers,
		adjuster:  adjuster,
		estimator: estimator,
		cfg:       cfg,
		clock:     time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// SetRecorder sets the audit sink (optional)
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.recorder = r
}

// run is the mutable state of one selection
type run struct {
	req      *model.SelectionRequest
	cfg      model.BusinessConfig
	plan     *plan
	result   *model.SelectionResult
	state    model.Stage
	now      time.Time
	start    time.Time
	deadline time.Time

	activeCount    int
	triggeredCount int
	eval           *model.TriggerEvaluation
	questions      []model.ScoredQuestion
	outcome        *selector.Outcome
}

// Run executes one selection. Configuration and validation errors abort the run; every other
// issue is reported as a warning on the returned result.
func (o *Orchestrator) Run(ctx context.Context, req *model.SelectionRequest, cfg model.BusinessConfig) (*model.SelectionResult, error) {
	r := &run{
		req:   req,
		cfg:   cfg,
		state: model.StageInit,
		start: o.clock(),
		result: &model.SelectionResult{
			RunID:             o.newID(),
			BusinessID:        req.BusinessID,
			CustomerID:        req.Context.CustomerID,
			ReasonCode:        model.ReasonSelected,
			SelectedQuestions: []model.SelectedQuestion{},
			Metadata: model.EvaluationMetadata{
				StageTimings: []model.StageTiming{},
				Warnings:     []string{},
				Errors:       []string{},
			},
		},
	}
	r.deadline = r.start.Add(o.cfg.LatencyBudget)
	r.now = req.Now
	if r.now.IsZero() {
		r.now = r.start
	}

	err := o.execute(ctx, r)
	return o.finish(ctx, r, err)
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	if err := o.mandatory(ctx, r, model.StageInit, o.initialize); err != nil {
		return err
	}
	if err := o.mandatory(ctx, r, model.StageTriggerEvaluation, o.evaluateTriggers); err != nil {
		return err
	}
	o.optional(ctx, r, model.StageTopicGrouping, o.groupTopics, priority.SortByPriority)
	o.optional(ctx, r, model.StagePriorityBalancing, o.balance, nil)
	o.optional(ctx, r, model.StageFrequencyHarmonization, o.harmonize, nil)
	if err := o.mandatory(ctx, r, model.StageTimeOptimization, o.optimize); err != nil {
		return err
	}
	return o.mandatory(ctx, r, model.StageCombination, o.combine)
}

// mandatory runs a stage whose failure aborts the run
func (o *Orchestrator) mandatory(ctx context.Context, r *run, stage model.Stage, fn stageFunc) error {
	r.state = stage
	started := o.clock()
	out, err := o.call(ctx, r, stage, fn)
	o.timing(r, stage, started, false)
	if err != nil {
		return err
	}
	r.questions = out
	return nil
}

// optional runs a fail-open stage: errors and panics become warnings and the input passes through.
// skipped, when set, shapes the data if the stage is disabled.
func (o *Orchestrator) optional(ctx context.Context, r *run, stage model.Stage, fn stageFunc, skipped func([]model.ScoredQuestion) []model.ScoredQuestion) {
	r.state = stage
	started := o.clock()
	if !r.plan.stages[stage] || o.pastDeadline(r) {
		if skipped != nil {
			r.questions = skipped(r.questions)
		}
		o.timing(r, stage, started, true)
		return
	}

	out, err := o.call(ctx, r, stage, fn)
	o.timing(r, stage, started, false)
	if err != nil {
		o.logger.Warn("Optional stage failed, passing input through",
			zap.String("runId", r.result.RunID),
			zap.String("stage", string(stage)),
			zap.Error(err))
		r.result.AddWarning(fmt.Sprintf("%s:%s", model.WarnStageFailed, stage))
		if skipped != nil {
			r.questions = skipped(r.questions)
		}
		return
	}
	r.questions = out
}

// call runs a stage and converts a panic into a StageError
func (o *Orchestrator) call(ctx context.Context, r *run, stage model.Stage, fn stageFunc) (out []model.ScoredQuestion, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	out, err = fn(ctx, r, r.questions)
	if err != nil && stage != model.StageInit {
		err = &StageError{Stage: stage, Err: err}
	}
	return out, err
}

func (o *Orchestrator) timing(r *run, stage model.Stage, started time.Time, skipped bool) {
	r.result.Metadata.StageTimings = append(r.result.Metadata.StageTimings, model.StageTiming{
		Stage:     stage,
		ElapsedMS: ms(o.clock().Sub(started)),
		Skipped:   skipped,
	})
}

func (o *Orchestrator) pastDeadline(r *run) bool {
	return o.cfg.HardDeadline && !o.clock().Before(r.deadline)
}

// initialize resolves the active rule, validates constraints and keeps the active candidates
func (o *Orchestrator) initialize(_ context.Context, r *run, _ []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
	rule, err := ActiveRule(r.cfg.Rules)
	if err != nil {
		return nil, err
	}
	r.result.RuleID = rule.ID
	p, err := o.validate(r.req, rule)
	if err != nil {
		return nil, err
	}
	r.plan = p
	r.result.Metadata.ProcessingMode = p.mode
	r.result.MaxDurationSeconds = p.budget.MaxDurationSeconds
	r.result.AvailableTime = p.budget.AvailableTime()

	active := make([]model.CandidateQuestion, 0, len(r.req.Candidates))
	for _, q := range r.req.Candidates {
		if q.IsActive {
			active = append(active, q)
		}
	}
	r.activeCount = len(active)
	return model.NewScoredQuestions(active), nil
}

// evaluateTriggers fires triggers, scores every question and applies the request filters
func (o *Orchestrator) evaluateTriggers(ctx context.Context, r *run, qs []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
	candidates := make([]model.CandidateQuestion, len(qs))
	for i := range qs {
		candidates[i] = qs[i].CandidateQuestion
	}
	eval, err := o.triggers.Evaluate(ctx, r.req.Context, r.cfg.Triggers, candidates)
	if err != nil {
		return nil, err
	}
	r.eval = eval
	r.result.Metadata.FiredTriggers = eval.Fired
	for _, e := range eval.Errors {
		r.result.AddWarning(fmt.Sprintf("%s:%s", model.WarnTriggerSkipped, e))
	}

	if err := o.adjuster.Score(ctx, qs, eval, r.now); err != nil {
		return nil, err
	}

	threshold := r.req.Constraints.PriorityThreshold
	out := make([]model.ScoredQuestion, 0, len(qs))
	for _, q := range qs {
		if q.Triggered {
			r.triggeredCount++
		}
		if r.req.Constraints.IncludeTriggeredOnly && !q.Triggered {
			continue
		}
		if threshold > 0 && q.PriorityLevel < threshold && !q.Triggered {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (o *Orchestrator) groupTopics(_ context.Context, r *run, qs []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
	out, warnings := o.adjuster.Group(qs, r.cfg.Topics, r.cfg.TopicsErr)
	for _, w := range warnings {
		r.result.AddWarning(w)
	}
	return out, nil
}

func (o *Orchestrator) balance(_ context.Context, r *run, qs []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
	return priority.Balance(qs, r.plan.rule.Thresholds, r.req.Constraints.PriorityThreshold), nil
}

func (o *Orchestrator) harmonize(_ context.Context, _ *run, qs []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
	return priority.Harmonize(qs), nil
}

// optimize estimates durations and runs the selection strategy
func (o *Orchestrator) optimize(ctx context.Context, r *run, qs []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
	o.estimator.Apply(qs)
	for i := range qs {
		qs[i].Rank = i
		if qs[i].Tier == "" {
			qs[i].Tier = r.thresholds().TierFor(qs[i].AdjustedPriority)
		}
	}

	strategy := selector.Resolve(r.plan.strategy, len(qs), r.plan.preference)
	if o.pastDeadline(r) && strategy != model.StrategyGreedy {
		r.result.AddWarning(model.WarnDeadlineFallback)
		strategy = model.StrategyGreedy
	}

	// greedy is the fallback and always runs to completion
	selectCtx := ctx
	if o.cfg.HardDeadline && strategy != model.StrategyGreedy {
		var cancel context.CancelFunc
		selectCtx, cancel = context.WithTimeout(ctx, r.deadline.Sub(o.clock()))
		defer cancel()
	}
	outcome, err := selector.Select(selectCtx, strategy, qs, r.plan.budget)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		o.logger.Warn("Latency deadline passed during selection, falling back to greedy",
			zap.String("runId", r.result.RunID),
			zap.String("strategy", string(strategy)))
		r.result.AddWarning(model.WarnDeadlineFallback)
		outcome, err = selector.Select(ctx, model.StrategyGreedy, qs, r.plan.budget)
	}
	if err != nil {
		return nil, err
	}
	r.outcome = outcome
	r.result.Strategy = outcome.Strategy
	return qs, nil
}

func (r *run) thresholds() model.PriorityThresholds {
	if r.plan.rule.Thresholds.IsZero() {
		return model.DefaultThresholds()
	}
	return r.plan.rule.Thresholds
}

// combine applies count limits and builds the response
func (o *Orchestrator) combine(_ context.Context, r *run, qs []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
	if r.outcome == nil {
		return nil, errors.New("no selection outcome")
	}
	items := limit(r.outcome.Items, r.req.Constraints.MaxQuestions)

	res := r.result
	res.SelectedQuestions = make([]model.SelectedQuestion, 0, len(items))
	res.TotalEstimatedDuration, res.TotalTransitionTime, res.TotalTokens, res.TotalValue = 0, 0, 0, 0
	used, confidence, triggeredSelected := 0.0, 0.0, 0
	for _, it := range items {
		q := it.Question
		reason := it.Reason
		if q.Triggered && q.TriggerReason != "" {
			reason += "; " + q.TriggerReason
		}
		res.SelectedQuestions = append(res.SelectedQuestions, model.SelectedQuestion{
			ID:                    q.ID,
			Text:                  q.Text,
			Category:              q.Category,
			TopicCategory:         q.TopicCategory,
			Reason:                reason,
			Tier:                  q.Tier,
			FinalPriority:         q.AdjustedPriority,
			EstimatedDuration:     q.EstimatedDuration,
			TimeAllocationSeconds: it.TimeAllocationSeconds,
			TimeAllocationPercent: it.TimeAllocationPercent,
			Confidence:            q.DurationConfidence,
			Triggered:             q.Triggered,
			TriggerID:             q.TriggerID,
			TokenCount:            q.TokenCount,
		})
		used += it.TimeAllocationSeconds
		confidence += q.DurationConfidence
		res.TotalEstimatedDuration += q.EstimatedDuration
		res.TotalTransitionTime += it.TimeAllocationSeconds - q.EstimatedDuration
		res.TotalTokens += q.TokenCount
		res.TotalValue += q.Value()
		if q.Triggered {
			triggeredSelected++
		}
	}
	if res.AvailableTime > 0 {
		res.UtilizationPercent = used / res.AvailableTime * 100
	}

	m := model.EffectivenessMetrics{
		CandidateCount:     len(r.req.Candidates),
		EligibleCount:      len(qs),
		TriggeredCount:     r.triggeredCount,
		SelectedCount:      len(items),
		TriggeredSelected:  triggeredSelected,
		UtilizationPercent: res.UtilizationPercent,
	}
	if r.triggeredCount > 0 {
		m.TriggeredCoverage = float64(triggeredSelected) / float64(r.triggeredCount)
	}
	if len(items) > 0 {
		m.AverageConfidence = confidence / float64(len(items))
	}
	res.Metrics = m

	switch {
	case r.activeCount == 0:
		res.ReasonCode = model.ReasonNoActiveQuestions
	case r.req.Constraints.IncludeTriggeredOnly && r.triggeredCount == 0:
		res.ReasonCode = model.ReasonNoTriggeredQuestions
	case len(qs) == 0:
		res.ReasonCode = model.ReasonNoEligibleQuestions
	case len(items) == 0:
		res.ReasonCode = model.ReasonNoQuestionsFitBudget
	default:
		res.ReasonCode = model.ReasonSelected
	}
	if minQuestions := r.req.Constraints.MinQuestions; minQuestions > 0 && len(items) < minQuestions {
		res.AddWarning(model.WarnBelowMinQuestions)
	}
	return qs, nil
}

// limit keeps the max highest-priority items, preserving conversation order
func limit(items []selector.Item, max int) []selector.Item {
	if max <= 0 || len(items) <= max {
		return items
	}
	keep := make([]bool, len(items))
	for n := 0; n < max; n++ {
		best := -1
		for i := range items {
			if keep[i] {
				continue
			}
			if best < 0 || items[i].Question.AdjustedPriority > items[best].Question.AdjustedPriority {
				best = i
			}
		}
		keep[best] = true
	}
	out := make([]selector.Item, 0, max)
	for i, it := range items {
		if keep[i] {
			out = append(out, it)
		}
	}
	return out
}

// finish closes the state machine, logs the run and hands it to the recorder
func (o *Orchestrator) finish(ctx context.Context, r *run, runErr error) (*model.SelectionResult, error) {
	res := r.result
	total := o.clock().Sub(r.start)
	res.Metadata.TotalElapsedMS = ms(total)
	res.Metadata.MetLatencyRequirement = total <= o.cfg.LatencyBudget

	fields := []zap.Field{
		zap.String("runId", res.RunID),
		zap.String("businessId", res.BusinessID),
		zap.String("customerId", res.CustomerID),
		zap.Float64("elapsedMs", res.Metadata.TotalElapsedMS),
		zap.Int("candidates", len(r.req.Candidates)),
	}

	if runErr != nil {
		failedAt := r.state
		res.Metadata.FinalState = model.StageFailed
		res.Metadata.Errors = append(res.Metadata.Errors, runErr.Error())
		o.logger.Error("Selection run failed",
			append(fields, zap.String("stage", string(failedAt)), zap.Error(runErr))...)
		o.record(ctx, res, runErr)
		return nil, runErr
	}

	if !res.Metadata.MetLatencyRequirement {
		res.AddWarning(model.WarnPerformanceThreshold)
		o.logger.Warn("Selection run exceeded latency budget",
			append(fields, zap.Duration("budget", o.cfg.LatencyBudget))...)
	}
	res.Metadata.FinalState = model.StageDone
	o.logger.Info("Selection run completed",
		append(fields,
			zap.String("strategy", string(res.Strategy)),
			zap.String("reasonCode", string(res.ReasonCode)),
			zap.Int("eligible", res.Metrics.EligibleCount),
			zap.Int("selected", len(res.SelectedQuestions)),
			zap.Int("triggersFired", len(res.Metadata.FiredTriggers)),
			zap.Float64("utilizationPercent", res.UtilizationPercent),
			zap.Strings("warnings", res.Metadata.Warnings))...)
	o.record(ctx, res, nil)
	return res, nil
}

// record never fails the run
func (o *Orchestrator) record(ctx context.Context, res *model.SelectionResult, runErr error) {
	if o.recorder == nil {
		return
	}
	entry := model.NewSelectionLog(res, runErr, o.clock())
	if err := o.recorder.Record(ctx, entry); err != nil {
		o.logger.Warn("Failed to record selection log", zap.String("runId", res.RunID), zap.Error(err))
		if runErr == nil {
			res.AddWarning(model.WarnRecordFailed)
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
