package pipeline

import (
	"fmt"
	"math"

	"surveypilot/internal/model"
	"surveypilot/internal/selector"
)

// ActiveRule returns the single active rule. Zero or several active rules are configuration errors.
func ActiveRule(rules []model.CombinationRule) (*model.CombinationRule, error) {
	var active *model.CombinationRule
	for i := range rules {
		if !rules[i].IsActive {
			continue
		}
		if active != nil {
			return nil, fmt.Errorf("%w: %s and %s", ErrAmbiguousActiveRule, active.ID, rules[i].ID)
		}
		active = &rules[i]
	}
	if active == nil {
		return nil, ErrNoActiveRule
	}
	return active, nil
}

// plan is the validated shape of one run
type plan struct {
	rule       *model.CombinationRule
	budget     selector.Budget
	strategy   model.Strategy
	preference model.Preference
	stages     map[model.Stage]bool
	mode       model.ProcessingMode
}

func (o *Orchestrator) validate(req *model.SelectionRequest, rule *model.CombinationRule) (*plan, error) {
	c := req.Constraints
	if req.BusinessID == "" {
		return nil, invalid("business id is required")
	}
	if c.MaxDurationSeconds < 0 || c.MaxDurationSeconds > model.MaxCallDurationSeconds {
		return nil, invalid("max duration %.0fs outside (0, %d]", c.MaxDurationSeconds, model.MaxCallDurationSeconds)
	}
	if rule.MaxTotalDurationSeconds < 0 || rule.MaxTotalDurationSeconds > model.MaxCallDurationSeconds {
		return nil, invalid("rule %s max duration %.0fs outside (0, %d]", rule.ID, rule.MaxTotalDurationSeconds, model.MaxCallDurationSeconds)
	}
	maxDuration := effectiveMax(c.MaxDurationSeconds, rule.MaxTotalDurationSeconds)
	if maxDuration <= 0 {
		return nil, invalid("no positive max duration on request or rule %s", rule.ID)
	}
	if c.MinQuestions < 0 || c.MaxQuestions < 0 {
		return nil, invalid("question counts must not be negative")
	}
	if c.MaxQuestions > 0 && c.MinQuestions > c.MaxQuestions {
		return nil, invalid("min questions %d exceeds max questions %d", c.MinQuestions, c.MaxQuestions)
	}
	if c.PriorityThreshold < 0 || c.PriorityThreshold > 5 {
		return nil, invalid("priority threshold %d outside [0, 5]", c.PriorityThreshold)
	}

	buffer := o.cfg.BufferPercentage
	if rule.BufferPercentage != nil {
		buffer = *rule.BufferPercentage
	}
	transition := o.cfg.TransitionSeconds
	if rule.TransitionSeconds != nil {
		transition = *rule.TransitionSeconds
	}
	budget, err := selector.NewBudget(maxDuration, buffer, transition)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConstraints, err)
	}

	strategy := rule.Strategy
	if req.Options.Strategy != "" {
		strategy = req.Options.Strategy
	}
	if !selector.Valid(strategy) {
		return nil, invalid("unknown strategy %q", strategy)
	}
	preference := rule.Preference
	if req.Options.Preference != "" {
		preference = req.Options.Preference
	}

	mode := req.Options.Mode
	if mode == "" {
		mode = o.cfg.DefaultMode
	}
	stages, err := EnabledStages(mode, req.Options.Stages)
	if err != nil {
		return nil, err
	}

	return &plan{
		rule:       rule,
		budget:     budget,
		strategy:   strategy,
		preference: preference,
		stages:     stages,
		mode:       mode,
	}, nil
}

func effectiveMax(request, rule float64) float64 {
	switch {
	case request > 0 && rule > 0:
		return math.Min(request, rule)
	case request > 0:
		return request
	default:
		return rule
	}
}

// EnabledStages resolves which optional stages run for a mode, applying per-stage overrides
func EnabledStages(mode model.ProcessingMode, overrides map[model.Stage]bool) (map[model.Stage]bool, error) {
	var stages map[model.Stage]bool
	switch mode {
	case model.ModeFast:
		stages = map[model.Stage]bool{
			model.StageTopicGrouping:          false,
			model.StagePriorityBalancing:      true,
			model.StageFrequencyHarmonization: false,
		}
	case model.ModeBalanced, "":
		stages = map[model.Stage]bool{
			model.StageTopicGrouping:          true,
			model.StagePriorityBalancing:      false,
			model.StageFrequencyHarmonization: true,
		}
	case model.ModeComprehensive:
		stages = map[model.Stage]bool{
			model.StageTopicGrouping:          true,
			model.StagePriorityBalancing:      true,
			model.StageFrequencyHarmonization: true,
		}
	default:
		return nil, invalid("unknown processing mode %q", mode)
	}
	for stage, on := range overrides {
		if _, optional := stages[stage]; !optional {
			return nil, invalid("stage %q cannot be toggled", stage)
		}
		stages[stage] = on
	}
	return stages, nil
}
