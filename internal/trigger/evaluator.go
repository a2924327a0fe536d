// Package trigger decides which business triggers fire for a customer context
// and which questions they activate.
package trigger

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"surveypilot/internal/model"
)

// confidenceEpsilon absorbs float error when comparing against the sensitivity threshold
const confidenceEpsilon = 1e-9

// DefaultParallelThreshold is the trigger count from which evaluation fans out
const DefaultParallelThreshold = 32

// DefaultKindCategories maps trigger kinds without an explicit question list to question categories.
// purchase_category triggers map onto the context's own purchase categories instead.
func DefaultKindCategories() map[model.TriggerKind][]string {
	return map[model.TriggerKind][]string{
		model.TriggerTimeOfDay: {"service", "experience"},
		model.TriggerAmount:    {"pricing", "value", "checkout"},
	}
}

// Evaluator evaluates trigger definitions against an evaluation context
type Evaluator struct {
	logger            *zap.Logger
	parallelThreshold int
	kindCategories    map[model.TriggerKind][]string
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithParallelThreshold sets the trigger count from which evaluation fans out; <= 0 disables fan-out
func WithParallelThreshold(n int) Option {
	return func(e *Evaluator) { e.parallelThreshold = n }
}

// WithKindCategories overrides the fallback category mapping
func WithKindCategories(m map[model.TriggerKind][]string) Option {
	return func(e *Evaluator) {
		if len(m) > 0 {
			e.kindCategories = m
		}
	}
}

// NewEvaluator creates a trigger evaluator
func NewEvaluator(logger *zap.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		logger:            logger,
		parallelThreshold: DefaultParallelThreshold,
		kindCategories:    DefaultKindCategories(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// outcome is the result of evaluating one trigger
type outcome struct {
	evaluated   bool
	fired       bool
	confidence  float64
	questionIDs []string
	err         error
}

// Evaluate tests every trigger against the context. A failing trigger is skipped and
// reported in the result; only context cancellation returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, evalCtx model.EvaluationContext, triggers []model.TriggerDefinition, candidates []model.CandidateQuestion) (*model.TriggerEvaluation, error) {
	evalCtx = evalCtx.Normalized()
	outcomes := make([]outcome, len(triggers))

	if e.parallelThreshold > 0 && len(triggers) >= e.parallelThreshold {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range triggers {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = e.evaluateOne(&triggers[i], evalCtx, candidates)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range triggers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = e.evaluateOne(&triggers[i], evalCtx, candidates)
		}
	}

	return e.fold(triggers, outcomes), nil
}

// evaluateOne never panics; a panic inside condition matching becomes an error outcome
func (e *Evaluator) evaluateOne(t *model.TriggerDefinition, evalCtx model.EvaluationContext, candidates []model.CandidateQuestion) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{evaluated: true, err: fmt.Errorf("trigger %s panicked: %v", t.ID, r)}
		}
	}()

	if !t.IsActive {
		return outcome{}
	}
	out.evaluated = true

	fired, confidence, err := Fires(t, evalCtx)
	if err != nil {
		out.err = err
		return out
	}
	out.fired = fired
	out.confidence = confidence
	if fired {
		out.questionIDs = e.questionSet(t, evalCtx, candidates)
	}
	return out
}

// Fires reports whether a trigger fires for the context and the weighted confidence it reached.
// A trigger without conditions fires with confidence 1.
func Fires(t *model.TriggerDefinition, evalCtx model.EvaluationContext) (bool, float64, error) {
	if len(t.Conditions) == 0 {
		return true, 1.0, nil
	}

	var weighted, total float64
	for _, c := range t.Conditions {
		matched, err := matchCondition(c, evalCtx)
		if err != nil {
			return false, 0, fmt.Errorf("trigger %s condition %s %s: %w", t.ID, c.Field, c.Operator, err)
		}
		if c.Required && !matched {
			return false, 0, nil
		}
		w := c.EffectiveWeight()
		total += w
		if matched {
			weighted += w
		}
	}

	confidence := weighted / total
	return confidence+confidenceEpsilon >= t.SensitivityThreshold/100, confidence, nil
}

// questionSet returns the explicit question list or the kind-based fallback
func (e *Evaluator) questionSet(t *model.TriggerDefinition, evalCtx model.EvaluationContext, candidates []model.CandidateQuestion) []string {
	if len(t.QuestionIDs) > 0 {
		return append([]string(nil), t.QuestionIDs...)
	}

	var categories []string
	if t.Kind == model.TriggerPurchaseCategory {
		categories = evalCtx.PurchaseCategories
	} else {
		categories = e.kindCategories[t.Kind]
	}
	if len(categories) == 0 {
		return nil
	}

	var ids []string
	for _, q := range candidates {
		if !q.IsActive {
			continue
		}
		for _, cat := range categories {
			if strings.EqualFold(q.Category, cat) {
				ids = append(ids, q.ID)
				break
			}
		}
	}
	return ids
}

// fold reduces the per-trigger outcomes, in trigger order, into an immutable evaluation
func (e *Evaluator) fold(triggers []model.TriggerDefinition, outcomes []outcome) *model.TriggerEvaluation {
	result := &model.TriggerEvaluation{
		Activations: make(map[string]model.TriggerActivation),
	}
	boostOwner := make(map[string]*model.TriggerDefinition)
	reasonOwner := make(map[string]*model.TriggerDefinition)

	for i := range triggers {
		t := &triggers[i]
		out := outcomes[i]
		if !out.evaluated {
			continue
		}
		result.Evaluated++
		if out.err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, out.err.Error())
			e.logger.Warn("Trigger evaluation failed, skipping",
				zap.String("trigger_id", t.ID),
				zap.String("business_id", t.BusinessID),
				zap.Error(out.err))
			continue
		}
		if !out.fired {
			continue
		}

		result.Fired = append(result.Fired, model.FiredTrigger{
			TriggerID:     t.ID,
			Name:          t.Name,
			PriorityLevel: t.PriorityLevel,
			Confidence:    out.confidence,
			QuestionIDs:   out.questionIDs,
		})

		for _, qid := range out.questionIDs {
			act, seen := result.Activations[qid]
			if !seen {
				act = model.TriggerActivation{QuestionID: qid}
			}
			act.FiringTriggers = append(act.FiringTriggers, t.ID)

			if !seen || boostBeats(t, boostOwner[qid]) {
				boostOwner[qid] = t
				act.MaxBoost = t.PriorityBoost
				act.BoostTriggerID = t.ID
			}
			if !seen || reasonBeats(t, reasonOwner[qid]) {
				reasonOwner[qid] = t
				act.ReasonTriggerID = t.ID
				act.Reason = activationReason(t, out.confidence)
			}
			result.Activations[qid] = act
		}
	}
	return result
}

// boostBeats orders boost sources: higher boost, then higher priority level, then lower ID
func boostBeats(a, b *model.TriggerDefinition) bool {
	if a.PriorityBoost != b.PriorityBoost {
		return a.PriorityBoost > b.PriorityBoost
	}
	if a.PriorityLevel != b.PriorityLevel {
		return a.PriorityLevel > b.PriorityLevel
	}
	return a.ID < b.ID
}

// reasonBeats orders reason owners: higher priority level, then higher boost, then lower ID
func reasonBeats(a, b *model.TriggerDefinition) bool {
	if a.PriorityLevel != b.PriorityLevel {
		return a.PriorityLevel > b.PriorityLevel
	}
	if a.PriorityBoost != b.PriorityBoost {
		return a.PriorityBoost > b.PriorityBoost
	}
	return a.ID < b.ID
}

func activationReason(t *model.TriggerDefinition, confidence float64) string {
	name := t.Name
	if name == "" {
		name = t.ID
	}
	kind := string(t.Kind)
	if kind == "" {
		kind = "custom"
	}
	return fmt.Sprintf("activated by %s trigger %q (priority %d, confidence %.2f)", kind, name, t.PriorityLevel, confidence)
}
