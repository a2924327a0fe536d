package trigger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"surveypilot/internal/model"
)

func testContext() model.EvaluationContext {
	return model.EvaluationContext{
		CustomerID:         "cust-1",
		PurchaseCategories: []string{"electronics", "accessories"},
		PurchaseItems:      []string{"USB-C cable", "Laptop"},
		TransactionAmount:  250,
		Currency:           "USD",
		TransactionTime:    time.Date(2026, 3, 7, 19, 30, 0, 0, time.UTC), // Saturday evening
	}
}

func testCandidates() []model.CandidateQuestion {
	return []model.CandidateQuestion{
		{ID: "q-elec", Category: "electronics", PriorityLevel: 3, IsActive: true},
		{ID: "q-acc", Category: "accessories", PriorityLevel: 2, IsActive: true},
		{ID: "q-svc", Category: "service", PriorityLevel: 2, IsActive: true},
		{ID: "q-price", Category: "pricing", PriorityLevel: 4, IsActive: true},
		{ID: "q-old", Category: "electronics", PriorityLevel: 1, IsActive: false},
	}
}

func evaluate(t *testing.T, triggers []model.TriggerDefinition) *model.TriggerEvaluation {
	t.Helper()
	res, err := NewEvaluator(nil).Evaluate(context.Background(), testContext(), triggers, testCandidates())
	require.NoError(t, err)
	return res
}

func TestEvaluate_NoConditionsFiresUnconditionally(t *testing.T) {
	res := evaluate(t, []model.TriggerDefinition{
		{ID: "t1", IsActive: true, SensitivityThreshold: 100, QuestionIDs: []string{"q-svc"}, PriorityBoost: 1},
	})

	require.Len(t, res.Fired, 1)
	assert.Equal(t, 1.0, res.Fired[0].Confidence)
	assert.Equal(t, 1.0, res.Boost("q-svc"))
}

func TestEvaluate_RequiredConditionUnmetNeverFires(t *testing.T) {
	res := evaluate(t, []model.TriggerDefinition{{
		ID:                   "t1",
		IsActive:             true,
		SensitivityThreshold: 10,
		QuestionIDs:          []string{"q-svc"},
		Conditions: []model.TriggerCondition{
			{Field: "currency", Operator: model.OpEquals, Value: "EUR", Required: true, Weight: 0.1},
			{Field: "transaction_amount", Operator: model.OpGreaterThan, Value: "100", Weight: 50},
			{Field: "is_weekend", Operator: model.OpEquals, Value: "true", Weight: 50},
		},
	}})

	assert.Empty(t, res.Fired)
	assert.Empty(t, res.Activations)
	assert.Equal(t, 1, res.Evaluated)
}

func TestEvaluate_WeightedConfidenceAgainstSensitivity(t *testing.T) {
	conditions := []model.TriggerCondition{
		{Field: "transaction_amount", Operator: model.OpGreaterThan, Value: "100", Weight: 3},
		{Field: "currency", Operator: model.OpEquals, Value: "EUR", Weight: 1},
	}
	tests := []struct {
		name        string
		sensitivity float64
		wantFired   bool
	}{
		{"below confidence", 70, true},
		{"exactly confidence", 75, true},
		{"above confidence", 76, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluate(t, []model.TriggerDefinition{{
				ID: "t1", IsActive: true, SensitivityThreshold: tt.sensitivity,
				Conditions: conditions, QuestionIDs: []string{"q-price"},
			}})
			assert.Equal(t, tt.wantFired, len(res.Fired) == 1)
		})
	}
}

func TestEvaluate_MonotonicInSensitivity(t *testing.T) {
	var triggers []model.TriggerDefinition
	for i, cond := range []model.TriggerCondition{
		{Field: "purchase_category", Operator: model.OpEquals, Value: "electronics"},
		{Field: "transaction_amount", Operator: model.OpBetween, Values: []string{"100", "300"}},
		{Field: "time_of_day", Operator: model.OpEquals, Value: "morning"},
		{Field: "day_of_week", Operator: model.OpEquals, Value: "saturday"},
	} {
		triggers = append(triggers, model.TriggerDefinition{
			ID:          fmt.Sprintf("t%d", i),
			IsActive:    true,
			QuestionIDs: []string{"q-svc"},
			Conditions: []model.TriggerCondition{
				cond,
				{Field: "currency", Operator: model.OpEquals, Value: "GBP"},
				{Field: "purchase_item", Operator: model.OpContains, Value: "cable"},
			},
		})
	}

	firedAt := func(threshold float64) map[string]bool {
		ts := make([]model.TriggerDefinition, len(triggers))
		copy(ts, triggers)
		for i := range ts {
			ts[i].SensitivityThreshold = threshold
		}
		set := map[string]bool{}
		for _, f := range evaluate(t, ts).Fired {
			set[f.TriggerID] = true
		}
		return set
	}

	prev := firedAt(100)
	for threshold := 95.0; threshold >= 0; threshold -= 5 {
		cur := firedAt(threshold)
		for id := range prev {
			assert.True(t, cur[id], "trigger %s fired at a higher threshold but not at %.0f", id, threshold)
		}
		prev = cur
	}
	assert.Len(t, prev, len(triggers))
}

func TestEvaluate_BoostsTakeMaximumAndReasonFollowsPriority(t *testing.T) {
	res := evaluate(t, []model.TriggerDefinition{
		{ID: "t-low", Name: "big spend", Kind: model.TriggerAmount, IsActive: true, PriorityLevel: 1, PriorityBoost: 3, QuestionIDs: []string{"q-price", "q-svc"}},
		{ID: "t-high", Name: "weekend", Kind: model.TriggerTimeOfDay, IsActive: true, PriorityLevel: 5, PriorityBoost: 1, QuestionIDs: []string{"q-price"}},
		{ID: "t-tie", Name: "tie", Kind: model.TriggerTimeOfDay, IsActive: true, PriorityLevel: 5, PriorityBoost: 1, QuestionIDs: []string{"q-svc"}},
	})

	price := res.Activations["q-price"]
	assert.Equal(t, 3.0, price.MaxBoost, "boosts do not add")
	assert.Equal(t, "t-low", price.BoostTriggerID)
	assert.Equal(t, "t-high", price.ReasonTriggerID)
	assert.Contains(t, price.Reason, "weekend")
	assert.Equal(t, []string{"t-low", "t-high"}, price.FiringTriggers)

	svc := res.Activations["q-svc"]
	assert.Equal(t, "t-tie", svc.ReasonTriggerID)
	assert.Equal(t, "t-low", svc.BoostTriggerID)
}

func TestEvaluate_ReasonTieBrokenByLowestID(t *testing.T) {
	res := evaluate(t, []model.TriggerDefinition{
		{ID: "t-b", IsActive: true, PriorityLevel: 3, PriorityBoost: 2, QuestionIDs: []string{"q-svc"}},
		{ID: "t-a", IsActive: true, PriorityLevel: 3, PriorityBoost: 2, QuestionIDs: []string{"q-svc"}},
	})

	act := res.Activations["q-svc"]
	assert.Equal(t, "t-a", act.ReasonTriggerID)
	assert.Equal(t, "t-a", act.BoostTriggerID)
}

func TestEvaluate_FailingTriggerIsSkipped(t *testing.T) {
	res := evaluate(t, []model.TriggerDefinition{
		{ID: "broken", IsActive: true, Conditions: []model.TriggerCondition{{Field: "shoe_size", Operator: model.OpEquals, Value: "9"}}},
		{ID: "bad-number", IsActive: true, Conditions: []model.TriggerCondition{{Field: "transaction_amount", Operator: model.OpGreaterThan, Value: "lots"}}},
		{ID: "ok", IsActive: true, QuestionIDs: []string{"q-svc"}},
	})

	assert.Equal(t, 3, res.Evaluated)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Errors, 2)
	require.Len(t, res.Fired, 1)
	assert.Equal(t, "ok", res.Fired[0].TriggerID)
}

func TestEvaluate_InactiveTriggerIgnored(t *testing.T) {
	res := evaluate(t, []model.TriggerDefinition{
		{ID: "off", IsActive: false, QuestionIDs: []string{"q-svc"}},
	})
	assert.Zero(t, res.Evaluated)
	assert.Empty(t, res.Fired)
}

func TestEvaluate_KindFallbackQuestionSets(t *testing.T) {
	res := evaluate(t, []model.TriggerDefinition{
		{ID: "cat", Kind: model.TriggerPurchaseCategory, IsActive: true, PriorityBoost: 1},
		{ID: "amt", Kind: model.TriggerAmount, IsActive: true, PriorityBoost: 2},
	})

	require.Len(t, res.Fired, 2)
	assert.ElementsMatch(t, []string{"q-elec", "q-acc"}, res.Fired[0].QuestionIDs, "inactive q-old is never activated")
	assert.ElementsMatch(t, []string{"q-price"}, res.Fired[1].QuestionIDs)
}

func TestEvaluate_ParallelMatchesSequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	var triggers []model.TriggerDefinition
	for i := 0; i < 64; i++ {
		triggers = append(triggers, model.TriggerDefinition{
			ID:                   fmt.Sprintf("t%02d", i),
			IsActive:             true,
			PriorityLevel:        i % 5,
			PriorityBoost:        float64(i % 7),
			SensitivityThreshold: float64(i % 100),
			QuestionIDs:          []string{fmt.Sprintf("q%d", i%6)},
			Conditions: []model.TriggerCondition{
				{Field: "transaction_amount", Operator: model.OpGreaterThan, Value: fmt.Sprint(i * 5)},
				{Field: "is_weekend", Operator: model.OpEquals, Value: "true"},
			},
		})
	}

	seq, err := NewEvaluator(nil, WithParallelThreshold(0)).Evaluate(context.Background(), testContext(), triggers, nil)
	require.NoError(t, err)
	par, err := NewEvaluator(nil, WithParallelThreshold(8)).Evaluate(context.Background(), testContext(), triggers, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(seq, par); diff != "" {
		t.Fatalf("parallel evaluation differs (-seq +par):\n%s", diff)
	}
}

func TestEvaluate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEvaluator(nil).Evaluate(ctx, testContext(), []model.TriggerDefinition{{ID: "t", IsActive: true}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_WeekendFromTransactionTimeWithSuppliedDay(t *testing.T) {
	evalCtx := testContext()
	evalCtx.DayOfWeek = "saturday"

	res, err := NewEvaluator(nil).Evaluate(context.Background(), evalCtx, []model.TriggerDefinition{{
		ID:                   "weekend",
		IsActive:             true,
		SensitivityThreshold: 100,
		QuestionIDs:          []string{"q-svc"},
		Conditions:           []model.TriggerCondition{{Field: "is_weekend", Operator: model.OpEquals, Value: "true"}},
	}}, testCandidates())
	require.NoError(t, err)
	require.Len(t, res.Fired, 1)
	assert.Equal(t, "weekend", res.Fired[0].TriggerID)
}

func TestEvaluate_HourConditionSkippedWithoutTransactionTime(t *testing.T) {
	evalCtx := testContext()
	evalCtx.TransactionTime = time.Time{}

	res, err := NewEvaluator(nil).Evaluate(context.Background(), evalCtx, []model.TriggerDefinition{{
		ID:                   "late-night",
		IsActive:             true,
		SensitivityThreshold: 50,
		QuestionIDs:          []string{"q-svc"},
		Conditions:           []model.TriggerCondition{{Field: "transaction_hour", Operator: model.OpLessThan, Value: "6"}},
	}}, testCandidates())
	require.NoError(t, err)
	assert.Empty(t, res.Fired)
	assert.Empty(t, res.Activations)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "late-night")
}
