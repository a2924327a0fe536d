package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveypilot/internal/model"
)

func TestMatchCondition(t *testing.T) {
	ctx := model.EvaluationContext{
		PurchaseCategories: []string{"Electronics", "garden"},
		PurchaseItems:      []string{"Cordless Drill"},
		TransactionAmount:  120.5,
		Currency:           "usd",
		TransactionTime:    time.Date(2026, 3, 9, 23, 15, 0, 0, time.UTC),
		Attributes:         map[string]string{"channel": "phone"},
	}.Normalized()

	tests := []struct {
		name string
		cond model.TriggerCondition
		want bool
	}{
		{"equals list case-insensitive", model.TriggerCondition{Field: "purchase_category", Operator: model.OpEquals, Value: "electronics"}, true},
		{"equals any of values", model.TriggerCondition{Field: "purchase_category", Operator: model.OpEquals, Values: []string{"toys", "garden"}}, true},
		{"not equals", model.TriggerCondition{Field: "currency", Operator: model.OpNotEquals, Value: "EUR"}, true},
		{"not equals matching", model.TriggerCondition{Field: "currency", Operator: model.OpNotEquals, Value: "USD"}, false},
		{"contains substring", model.TriggerCondition{Field: "purchase_item", Operator: model.OpContains, Value: "drill"}, true},
		{"not contains", model.TriggerCondition{Field: "purchase_item", Operator: model.OpNotContains, Value: "saw"}, true},
		{"greater than", model.TriggerCondition{Field: "transaction_amount", Operator: model.OpGreaterThan, Value: "100"}, true},
		{"less than", model.TriggerCondition{Field: "transaction_amount", Operator: model.OpLessThan, Value: "100"}, false},
		{"between inclusive upper", model.TriggerCondition{Field: "transaction_amount", Operator: model.OpBetween, Values: []string{"50", "120.5"}}, true},
		{"in range half open", model.TriggerCondition{Field: "transaction_amount", Operator: model.OpInRange, Values: []string{"50", "120.5"}}, false},
		{"clock window wraps midnight", model.TriggerCondition{Field: "transaction_time", Operator: model.OpInRange, Value: "22:00-06:00"}, true},
		{"clock window same day", model.TriggerCondition{Field: "transaction_time", Operator: model.OpInRange, Values: []string{"09:00", "17:00"}}, false},
		{"hour greater than", model.TriggerCondition{Field: "transaction_hour", Operator: model.OpGreaterThan, Value: "21"}, true},
		{"derived day of week", model.TriggerCondition{Field: "day_of_week", Operator: model.OpEquals, Value: "Monday"}, true},
		{"derived weekend flag", model.TriggerCondition{Field: "is_weekend", Operator: model.OpEquals, Value: "false"}, true},
		{"derived time of day", model.TriggerCondition{Field: "time_of_day", Operator: model.OpEquals, Value: "night"}, true},
		{"attribute", model.TriggerCondition{Field: "attr.channel", Operator: model.OpEquals, Value: "phone"}, true},
		{"missing attribute", model.TriggerCondition{Field: "attr.store", Operator: model.OpEquals, Value: "north"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matchCondition(tt.cond, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchConditionErrors(t *testing.T) {
	ctx := model.EvaluationContext{TransactionAmount: 10, TransactionTime: time.Date(2026, 3, 4, 1, 30, 0, 0, time.UTC)}

	tests := []struct {
		name    string
		cond    model.TriggerCondition
		wantErr error
	}{
		{"unknown field", model.TriggerCondition{Field: "mood", Operator: model.OpEquals, Value: "happy"}, ErrUnknownField},
		{"unknown operator", model.TriggerCondition{Field: "currency", Operator: "matches", Value: "x"}, ErrUnknownOperator},
		{"numeric operator on text", model.TriggerCondition{Field: "currency", Operator: model.OpGreaterThan, Value: "1"}, ErrBadOperand},
		{"between needs two values", model.TriggerCondition{Field: "transaction_amount", Operator: model.OpBetween, Value: "5"}, ErrBadOperand},
		{"contains on number", model.TriggerCondition{Field: "transaction_amount", Operator: model.OpContains, Value: "1"}, ErrBadOperand},
		{"bad clock", model.TriggerCondition{Field: "transaction_time", Operator: model.OpGreaterThan, Value: "noon"}, ErrBadOperand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := matchCondition(tt.cond, ctx)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMatchConditionWithoutTransactionTime(t *testing.T) {
	ctx := model.EvaluationContext{TransactionAmount: 10}.Normalized()

	tests := []struct {
		name string
		cond model.TriggerCondition
	}{
		{"late night hour", model.TriggerCondition{Field: "transaction_hour", Operator: model.OpLessThan, Value: "6"}},
		{"clock window", model.TriggerCondition{Field: "transaction_time", Operator: model.OpInRange, Values: []string{"22:00", "06:00"}}},
		{"day of week", model.TriggerCondition{Field: "day_of_week", Operator: model.OpEquals, Value: ""}},
		{"weekend", model.TriggerCondition{Field: "is_weekend", Operator: model.OpEquals, Value: "false"}},
		{"time of day", model.TriggerCondition{Field: "time_of_day", Operator: model.OpEquals, Value: "night"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := matchCondition(tt.cond, ctx)
			assert.ErrorIs(t, err, ErrMissingField)
			assert.False(t, ok)
		})
	}
}
