package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalized(t *testing.T) {
	saturday := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		in          EvaluationContext
		wantDay     string
		wantWeekend bool
		wantTime    string
	}{
		{"derived from time", EvaluationContext{TransactionTime: saturday}, "saturday", true, "morning"},
		{"day supplied with time", EvaluationContext{TransactionTime: saturday, DayOfWeek: "saturday"}, "saturday", true, "morning"},
		{"time wins over stale flag", EvaluationContext{TransactionTime: monday, IsWeekend: true}, "monday", false, "night"},
		{"supplied fields kept", EvaluationContext{TransactionTime: monday, DayOfWeek: "Mon", TimeOfDay: "late"}, "Mon", false, "late"},
		{"day without time", EvaluationContext{DayOfWeek: "Sunday"}, "Sunday", true, ""},
		{"nothing set", EvaluationContext{}, "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalized()
			assert.Equal(t, tt.wantDay, got.DayOfWeek)
			assert.Equal(t, tt.wantWeekend, got.IsWeekend)
			assert.Equal(t, tt.wantTime, got.TimeOfDay)
		})
	}
}
