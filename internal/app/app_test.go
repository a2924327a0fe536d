package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"surveypilot/internal/config"
	"surveypilot/internal/model"
)

const business = `
businessId: biz-1
rules:
  - id: rule-1
    maxTotalDurationSeconds: 60
    strategy: dynamic_programming
    isActive: true
questions:
  - id: A
    text: How was the product?
    priorityLevel: 5
    estimatedDurationSeconds: 20
    isActive: true
  - id: B
    text: How was checkout?
    priorityLevel: 4
    estimatedDurationSeconds: 15
    isActive: true
  - id: C
    text: Anything else?
    priorityLevel: 3
    estimatedDurationSeconds: 25
    isActive: true
`

func TestOffline_SelectRecordsAndRemembers(t *testing.T) {
	dir := t.TempDir()
	businessPath := filepath.Join(dir, "biz.yaml")
	require.NoError(t, os.WriteFile(businessPath, []byte(business), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)

	off, err := NewOffline(cfg, zap.NewNop(), businessPath, filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer off.Close()

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := &model.SelectionRequest{
		BusinessID:  "biz-1",
		Context:     model.EvaluationContext{CustomerID: "cust-1", TransactionTime: now},
		Constraints: model.Constraints{MaxDurationSeconds: 60},
		Now:         now,
	}

	result, err := off.Selections.Select(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, result.SelectedIDs())

	entry, err := off.Selections.GetSelection(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, entry.QuestionIDs)

	history, err := off.Logs.History(ctx, "biz-1", "cust-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Contains(t, history, "A")
}

const weeklyBusiness = `
businessId: biz-1
rules:
  - id: rule-1
    maxTotalDurationSeconds: 60
    strategy: greedy
    isActive: true
questions:
  - id: A
    text: How was the product?
    priorityLevel: 5
    estimatedDurationSeconds: 20
    repeatFrequency: 1
    isActive: true
`

func TestOffline_CooldownExpiresAfterEmptyInteraction(t *testing.T) {
	dir := t.TempDir()
	businessPath := filepath.Join(dir, "biz.yaml")
	require.NoError(t, os.WriteFile(businessPath, []byte(weeklyBusiness), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)

	off, err := NewOffline(cfg, zap.NewNop(), businessPath, filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer off.Close()

	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := [][]string{{"A"}, {}, {"A"}, {}, {"A"}, {}}
	for i, ids := range want {
		now := start.AddDate(0, 0, 7*i)
		result, err := off.Selections.Select(ctx, &model.SelectionRequest{
			BusinessID:  "biz-1",
			Context:     model.EvaluationContext{CustomerID: "cust-1", TransactionTime: now},
			Constraints: model.Constraints{MaxDurationSeconds: 60},
			Now:         now,
		})
		require.NoError(t, err)
		assert.Equal(t, ids, result.SelectedIDs(), "interaction %d", i+1)
		if len(ids) == 0 {
			assert.Equal(t, model.ReasonNoEligibleQuestions, result.ReasonCode, "interaction %d", i+1)
		}
	}

	history, err := off.Logs.History(ctx, "biz-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, history["A"].InteractionsSince)
}

func TestOffline_MissingBusinessFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	_, err = NewOffline(cfg, zap.NewNop(), filepath.Join(t.TempDir(), "absent.yaml"), filepath.Join(t.TempDir(), "runs.db"))
	assert.Error(t, err)
}
