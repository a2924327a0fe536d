package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveypilot/internal/model"
)

const sampleBusiness = `
businessId: biz-1
rules:
  - id: rule-1
    name: Default
    maxTotalDurationSeconds: 60
    strategy: auto
    isActive: true
triggers:
  - id: trg-1
    name: Big basket
    kind: purchase_based
    priorityLevel: 4
    sensitivityThreshold: 50
    priorityBoost: 1.5
    isActive: true
    questionIds: [q1]
    conditions:
      - field: transaction_amount
        operator: greater_than
        value: "100"
topics:
  - topicCategory: delivery
    displayOrder: 2
  - topicCategory: product
    boost: 1.2
    displayOrder: 1
questions:
  - id: q1
    text: How was the product?
    category: product_quality
    topicCategory: product
    priorityLevel: 5
    estimatedDurationSeconds: 20
    isActive: true
  - id: q2
    text: Retired question
    priorityLevel: 1
    isActive: false
`

func TestParse(t *testing.T) {
	bf, err := Parse([]byte(sampleBusiness))
	require.NoError(t, err)

	assert.Equal(t, "biz-1", bf.BusinessID)
	require.Len(t, bf.Rules, 1)
	assert.Equal(t, "biz-1", bf.Rules[0].BusinessID)
	assert.Equal(t, model.StrategyAuto, bf.Rules[0].Strategy)
	assert.Equal(t, 60.0, bf.Rules[0].MaxTotalDurationSeconds)

	require.Len(t, bf.Triggers, 1)
	assert.Equal(t, model.OpGreaterThan, bf.Triggers[0].Conditions[0].Operator)
	assert.Equal(t, []string{"q1"}, bf.Triggers[0].QuestionIDs)

	require.Len(t, bf.Topics, 2)
	assert.Equal(t, "product", bf.Topics[0].TopicCategory, "topics sorted by display order")
	assert.Equal(t, "biz-1", bf.Questions[1].BusinessID)
}

func TestParse_RequiresBusinessID(t *testing.T) {
	_, err := Parse([]byte("rules: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("businessId: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "biz1.yaml"), []byte(sampleBusiness), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "biz2.yml"), []byte("businessId: biz-2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"biz-1", "biz-2"}, s.Businesses())

	ctx := context.Background()
	questions, err := s.Questions(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, questions, 1, "inactive questions are filtered")
	assert.Equal(t, "q1", questions[0].ID)

	rules, err := s.Rules(ctx, "biz-2")
	require.NoError(t, err)
	assert.Empty(t, rules)

	_, err = s.Topics(ctx, "biz-9")
	assert.ErrorIs(t, err, ErrUnknownBusiness)
}

func TestLoad_SingleFileAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleBusiness), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	triggers, err := s.Triggers(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Len(t, triggers, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
