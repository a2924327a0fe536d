package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveypilot/internal/model"
	"surveypilot/internal/pipeline"
)

var now = time.Date(2026, 7, 14, 15, 0, 0, 0, time.UTC)

type fakeConfigs struct {
	rules     []model.CombinationRule
	triggers  []model.TriggerDefinition
	topics    []model.TopicGroup
	questions []model.CandidateQuestion

	rulesErr, topicsErr, questionsErr error
	questionCalls                     int
}

func (f *fakeConfigs) Rules(context.Context, string) ([]model.CombinationRule, error) {
	return f.rules, f.rulesErr
}

func (f *fakeConfigs) Triggers(context.Context, string) ([]model.TriggerDefinition, error) {
	return f.triggers, nil
}

func (f *fakeConfigs) Topics(context.Context, string) ([]model.TopicGroup, error) {
	return f.topics, f.topicsErr
}

func (f *fakeConfigs) Questions(context.Context, string) ([]model.CandidateQuestion, error) {
	f.questionCalls++
	return f.questions, f.questionsErr
}

type fakeHistory struct {
	records      map[string]model.PresentationRecord
	err          error
	marked       []string
	interactions int
	at           time.Time
}

func (f *fakeHistory) History(context.Context, string, string) (map[string]model.PresentationRecord, error) {
	return f.records, f.err
}

func (f *fakeHistory) RecordInteraction(_ context.Context, _, _ string, ids []string, at time.Time) error {
	f.interactions++
	f.marked = append(f.marked, ids...)
	f.at = at
	return nil
}

type memoryLogs struct {
	entries map[string]*model.SelectionLog
}

func (m *memoryLogs) Record(_ context.Context, entry *model.SelectionLog) error {
	if m.entries == nil {
		m.entries = map[string]*model.SelectionLog{}
	}
	m.entries[entry.RunID] = entry
	return nil
}

func (m *memoryLogs) GetByRunID(_ context.Context, runID string) (*model.SelectionLog, error) {
	return m.entries[runID], nil
}

func testConfigs() *fakeConfigs {
	return &fakeConfigs{
		rules: []model.CombinationRule{{ID: "r1", BusinessID: "biz", MaxTotalDurationSeconds: 60, IsActive: true}},
		questions: []model.CandidateQuestion{
			{ID: "q1", BusinessID: "biz", PriorityLevel: 4, EstimatedDurationSeconds: 15, RepeatFrequency: 3, IsActive: true},
			{ID: "q2", BusinessID: "biz", PriorityLevel: 3, EstimatedDurationSeconds: 15, IsActive: true},
		},
	}
}

func newService(configs ConfigStore) *SelectionService {
	return NewSelectionService(nil, configs, pipeline.NewOrchestrator(nil, nil, nil, nil, pipeline.DefaultConfig()))
}

func request() *model.SelectionRequest {
	return &model.SelectionRequest{
		BusinessID:  "biz",
		Context:     model.EvaluationContext{CustomerID: "cust", TransactionTime: now},
		Constraints: model.Constraints{MaxDurationSeconds: 60},
		Now:         now,
	}
}

func TestSelect_LoadsCandidatesFromStore(t *testing.T) {
	configs := testConfigs()
	svc := newService(configs)

	res, err := svc.Select(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, 1, configs.questionCalls)
	assert.ElementsMatch(t, []string{"q1", "q2"}, res.SelectedIDs())
}

func TestSelect_RequestCandidatesWin(t *testing.T) {
	configs := testConfigs()
	svc := newService(configs)
	req := request()
	req.Candidates = []model.CandidateQuestion{{ID: "inline", PriorityLevel: 2, EstimatedDurationSeconds: 5, IsActive: true}}

	res, err := svc.Select(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, configs.questionCalls)
	assert.Equal(t, []string{"inline"}, res.SelectedIDs())
}

func TestSelect_MergesHistoryAndRecordsInteraction(t *testing.T) {
	history := &fakeHistory{records: map[string]model.PresentationRecord{
		"q1": {QuestionID: "q1", LastPresentedAt: now.Add(-time.Hour), InteractionsSince: 1},
	}}
	svc := newService(testConfigs())
	svc.SetHistoryStore(history)

	res, err := svc.Select(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, []string{"q2"}, res.SelectedIDs(), "q1 is inside its repeat window")
	assert.Equal(t, []string{"q2"}, history.marked)
	assert.Equal(t, 1, history.interactions)
	assert.Equal(t, now, history.at)
}

func TestSelect_EmptyRunStillCountsInteraction(t *testing.T) {
	configs := testConfigs()
	configs.questions = configs.questions[:1]
	history := &fakeHistory{records: map[string]model.PresentationRecord{
		"q1": {QuestionID: "q1", LastPresentedAt: now.Add(-time.Hour), InteractionsSince: 0},
	}}
	svc := newService(configs)
	svc.SetHistoryStore(history)

	res, err := svc.Select(context.Background(), request())
	require.NoError(t, err)
	assert.Empty(t, res.SelectedQuestions)
	assert.Equal(t, 1, history.interactions)
	assert.Empty(t, history.marked)
}

func TestSelect_AnonymousRunSkipsHistory(t *testing.T) {
	history := &fakeHistory{}
	svc := newService(testConfigs())
	svc.SetHistoryStore(history)
	req := request()
	req.Context.CustomerID = ""

	_, err := svc.Select(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, history.interactions)
}

func TestSelect_HistoryFailureDegrades(t *testing.T) {
	svc := newService(testConfigs())
	svc.SetHistoryStore(&fakeHistory{err: errors.New("redis down")})

	res, err := svc.Select(context.Background(), request())
	require.NoError(t, err)
	assert.Contains(t, res.Metadata.Warnings, model.WarnHistoryUnavailable)
	assert.Len(t, res.SelectedQuestions, 2)
}

func TestSelect_TopicFailureDegrades(t *testing.T) {
	configs := testConfigs()
	configs.topicsErr = errors.New("timeout")

	res, err := newService(configs).Select(context.Background(), request())
	require.NoError(t, err)
	assert.Contains(t, res.Metadata.Warnings, model.WarnTopicMetadataUnavailable)
}

func TestSelect_RuleFailureIsFatal(t *testing.T) {
	configs := testConfigs()
	configs.rulesErr = errors.New("connection refused")

	_, err := newService(configs).Select(context.Background(), request())
	assert.ErrorIs(t, err, ErrConfigUnavailable)
}

func TestSelect_NoActiveRule(t *testing.T) {
	configs := testConfigs()
	configs.rules[0].IsActive = false

	_, err := newService(configs).Select(context.Background(), request())
	assert.ErrorIs(t, err, pipeline.ErrNoActiveRule)
}

func TestGetSelection(t *testing.T) {
	logs := &memoryLogs{}
	svc := newService(testConfigs())
	svc.SetLogStore(logs)

	res, err := svc.Select(context.Background(), request())
	require.NoError(t, err)

	entry, err := svc.GetSelection(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.SelectedIDs(), entry.QuestionIDs)
	assert.True(t, entry.Succeeded)

	_, err = svc.GetSelection(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSelectionNotFound)
}
