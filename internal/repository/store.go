package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"surveypilot/internal/model"
)

// Store bundles the configuration repositories behind the read path the selection service uses
type Store struct {
	QuestionRepo QuestionRepo
	TriggerRepo  TriggerRepo
	RuleRepo     RuleRepo
	TopicRepo    TopicRepo
	LogRepo      SelectionLogRepo
}

// NewStore creates every repository on db and ensures their indexes
func NewStore(ctx context.Context, db *mongo.Database, logger *zap.Logger) *Store {
	EnsureIndexes(ctx, db, logger)
	return &Store{
		QuestionRepo: NewQuestionRepo(db),
		TriggerRepo:  NewTriggerRepo(db),
		RuleRepo:     NewRuleRepo(db),
		TopicRepo:    NewTopicRepo(db),
		LogRepo:      NewSelectionLogRepo(db),
	}
}

// Rules returns all rules of a business
func (s *Store) Rules(ctx context.Context, businessID string) ([]model.CombinationRule, error) {
	return s.RuleRepo.GetByBusiness(ctx, businessID)
}

// Triggers returns all triggers of a business
func (s *Store) Triggers(ctx context.Context, businessID string) ([]model.TriggerDefinition, error) {
	return s.TriggerRepo.GetByBusiness(ctx, businessID)
}

// Topics returns the topic groups of a business
func (s *Store) Topics(ctx context.Context, businessID string) ([]model.TopicGroup, error) {
	return s.TopicRepo.GetByBusiness(ctx, businessID)
}

// Questions returns the active candidate questions of a business
func (s *Store) Questions(ctx context.Context, businessID string) ([]model.CandidateQuestion, error) {
	return s.QuestionRepo.GetActiveByBusiness(ctx, businessID)
}

// ImportConfig upserts a whole business configuration, e.g. from a YAML file
func (s *Store) ImportConfig(ctx context.Context, cfg *model.BusinessConfig, questions []model.CandidateQuestion) error {
	for i := range cfg.Rules {
		cfg.Rules[i].BusinessID = cfg.BusinessID
		if err := s.RuleRepo.Upsert(ctx, &cfg.Rules[i]); err != nil {
			return err
		}
	}
	for i := range cfg.Triggers {
		cfg.Triggers[i].BusinessID = cfg.BusinessID
		if err := s.TriggerRepo.Upsert(ctx, &cfg.Triggers[i]); err != nil {
			return err
		}
	}
	for i := range cfg.Topics {
		cfg.Topics[i].BusinessID = cfg.BusinessID
		if err := s.TopicRepo.Upsert(ctx, &cfg.Topics[i]); err != nil {
			return err
		}
	}
	for i := range questions {
		questions[i].BusinessID = cfg.BusinessID
		if err := s.QuestionRepo.Upsert(ctx, &questions[i]); err != nil {
			return err
		}
	}
	return nil
}

// EnsureIndexes creates the indexes the selection read path relies on
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) {
	createIndex(ctx, db.Collection("questions"), bson.D{
		{Key: "businessId", Value: 1},
		{Key: "isActive", Value: 1},
	}, false, logger)
	createIndex(ctx, db.Collection("triggers"), bson.D{{Key: "businessId", Value: 1}}, false, logger)
	createIndex(ctx, db.Collection("combination_rules"), bson.D{
		{Key: "businessId", Value: 1},
		{Key: "isActive", Value: 1},
	}, false, logger)
	createIndex(ctx, db.Collection("topic_groups"), bson.D{
		{Key: "businessId", Value: 1},
		{Key: "topicCategory", Value: 1},
	}, true, logger)
	createIndex(ctx, db.Collection("selection_logs"), bson.D{
		{Key: "businessId", Value: 1},
		{Key: "createdAt", Value: -1},
	}, false, logger)

	logger.Info("Selection indexes ensured")
}

func createIndex(ctx context.Context, coll *mongo.Collection, keys bson.D, unique bool, logger *zap.Logger) {
	opts := options.Index().SetUnique(unique)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
	if err != nil {
		logger.Warn("Failed to create index", zap.String("collection", coll.Name()), zap.Error(err))
	}
}
