package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"surveypilot/internal/model"
)

// ErrRuleNotFound is returned when activating a rule that does not exist
var ErrRuleNotFound = errors.New("combination rule not found")

// RuleRepo handles MongoDB operations for combination rules
type RuleRepo interface {
	Upsert(ctx context.Context, rule *model.CombinationRule) error
	GetByBusiness(ctx context.Context, businessID string) ([]model.CombinationRule, error)
	GetActive(ctx context.Context, businessID string) ([]model.CombinationRule, error)
	Activate(ctx context.Context, businessID, ruleID string) error
}

type ruleRepo struct {
	collection *mongo.Collection
}

// NewRuleRepo creates a new combination rule repository
func NewRuleRepo(db *mongo.Database) RuleRepo {
	return &ruleRepo{
		collection: db.Collection("combination_rules"),
	}
}

func (r *ruleRepo) Upsert(ctx context.Context, rule *model.CombinationRule) error {
	if rule.ID == "" {
		rule.ID = primitive.NewObjectID().Hex()
	}
	rule.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule, opts)
	return err
}

func (r *ruleRepo) GetByBusiness(ctx context.Context, businessID string) ([]model.CombinationRule, error) {
	return r.find(ctx, bson.M{"businessId": businessID})
}

// GetActive returns every active rule; more than one is reported by the pipeline as ambiguous
func (r *ruleRepo) GetActive(ctx context.Context, businessID string) ([]model.CombinationRule, error) {
	return r.find(ctx, bson.M{"businessId": businessID, "isActive": true})
}

func (r *ruleRepo) find(ctx context.Context, filter bson.M) ([]model.CombinationRule, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rules []model.CombinationRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Activate makes ruleID the only active rule of the business
func (r *ruleRepo) Activate(ctx context.Context, businessID, ruleID string) error {
	now := time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": ruleID, "businessId": businessID},
		bson.M{"$set": bson.M{"isActive": true, "updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRuleNotFound
	}

	_, err = r.collection.UpdateMany(ctx,
		bson.M{"businessId": businessID, "_id": bson.M{"$ne": ruleID}, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": now}},
	)
	return err
}
