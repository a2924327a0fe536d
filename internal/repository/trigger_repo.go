package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"surveypilot/internal/model"
)

// TriggerRepo handles MongoDB operations for trigger definitions
type TriggerRepo interface {
	Upsert(ctx context.Context, trigger *model.TriggerDefinition) error
	GetByID(ctx context.Context, id string) (*model.TriggerDefinition, error)
	GetByBusiness(ctx context.Context, businessID string) ([]model.TriggerDefinition, error)
	Delete(ctx context.Context, id string) error
}

type triggerRepo struct {
	collection *mongo.Collection
}

// NewTriggerRepo creates a new trigger repository
func NewTriggerRepo(db *mongo.Database) TriggerRepo {
	return &triggerRepo{
		collection: db.Collection("triggers"),
	}
}

func (r *triggerRepo) Upsert(ctx context.Context, trigger *model.TriggerDefinition) error {
	if trigger.ID == "" {
		trigger.ID = primitive.NewObjectID().Hex()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": trigger.ID}, trigger, opts)
	return err
}

func (r *triggerRepo) GetByID(ctx context.Context, id string) (*model.TriggerDefinition, error) {
	var trigger model.TriggerDefinition
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&trigger)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trigger, nil
}

// GetByBusiness returns active and inactive triggers in ID order; the evaluator skips inactive ones
func (r *triggerRepo) GetByBusiness(ctx context.Context, businessID string) ([]model.TriggerDefinition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"businessId": businessID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var triggers []model.TriggerDefinition
	if err := cursor.All(ctx, &triggers); err != nil {
		return nil, err
	}
	return triggers, nil
}

func (r *triggerRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
