package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"surveypilot/internal/model"
)

// TopicRepo handles MongoDB operations for topic groups
type TopicRepo interface {
	Upsert(ctx context.Context, topic *model.TopicGroup) error
	GetByBusiness(ctx context.Context, businessID string) ([]model.TopicGroup, error)
	Delete(ctx context.Context, businessID, topicCategory string) error
}

type topicRepo struct {
	collection *mongo.Collection
}

// NewTopicRepo creates a new topic group repository
func NewTopicRepo(db *mongo.Database) TopicRepo {
	return &topicRepo{
		collection: db.Collection("topic_groups"),
	}
}

func (r *topicRepo) Upsert(ctx context.Context, topic *model.TopicGroup) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"businessId": topic.BusinessID, "topicCategory": topic.TopicCategory},
		topic,
		opts,
	)
	return err
}

func (r *topicRepo) GetByBusiness(ctx context.Context, businessID string) ([]model.TopicGroup, error) {
	opts := options.Find().SetSort(bson.D{{Key: "displayOrder", Value: 1}, {Key: "topicCategory", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"businessId": businessID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var topics []model.TopicGroup
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (r *topicRepo) Delete(ctx context.Context, businessID, topicCategory string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"businessId": businessID, "topicCategory": topicCategory})
	return err
}
