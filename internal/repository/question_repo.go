package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"surveypilot/internal/model"
)

// QuestionRepo handles MongoDB operations for candidate questions
type QuestionRepo interface {
	Upsert(ctx context.Context, question *model.CandidateQuestion) error
	GetByID(ctx context.Context, id string) (*model.CandidateQuestion, error)
	Delete(ctx context.Context, id string) error

	// Selection support
	GetActiveByBusiness(ctx context.Context, businessID string) ([]model.CandidateQuestion, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.CandidateQuestion, error)
}

type questionRepo struct {
	collection *mongo.Collection
}

// NewQuestionRepo creates a new question repository
func NewQuestionRepo(db *mongo.Database) QuestionRepo {
	return &questionRepo{
		collection: db.Collection("questions"),
	}
}

func (r *questionRepo) Upsert(ctx context.Context, question *model.CandidateQuestion) error {
	// Generate ID if not provided
	if question.ID == "" {
		question.ID = primitive.NewObjectID().Hex()
	}

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": question.ID}, question, opts)
	return err
}

func (r *questionRepo) GetByID(ctx context.Context, id string) (*model.CandidateQuestion, error) {
	var question model.CandidateQuestion
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&question)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Question not found
		}
		return nil, err
	}
	return &question, nil
}

func (r *questionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *questionRepo) GetActiveByBusiness(ctx context.Context, businessID string) ([]model.CandidateQuestion, error) {
	// Highest priority first so the candidate list reads naturally in logs
	opts := options.Find().SetSort(bson.D{{Key: "priorityLevel", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"businessId": businessID, "isActive": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var questions []model.CandidateQuestion
	if err = cursor.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepo) GetByIDs(ctx context.Context, ids []string) ([]model.CandidateQuestion, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var questions []model.CandidateQuestion
	if err = cursor.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}
