package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"surveypilot/internal/model"
)

// SelectionLogRepo handles MongoDB operations for selection audit logs
type SelectionLogRepo interface {
	Record(ctx context.Context, entry *model.SelectionLog) error
	GetByRunID(ctx context.Context, runID string) (*model.SelectionLog, error)
	ListByBusiness(ctx context.Context, businessID string, limit int64) ([]model.SelectionLog, error)
}

type selectionLogRepo struct {
	collection *mongo.Collection
}

// NewSelectionLogRepo creates a new selection log repository
func NewSelectionLogRepo(db *mongo.Database) SelectionLogRepo {
	return &selectionLogRepo{
		collection: db.Collection("selection_logs"),
	}
}

func (r *selectionLogRepo) Record(ctx context.Context, entry *model.SelectionLog) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": entry.RunID}, entry, opts)
	return err
}

func (r *selectionLogRepo) GetByRunID(ctx context.Context, runID string) (*model.SelectionLog, error) {
	var entry model.SelectionLog
	err := r.collection.FindOne(ctx, bson.M{"_id": runID}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByBusiness returns the most recent runs first
func (r *selectionLogRepo) ListByBusiness(ctx context.Context, businessID string, limit int64) ([]model.SelectionLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"businessId": businessID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []model.SelectionLog
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
