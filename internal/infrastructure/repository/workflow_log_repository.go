package repository

import (
	"context"
	"fmt"
	"time"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/infrastructure/repository/entity"
	"oracleboxing-funnel-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoWorkflowLogRepository implements WorkflowLogRepository using MongoDB
type MongoWorkflowLogRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkflowLogRepository creates a new MongoDB workflow log repository
func NewMongoWorkflowLogRepository(db *mongo.Database) ports.WorkflowLogRepository {
	return &MongoWorkflowLogRepository{
		collection: db.Collection("workflow_logs"),
	}
}

// LogEntry appends one workflow log entry
func (r *MongoWorkflowLogRepository) LogEntry(ctx context.Context, e *domain.WorkflowLogEntry) error {
	doc := entity.MongoWorkflowLogDocFromDomain(e)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to log workflow entry: %w", err)
	}
	return nil
}

// ListRun retrieves all entries for a run, oldest first
func (r *MongoWorkflowLogRepository) ListRun(ctx context.Context, runID string) ([]*domain.WorkflowLogEntry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"runId": runID})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*domain.WorkflowLogEntry
	for cursor.Next(ctx) {
		var doc entity.MongoWorkflowLogDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode workflow entry: %w", err)
		}
		entries = append(entries, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return entries, nil
}
