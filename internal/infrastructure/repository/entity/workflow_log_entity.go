package entity

import (
	"time"

	"oracleboxing-funnel-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoWorkflowLogDoc represents a workflow log entry in MongoDB
type MongoWorkflowLogDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	RunID        string             `bson:"runId"`
	WorkflowName string             `bson:"workflowName"`
	WorkflowType string             `bson:"workflowType"`
	Status       string             `bson:"status"`
	Message      string             `bson:"message"`
	DurationMS   int64              `bson:"durationMs"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoWorkflowLogDoc) ToDomain() *domain.WorkflowLogEntry {
	return &domain.WorkflowLogEntry{
		RunID:        d.RunID,
		WorkflowName: d.WorkflowName,
		WorkflowType: d.WorkflowType,
		Status:       domain.WorkflowStatus(d.Status),
		Message:      d.Message,
		DurationMS:   d.DurationMS,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoWorkflowLogDocFromDomain converts a domain entity to a MongoDB document
func MongoWorkflowLogDocFromDomain(entry *domain.WorkflowLogEntry) *MongoWorkflowLogDoc {
	return &MongoWorkflowLogDoc{
		RunID:        entry.RunID,
		WorkflowName: entry.WorkflowName,
		WorkflowType: entry.WorkflowType,
		Status:       string(entry.Status),
		Message:      entry.Message,
		DurationMS:   entry.DurationMS,
		CreatedAt:    entry.CreatedAt,
	}
}
