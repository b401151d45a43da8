package repository

import (
	"context"
	"fmt"

	"taskmanager/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection = "users"
	TasksCollection = "tasks"
)

// EnsureIndexes creates the unique keys the reconciliation relies on plus the
// task lookup indexes. It is safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "uid", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uid_unique")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}
	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	tasks := []mongo.IndexModel{
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
		{Keys: bson.D{{Key: "assignedBy", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}}},
		{Keys: bson.D{{Key: "dueDate", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := db.Collection(TasksCollection).Indexes().CreateMany(ctx, tasks); err != nil {
		return fmt.Errorf("failed to create task indexes: %w", err)
	}
	return nil
}

// mapWriteError turns unique-index violations into model.ErrConflict.
func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
}

// sortSpec resolves a user-supplied sort key against an allow-list, defaulting to createdAt.
func sortSpec(allowed map[string]string, key string, desc bool) bson.D {
	field, ok := allowed[key]
	if !ok {
		field = "createdAt"
	}
	dir := 1
	if desc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}
