package generic

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no document matches the id.
var ErrNotFound = errors.New("document not found")

// BaseRepository Interface
type BaseRepository[T Entity] interface {
	Create(ctx context.Context, entity T) error
	GetByID(ctx context.Context, id primitive.ObjectID) (T, error)
	Update(ctx context.Context, entity T) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MongoBaseRepository Implementation
type MongoBaseRepository[T Entity] struct {
	Collection *mongo.Collection
}

func NewBaseRepository[T Entity](collection *mongo.Collection) *MongoBaseRepository[T] {
	return &MongoBaseRepository[T]{Collection: collection}
}

// Create assigns a fresh id and both timestamps, then inserts.
func (r *MongoBaseRepository[T]) Create(ctx context.Context, entity T) error {
	now := time.Now().UTC()
	entity.SetID(primitive.NewObjectID())
	entity.Touch(now, true)
	_, err := r.Collection.InsertOne(ctx, entity)
	return err
}

// GetByID returns ErrNotFound when the document does not exist.
func (r *MongoBaseRepository[T]) GetByID(ctx context.Context, id primitive.ObjectID) (T, error) {
	var entity T
	err := r.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity, ErrNotFound
	}
	return entity, err
}

// Update replaces the whole document and refreshes updatedAt.
func (r *MongoBaseRepository[T]) Update(ctx context.Context, entity T) error {
	entity.Touch(time.Now().UTC(), false)
	res, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": entity.GetID()}, entity)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one document by id.
func (r *MongoBaseRepository[T]) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
