package generic

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Entity is implemented by every document stored through MongoBaseRepository.
type Entity interface {
	GetID() primitive.ObjectID
	SetID(primitive.ObjectID)
	// Touch stamps updatedAt, and createdAt as well when created is true.
	Touch(now time.Time, created bool)
}
