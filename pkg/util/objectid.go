package util

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidID is wrapped by ParseObjectID failures.
var ErrInvalidID = errors.New("invalid id")

// ParseObjectID converts a hex string to a MongoDB ObjectID.
// Returns primitive.NilObjectID and an error wrapping ErrInvalidID if the string is invalid.
func ParseObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w %q: %v", ErrInvalidID, id, err)
	}
	return objID, nil
}

// IsValidObjectID returns true if the provided string is a valid ObjectID hex.
func IsValidObjectID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}
