package util

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseObjectID(t *testing.T) {
	id := primitive.NewObjectID()

	parsed, err := ParseObjectID(id.Hex())
	if err != nil {
		t.Fatalf("ParseObjectID returned error: %v", err)
	}
	if parsed != id {
		t.Errorf("parsed = %s, want %s", parsed.Hex(), id.Hex())
	}

	if _, err := ParseObjectID("not-an-id"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
	if IsValidObjectID("123") {
		t.Error("IsValidObjectID(123) = true")
	}
}
