package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IUserRepository is the User Directory: user records keyed by uid and by lowercase email.
type IUserRepository interface {
	// FindByUID and FindByEmail return (nil, nil) when no record matches.
	FindByUID(ctx context.Context, uid string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create returns model.ErrConflict when uid or email is already taken.
	Create(ctx context.Context, user *model.User) (*model.User, error)
	// Update returns the updated record, model.ErrNotFound or model.ErrConflict.
	Update(ctx context.Context, id primitive.ObjectID, patch model.UserPatch) (*model.User, error)
	DeleteByUID(ctx context.Context, uid string) error
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
	Count(ctx context.Context) (int64, error)
}

// UserRepository implements IUserRepository on the users collection
type UserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewUserRepository(cfg *config.Config, db *mongo.Database) IUserRepository {
	return &UserRepository{cfg: cfg, collection: db.Collection(UsersCollection)}
}

var userSortFields = map[string]string{
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
	"email":       "email",
	"displayName": "displayName",
	"role":        "role",
}

func (r *UserRepository) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"uid": uid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var user *model.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	user.ID = primitive.NilObjectID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	res, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return nil, mapWriteError(err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, id primitive.ObjectID, patch model.UserPatch) (*model.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.UID != nil {
		set["uid"] = *patch.UID
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.DisplayName != nil {
		set["displayName"] = *patch.DisplayName
	}
	if patch.PhotoURL != nil {
		set["photoURL"] = *patch.PhotoURL
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user *model.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, mapWriteError(err)
	}
	return user, nil
}

func (r *UserRepository) DeleteByUID(ctx context.Context, uid string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"uid": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"email": pattern},
			bson.M{"displayName": pattern},
		}
	}

	opts := options.Find().SetSort(sortSpec(userSortFields, filter.SortBy, filter.Desc))
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := make([]*model.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}
