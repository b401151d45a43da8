package repository

import (
	"context"
	"errors"
	"regexp"

	"taskmanager/internal/config"
	"taskmanager/internal/model"
	"taskmanager/pkg/generic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ITaskRepository is the Task Store.
type ITaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	// FindByID returns (nil, nil) when the task does not exist.
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error)
	// Count counts tasks in status, or all tasks when status is empty.
	Count(ctx context.Context, status model.TaskStatus) (int64, error)
	// DeleteByAssigner removes every task created by uid.
	DeleteByAssigner(ctx context.Context, uid string) (int64, error)
	// ReassignAssignee moves every task assigned to from over to to.
	ReassignAssignee(ctx context.Context, from, to string) (int64, error)
}

// TaskRepository implements ITaskRepository on the tasks collection
type TaskRepository struct {
	*generic.MongoBaseRepository[*model.Task]
	cfg *config.Config
}

func NewTaskRepository(cfg *config.Config, db *mongo.Database) ITaskRepository {
	return &TaskRepository{
		MongoBaseRepository: generic.NewBaseRepository[*model.Task](db.Collection(TasksCollection)),
		cfg:                 cfg,
	}
}

var taskSortFields = map[string]string{
	"createdAt": "createdAt",
	"updatedAt": "updatedAt",
	"dueDate":   "dueDate",
	"title":     "title",
	"status":    "status",
	"priority":  "priority",
}

func (r *TaskRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Task, error) {
	task, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	if err := r.MongoBaseRepository.Update(ctx, task); err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			return model.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := r.MongoBaseRepository.Delete(ctx, id); err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			return model.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error) {
	opts := options.Find().SetSort(sortSpec(taskSortFields, filter.SortBy, filter.Desc))
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.Collection.Find(ctx, taskQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tasks := make([]*model.Task, 0)
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func taskQuery(filter model.TaskFilter) bson.M {
	query := bson.M{}
	if filter.AssignedTo != "" {
		query["assignedTo"] = filter.AssignedTo
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	return query
}

func (r *TaskRepository) Count(ctx context.Context, status model.TaskStatus) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.Collection.CountDocuments(ctx, filter)
}

func (r *TaskRepository) DeleteByAssigner(ctx context.Context, uid string) (int64, error) {
	res, err := r.Collection.DeleteMany(ctx, bson.M{"assignedBy": uid})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *TaskRepository) ReassignAssignee(ctx context.Context, from, to string) (int64, error) {
	res, err := r.Collection.UpdateMany(ctx,
		bson.M{"assignedTo": from},
		bson.M{
			"$set":         bson.M{"assignedTo": to},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
