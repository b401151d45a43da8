package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/model"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// openTestDB connects to TASKMANAGER_TEST_MONGO_URI and returns a throwaway
// database; the test is skipped when the variable is unset.
func openTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TASKMANAGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TASKMANAGER_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := client.Database(fmt.Sprintf("taskmanager_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	if err := EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return db
}

func TestUserRepositoryUniqueKeys(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(config.Default(), db)
	ctx := context.Background()

	seeded, err := repo.Create(ctx, &model.User{UID: "admin-seed", Email: "root@x.com", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Create(ctx, &model.User{UID: "other", Email: "root@x.com"}); !errors.Is(err, model.ErrConflict) {
		t.Errorf("duplicate email: got %v, want ErrConflict", err)
	}

	uid := "firebase-root"
	relinked, err := repo.Update(ctx, seeded.ID, model.UserPatch{UID: &uid})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if relinked.UID != uid || relinked.Role != model.RoleAdmin {
		t.Errorf("relinked = %+v", relinked)
	}

	if u, _ := repo.FindByUID(ctx, "admin-seed"); u != nil {
		t.Errorf("old uid still resolves")
	}
	if u, _ := repo.FindByEmail(ctx, "root@x.com"); u == nil || u.UID != uid {
		t.Errorf("FindByEmail = %+v", u)
	}

	if err := repo.DeleteByUID(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("DeleteByUID(ghost): got %v, want ErrNotFound", err)
	}
}

func TestTaskRepositoryCascadeHelpers(t *testing.T) {
	db := openTestDB(t)
	repo := NewTaskRepository(config.Default(), db)
	ctx := context.Background()

	for _, task := range []*model.Task{
		{Title: "created by u2", AssignedBy: "u2", AssignedTo: "u3", Status: model.StatusPending, Tags: []string{}},
		{Title: "for u2", AssignedBy: "admin", AssignedTo: "u2", Status: model.StatusCompleted, Tags: []string{}},
	} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	deleted, err := repo.DeleteByAssigner(ctx, "u2")
	if err != nil || deleted != 1 {
		t.Fatalf("DeleteByAssigner = %d, %v", deleted, err)
	}
	reassigned, err := repo.ReassignAssignee(ctx, "u2", "admin")
	if err != nil || reassigned != 1 {
		t.Fatalf("ReassignAssignee = %d, %v", reassigned, err)
	}

	tasks, err := repo.List(ctx, model.TaskFilter{AssignedTo: "admin"})
	if err != nil || len(tasks) != 1 || tasks[0].Title != "for u2" {
		t.Errorf("List = %+v, %v", tasks, err)
	}
	if n, _ := repo.Count(ctx, model.StatusCompleted); n != 1 {
		t.Errorf("Count(completed) = %d", n)
	}
}

func TestSortSpec(t *testing.T) {
	got := sortSpec(taskSortFields, "dueDate", false)
	if got[0].Key != "dueDate" || got[0].Value != 1 || got[1].Key != "_id" {
		t.Errorf("sortSpec(dueDate) = %v", got)
	}

	got = sortSpec(taskSortFields, "$where", true)
	if got[0].Key != "createdAt" || got[0].Value != -1 {
		t.Errorf("unknown key not replaced by createdAt: %v", got)
	}
}
