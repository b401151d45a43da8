// Package memory holds map-backed stores with the same unique-key rules as
// the Mongo collections. The server uses them when MONGODB_URI is
// "memory://"; tests use them everywhere.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taskmanager/internal/model"
	"taskmanager/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore enforces unique uid and unique email.
type UserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*model.User
	now   func() time.Time
}

var _ repository.IUserRepository = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[primitive.ObjectID]*model.User), now: time.Now}
}

func (s *UserStore) FindByUID(_ context.Context, uid string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.findLocked(func(u *model.User) bool { return u.UID == uid })), nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.findLocked(func(u *model.User) bool { return u.Email == email })), nil
}

func (s *UserStore) findLocked(match func(*model.User) bool) *model.User {
	for _, u := range s.users {
		if match(u) {
			return u
		}
	}
	return nil
}

// conflictLocked reports whether another record than skip holds uid or email.
func (s *UserStore) conflictLocked(skip primitive.ObjectID, uid, email string) bool {
	for id, u := range s.users {
		if id == skip {
			continue
		}
		if u.UID == uid || u.Email == email {
			return true
		}
	}
	return false
}

func (s *UserStore) Create(_ context.Context, user *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictLocked(primitive.NilObjectID, user.UID, user.Email) {
		return nil, model.ErrConflict
	}
	stored := cloneUser(user)
	stored.ID = primitive.NewObjectID()
	if stored.Role == "" {
		stored.Role = model.RoleUser
	}
	now := s.now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.users[stored.ID] = stored
	return cloneUser(stored), nil
}

func (s *UserStore) Update(_ context.Context, id primitive.ObjectID, patch model.UserPatch) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	next := cloneUser(current)
	patch.Apply(next)
	if s.conflictLocked(id, next.UID, next.Email) {
		return nil, model.ErrConflict
	}
	next.UpdatedAt = s.now()
	s.users[id] = next
	return cloneUser(next), nil
}

func (s *UserStore) DeleteByUID(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.UID == uid {
			delete(s.users, id)
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *UserStore) List(_ context.Context, filter model.UserFilter) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.DisplayName), search) {
			continue
		}
		users = append(users, cloneUser(u))
	}

	less := userOrder(filter.SortBy)
	sort.SliceStable(users, func(i, j int) bool {
		if filter.Desc {
			return less(users[j], users[i])
		}
		return less(users[i], users[j])
	})
	return users, nil
}

func userOrder(key string) func(a, b *model.User) bool {
	switch key {
	case "email":
		return func(a, b *model.User) bool { return a.Email < b.Email }
	case "displayName":
		return func(a, b *model.User) bool { return a.DisplayName < b.DisplayName }
	case "role":
		return func(a, b *model.User) bool { return a.Role < b.Role }
	}
	return func(a, b *model.User) bool { return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID) }
}

func (s *UserStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func byCreated(a, b time.Time, aid, bid primitive.ObjectID) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return aid.Hex() < bid.Hex()
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.PhotoURL != nil {
		photo := *u.PhotoURL
		c.PhotoURL = &photo
	}
	return &c
}
