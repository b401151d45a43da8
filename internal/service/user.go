package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"taskmanager/internal/config"
	"taskmanager/internal/identity"
	"taskmanager/internal/metrics"
	"taskmanager/internal/model"
	"taskmanager/internal/policy"
	"taskmanager/internal/repository"
	"taskmanager/pkg/timer"
	"taskmanager/pkg/util"

	"github.com/rs/zerolog"
)

const (
	maxDisplayNameLength = 100
	// maxReconcileAttempts bounds the lookup/create loop when a concurrent
	// first login wins the unique-key race.
	maxReconcileAttempts = 3
)

// UserService owns every write to user records: reconciliation of verified
// identities, role changes, profile edits and cascading deletion.
type UserService struct {
	users   repository.IUserRepository
	tasks   repository.ITaskRepository
	gateway identity.Gateway
	metrics metrics.Recorder
	log     zerolog.Logger
}

// NewUserService creates a new user service
func NewUserService(users repository.IUserRepository, tasks repository.ITaskRepository, gateway identity.Gateway, rec metrics.Recorder, log zerolog.Logger) *UserService {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &UserService{
		users:   users,
		tasks:   tasks,
		gateway: gateway,
		metrics: rec,
		log:     log.With().Str("component", "users").Logger(),
	}
}

// Reconcile maps a verified identity to exactly one user record:
//  1. found by uid: refresh email, display name and photo from the identity;
//  2. found by email: rebind the record to the identity's uid (seeded accounts);
//  3. otherwise create a new record with role user.
//
// A unique-key conflict on create or rebind means another request got there
// first; the lookups are repeated instead of failing.
func (s *UserService) Reconcile(ctx context.Context, id *model.Identity) (*model.User, error) {
	defer timer.Track(s.log, "reconcile")()

	if id == nil || strings.TrimSpace(id.UID) == "" {
		return nil, model.NewValidationError("uid", "identity has no uid")
	}
	email := util.NormalizeEmail(id.Email)

	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		user, retry, err := s.reconcileOnce(ctx, id, email)
		if !retry {
			return user, err
		}
		s.metrics.RecordReconcile(metrics.ReconcileConflictRetry)
		s.log.Warn().Str("uid", id.UID).Int("attempt", attempt).Err(err).Msg("reconcile lost a unique-key race, retrying lookup")
	}
	return nil, fmt.Errorf("reconcile %s: %w", id.UID, model.ErrConflict)
}

func (s *UserService) reconcileOnce(ctx context.Context, id *model.Identity, email string) (user *model.User, retry bool, err error) {
	existing, err := s.users.FindByUID(ctx, id.UID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up user by uid: %w", err)
	}
	if existing != nil {
		patch := refreshPatch(existing, id, email)
		if patch.Empty() {
			s.metrics.RecordReconcile(metrics.ReconcileUnchanged)
			return existing, false, nil
		}
		updated, err := s.users.Update(ctx, existing.ID, patch)
		if err != nil {
			// A conflict here is the new email being owned by another record;
			// repeating the lookup cannot resolve that.
			return nil, false, fmt.Errorf("failed to refresh user %s: %w", id.UID, err)
		}
		s.metrics.RecordReconcile(metrics.ReconcileUpdated)
		return updated, false, nil
	}

	if email == "" {
		return nil, false, model.NewValidationError("email", "email is required to create a user")
	}

	byEmail, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up user by email: %w", err)
	}
	if byEmail != nil {
		patch := refreshPatch(byEmail, id, "")
		uid := id.UID
		patch.UID = &uid
		relinked, err := s.users.Update(ctx, byEmail.ID, patch)
		if err != nil {
			return nil, errors.Is(err, model.ErrConflict), fmt.Errorf("failed to relink user %s: %w", email, err)
		}
		s.log.Info().
			Str("email", email).
			Str("old_uid", byEmail.UID).
			Str("new_uid", id.UID).
			Str("role", string(relinked.Role)).
			Msg("relinked existing user record to provider uid")
		s.metrics.RecordReconcile(metrics.ReconcileRelinked)
		return relinked, false, nil
	}

	created, err := s.users.Create(ctx, &model.User{
		UID:         id.UID,
		Email:       email,
		DisplayName: displayNameFor(id.DisplayName, email),
		PhotoURL:    id.PhotoURL,
		Role:        model.RoleUser, // the token's role claim is never trusted for the initial grant
	})
	if err != nil {
		return nil, errors.Is(err, model.ErrConflict), fmt.Errorf("failed to create user %s: %w", id.UID, err)
	}
	s.metrics.RecordReconcile(metrics.ReconcileCreated)
	return created, false, nil
}

// refreshPatch collects the identity fields that differ from u. Absent
// identity fields never clear stored values. email is skipped when empty.
func refreshPatch(u *model.User, id *model.Identity, email string) model.UserPatch {
	var patch model.UserPatch
	if email != "" && email != u.Email {
		patch.Email = &email
	}
	if name := strings.TrimSpace(id.DisplayName); name != "" && name != u.DisplayName {
		patch.DisplayName = &name
	}
	if id.PhotoURL != nil && (u.PhotoURL == nil || *u.PhotoURL != *id.PhotoURL) {
		photo := *id.PhotoURL
		patch.PhotoURL = &photo
	}
	return patch
}

// displayNameFor falls back to the email local part, as registration does
// when the provider has no name.
func displayNameFor(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return email
}

// GetRole returns the stored role for uid. It never fails: a missing record or
// a lookup error yields model.RoleUser, the least privileged role.
func (s *UserService) GetRole(ctx context.Context, uid string) model.Role {
	user, err := s.users.FindByUID(ctx, uid)
	if err != nil {
		s.log.Error().Err(err).Str("uid", uid).Msg("role lookup failed, using user role")
		return model.RoleUser
	}
	if user == nil {
		return model.RoleUser
	}
	return user.Role
}

// RoleByEmail returns the stored role and uid for email, falling back to
// (user, "") the same way GetRole does.
func (s *UserService) RoleByEmail(ctx context.Context, email string) (model.Role, string) {
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("role lookup by email failed, using user role")
		return model.RoleUser, ""
	}
	if user == nil {
		return model.RoleUser, ""
	}
	return user.Role, user.UID
}

// IsAdminEmail reports whether email belongs to a stored admin.
func (s *UserService) IsAdminEmail(ctx context.Context, email string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("failed to look up user by email: %w", err)
	}
	return user.IsAdmin(), nil
}

// SetRole writes role to the provider claim and then to the stored record.
// When the claim write succeeds and the stored write fails the result is a
// *model.PartialWriteError; the claim is left as written.
func (s *UserService) SetRole(ctx context.Context, actor *model.User, targetUID string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, model.NewValidationError("role", "Invalid role specified")
	}

	target, err := s.users.FindByUID(ctx, targetUID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("user %s: %w", targetUID, model.ErrNotFound)
	}
	if !policy.CanManageRoles(actor) {
		return nil, model.ErrForbidden
	}

	if err := s.gateway.SetRoleClaim(ctx, target.UID, role); err != nil {
		s.metrics.RecordRoleChange(metrics.RoleChangeProviderError)
		return nil, fmt.Errorf("failed to set role claim: %w", err)
	}

	updated, err := s.users.Update(ctx, target.ID, model.UserPatch{Role: &role})
	if err != nil {
		s.metrics.RecordRoleChange(metrics.RoleChangePartialWrite)
		s.log.Error().
			Err(err).
			Str("uid", target.UID).
			Str("claim_role", string(role)).
			Str("stored_role", string(target.Role)).
			Msg("role claim and stored role diverged")
		return nil, &model.PartialWriteError{UID: target.UID, ClaimRole: role, Err: err}
	}

	s.metrics.RecordRoleChange(metrics.RoleChangeOK)
	s.log.Info().Str("actor", actor.UID).Str("uid", target.UID).Str("role", string(role)).Msg("role updated")
	return updated, nil
}

// RoleStatus compares the stored role with the provider claim so a
// divergence left by a partial write can be detected.
func (s *UserService) RoleStatus(ctx context.Context, actor *model.User, uid string) (*model.RoleStatus, error) {
	user, err := s.users.FindByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", uid, model.ErrNotFound)
	}
	if !policy.CanManageRoles(actor) {
		return nil, model.ErrForbidden
	}

	claim, err := s.gateway.RoleClaim(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to read role claim: %w", err)
	}
	return &model.RoleStatus{
		UID:        uid,
		StoredRole: user.Role,
		ClaimRole:  claim,
		Diverged:   claim != user.Role,
	}, nil
}

// DeleteUser removes targetUID after cleaning up its tasks: tasks it created
// are deleted, tasks assigned to it move to the actor. The user record goes
// last so a failure never leaves tasks pointing at a missing owner.
func (s *UserService) DeleteUser(ctx context.Context, actor *model.User, targetUID string) error {
	target, err := s.users.FindByUID(ctx, targetUID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if target == nil {
		return fmt.Errorf("user %s: %w", targetUID, model.ErrNotFound)
	}
	if !policy.CanDeleteUser(actor, target) {
		return model.ErrForbidden
	}

	sw := timer.NewStopwatch(s.log.With().Str("uid", target.UID).Logger())
	deleted, err := s.tasks.DeleteByAssigner(ctx, target.UID)
	if err != nil {
		return fmt.Errorf("failed to delete tasks created by %s: %w", target.UID, err)
	}
	sw.Lap("delete_created")
	reassigned, err := s.tasks.ReassignAssignee(ctx, target.UID, actor.UID)
	if err != nil {
		return fmt.Errorf("failed to reassign tasks of %s: %w", target.UID, err)
	}
	sw.Lap("reassign_assigned")
	s.metrics.RecordCascade(deleted, reassigned)

	if err := s.users.DeleteByUID(ctx, target.UID); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", target.UID, err)
	}
	sw.Lap("delete_user")
	sw.Total("delete_user_cascade")

	s.log.Info().
		Str("actor", actor.UID).
		Str("uid", target.UID).
		Int64("tasks_deleted", deleted).
		Int64("tasks_reassigned", reassigned).
		Msg("user deleted")
	return nil
}

// GetProfile returns the caller's own record.
func (s *UserService) GetProfile(ctx context.Context, uid string) (*model.User, error) {
	user, err := s.users.FindByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", uid, model.ErrNotFound)
	}
	return user, nil
}

// UpdateProfile changes the caller's display name.
func (s *UserService) UpdateProfile(ctx context.Context, uid, displayName string) (*model.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, model.NewValidationError("displayName", "Display name is required")
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return nil, model.NewValidationError("displayName", fmt.Sprintf("Display name cannot be more than %d characters", maxDisplayNameLength))
	}

	user, err := s.GetProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.users.Update(ctx, user.ID, model.UserPatch{DisplayName: &displayName})
}

// ListUsers is the admin user listing.
func (s *UserService) ListUsers(ctx context.Context, actor *model.User, filter model.UserFilter) ([]*model.User, error) {
	if !policy.CanManageAll(actor) {
		return nil, model.ErrForbidden
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, model.NewValidationError("role", "Invalid role filter")
	}
	return s.users.List(ctx, filter)
}

// SeedAdmin inserts the configured admin with its synthetic uid unless a
// record already holds that email or uid. The first provider login with the
// same email rebinds it through Reconcile.
func (s *UserService) SeedAdmin(ctx context.Context, seed config.SeedAdminConfig) (*model.User, bool, error) {
	email := util.NormalizeEmail(seed.Email)
	if email == "" {
		return nil, false, nil
	}
	if err := util.ValidateEmail(email); err != nil {
		return nil, false, model.NewValidationError("email", err.Error())
	}
	uid := strings.TrimSpace(seed.UID)
	if uid == "" {
		uid = config.DefaultSeedAdminUID
	}

	if existing, err := s.findSeed(ctx, uid, email); err != nil || existing != nil {
		return existing, false, err
	}

	created, err := s.users.Create(ctx, &model.User{
		UID:         uid,
		Email:       email,
		DisplayName: displayNameFor(seed.DisplayName, email),
		Role:        model.RoleAdmin,
	})
	if errors.Is(err, model.ErrConflict) {
		existing, err := s.findSeed(ctx, uid, email)
		return existing, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create admin user: %w", err)
	}
	s.log.Info().Str("uid", uid).Str("email", email).Msg("seeded admin user")
	return created, true, nil
}

func (s *UserService) findSeed(ctx context.Context, uid, email string) (*model.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil || existing != nil {
		return existing, err
	}
	return s.users.FindByUID(ctx, uid)
}
