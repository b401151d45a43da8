// Package policy decides whether an actor may act on a task or user record.
// Every function is pure: callers fetch the records first and pass them in.
// Anything not explicitly allowed is denied, including a nil actor.
package policy

import "taskmanager/internal/model"

// Action names an operation guarded by the policy.
type Action string

const (
	ViewTask       Action = "view_task"
	EditTask       Action = "edit_task"
	DeleteTask     Action = "delete_task"
	ListTasks      Action = "list_tasks"
	ManageRoles    Action = "manage_roles"
	DeleteUser     Action = "delete_user"
	ManageAllTasks Action = "manage_all_tasks"
	ManageAllUsers Action = "manage_all_users"
)

// CanViewTask allows admins and the task's assignee.
func CanViewTask(actor *model.User, task *model.Task) bool {
	if actor == nil || task == nil {
		return false
	}
	return actor.IsAdmin() || actor.UID == task.AssignedTo
}

// CanEditTask allows admins, the assignee and the assigner.
func CanEditTask(actor *model.User, task *model.Task) bool {
	if actor == nil || task == nil {
		return false
	}
	return actor.IsAdmin() || actor.UID == task.AssignedTo || actor.UID == task.AssignedBy
}

// CanDeleteTask allows admins and the assigner.
func CanDeleteTask(actor *model.User, task *model.Task) bool {
	if actor == nil || task == nil {
		return false
	}
	return actor.IsAdmin() || actor.UID == task.AssignedBy
}

// TaskListScope returns the assignee a listing must be restricted to.
// Admins get ("", false): no restriction.
func TaskListScope(actor *model.User) (assignee string, scoped bool) {
	if actor.IsAdmin() {
		return "", false
	}
	if actor == nil {
		// An unknown actor sees nothing; no real uid is empty.
		return "", true
	}
	return actor.UID, true
}

// CanManageRoles allows admins only.
func CanManageRoles(actor *model.User) bool {
	return actor.IsAdmin()
}

// CanDeleteUser allows admins to delete anyone but themselves.
func CanDeleteUser(actor, target *model.User) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.UID == target.UID {
		return false
	}
	return actor.IsAdmin()
}

// CanManageAll gates the unscoped admin views of tasks and users.
func CanManageAll(actor *model.User) bool {
	return actor.IsAdmin()
}

// Allowed dispatches on action. task and target may be nil when the action
// does not use them.
func Allowed(action Action, actor *model.User, task *model.Task, target *model.User) bool {
	switch action {
	case ViewTask:
		return CanViewTask(actor, task)
	case EditTask:
		return CanEditTask(actor, task)
	case DeleteTask:
		return CanDeleteTask(actor, task)
	case ListTasks:
		return actor != nil
	case ManageRoles:
		return CanManageRoles(actor)
	case DeleteUser:
		return CanDeleteUser(actor, target)
	case ManageAllTasks, ManageAllUsers:
		return CanManageAll(actor)
	}
	return false
}
