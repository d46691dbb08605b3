package core

import (
	"github.com/opsboard/opsboard/pkg/models"
)

// CanTouchTask reports whether the actor may update, delete, or complete
// the task: the actor must be the assignee, the creator, or a project
// owner.
func CanTouchTask(t models.Task, actorID int64, projectRole models.Role) bool {
	if t.AssigneeID == actorID || t.CreatedBy == actorID {
		return true
	}
	return projectRole == models.RoleOwner
}

// CheckRemoveMember validates removing an organization member whose
// membership has already been confirmed. An owner may remove another
// owner as long as at least one owner remains afterwards.
func CheckRemoveMember(targetRole models.Role, ownerCount int) error {
	if targetRole == models.RoleOwner && ownerCount <= 1 {
		return ErrLastOwner
	}
	return nil
}

// CheckRoleUpdate validates changing a member's role. Demoting the last
// owner would leave the organization without one.
func CheckRoleUpdate(targetRole, newRole models.Role, ownerCount int) error {
	if !newRole.Valid() {
		return ErrInvalidRole
	}
	if targetRole == models.RoleOwner && newRole != models.RoleOwner && ownerCount <= 1 {
		return ErrLastOwner
	}
	return nil
}
