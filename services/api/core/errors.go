package core

import "errors"

var (
	// Task lifecycle preconditions.
	ErrTaskCompleted     = errors.New("task already completed")
	ErrAlreadyInProgress = errors.New("task already in progress")
	ErrNotInProgress     = errors.New("task is not in progress")
	ErrInvalidStatus     = errors.New("invalid task status")

	// ErrUpdateToCompleted rejects status=completed on a plain update;
	// completion has to go through the complete operation so the
	// completion record is written.
	ErrUpdateToCompleted = errors.New("completion must use the complete operation")

	// Membership invariants.
	ErrNotAMember  = errors.New("user is not a member")
	ErrLastOwner   = errors.New("cannot remove the organization's last owner")
	ErrInvalidRole = errors.New("invalid role")
)
