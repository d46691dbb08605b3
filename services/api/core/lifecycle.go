// Package core holds the task lifecycle rules and the authorization
// guards shared by the API handlers. Everything here is a pure decision
// over already-fetched state; persistence stays in the store.
package core

import (
	"time"

	"github.com/opsboard/opsboard/pkg/models"
)

// TaskUpdate carries the fields a client may change on a task. Nil means
// "leave as is".
type TaskUpdate struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Priority    *string            `json:"priority,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	Difficulty  *int               `json:"difficulty,omitempty"`
	AssigneeID  *int64             `json:"assignee_id,omitempty"`
	Status      *models.TaskStatus `json:"status,omitempty"`
}

// ApplyUpdate runs the update rules against a copy of the task and
// returns the resulting row. Rules, in order:
//
//  1. A completed task rejects every further edit.
//  2. Changing the assignee forces status back to todo and clears the
//     started date, regardless of any status supplied in the same
//     request.
//  3. A transition to in_progress fails if already in progress; the
//     first such transition records the start instant.
//  4. Anything else is a plain field update.
func ApplyUpdate(t models.Task, upd TaskUpdate, now time.Time) (models.Task, error) {
	if t.Status == models.StatusCompleted {
		return t, ErrTaskCompleted
	}

	if upd.Name != nil {
		t.Name = *upd.Name
	}
	if upd.Description != nil {
		t.Description = upd.Description
	}
	if upd.Priority != nil {
		t.Priority = upd.Priority
	}
	if upd.DueDate != nil {
		t.DueDate = upd.DueDate
	}
	if upd.Difficulty != nil {
		t.Difficulty = upd.Difficulty
	}

	if upd.AssigneeID != nil && *upd.AssigneeID != t.AssigneeID {
		// Reassignment restarts progress tracking; a supplied status
		// or started date is ignored.
		t.AssigneeID = *upd.AssigneeID
		t.Status = models.StatusTodo
		t.StartedDate = nil
		return t, nil
	}

	if upd.Status != nil {
		if !upd.Status.Valid() {
			return t, ErrInvalidStatus
		}
		switch *upd.Status {
		case models.StatusInProgress:
			if t.Status == models.StatusInProgress {
				return t, ErrAlreadyInProgress
			}
			t.Status = models.StatusInProgress
			if t.StartedDate == nil {
				started := now
				t.StartedDate = &started
			}
		case models.StatusCompleted:
			return t, ErrUpdateToCompleted
		default:
			t.Status = *upd.Status
		}
	}

	return t, nil
}

// Completion builds the completion record for a task transitioning into
// completed. Elapsed hours are the absolute difference between now and
// the started date, floored to whole hours. A zero-hour completion is
// flagged as an exception but still completes.
func Completion(t models.Task, now time.Time) (models.CompletedTask, bool, error) {
	if t.Status != models.StatusInProgress || t.StartedDate == nil {
		return models.CompletedTask{}, false, ErrNotInProgress
	}

	elapsed := now.Sub(*t.StartedDate)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	hours := int64(elapsed / time.Hour)

	rec := models.CompletedTask{
		TaskID:        t.ID,
		UserID:        t.AssigneeID,
		ProjectID:     t.ProjectID,
		StartedDate:   *t.StartedDate,
		CompletedDate: now,
		Hours:         hours,
	}
	return rec, hours == 0, nil
}
