package models

import "time"

// TaskStatus is the task lifecycle state. Transitions only ever move
// forward: todo -> in_progress -> completed. Completed is terminal.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          int64      `json:"id" db:"id"`
	ProjectID   int64      `json:"project_id" db:"project_id"`
	AssigneeID  int64      `json:"assignee_id" db:"assignee_id"`
	CreatedBy   int64      `json:"created_by" db:"created_by"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	Priority    *string    `json:"priority,omitempty" db:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	Difficulty  *int       `json:"difficulty,omitempty" db:"difficulty"`
	Status      TaskStatus `json:"status" db:"status"`
	StartedDate *time.Time `json:"started_date,omitempty" db:"started_date"`
	Exception   bool       `json:"exception" db:"exception"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at" db:"modified_at"`
}

// CompletedTask is the append-only completion record, written exactly once
// when a task transitions into completed.
type CompletedTask struct {
	ID            int64     `json:"id" db:"id"`
	TaskID        int64     `json:"task_id" db:"task_id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	ProjectID     int64     `json:"project_id" db:"project_id"`
	StartedDate   time.Time `json:"started_date" db:"started_date"`
	CompletedDate time.Time `json:"completed_date" db:"completed_date"`
	Hours         int64     `json:"hours" db:"hours"`
}
