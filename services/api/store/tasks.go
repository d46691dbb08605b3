package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opsboard/opsboard/pkg/models"
	"github.com/opsboard/opsboard/services/api/core"
)

func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	var created models.Task
	err := s.DB.GetContext(ctx, &created, `
		INSERT INTO tasks (project_id, assignee_id, created_by, name, description,
		                   priority, due_date, difficulty, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *`,
		t.ProjectID, t.AssigneeID, t.CreatedBy, t.Name, t.Description,
		t.Priority, t.DueDate, t.Difficulty, models.StatusTodo)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return created, nil
}

func (s *Store) Task(ctx context.Context, id int64) (models.Task, error) {
	var task models.Task
	err := s.DB.GetContext(ctx, &task, `SELECT * FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("select task: %w", err)
	}
	return task, nil
}

// SaveTask writes back every mutable task column.
func (s *Store) SaveTask(ctx context.Context, t models.Task) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE tasks
		SET assignee_id = $2, name = $3, description = $4, priority = $5,
		    due_date = $6, difficulty = $7, status = $8, started_date = $9,
		    exception = $10, modified_at = now()
		WHERE id = $1`,
		t.ID, t.AssigneeID, t.Name, t.Description, t.Priority,
		t.DueDate, t.Difficulty, t.Status, t.StartedDate, t.Exception)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteTask transitions the task into completed and writes the
// completion record in one transaction. The row lock makes the
// in-progress precondition safe against a concurrent complete: the
// second caller blocks, then re-reads a completed task and fails.
func (s *Store) CompleteTask(ctx context.Context, taskID int64, now time.Time) (models.CompletedTask, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return models.CompletedTask{}, err
	}
	defer tx.Rollback()

	var task models.Task
	err = tx.GetContext(ctx, &task, `SELECT * FROM tasks WHERE id = $1 FOR UPDATE`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CompletedTask{}, ErrNotFound
	}
	if err != nil {
		return models.CompletedTask{}, fmt.Errorf("lock task: %w", err)
	}

	rec, exception, err := core.Completion(task, now)
	if err != nil {
		return models.CompletedTask{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $2, exception = $3, modified_at = now()
		WHERE id = $1`,
		taskID, models.StatusCompleted, exception)
	if err != nil {
		return models.CompletedTask{}, fmt.Errorf("mark task completed: %w", err)
	}

	err = tx.GetContext(ctx, &rec, `
		INSERT INTO completed_tasks (task_id, user_id, project_id, started_date, completed_date, hours)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *`,
		rec.TaskID, rec.UserID, rec.ProjectID, rec.StartedDate, rec.CompletedDate, rec.Hours)
	if isUniqueViolation(err) {
		// completed_tasks.task_id is unique; a second completion can
		// only get here if it raced past the lock, so surface it as
		// the same precondition failure.
		return models.CompletedTask{}, core.ErrNotInProgress
	}
	if err != nil {
		return models.CompletedTask{}, fmt.Errorf("insert completion record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.CompletedTask{}, err
	}
	return rec, nil
}

// TasksForProject returns the project's non-completed tasks in display
// order.
func (s *Store) TasksForProject(ctx context.Context, projectID int64) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.DB.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks
		WHERE project_id = $1 AND status <> $2
		ORDER BY status DESC, id ASC`,
		projectID, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("select project tasks: %w", err)
	}
	return tasks, nil
}

// TasksForUser returns every task assigned to the user, regardless of
// status.
func (s *Store) TasksForUser(ctx context.Context, userID int64) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.DB.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks WHERE assignee_id = $1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("select user tasks: %w", err)
	}
	return tasks, nil
}

// TasksForProjectUser returns a user's tasks within one project.
func (s *Store) TasksForProjectUser(ctx context.Context, projectID, userID int64) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.DB.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks
		WHERE project_id = $1 AND assignee_id = $2
		ORDER BY status DESC, id ASC`,
		projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("select project user tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) CompletedTasksForProject(ctx context.Context, projectID int64) ([]models.CompletedTask, error) {
	records := []models.CompletedTask{}
	err := s.DB.SelectContext(ctx, &records, `
		SELECT * FROM completed_tasks
		WHERE project_id = $1
		ORDER BY completed_date DESC, id DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("select completed tasks: %w", err)
	}
	return records, nil
}
