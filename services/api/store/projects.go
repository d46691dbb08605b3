package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opsboard/opsboard/pkg/models"
)

// CreateProject inserts the project and its first owner membership as
// one unit.
func (s *Store) CreateProject(ctx context.Context, orgID int64, name string, description *string, ownerID int64) (models.Project, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return models.Project{}, err
	}
	defer tx.Rollback()

	var project models.Project
	err = tx.GetContext(ctx, &project, `
		INSERT INTO projects (organization_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING *`,
		orgID, name, description)
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)`,
		project.ID, ownerID, models.RoleOwner)
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (s *Store) Project(ctx context.Context, id int64) (models.Project, error) {
	var project models.Project
	err := s.DB.GetContext(ctx, &project, `SELECT * FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("select project: %w", err)
	}
	return project, nil
}

func (s *Store) UpdateProject(ctx context.Context, id int64, name string, description *string) (models.Project, error) {
	var project models.Project
	err := s.DB.GetContext(ctx, &project, `
		UPDATE projects
		SET name = $2, description = $3, modified_at = now()
		WHERE id = $1
		RETURNING *`,
		id, name, description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ProjectsForOrganization(ctx context.Context, orgID int64) ([]models.Project, error) {
	projects := []models.Project{}
	err := s.DB.SelectContext(ctx, &projects, `
		SELECT * FROM projects WHERE organization_id = $1 ORDER BY id`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	return projects, nil
}

// ProjectRole resolves the actor's role in the project. ErrNotFound
// means no membership.
func (s *Store) ProjectRole(ctx context.Context, projectID, userID int64) (models.Role, error) {
	var role models.Role
	err := s.DB.GetContext(ctx, &role, `
		SELECT role FROM project_members
		WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select project role: %w", err)
	}
	return role, nil
}

func (s *Store) ProjectMembers(ctx context.Context, projectID int64) ([]models.ProjectMember, error) {
	members := []models.ProjectMember{}
	err := s.DB.SelectContext(ctx, &members, `
		SELECT m.project_id, m.user_id, m.role, m.created_at,
		       u.name AS user_name, u.email AS user_email
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.user_id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("select project members: %w", err)
	}
	return members, nil
}

func (s *Store) AddProjectMember(ctx context.Context, projectID, userID int64, role models.Role) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)`,
		projectID, userID, role)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert project member: %w", err)
	}
	return nil
}

func (s *Store) RemoveProjectMember(ctx context.Context, projectID, userID int64) error {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM project_members
		WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
	if err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
