package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/opsboard/opsboard/pkg/models"
)

// CreateOrganization inserts the organization and its first owner
// membership as one unit. An organization without an owner must never
// exist.
func (s *Store) CreateOrganization(ctx context.Context, name string, description *string, ownerID int64) (models.Organization, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return models.Organization{}, err
	}
	defer tx.Rollback()

	var org models.Organization
	err = tx.GetContext(ctx, &org, `
		INSERT INTO organizations (name, description)
		VALUES ($1, $2)
		RETURNING *`,
		name, description)
	if err != nil {
		return models.Organization{}, fmt.Errorf("insert organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)`,
		org.ID, ownerID, models.RoleOwner)
	if err != nil {
		return models.Organization{}, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) Organization(ctx context.Context, id int64) (models.Organization, error) {
	var org models.Organization
	err := s.DB.GetContext(ctx, &org, `SELECT * FROM organizations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, fmt.Errorf("select organization: %w", err)
	}
	return org, nil
}

func (s *Store) UpdateOrganization(ctx context.Context, id int64, name string, description *string) (models.Organization, error) {
	var org models.Organization
	err := s.DB.GetContext(ctx, &org, `
		UPDATE organizations
		SET name = $2, description = $3, modified_at = now()
		WHERE id = $1
		RETURNING *`,
		id, name, description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, fmt.Errorf("update organization: %w", err)
	}
	return org, nil
}

func (s *Store) DeleteOrganization(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) OrganizationsForUser(ctx context.Context, userID int64) ([]models.Organization, error) {
	orgs := []models.Organization{}
	err := s.DB.SelectContext(ctx, &orgs, `
		SELECT o.* FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("select organizations for user: %w", err)
	}
	return orgs, nil
}

func (s *Store) OrganizationMembers(ctx context.Context, orgID int64) ([]models.OrganizationMember, error) {
	members := []models.OrganizationMember{}
	err := s.DB.SelectContext(ctx, &members, `
		SELECT m.organization_id, m.user_id, m.role, m.created_at,
		       u.name AS user_name, u.email AS user_email
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.user_id`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("select organization members: %w", err)
	}
	return members, nil
}

// OrgRole resolves the actor's role in the organization. ErrNotFound
// means no membership.
func (s *Store) OrgRole(ctx context.Context, orgID, userID int64) (models.Role, error) {
	var role models.Role
	err := s.DB.GetContext(ctx, &role, `
		SELECT role FROM organization_members
		WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select org role: %w", err)
	}
	return role, nil
}

func (s *Store) OwnerCount(ctx context.Context, orgID int64) (int, error) {
	var count int
	err := s.DB.GetContext(ctx, &count, `
		SELECT count(*) FROM organization_members
		WHERE organization_id = $1 AND role = $2`,
		orgID, models.RoleOwner)
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return count, nil
}

func (s *Store) RemoveOrganizationMember(ctx context.Context, orgID, userID int64) error {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM organization_members
		WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID)
	if err != nil {
		return fmt.Errorf("remove organization member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateOrganizationMemberRole(ctx context.Context, orgID, userID int64, role models.Role) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE organization_members SET role = $3
		WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// -- Invites --

func (s *Store) CreateInvite(ctx context.Context, orgID, userID int64, email string) (models.Invite, error) {
	var invite models.Invite
	err := s.DB.GetContext(ctx, &invite, `
		INSERT INTO invites (organization_id, user_id, email, secret)
		VALUES ($1, $2, $3, $4)
		RETURNING *`,
		orgID, userID, email, uuid.New())
	if err != nil {
		return models.Invite{}, fmt.Errorf("insert invite: %w", err)
	}
	return invite, nil
}

// InviteBySecret looks up the invite addressed to the actor. The secret
// alone is not enough; the invite must belong to the caller.
func (s *Store) InviteBySecret(ctx context.Context, secret uuid.UUID, userID int64) (models.Invite, error) {
	var invite models.Invite
	err := s.DB.GetContext(ctx, &invite, `
		SELECT * FROM invites WHERE secret = $1 AND user_id = $2`,
		secret, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Invite{}, ErrNotFound
	}
	if err != nil {
		return models.Invite{}, fmt.Errorf("select invite: %w", err)
	}
	return invite, nil
}

// AcceptInvite consumes the invite and adds the membership in one
// transaction. The delete doubles as the single-use guard: a concurrent
// accept of the same secret finds zero rows and fails.
func (s *Store) AcceptInvite(ctx context.Context, invite models.Invite) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM invites WHERE id = $1`, invite.ID)
	if err != nil {
		return fmt.Errorf("consume invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)`,
		invite.OrganizationID, invite.UserID, models.RoleMember)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}

	return tx.Commit()
}

// DeleteInvite consumes the invite without granting membership.
func (s *Store) DeleteInvite(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM invites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
