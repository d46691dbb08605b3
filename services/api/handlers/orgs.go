package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/events"
	"github.com/opsboard/opsboard/pkg/models"
	"github.com/opsboard/opsboard/services/api/core"
	"github.com/opsboard/opsboard/services/api/render"
	"github.com/opsboard/opsboard/services/api/store"
)

// OrgStore is the persistence surface for organization management.
type OrgStore interface {
	CreateOrganization(ctx context.Context, name string, description *string, ownerID int64) (models.Organization, error)
	Organization(ctx context.Context, id int64) (models.Organization, error)
	UpdateOrganization(ctx context.Context, id int64, name string, description *string) (models.Organization, error)
	DeleteOrganization(ctx context.Context, id int64) error
	OrganizationsForUser(ctx context.Context, userID int64) ([]models.Organization, error)
	OrganizationMembers(ctx context.Context, orgID int64) ([]models.OrganizationMember, error)
	OrgRole(ctx context.Context, orgID, userID int64) (models.Role, error)
	OwnerCount(ctx context.Context, orgID int64) (int, error)
	RemoveOrganizationMember(ctx context.Context, orgID, userID int64) error
	UpdateOrganizationMemberRole(ctx context.Context, orgID, userID int64, role models.Role) error

	UserByEmail(ctx context.Context, email string) (models.User, error)

	CreateInvite(ctx context.Context, orgID, userID int64, email string) (models.Invite, error)
	InviteBySecret(ctx context.Context, secret uuid.UUID, userID int64) (models.Invite, error)
	AcceptInvite(ctx context.Context, invite models.Invite) error
	DeleteInvite(ctx context.Context, id int64) error
}

// InvitePublisher dispatches invite notifications to the mailer.
type InvitePublisher interface {
	PublishInviteNotification(msg *events.InviteNotification) error
}

type OrgsResource struct {
	Store     OrgStore
	Publisher InvitePublisher
	Log       *zap.Logger
}

func NewOrgsResource(s OrgStore, pub InvitePublisher, log *zap.Logger) *OrgsResource {
	return &OrgsResource{Store: s, Publisher: pub, Log: log}
}

func (rs *OrgsResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", rs.CreateOrganization)
	r.Get("/", rs.ListOrganizations)
	r.Route("/{orgID}", func(r chi.Router) {
		r.Get("/", rs.GetOrganization)
		r.Put("/", rs.UpdateOrganization)
		r.Delete("/", rs.DeleteOrganization)
		r.Get("/members", rs.ListMembers)
		r.Put("/members/{userID}", rs.UpdateMemberRole)
		r.Delete("/members/{userID}", rs.RemoveMember)
		r.Post("/invites", rs.InviteUser)
	})
	return r
}

// InviteRoutes covers invite redemption, addressed by secret rather
// than organization.
func (rs *OrgsResource) InviteRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/accept", rs.AcceptInvitation)
	r.Post("/reject", rs.RejectInvitation)
	return r
}

type orgRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// CreateOrganization POST /api/v1/organizations
func (rs *OrgsResource) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	var req orgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		chirender.Render(w, r, render.ErrBadRequest("name is required"))
		return
	}

	org, err := rs.Store.CreateOrganization(r.Context(), req.Name, req.Description, act.UserID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.Created(w, r, "organization created", org)
}

// ListOrganizations GET /api/v1/organizations
func (rs *OrgsResource) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	orgs, err := rs.Store.OrganizationsForUser(r.Context(), act.UserID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "organizations fetched", orgs)
}

// requireOrg resolves the organization and the actor's role in it. A
// missing organization renders 404; a missing membership renders 403.
func (rs *OrgsResource) requireOrg(w http.ResponseWriter, r *http.Request, actorID int64) (models.Organization, models.Role, bool) {
	orgID, err := urlID(r, "orgID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid organization id"))
		return models.Organization{}, "", false
	}

	org, err := rs.Store.Organization(r.Context(), orgID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("organization not found"))
		return models.Organization{}, "", false
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return models.Organization{}, "", false
	}

	role, err := rs.Store.OrgRole(r.Context(), orgID, actorID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrForbidden("you are not a member of this organization"))
		return models.Organization{}, "", false
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return models.Organization{}, "", false
	}

	return org, role, true
}

// GetOrganization GET /api/v1/organizations/{orgID}
func (rs *OrgsResource) GetOrganization(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	org, _, ok := rs.requireOrg(w, r, act.UserID)
	if !ok {
		return
	}

	render.OK(w, r, "organization fetched", org)
}

// UpdateOrganization PUT /api/v1/organizations/{orgID}
func (rs *OrgsResource) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	org, role, ok := rs.requireOrg(w, r, act.UserID)
	if !ok {
		return
	}
	if role != models.RoleOwner {
		chirender.Render(w, r, render.ErrForbidden("only owners can update the organization"))
		return
	}

	var req orgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		req.Name = org.Name
	}
	if req.Description == nil {
		req.Description = org.Description
	}

	updated, err := rs.Store.UpdateOrganization(r.Context(), org.ID, req.Name, req.Description)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "organization updated", updated)
}

// DeleteOrganization DELETE /api/v1/organizations/{orgID}
func (rs *OrgsResource) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	org, role, ok := rs.requireOrg(w, r, act.UserID)
	if !ok {
		return
	}
	if role != models.RoleOwner {
		chirender.Render(w, r, render.ErrForbidden("only owners can delete the organization"))
		return
	}

	if err := rs.Store.DeleteOrganization(r.Context(), org.ID); err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "organization deleted", nil)
}

// ListMembers GET /api/v1/organizations/{orgID}/members
func (rs *OrgsResource) ListMembers(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	org, _, ok := rs.requireOrg(w, r, act.UserID)
	if !ok {
		return
	}

	members, err := rs.Store.OrganizationMembers(r.Context(), org.ID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "members fetched", members)
}

// RemoveMember DELETE /api/v1/organizations/{orgID}/members/{userID}
//
// Guard order: membership existence, then the last-owner check. An
// owner may remove another owner as long as one owner remains.
func (rs *OrgsResource) RemoveMember(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	org, role, ok := rs.requireOrg(w, r, act.UserID)
	if !ok {
		return
	}
	if role != models.RoleOwner {
		chirender.Render(w, r, render.ErrForbidden("only owners can remove members"))
		return
	}

	targetID, err := urlID(r, "userID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid user id"))
		return
	}

	targetRole, err := rs.Store.OrgRole(r.Context(), org.ID, targetID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrBadRequest("user is not a member of this organization"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	owners, err := rs.Store.OwnerCount(r.Context(), org.ID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}
	if err := core.CheckRemoveMember(targetRole, owners); err != nil {
		chirender.Render(w, r, render.ErrBadRequest(err.Error()))
		return
	}

	if err := rs.Store.RemoveOrganizationMember(r.Context(), org.ID, targetID); err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "member removed", nil)
}

// UpdateMemberRole PUT /api/v1/organizations/{orgID}/members/{userID}
func (rs *OrgsResource) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	org, role, ok := rs.requireOrg(w, r, act.UserID)
	if !ok {
		return
	}
	if role != models.RoleOwner {
		chirender.Render(w, r, render.ErrForbidden("only owners can change member roles"))
		return
	}

	targetID, err := urlID(r, "userID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid user id"))
		return
	}

	var req struct {
		Role models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}

	targetRole, err := rs.Store.OrgRole(r.Context(), org.ID, targetID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrBadRequest("user is not a member of this organization"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	owners, err := rs.Store.OwnerCount(r.Context(), org.ID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}
	if err := core.CheckRoleUpdate(targetRole, req.Role, owners); err != nil {
		chirender.Render(w, r, render.ErrBadRequest(err.Error()))
		return
	}

	if err := rs.Store.UpdateOrganizationMemberRole(r.Context(), org.ID, targetID, req.Role); err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "member role updated", nil)
}
