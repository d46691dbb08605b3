package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chirender "github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/events"
	"github.com/opsboard/opsboard/pkg/models"
	"github.com/opsboard/opsboard/services/api/render"
	"github.com/opsboard/opsboard/services/api/store"
)

// InviteUser POST /api/v1/organizations/{orgID}/invites
func (rs *OrgsResource) InviteUser(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	org, role, ok := rs.requireOrg(w, r, act.UserID)
	if !ok {
		return
	}
	if role != models.RoleOwner {
		chirender.Render(w, r, render.ErrForbidden("only owners can invite users"))
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}

	target, err := rs.Store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("no user with that email"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	_, err = rs.Store.OrgRole(r.Context(), org.ID, target.ID)
	if err == nil {
		chirender.Render(w, r, render.ErrConflict("user is already a member"))
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	invite, err := rs.Store.CreateInvite(r.Context(), org.ID, target.ID, target.Email)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	// Fire and forget: the invite stands even if the notification never
	// goes out.
	notification := &events.InviteNotification{
		InviteID:         invite.ID,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Email:            invite.Email,
		Secret:           invite.Secret,
		CreatedAt:        time.Now(),
	}
	if err := rs.Publisher.PublishInviteNotification(notification); err != nil {
		rs.Log.Error("failed to publish invite notification",
			zap.Int64("invite_id", invite.ID), zap.Error(err))
	}

	render.Created(w, r, "invitation sent", invite)
}

// AcceptInvitation POST /api/v1/invites/accept
func (rs *OrgsResource) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	invite, ok := rs.consumeLookup(w, r, act.UserID)
	if !ok {
		return
	}

	err := rs.Store.AcceptInvite(r.Context(), invite)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("invitation not found"))
		return
	}
	if errors.Is(err, store.ErrDuplicate) {
		chirender.Render(w, r, render.ErrConflict("already a member"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	member := models.OrganizationMember{
		OrganizationID: invite.OrganizationID,
		UserID:         invite.UserID,
		Role:           models.RoleMember,
	}
	render.OK(w, r, "invitation accepted", member)
}

// RejectInvitation POST /api/v1/invites/reject
func (rs *OrgsResource) RejectInvitation(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	invite, ok := rs.consumeLookup(w, r, act.UserID)
	if !ok {
		return
	}

	err := rs.Store.DeleteInvite(r.Context(), invite.ID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("invitation not found"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "invitation rejected", nil)
}

// consumeLookup decodes the secret and resolves the invite addressed to
// the actor.
func (rs *OrgsResource) consumeLookup(w http.ResponseWriter, r *http.Request, actorID int64) (models.Invite, bool) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return models.Invite{}, false
	}

	secret, err := uuid.Parse(req.Secret)
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid secret"))
		return models.Invite{}, false
	}

	invite, err := rs.Store.InviteBySecret(r.Context(), secret, actorID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("invitation not found"))
		return models.Invite{}, false
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return models.Invite{}, false
	}

	return invite, true
}
