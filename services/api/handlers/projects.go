package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/models"
	"github.com/opsboard/opsboard/services/api/render"
	"github.com/opsboard/opsboard/services/api/store"
)

// ProjectStore is the persistence surface for project management.
type ProjectStore interface {
	CreateProject(ctx context.Context, orgID int64, name string, description *string, ownerID int64) (models.Project, error)
	Project(ctx context.Context, id int64) (models.Project, error)
	UpdateProject(ctx context.Context, id int64, name string, description *string) (models.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	ProjectsForOrganization(ctx context.Context, orgID int64) ([]models.Project, error)
	ProjectRole(ctx context.Context, projectID, userID int64) (models.Role, error)
	ProjectMembers(ctx context.Context, projectID int64) ([]models.ProjectMember, error)
	AddProjectMember(ctx context.Context, projectID, userID int64, role models.Role) error
	RemoveProjectMember(ctx context.Context, projectID, userID int64) error

	OrgRole(ctx context.Context, orgID, userID int64) (models.Role, error)
}

type ProjectsResource struct {
	Store ProjectStore
	Log   *zap.Logger
}

func NewProjectsResource(s ProjectStore, log *zap.Logger) *ProjectsResource {
	return &ProjectsResource{Store: s, Log: log}
}

// OrgRoutes handles the routes nested under an organization.
func (rs *ProjectsResource) OrgRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", rs.ListProjects)
	r.Post("/", rs.CreateProject)
	return r
}

// Routes handles direct access by project id.
func (rs *ProjectsResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", rs.GetProject)
		r.Put("/", rs.UpdateProject)
		r.Delete("/", rs.DeleteProject)
		r.Get("/members", rs.ListMembers)
		r.Post("/members", rs.AddMember)
		r.Delete("/members/{userID}", rs.RemoveMember)
	})
	return r
}

type projectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// CreateProject POST /api/v1/organizations/{orgID}/projects
func (rs *ProjectsResource) CreateProject(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	orgID, err := urlID(r, "orgID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid organization id"))
		return
	}

	if _, err := rs.Store.OrgRole(r.Context(), orgID, act.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			chirender.Render(w, r, render.ErrForbidden("you are not a member of this organization"))
			return
		}
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		chirender.Render(w, r, render.ErrBadRequest("name is required"))
		return
	}

	project, err := rs.Store.CreateProject(r.Context(), orgID, req.Name, req.Description, act.UserID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.Created(w, r, "project created", project)
}

// ListProjects GET /api/v1/organizations/{orgID}/projects
func (rs *ProjectsResource) ListProjects(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	orgID, err := urlID(r, "orgID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid organization id"))
		return
	}

	if _, err := rs.Store.OrgRole(r.Context(), orgID, act.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			chirender.Render(w, r, render.ErrForbidden("you are not a member of this organization"))
			return
		}
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	projects, err := rs.Store.ProjectsForOrganization(r.Context(), orgID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "projects fetched", projects)
}

// requireProject resolves the project and the actor's access to it. A
// project member of any role or an organization owner passes the view
// gate; canManage additionally requires project owner or organization
// owner.
func (rs *ProjectsResource) requireProject(w http.ResponseWriter, r *http.Request, actorID int64, manage bool) (models.Project, bool) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid project id"))
		return models.Project{}, false
	}

	project, err := rs.Store.Project(r.Context(), projectID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("project not found"))
		return models.Project{}, false
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return models.Project{}, false
	}

	projectRole, projectErr := rs.Store.ProjectRole(r.Context(), projectID, actorID)
	if projectErr != nil && !errors.Is(projectErr, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrInternal(projectErr))
		return models.Project{}, false
	}
	orgRole, orgErr := rs.Store.OrgRole(r.Context(), project.OrganizationID, actorID)
	if orgErr != nil && !errors.Is(orgErr, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrInternal(orgErr))
		return models.Project{}, false
	}

	isOrgOwner := orgErr == nil && orgRole == models.RoleOwner
	if manage {
		if (projectErr == nil && projectRole == models.RoleOwner) || isOrgOwner {
			return project, true
		}
		chirender.Render(w, r, render.ErrForbidden("project owner role required"))
		return models.Project{}, false
	}

	if projectErr == nil || isOrgOwner {
		return project, true
	}
	chirender.Render(w, r, render.ErrForbidden("you are not a member of this project"))
	return models.Project{}, false
}

// GetProject GET /api/v1/projects/{projectID}
func (rs *ProjectsResource) GetProject(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProject(w, r, act.UserID, false)
	if !ok {
		return
	}

	render.OK(w, r, "project fetched", project)
}

// UpdateProject PUT /api/v1/projects/{projectID}
func (rs *ProjectsResource) UpdateProject(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProject(w, r, act.UserID, true)
	if !ok {
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		req.Name = project.Name
	}
	if req.Description == nil {
		req.Description = project.Description
	}

	updated, err := rs.Store.UpdateProject(r.Context(), project.ID, req.Name, req.Description)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "project updated", updated)
}

// DeleteProject DELETE /api/v1/projects/{projectID}
func (rs *ProjectsResource) DeleteProject(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProject(w, r, act.UserID, true)
	if !ok {
		return
	}

	if err := rs.Store.DeleteProject(r.Context(), project.ID); err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "project deleted", nil)
}

// ListMembers GET /api/v1/projects/{projectID}/members
func (rs *ProjectsResource) ListMembers(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProject(w, r, act.UserID, false)
	if !ok {
		return
	}

	members, err := rs.Store.ProjectMembers(r.Context(), project.ID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "members fetched", members)
}

// AddMember POST /api/v1/projects/{projectID}/members
func (rs *ProjectsResource) AddMember(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProject(w, r, act.UserID, true)
	if !ok {
		return
	}

	var req struct {
		UserID int64       `json:"user_id"`
		Role   models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if !req.Role.Valid() {
		chirender.Render(w, r, render.ErrBadRequest("invalid role"))
		return
	}

	// Project members must already belong to the organization.
	if _, err := rs.Store.OrgRole(r.Context(), project.OrganizationID, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			chirender.Render(w, r, render.ErrBadRequest("user is not a member of the organization"))
			return
		}
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	err := rs.Store.AddProjectMember(r.Context(), project.ID, req.UserID, req.Role)
	if errors.Is(err, store.ErrDuplicate) {
		chirender.Render(w, r, render.ErrConflict("user is already a project member"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.Created(w, r, "member added", nil)
}

// RemoveMember DELETE /api/v1/projects/{projectID}/members/{userID}
func (rs *ProjectsResource) RemoveMember(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProject(w, r, act.UserID, true)
	if !ok {
		return
	}

	targetID, err := urlID(r, "userID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid user id"))
		return
	}

	err = rs.Store.RemoveProjectMember(r.Context(), project.ID, targetID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrBadRequest("user is not a member of this project"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "member removed", nil)
}
