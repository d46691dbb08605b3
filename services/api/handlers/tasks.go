package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/models"
	"github.com/opsboard/opsboard/services/api/core"
	"github.com/opsboard/opsboard/services/api/render"
	"github.com/opsboard/opsboard/services/api/store"
)

// TaskStore is the persistence surface for the task lifecycle.
type TaskStore interface {
	Project(ctx context.Context, id int64) (models.Project, error)
	ProjectRole(ctx context.Context, projectID, userID int64) (models.Role, error)
	OrgRole(ctx context.Context, orgID, userID int64) (models.Role, error)
	UserByID(ctx context.Context, id int64) (models.User, error)

	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	Task(ctx context.Context, id int64) (models.Task, error)
	SaveTask(ctx context.Context, t models.Task) error
	DeleteTask(ctx context.Context, id int64) error
	CompleteTask(ctx context.Context, taskID int64, now time.Time) (models.CompletedTask, error)

	TasksForProject(ctx context.Context, projectID int64) ([]models.Task, error)
	TasksForUser(ctx context.Context, userID int64) ([]models.Task, error)
	TasksForProjectUser(ctx context.Context, projectID, userID int64) ([]models.Task, error)
	CompletedTasksForProject(ctx context.Context, projectID int64) ([]models.CompletedTask, error)
}

type TasksResource struct {
	Store TaskStore
	Log   *zap.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewTasksResource(s TaskStore, log *zap.Logger) *TasksResource {
	return &TasksResource{Store: s, Log: log, now: time.Now}
}

// ProjectRoutes handles the routes nested under a project.
func (rs *TasksResource) ProjectRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", rs.ListProjectTasks)
	r.Post("/", rs.CreateTask)
	r.Get("/completed", rs.ListCompletedTasks)
	r.Get("/user/{userID}", rs.ListUserTasks)
	return r
}

// Routes handles direct access by task id.
func (rs *TasksResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/mine", rs.ListMyTasks)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", rs.GetTask)
		r.Put("/", rs.UpdateTask)
		r.Delete("/", rs.DeleteTask)
		r.Post("/complete", rs.CompleteTask)
	})
	return r
}

// requireProjectView gates the project-scoped read paths: project
// members of any role and organization owners pass.
func (rs *TasksResource) requireProjectView(w http.ResponseWriter, r *http.Request, actorID int64) (models.Project, bool) {
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

	if _, err := rs.Store.ProjectRole(r.Context(), project.ID, actorID); err == nil {
		return project, true
	} else if !errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrInternal(err))
		return models.Project{}, false
	}

	orgRole, err := rs.Store.OrgRole(r.Context(), project.OrganizationID, actorID)
	if err == nil && orgRole == models.RoleOwner {
		return project, true
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrInternal(err))
		return models.Project{}, false
	}

	chirender.Render(w, r, render.ErrForbidden("you are not a member of this project"))
	return models.Project{}, false
}

// requireTask fetches the task and the actor's project role.
// store.ErrNotFound from ProjectRole is reported as an empty role, not
// a failure; the caller decides what a non-member may do.
func (rs *TasksResource) requireTask(w http.ResponseWriter, r *http.Request, actorID int64) (models.Task, models.Role, bool) {
	taskID, err := urlID(r, "taskID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid task id"))
		return models.Task{}, "", false
	}

	task, err := rs.Store.Task(r.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("task not found"))
		return models.Task{}, "", false
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return models.Task{}, "", false
	}

	role, err := rs.Store.ProjectRole(r.Context(), task.ProjectID, actorID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrInternal(err))
		return models.Task{}, "", false
	}

	return task, role, true
}

type createTaskRequest struct {
	AssigneeID  int64      `json:"assignee_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Difficulty  *int       `json:"difficulty"`
}

// CreateTask POST /api/v1/projects/{projectID}/tasks
func (rs *TasksResource) CreateTask(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	projectID, err := urlID(r, "projectID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid project id"))
		return
	}

	project, err := rs.Store.Project(r.Context(), projectID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("project not found"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	if _, err := rs.Store.ProjectRole(r.Context(), project.ID, act.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			chirender.Render(w, r, render.ErrForbidden("you are not a member of this project"))
			return
		}
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		chirender.Render(w, r, render.ErrBadRequest("name is required"))
		return
	}

	if _, err := rs.Store.UserByID(r.Context(), req.AssigneeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			chirender.Render(w, r, render.ErrNotFound("assignee not found"))
			return
		}
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	// The assignee's membership failure is distinct from the actor's.
	if _, err := rs.Store.ProjectRole(r.Context(), project.ID, req.AssigneeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			chirender.Render(w, r, render.ErrForbidden("assignee is not a member of this project"))
			return
		}
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	task, err := rs.Store.CreateTask(r.Context(), models.Task{
		ProjectID:   project.ID,
		AssigneeID:  req.AssigneeID,
		CreatedBy:   act.UserID,
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Difficulty:  req.Difficulty,
	})
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.Created(w, r, "task created", task)
}

// GetTask GET /api/v1/tasks/{taskID}
func (rs *TasksResource) GetTask(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	task, role, ok := rs.requireTask(w, r, act.UserID)
	if !ok {
		return
	}

	// Viewing needs project membership; requireTask reports a
	// non-member as an empty role.
	if role == "" {
		chirender.Render(w, r, render.ErrForbidden("you are not a member of this project"))
		return
	}

	render.OK(w, r, "task fetched", task)
}

// UpdateTask PUT /api/v1/tasks/{taskID}
func (rs *TasksResource) UpdateTask(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	task, role, ok := rs.requireTask(w, r, act.UserID)
	if !ok {
		return
	}

	if !core.CanTouchTask(task, act.UserID, role) {
		chirender.Render(w, r, render.ErrForbidden("not allowed to modify this task"))
		return
	}

	var upd core.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}

	// A new assignee must also be a project member.
	if upd.AssigneeID != nil && *upd.AssigneeID != task.AssigneeID {
		if _, err := rs.Store.ProjectRole(r.Context(), task.ProjectID, *upd.AssigneeID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				chirender.Render(w, r, render.ErrForbidden("assignee is not a member of this project"))
				return
			}
			chirender.Render(w, r, render.ErrInternal(err))
			return
		}
	}

	updated, err := core.ApplyUpdate(task, upd, rs.now())
	switch {
	case errors.Is(err, core.ErrTaskCompleted),
		errors.Is(err, core.ErrAlreadyInProgress),
		errors.Is(err, core.ErrUpdateToCompleted):
		chirender.Render(w, r, render.ErrForbidden(err.Error()))
		return
	case errors.Is(err, core.ErrInvalidStatus):
		chirender.Render(w, r, render.ErrBadRequest(err.Error()))
		return
	case err != nil:
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	if err := rs.Store.SaveTask(r.Context(), updated); err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "task updated", updated)
}

// DeleteTask DELETE /api/v1/tasks/{taskID}
func (rs *TasksResource) DeleteTask(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	task, role, ok := rs.requireTask(w, r, act.UserID)
	if !ok {
		return
	}

	if !core.CanTouchTask(task, act.UserID, role) {
		chirender.Render(w, r, render.ErrForbidden("not allowed to delete this task"))
		return
	}

	if err := rs.Store.DeleteTask(r.Context(), task.ID); err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "task deleted", nil)
}

// CompleteTask POST /api/v1/tasks/{taskID}/complete
func (rs *TasksResource) CompleteTask(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	task, role, ok := rs.requireTask(w, r, act.UserID)
	if !ok {
		return
	}

	if !core.CanTouchTask(task, act.UserID, role) {
		chirender.Render(w, r, render.ErrForbidden("not allowed to complete this task"))
		return
	}

	record, err := rs.Store.CompleteTask(r.Context(), task.ID, rs.now())
	if errors.Is(err, core.ErrNotInProgress) {
		chirender.Render(w, r, render.ErrForbidden("task is not in progress"))
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrNotFound("task not found"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "task completed", record)
}

// ListProjectTasks GET /api/v1/projects/{projectID}/tasks
func (rs *TasksResource) ListProjectTasks(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProjectView(w, r, act.UserID)
	if !ok {
		return
	}

	tasks, err := rs.Store.TasksForProject(r.Context(), project.ID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "tasks fetched", tasks)
}

// ListMyTasks GET /api/v1/tasks/mine
func (rs *TasksResource) ListMyTasks(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	tasks, err := rs.Store.TasksForUser(r.Context(), act.UserID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "tasks fetched", tasks)
}

// ListUserTasks GET /api/v1/projects/{projectID}/tasks/user/{userID}
func (rs *TasksResource) ListUserTasks(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProjectView(w, r, act.UserID)
	if !ok {
		return
	}

	userID, err := urlID(r, "userID")
	if err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid user id"))
		return
	}

	tasks, err := rs.Store.TasksForProjectUser(r.Context(), project.ID, userID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "tasks fetched", tasks)
}

// ListCompletedTasks GET /api/v1/projects/{projectID}/tasks/completed
func (rs *TasksResource) ListCompletedTasks(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	project, ok := rs.requireProjectView(w, r, act.UserID)
	if !ok {
		return
	}

	records, err := rs.Store.CompletedTasksForProject(r.Context(), project.ID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.OK(w, r, "completed tasks fetched", records)
}
