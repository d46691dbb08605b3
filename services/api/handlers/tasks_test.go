package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/models"
)

func taskRouter(rs *TasksResource) chi.Router {
	r := chi.NewRouter()
	r.Mount("/projects/{projectID}/tasks", rs.ProjectRoutes())
	r.Mount("/tasks", rs.Routes())
	return r
}

// taskFixture seeds an org, a project owned by alice, bob as a project
// member, and returns a resource with a controllable clock.
func taskFixture(t *testing.T) (*fakeStore, chi.Router, models.User, models.User, models.Project, *time.Time) {
	t.Helper()

	s := newFakeStore()
	alice := s.addUser("alice", "alice@example.com")
	bob := s.addUser("bob", "bob@example.com")
	org := s.addOrg("acme", alice.ID)
	s.orgMembers[org.ID][bob.ID] = models.RoleMember
	project := s.addProject(org.ID, "rollout", alice.ID)
	s.projMembers[project.ID][bob.ID] = models.RoleMember

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rs := NewTasksResource(s, zap.NewNop())
	rs.now = func() time.Time { return now }

	return s, taskRouter(rs), alice, bob, project, &now
}

func seedTask(s *fakeStore, project models.Project, assigneeID, createdBy int64) models.Task {
	task := models.Task{
		ID:         s.id(),
		ProjectID:  project.ID,
		AssigneeID: assigneeID,
		CreatedBy:  createdBy,
		Name:       "ship it",
		Status:     models.StatusTodo,
	}
	s.tasks[task.ID] = task
	return task
}

func TestCreateTaskGuards(t *testing.T) {
	s, router, alice, bob, project, _ := taskFixture(t)
	outsider := s.addUser("mallory", "mallory@example.com")
	path := fmt.Sprintf("/projects/%d/tasks", project.ID)

	// The creator must belong to the project.
	rec, env := request(t, router, http.MethodPost, path,
		map[string]interface{}{"name": "ship it", "assignee_id": bob.ID}, outsider)
	requireStatus(t, rec, http.StatusForbidden)
	if env.Message != "you are not a member of this project" {
		t.Fatalf("message = %q", env.Message)
	}

	// The assignee must exist.
	rec, _ = request(t, router, http.MethodPost, path,
		map[string]interface{}{"name": "ship it", "assignee_id": 9999}, alice)
	requireStatus(t, rec, http.StatusNotFound)

	// The assignee must also belong to the project, reported distinctly
	// from the creator's own membership failure.
	rec, env = request(t, router, http.MethodPost, path,
		map[string]interface{}{"name": "ship it", "assignee_id": outsider.ID}, alice)
	requireStatus(t, rec, http.StatusForbidden)
	if env.Message != "assignee is not a member of this project" {
		t.Fatalf("message = %q", env.Message)
	}

	rec, env = request(t, router, http.MethodPost, path,
		map[string]interface{}{"name": "ship it", "assignee_id": bob.ID}, alice)
	requireStatus(t, rec, http.StatusCreated)
	var task models.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Status != models.StatusTodo {
		t.Fatalf("new task status = %q, want todo", task.Status)
	}
	if task.CreatedBy != alice.ID || task.AssigneeID != bob.ID {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	s, router, alice, bob, project, now := taskFixture(t)
	task := seedTask(s, project, bob.ID, alice.ID)
	path := fmt.Sprintf("/tasks/%d", task.ID)

	// First move into in_progress records the start instant.
	rec, env := request(t, router, http.MethodPut, path,
		map[string]string{"status": "in_progress"}, bob)
	requireStatus(t, rec, http.StatusOK)
	var updated models.Task
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if updated.Status != models.StatusInProgress {
		t.Fatalf("status = %q, want in_progress", updated.Status)
	}
	if updated.StartedDate == nil || !updated.StartedDate.Equal(*now) {
		t.Fatalf("started date = %v, want %v", updated.StartedDate, *now)
	}

	// Repeating the transition is refused.
	rec, _ = request(t, router, http.MethodPut, path,
		map[string]string{"status": "in_progress"}, bob)
	requireStatus(t, rec, http.StatusForbidden)

	// Plain field edits leave progress alone.
	rec, env = request(t, router, http.MethodPut, path,
		map[string]string{"name": "ship it carefully"}, bob)
	requireStatus(t, rec, http.StatusOK)
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if updated.Name != "ship it carefully" || updated.StartedDate == nil {
		t.Fatalf("unexpected task after edit %+v", updated)
	}

	// Completion 90 minutes later books one whole hour.
	*now = now.Add(90 * time.Minute)
	rec, env = request(t, router, http.MethodPost, path+"/complete", nil, bob)
	requireStatus(t, rec, http.StatusOK)
	var record models.CompletedTask
	if err := json.Unmarshal(env.Data, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Hours != 1 {
		t.Fatalf("hours = %d, want 1", record.Hours)
	}
	if got := s.tasks[task.ID]; got.Status != models.StatusCompleted || got.Exception {
		t.Fatalf("stored task after completion %+v", got)
	}

	// Completed tasks are frozen.
	rec, _ = request(t, router, http.MethodPut, path,
		map[string]string{"name": "rename"}, bob)
	requireStatus(t, rec, http.StatusForbidden)
	rec, _ = request(t, router, http.MethodPost, path+"/complete", nil, bob)
	requireStatus(t, rec, http.StatusForbidden)
}

func TestUpdateCannotForgeCompletion(t *testing.T) {
	s, router, alice, bob, project, _ := taskFixture(t)
	task := seedTask(s, project, bob.ID, alice.ID)
	path := fmt.Sprintf("/tasks/%d", task.ID)

	rec, _ := request(t, router, http.MethodPut, path,
		map[string]string{"status": "in_progress"}, bob)
	requireStatus(t, rec, http.StatusOK)

	// Completion only happens through the complete endpoint, which books
	// the record.
	rec, _ = request(t, router, http.MethodPut, path,
		map[string]string{"status": "completed"}, bob)
	requireStatus(t, rec, http.StatusForbidden)

	rec, _ = request(t, router, http.MethodPut, path,
		map[string]string{"status": "bogus"}, bob)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestReassignmentResetsProgress(t *testing.T) {
	s, router, alice, bob, project, _ := taskFixture(t)
	carol := s.addUser("carol", "carol@example.com")
	s.projMembers[project.ID][carol.ID] = models.RoleMember
	task := seedTask(s, project, bob.ID, alice.ID)
	path := fmt.Sprintf("/tasks/%d", task.ID)

	rec, _ := request(t, router, http.MethodPut, path,
		map[string]string{"status": "in_progress"}, bob)
	requireStatus(t, rec, http.StatusOK)

	// Handing the task over resets progress, even when the request also
	// claims in_progress.
	rec, env := request(t, router, http.MethodPut, path,
		map[string]interface{}{"assignee_id": carol.ID, "status": "in_progress"}, alice)
	requireStatus(t, rec, http.StatusOK)
	var updated models.Task
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if updated.AssigneeID != carol.ID {
		t.Fatalf("assignee = %d, want %d", updated.AssigneeID, carol.ID)
	}
	if updated.Status != models.StatusTodo || updated.StartedDate != nil {
		t.Fatalf("progress not reset: %+v", updated)
	}
}

func TestReassignmentRequiresProjectMember(t *testing.T) {
	s, router, alice, bob, project, _ := taskFixture(t)
	outsider := s.addUser("mallory", "mallory@example.com")
	task := seedTask(s, project, bob.ID, alice.ID)

	rec, env := request(t, router, http.MethodPut, fmt.Sprintf("/tasks/%d", task.ID),
		map[string]interface{}{"assignee_id": outsider.ID}, alice)
	requireStatus(t, rec, http.StatusForbidden)
	if env.Message != "assignee is not a member of this project" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestTaskTouchAuthorization(t *testing.T) {
	s, router, alice, bob, project, _ := taskFixture(t)
	carol := s.addUser("carol", "carol@example.com")
	s.projMembers[project.ID][carol.ID] = models.RoleMember
	task := seedTask(s, project, bob.ID, alice.ID)
	path := fmt.Sprintf("/tasks/%d", task.ID)

	// Non-members cannot even look.
	outsider := s.addUser("mallory", "mallory@example.com")
	rec, env := request(t, router, http.MethodGet, path, nil, outsider)
	requireStatus(t, rec, http.StatusForbidden)
	if env.Message != "you are not a member of this project" {
		t.Fatalf("message = %q", env.Message)
	}

	// A bystander project member may look but not touch.
	rec, _ = request(t, router, http.MethodGet, path, nil, carol)
	requireStatus(t, rec, http.StatusOK)
	rec, _ = request(t, router, http.MethodPut, path,
		map[string]string{"name": "hijack"}, carol)
	requireStatus(t, rec, http.StatusForbidden)
	rec, _ = request(t, router, http.MethodDelete, path, nil, carol)
	requireStatus(t, rec, http.StatusForbidden)

	// Assignee, creator and project owner all may.
	for _, actor := range []models.User{bob, alice} {
		rec, _ = request(t, router, http.MethodPut, path,
			map[string]string{"name": "legit"}, actor)
		requireStatus(t, rec, http.StatusOK)
	}

	rec, _ = request(t, router, http.MethodDelete, path, nil, alice)
	requireStatus(t, rec, http.StatusOK)
	if _, ok := s.tasks[task.ID]; ok {
		t.Fatal("task not deleted")
	}
}

func TestQuickCompletionFlagsException(t *testing.T) {
	s, router, alice, bob, project, now := taskFixture(t)
	task := seedTask(s, project, bob.ID, alice.ID)
	path := fmt.Sprintf("/tasks/%d", task.ID)

	rec, _ := request(t, router, http.MethodPut, path,
		map[string]string{"status": "in_progress"}, bob)
	requireStatus(t, rec, http.StatusOK)

	// Completing within the hour books zero hours and flags the task.
	*now = now.Add(10 * time.Second)
	rec, env := request(t, router, http.MethodPost, path+"/complete", nil, bob)
	requireStatus(t, rec, http.StatusOK)
	var record models.CompletedTask
	if err := json.Unmarshal(env.Data, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Hours != 0 {
		t.Fatalf("hours = %d, want 0", record.Hours)
	}
	if got := s.tasks[task.ID]; !got.Exception {
		t.Fatal("exception flag not set")
	}
}

func TestCompleteRequiresProgress(t *testing.T) {
	s, router, alice, bob, project, _ := taskFixture(t)
	task := seedTask(s, project, bob.ID, alice.ID)

	rec, env := request(t, router, http.MethodPost,
		fmt.Sprintf("/tasks/%d/complete", task.ID), nil, bob)
	requireStatus(t, rec, http.StatusForbidden)
	if env.Message != "task is not in progress" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestProjectTaskListings(t *testing.T) {
	s, router, alice, bob, project, now := taskFixture(t)
	open := seedTask(s, project, bob.ID, alice.ID)
	done := seedTask(s, project, bob.ID, alice.ID)

	rec, _ := request(t, router, http.MethodPut, fmt.Sprintf("/tasks/%d", done.ID),
		map[string]string{"status": "in_progress"}, bob)
	requireStatus(t, rec, http.StatusOK)
	*now = now.Add(2 * time.Hour)
	rec, _ = request(t, router, http.MethodPost, fmt.Sprintf("/tasks/%d/complete", done.ID), nil, bob)
	requireStatus(t, rec, http.StatusOK)

	// The open listing hides completed tasks.
	rec, env := request(t, router, http.MethodGet,
		fmt.Sprintf("/projects/%d/tasks", project.ID), nil, alice)
	requireStatus(t, rec, http.StatusOK)
	var tasks []models.Task
	if err := json.Unmarshal(env.Data, &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != open.ID {
		t.Fatalf("open tasks = %+v", tasks)
	}

	// The completed listing shows the records instead.
	rec, env = request(t, router, http.MethodGet,
		fmt.Sprintf("/projects/%d/tasks/completed", project.ID), nil, alice)
	requireStatus(t, rec, http.StatusOK)
	var records []models.CompletedTask
	if err := json.Unmarshal(env.Data, &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 1 || records[0].TaskID != done.ID || records[0].Hours != 2 {
		t.Fatalf("completed records = %+v", records)
	}

	// The assignee-scoped listing keeps completed tasks visible.
	rec, env = request(t, router, http.MethodGet, "/tasks/mine", nil, bob)
	requireStatus(t, rec, http.StatusOK)
	if err := json.Unmarshal(env.Data, &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("my tasks = %+v", tasks)
	}

	// Outsiders see none of it.
	outsider := s.addUser("mallory", "mallory@example.com")
	rec, _ = request(t, router, http.MethodGet,
		fmt.Sprintf("/projects/%d/tasks", project.ID), nil, outsider)
	requireStatus(t, rec, http.StatusForbidden)
}
