package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opsboard/opsboard/pkg/events"
	"github.com/opsboard/opsboard/pkg/models"
	"github.com/opsboard/opsboard/services/api/core"
	"github.com/opsboard/opsboard/services/api/middleware"
	"github.com/opsboard/opsboard/services/api/store"
)

// fakeStore is an in-memory stand-in for the sqlx store. It implements
// the persistence interfaces the handlers consume.
type fakeStore struct {
	nextID int64

	users       map[int64]models.User
	sessions    map[uuid.UUID]models.Session
	orgs        map[int64]models.Organization
	orgMembers  map[int64]map[int64]models.Role
	invites     map[int64]models.Invite
	projects    map[int64]models.Project
	projMembers map[int64]map[int64]models.Role
	tasks       map[int64]models.Task
	completed   map[int64]models.CompletedTask
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[int64]models.User{},
		sessions:    map[uuid.UUID]models.Session{},
		orgs:        map[int64]models.Organization{},
		orgMembers:  map[int64]map[int64]models.Role{},
		invites:     map[int64]models.Invite{},
		projects:    map[int64]models.Project{},
		projMembers: map[int64]map[int64]models.Role{},
		tasks:       map[int64]models.Task{},
		completed:   map[int64]models.CompletedTask{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addUser(name, email string) models.User {
	u := models.User{ID: f.id(), Name: name, Email: email}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addOrg(name string, ownerID int64) models.Organization {
	org := models.Organization{ID: f.id(), Name: name}
	f.orgs[org.ID] = org
	f.orgMembers[org.ID] = map[int64]models.Role{ownerID: models.RoleOwner}
	return org
}

func (f *fakeStore) addProject(orgID int64, name string, ownerID int64) models.Project {
	p := models.Project{ID: f.id(), OrganizationID: orgID, Name: name}
	f.projects[p.ID] = p
	f.projMembers[p.ID] = map[int64]models.Role{ownerID: models.RoleOwner}
	return p
}

// --- SessionStore ---

func (f *fakeStore) CreateUser(_ context.Context, name, email, hash string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return models.User{}, store.ErrDuplicate
		}
	}
	u := models.User{ID: f.id(), Name: name, Email: email, PasswordHash: hash}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID int64) (models.Session, error) {
	s := models.Session{ID: uuid.New(), UserID: userID, Valid: true}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) ValidSession(_ context.Context, id uuid.UUID) (models.Session, error) {
	s, ok := f.sessions[id]
	if !ok || !s.Valid {
		return models.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) InvalidateSession(_ context.Context, id uuid.UUID) error {
	if s, ok := f.sessions[id]; ok {
		s.Valid = false
		f.sessions[id] = s
	}
	return nil
}

// --- OrgStore ---

func (f *fakeStore) CreateOrganization(_ context.Context, name string, description *string, ownerID int64) (models.Organization, error) {
	org := models.Organization{ID: f.id(), Name: name, Description: description}
	f.orgs[org.ID] = org
	f.orgMembers[org.ID] = map[int64]models.Role{ownerID: models.RoleOwner}
	return org, nil
}

func (f *fakeStore) Organization(_ context.Context, id int64) (models.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return models.Organization{}, store.ErrNotFound
	}
	return org, nil
}

func (f *fakeStore) UpdateOrganization(_ context.Context, id int64, name string, description *string) (models.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return models.Organization{}, store.ErrNotFound
	}
	org.Name = name
	org.Description = description
	f.orgs[id] = org
	return org, nil
}

func (f *fakeStore) DeleteOrganization(_ context.Context, id int64) error {
	if _, ok := f.orgs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.orgs, id)
	delete(f.orgMembers, id)
	return nil
}

func (f *fakeStore) OrganizationsForUser(_ context.Context, userID int64) ([]models.Organization, error) {
	var out []models.Organization
	for orgID, members := range f.orgMembers {
		if _, ok := members[userID]; ok {
			out = append(out, f.orgs[orgID])
		}
	}
	return out, nil
}

func (f *fakeStore) OrganizationMembers(_ context.Context, orgID int64) ([]models.OrganizationMember, error) {
	var out []models.OrganizationMember
	for userID, role := range f.orgMembers[orgID] {
		u := f.users[userID]
		out = append(out, models.OrganizationMember{
			OrganizationID: orgID, UserID: userID, Role: role,
			UserName: u.Name, UserEmail: u.Email,
		})
	}
	return out, nil
}

func (f *fakeStore) OrgRole(_ context.Context, orgID, userID int64) (models.Role, error) {
	role, ok := f.orgMembers[orgID][userID]
	if !ok {
		return "", store.ErrNotFound
	}
	return role, nil
}

func (f *fakeStore) OwnerCount(_ context.Context, orgID int64) (int, error) {
	n := 0
	for _, role := range f.orgMembers[orgID] {
		if role == models.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RemoveOrganizationMember(_ context.Context, orgID, userID int64) error {
	if _, ok := f.orgMembers[orgID][userID]; !ok {
		return store.ErrNotFound
	}
	delete(f.orgMembers[orgID], userID)
	return nil
}

func (f *fakeStore) UpdateOrganizationMemberRole(_ context.Context, orgID, userID int64, role models.Role) error {
	if _, ok := f.orgMembers[orgID][userID]; !ok {
		return store.ErrNotFound
	}
	f.orgMembers[orgID][userID] = role
	return nil
}

func (f *fakeStore) CreateInvite(_ context.Context, orgID, userID int64, email string) (models.Invite, error) {
	inv := models.Invite{ID: f.id(), OrganizationID: orgID, UserID: userID, Email: email, Secret: uuid.New()}
	f.invites[inv.ID] = inv
	return inv, nil
}

func (f *fakeStore) InviteBySecret(_ context.Context, secret uuid.UUID, userID int64) (models.Invite, error) {
	for _, inv := range f.invites {
		if inv.Secret == secret && inv.UserID == userID {
			return inv, nil
		}
	}
	return models.Invite{}, store.ErrNotFound
}

func (f *fakeStore) AcceptInvite(_ context.Context, invite models.Invite) error {
	if _, ok := f.invites[invite.ID]; !ok {
		return store.ErrNotFound
	}
	delete(f.invites, invite.ID)
	if _, ok := f.orgMembers[invite.OrganizationID][invite.UserID]; ok {
		return store.ErrDuplicate
	}
	if f.orgMembers[invite.OrganizationID] == nil {
		f.orgMembers[invite.OrganizationID] = map[int64]models.Role{}
	}
	f.orgMembers[invite.OrganizationID][invite.UserID] = models.RoleMember
	return nil
}

func (f *fakeStore) DeleteInvite(_ context.Context, id int64) error {
	if _, ok := f.invites[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.invites, id)
	return nil
}

// --- ProjectStore ---

func (f *fakeStore) CreateProject(_ context.Context, orgID int64, name string, description *string, ownerID int64) (models.Project, error) {
	p := models.Project{ID: f.id(), OrganizationID: orgID, Name: name, Description: description}
	f.projects[p.ID] = p
	f.projMembers[p.ID] = map[int64]models.Role{ownerID: models.RoleOwner}
	return p, nil
}

func (f *fakeStore) Project(_ context.Context, id int64) (models.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return models.Project{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) UpdateProject(_ context.Context, id int64, name string, description *string) (models.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return models.Project{}, store.ErrNotFound
	}
	p.Name = name
	p.Description = description
	f.projects[id] = p
	return p, nil
}

func (f *fakeStore) DeleteProject(_ context.Context, id int64) error {
	if _, ok := f.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.projects, id)
	delete(f.projMembers, id)
	return nil
}

func (f *fakeStore) ProjectsForOrganization(_ context.Context, orgID int64) ([]models.Project, error) {
	var out []models.Project
	for _, p := range f.projects {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ProjectRole(_ context.Context, projectID, userID int64) (models.Role, error) {
	role, ok := f.projMembers[projectID][userID]
	if !ok {
		return "", store.ErrNotFound
	}
	return role, nil
}

func (f *fakeStore) ProjectMembers(_ context.Context, projectID int64) ([]models.ProjectMember, error) {
	var out []models.ProjectMember
	for userID, role := range f.projMembers[projectID] {
		out = append(out, models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role})
	}
	return out, nil
}

func (f *fakeStore) AddProjectMember(_ context.Context, projectID, userID int64, role models.Role) error {
	if _, ok := f.projMembers[projectID][userID]; ok {
		return store.ErrDuplicate
	}
	if f.projMembers[projectID] == nil {
		f.projMembers[projectID] = map[int64]models.Role{}
	}
	f.projMembers[projectID][userID] = role
	return nil
}

func (f *fakeStore) RemoveProjectMember(_ context.Context, projectID, userID int64) error {
	if _, ok := f.projMembers[projectID][userID]; !ok {
		return store.ErrNotFound
	}
	delete(f.projMembers[projectID], userID)
	return nil
}

// --- TaskStore ---

func (f *fakeStore) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	t.ID = f.id()
	t.Status = models.StatusTodo
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) Task(_ context.Context, id int64) (models.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return models.Task{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) SaveTask(_ context.Context, t models.Task) error {
	if _, ok := f.tasks[t.ID]; !ok {
		return store.ErrNotFound
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTask(_ context.Context, id int64) error {
	if _, ok := f.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

// CompleteTask mirrors the transactional semantics of the sqlx store:
// the lifecycle decision, the status flip and the one-shot completion
// record happen as a unit.
func (f *fakeStore) CompleteTask(_ context.Context, taskID int64, now time.Time) (models.CompletedTask, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return models.CompletedTask{}, store.ErrNotFound
	}
	if _, done := f.completed[taskID]; done {
		return models.CompletedTask{}, core.ErrNotInProgress
	}

	rec, exception, err := core.Completion(t, now)
	if err != nil {
		return models.CompletedTask{}, err
	}

	t.Status = models.StatusCompleted
	t.Exception = exception
	f.tasks[taskID] = t

	rec.ID = f.id()
	f.completed[taskID] = rec
	return rec, nil
}

func (f *fakeStore) TasksForProject(_ context.Context, projectID int64) ([]models.Task, error) {
	var out []models.Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID && t.Status != models.StatusCompleted {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) TasksForUser(_ context.Context, userID int64) ([]models.Task, error) {
	var out []models.Task
	for _, t := range f.tasks {
		if t.AssigneeID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) TasksForProjectUser(_ context.Context, projectID, userID int64) ([]models.Task, error) {
	var out []models.Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID && t.AssigneeID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) CompletedTasksForProject(_ context.Context, projectID int64) ([]models.CompletedTask, error) {
	var out []models.CompletedTask
	for _, rec := range f.completed {
		if rec.ProjectID == projectID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// fakePublisher records invite notifications instead of hitting NATS.
type fakePublisher struct {
	published []*events.InviteNotification
	err       error
}

func (p *fakePublisher) PublishInviteNotification(msg *events.InviteNotification) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

// --- request plumbing ---

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// request runs one authenticated request through the given router and
// decodes the envelope.
func request(t *testing.T, router chi.Router, method, path string, body interface{}, actor models.User) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithActor(req.Context(), middleware.Identity{
		UserID: actor.ID,
		Email:  actor.Email,
		Name:   actor.Name,
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
