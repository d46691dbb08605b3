package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsboard/opsboard/pkg/models"
	"github.com/opsboard/opsboard/services/api/auth"
	"github.com/opsboard/opsboard/services/api/render"
	"github.com/opsboard/opsboard/services/api/store"
)

// SessionStore is the persistence surface the auth endpoints need.
type SessionStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	CreateSession(ctx context.Context, userID int64) (models.Session, error)
	ValidSession(ctx context.Context, id uuid.UUID) (models.Session, error)
	InvalidateSession(ctx context.Context, id uuid.UUID) error
}

type AuthResource struct {
	Store  SessionStore
	Tokens *auth.Manager
	Log    *zap.Logger
}

func NewAuthResource(s SessionStore, tokens *auth.Manager, log *zap.Logger) *AuthResource {
	return &AuthResource{Store: s, Tokens: tokens, Log: log}
}

func (rs *AuthResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", rs.Signup)
	r.Post("/login", rs.Login)
	r.Post("/logout", rs.Logout)
	r.Post("/refresh", rs.Refresh)
	return r
}

// Signup POST /api/v1/auth/signup
func (rs *AuthResource) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		chirender.Render(w, r, render.ErrBadRequest("name, email and password are required"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	user, err := rs.Store.CreateUser(r.Context(), req.Name, req.Email, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		chirender.Render(w, r, render.ErrConflict("email already registered"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	render.Created(w, r, "user created", user)
}

// Login POST /api/v1/auth/login
func (rs *AuthResource) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chirender.Render(w, r, render.ErrBadRequest("invalid request body"))
		return
	}

	user, err := rs.Store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrUnauthorized("invalid email or password"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		chirender.Render(w, r, render.ErrUnauthorized("invalid email or password"))
		return
	}

	session, err := rs.Store.CreateSession(r.Context(), user.ID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	now := time.Now()
	access, err := rs.Tokens.IssueAccess(user, session.ID, now)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}
	refresh, err := rs.Tokens.IssueRefresh(session.ID, now)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	rs.Tokens.SetAccessCookie(w, access)
	rs.Tokens.SetRefreshCookie(w, refresh)

	render.OK(w, r, "logged in", user)
}

// Logout POST /api/v1/auth/logout
//
// Idempotent: the cookies are always cleared, and invalidating an
// already-invalid session is not an error.
func (rs *AuthResource) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.AccessCookie)
	if err == nil {
		if claims, err := rs.Tokens.ParseAccess(cookie.Value); err == nil {
			if err := rs.Store.InvalidateSession(r.Context(), claims.SessionID); err != nil {
				rs.Log.Error("failed to invalidate session", zap.Error(err))
			}
		}
	}

	// Clear before rendering; headers added after WriteHeader are lost.
	rs.Tokens.ClearCookies(w)
	render.OK(w, r, "logged out", nil)
}

// Refresh POST /api/v1/auth/refresh
func (rs *AuthResource) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookie)
	if err != nil {
		chirender.Render(w, r, render.ErrUnauthorized("missing refresh credential"))
		return
	}

	claims, err := rs.Tokens.ParseRefresh(cookie.Value)
	if err != nil {
		chirender.Render(w, r, render.ErrUnauthorized("invalid refresh credential"))
		return
	}

	session, err := rs.Store.ValidSession(r.Context(), claims.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		chirender.Render(w, r, render.ErrUnauthorized("session no longer valid"))
		return
	}
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	user, err := rs.Store.UserByID(r.Context(), session.UserID)
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}

	access, err := rs.Tokens.IssueAccess(user, session.ID, time.Now())
	if err != nil {
		chirender.Render(w, r, render.ErrInternal(err))
		return
	}
	rs.Tokens.SetAccessCookie(w, access)

	render.OK(w, r, "token refreshed", nil)
}
