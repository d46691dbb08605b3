package middleware

import (
	"context"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	chirender "github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/models"
	"github.com/opsboard/opsboard/services/api/auth"
	"github.com/opsboard/opsboard/services/api/render"
)

// Identity is the authenticated actor attached to the request context.
type Identity struct {
	UserID    int64
	Email     string
	Name      string
	SessionID uuid.UUID
}

type identityKey struct{}

// ActorFrom returns the authenticated actor, if any.
func ActorFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// WithActor is used by tests to inject an actor directly.
func WithActor(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// SessionValidator resolves a session id to a session that is still
// honored. A session that is absent or invalidated yields an error.
type SessionValidator interface {
	ValidSession(ctx context.Context, id uuid.UUID) (models.Session, error)
}

// RequireAuth validates the access credential and checks that the
// embedded session has not been invalidated by logout.
func RequireAuth(tokens *auth.Manager, sessions SessionValidator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.AccessCookie)
			if err != nil {
				chirender.Render(w, r, render.ErrUnauthorized("missing credentials"))
				return
			}

			claims, err := tokens.ParseAccess(cookie.Value)
			if err != nil {
				chirender.Render(w, r, render.ErrUnauthorized("invalid credentials"))
				return
			}

			if _, err := sessions.ValidSession(r.Context(), claims.SessionID); err != nil {
				log.Debug("rejected request for invalidated session",
					zap.String("session_id", claims.SessionID.String()))
				chirender.Render(w, r, render.ErrUnauthorized("session no longer valid"))
				return
			}

			actor := Identity{
				UserID:    claims.UserID,
				Email:     claims.Email,
				Name:      claims.Name,
				SessionID: claims.SessionID,
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequestLogger logs each request with method, path, status and latency.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
