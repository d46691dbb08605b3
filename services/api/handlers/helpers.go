package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"

	"github.com/opsboard/opsboard/services/api/middleware"
	"github.com/opsboard/opsboard/services/api/render"
)

func urlID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

// actor pulls the authenticated identity off the context; the auth
// middleware guarantees it is present on protected routes.
func actor(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, ok := middleware.ActorFrom(r.Context())
	if !ok {
		chirender.Render(w, r, render.ErrUnauthorized("not authenticated"))
	}
	return id, ok
}
