package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	chirender "github.com/go-chi/render"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/opsboard/opsboard/services/api/auth"
	"github.com/opsboard/opsboard/services/api/handlers"
	"github.com/opsboard/opsboard/services/api/middleware"
	"github.com/opsboard/opsboard/services/api/render"
	"github.com/opsboard/opsboard/services/api/store"
)

// NewRouter instantiates the chi Router and wires middleware and
// resources.
func NewRouter(db *sqlx.DB, tokens *auth.Manager, publisher handlers.InvitePublisher, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Base Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chirender.SetContentType(chirender.ContentTypeJSON))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := store.New(db)

	authRes := handlers.NewAuthResource(s, tokens, log)
	orgs := handlers.NewOrgsResource(s, publisher, log)
	projects := handlers.NewProjectsResource(s, log)
	tasks := handlers.NewTasksResource(s, log)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
			render.OK(w, req, "pong", nil)
		})

		r.Mount("/auth", authRes.Routes())

		// Everything below requires an authenticated actor with a
		// still-valid session.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens, s, log))

			r.Mount("/organizations", orgs.Routes())
			r.Mount("/invites", orgs.InviteRoutes())

			r.Route("/organizations/{orgID}", func(r chi.Router) {
				r.Mount("/projects", projects.OrgRoutes())
			})
			r.Mount("/projects", projects.Routes())

			r.Route("/projects/{projectID}", func(r chi.Router) {
				r.Mount("/tasks", tasks.ProjectRoutes())
			})
			r.Mount("/tasks", tasks.Routes())
		})
	})

	return r
}
