package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tankobon/internal/archiveservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *archiveservice.Service, remotes Remotes, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	rh := NewRemoteHandler(remotes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/archives", h.ListArchives)
	r.Get("/archives/*", h.GetArchive)

	r.Get("/dates/*", h.GetDate)
	r.Put("/dates/*", h.SetDate)

	r.Post("/repair", h.Repair)

	r.Post("/update/komga", rh.UpdateKomga)
	r.Post("/update/kavita", rh.UpdateKavita)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
