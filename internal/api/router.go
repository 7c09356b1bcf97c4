package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/travel", func(r chi.Router) {
		// Upstream content streams.
		r.Post("/explore", h.Explore)
		r.Post("/generate-trip", h.GenerateTrip)

		// Draft sessions.
		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", h.ListDrafts)
			r.Post("/", h.CreateDraft)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetDraft)
				r.Delete("/", h.DeleteDraft)
				r.Delete("/units/{unitId}", h.RemoveUnit)
				r.Get("/units/{unitId}/parsed", h.ParsedUnit)
				r.Post("/saved-items", h.AddSavedItem)
				r.Delete("/saved-items", h.ClearSavedItems)
				r.Delete("/saved-items/{itemId}", h.RemoveSavedItem)
			})
		})

		// Guide catalog.
		r.Route("/guides", func(r chi.Router) {
			r.Get("/", h.ListGuides)
			r.Post("/", h.SaveGuide)
			r.Get("/{id}", h.GetGuide)
			r.Delete("/{id}", h.DeleteGuide)
			r.Post("/{id}/state", h.SetGuideState)
		})

		r.Get("/suggestions/{slug}", h.Suggestions)
		r.Get("/persona", h.GetPersona)
		r.Put("/persona", h.PutPersona)
	})

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
