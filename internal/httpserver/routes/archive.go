package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/mw"
)

func init() { Register(registerArchive) }

func registerArchive(r chi.Router, d deps.Deps) {
	r.Route(APIPrefix+"/archive", func(r chi.Router) {
		r.Use(apiMiddlewares(d)...)

		details := handlers.RelatedFiles(d)
		r.With(mw.RequireRole(auth.RoleSubmissionView)).Get("/details/{sha256}/", details)
		r.With(mw.RequireRole(auth.RoleSubmissionView)).Post("/details/{sha256}/", details)
		r.With(mw.RequireRole(auth.RoleArchiveTrigger)).Put("/{sid}/", handlers.ArchiveSubmission(d))
	})
}
