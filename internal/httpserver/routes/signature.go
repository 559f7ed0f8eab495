package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/mw"
)

func init() { Register(registerSignature) }

func registerSignature(r chi.Router, d deps.Deps) {
	importer := mw.RequireRole(auth.RoleSignatureImporter)
	manager := mw.RequireRole(auth.RoleSignatureManager)
	reader := mw.RequireRole(auth.RoleSignatureImporter, auth.RoleUser)
	anyone := mw.RequireRole()

	r.Route(APIPrefix+"/signature", func(r chi.Router) {
		r.Use(apiMiddlewares(d)...)

		r.With(importer).Put("/add/", handlers.AddSignature(d))
		r.With(importer).Post("/add_update/", handlers.AddUpdateSignature(d))
		r.With(manager).Get("/change_status/{sid}/{status}/", handlers.ChangeStatus(d))
		r.With(reader).Get("/download/", handlers.DownloadSignatures(d))
		r.With(anyone).Get("/stats/", handlers.SignatureStats(d))
		r.With(reader).Get("/update_available/", handlers.UpdateAvailable(d))

		r.With(manager).Get("/sources/", handlers.ListSources(d))
		r.With(manager).Put("/sources/{service}/", handlers.AddSource(d))
		r.With(manager).Post("/sources/{service}/{name}/", handlers.UpdateSource(d))
		r.With(manager).Delete("/sources/{service}/{name}/", handlers.DeleteSource(d))

		r.With(anyone).Get("/{sid}/", handlers.GetSignature(d))
		r.With(importer).Post("/{sid}/", handlers.UpdateSignature(d))
		r.With(manager).Delete("/{sid}/", handlers.DeleteSignature(d))
	})
}
