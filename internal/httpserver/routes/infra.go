package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/mw"
	"github.com/MrSnakeDoc/sigdesk/internal/metrics"
)

func init() { Register(registerInfra) }

func registerInfra(r chi.Router, d deps.Deps) {
	cidrs := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
	r.With(cidrs).Get("/healthz", handlers.Healthz(d))
	r.With(cidrs).Get("/infra", handlers.Infra(d))
	r.With(cidrs).Method("GET", "/metrics", metrics.Handler())
}
