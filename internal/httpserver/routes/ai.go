package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/mw"
)

func init() { Register(registerAI) }

func registerAI(r chi.Router, d deps.Deps) {
	r.Route(APIPrefix+"/ai", func(r chi.Router) {
		r.Use(apiMiddlewares(d)...)
		r.Use(mw.RequireRole(auth.RoleUser))
		r.Use(mw.RateLimit(mw.RateLimitConfig{
			PerSecond:  d.AIRate,
			Burst:      d.AIBurst,
			MaxEntries: 10000,
			TrustProxy: d.TrustProxy,
		}))

		r.Post("/report/", handlers.SummarizeReport(d))
		r.Post("/code/", handlers.SummarizeCode(d))
	})
}
