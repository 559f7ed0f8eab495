package routes

import (
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/mw"
	"github.com/MrSnakeDoc/sigdesk/internal/version"
)

// APIPrefix is the root of every authenticated route.
const APIPrefix = "/api/" + version.APIVersion

const defaultRequestTimeout = 60 * time.Second

// apiMiddlewares bound the request and authenticate the caller.
func apiMiddlewares(d deps.Deps) []Middleware {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return []Middleware{
		middleware.Timeout(timeout),
		mw.Authenticate(d.Auth, d.Classification, d.Logger),
	}
}
