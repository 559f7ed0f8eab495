package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/classification"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/respond"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

// TokenValidator turns a bearer token into a caller.
type TokenValidator interface {
	Validate(token string) (*auth.User, error)
}

// Authenticate requires a valid bearer token and stores the caller in the
// request context. The caller access scope is its normalized classification.
func Authenticate(v TokenValidator, engine *classification.Engine, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				respond.JSON(w, http.StatusUnauthorized, nil, "Authentication required")
				return
			}

			u, err := v.Validate(strings.TrimSpace(token))
			if err != nil {
				log.Debug("token rejected",
					logger.String("path", r.URL.Path),
					logger.Error(err))
				respond.JSON(w, http.StatusUnauthorized, nil, "Invalid or expired token")
				return
			}
			u.Access = engine.Normalize(u.Classification)

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
		})
	}
}

// RequireRole lets through callers holding one of roles. No roles means any
// authenticated caller.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := auth.GetUser(r.Context())
			if err != nil {
				respond.JSON(w, http.StatusUnauthorized, nil, "Authentication required")
				return
			}
			if !u.HasRole(roles...) {
				respond.JSON(w, http.StatusForbidden, nil,
					"Access Denied ("+r.URL.Path+") [User "+u.Username+" is missing a required role]")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
