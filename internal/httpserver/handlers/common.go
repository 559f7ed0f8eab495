package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/respond"
)

// failed is the api_response of a refused mutation.
var failed = map[string]bool{"success": false}

type success struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	SID     string `json:"sid,omitempty"`
}

// caller returns the authenticated user or answers 401.
func caller(w http.ResponseWriter, r *http.Request, d deps.Deps) (*auth.User, bool) {
	u, err := auth.GetUser(r.Context())
	if err != nil {
		respond.Error(w, r, d.Logger, apperr.Errorf(apperr.ErrUnauthorized, "Authentication required"), nil)
		return nil, false
	}
	return u, true
}
