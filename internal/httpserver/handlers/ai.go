package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/respond"
)

// SummarizeReport handles POST /ai/report/. The body is the report itself.
func SummarizeReport(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report map[string]any
		if err := respond.Decode(r, &report); err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		summary, err := d.AI.SummarizeReport(r.Context(), report)
		if err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		respond.OK(w, summary)
	}
}

type codeRequest struct {
	Code string `json:"code"`
}

// SummarizeCode handles POST /ai/code/ with a {"code": "..."} body.
func SummarizeCode(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		summary, err := d.AI.SummarizeCode(r.Context(), req.Code)
		if err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		respond.OK(w, summary)
	}
}
