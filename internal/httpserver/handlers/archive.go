package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/archive"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/respond"
)

// ArchiveSubmission handles PUT /archive/{sid}/?delete_after=.
func ArchiveSubmission(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r, d)
		if !ok {
			return
		}
		// A bare ?delete_after counts as true.
		deleteAfter := false
		if v, ok := r.URL.Query()["delete_after"]; ok {
			deleteAfter = len(v) == 0 || v[0] == "" || strings.EqualFold(v[0], "true")
		}

		action, err := d.Archive.ArchiveSubmission(r.Context(), u, chi.URLParam(r, "sid"), deleteAfter)
		if err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		respond.OK(w, action)
	}
}

type relatedRequest struct {
	Offset *int    `json:"offset"`
	Rows   *int    `json:"rows"`
	Sort   *string `json:"sort"`
}

// RelatedFiles handles GET and POST /archive/details/{sha256}/. Paging
// comes from the query string on GET and from the JSON body on POST.
func RelatedFiles(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r, d)
		if !ok {
			return
		}

		params, err := relatedParams(r)
		if err != nil {
			respond.Error(w, r, d.Logger, err, map[string]any{})
			return
		}

		out, err := d.Archive.RelatedFiles(r.Context(), u, chi.URLParam(r, "sha256"), params)
		if err != nil {
			respond.Error(w, r, d.Logger, err, map[string]any{})
			return
		}
		respond.OK(w, out)
	}
}

func relatedParams(r *http.Request) (archive.Params, error) {
	p := archive.DefaultParams()

	var req relatedRequest
	if r.Method == http.MethodPost {
		if err := respond.Decode(r, &req); err != nil {
			return p, err
		}
	} else {
		q := r.URL.Query()
		for _, f := range []struct {
			name string
			dst  **int
		}{{"offset", &req.Offset}, {"rows", &req.Rows}} {
			raw := q.Get(f.name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return p, apperr.Errorf(apperr.ErrEmptyInput, "Invalid %s value: %s", f.name, raw)
			}
			*f.dst = &n
		}
		if s := q.Get("sort"); s != "" {
			req.Sort = &s
		}
	}

	if req.Offset != nil {
		p.Offset = *req.Offset
	}
	if req.Rows != nil {
		p.Rows = *req.Rows
	}
	if req.Sort != nil {
		p.Sort = *req.Sort
	}
	return p, nil
}
