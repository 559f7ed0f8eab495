package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/respond"
)

// ListSources handles GET /signature/sources/.
func ListSources(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := d.Signatures.ListSources(r.Context())
		if err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		respond.OK(w, out)
	}
}

// AddSource handles PUT /signature/sources/{service}/.
func AddSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var src domain.Source
		if err := respond.Decode(r, &src); err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		if err := d.Signatures.AddSource(r.Context(), chi.URLParam(r, "service"), src); err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		respond.OK(w, success{Success: true})
	}
}

// UpdateSource handles POST /signature/sources/{service}/{name}/.
func UpdateSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var src domain.Source
		if err := respond.Decode(r, &src); err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		err := d.Signatures.UpdateSource(r.Context(), chi.URLParam(r, "service"), chi.URLParam(r, "name"), src)
		if err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		respond.OK(w, success{Success: true})
	}
}

// DeleteSource handles DELETE /signature/sources/{service}/{name}/.
func DeleteSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Signatures.DeleteSource(r.Context(), chi.URLParam(r, "service"), chi.URLParam(r, "name")); err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		respond.OK(w, success{Success: true})
	}
}
