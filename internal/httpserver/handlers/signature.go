package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/respond"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

// AddSignature handles PUT /signature/add/.
func AddSignature(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sig domain.Signature
		if err := respond.Decode(r, &sig); err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		id, err := d.Signatures.Add(r.Context(), &sig)
		if err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		respond.OK(w, success{Success: true, ID: id})
	}
}

// AddUpdateSignature handles POST /signature/add_update/.
func AddUpdateSignature(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sig domain.Signature
		if err := respond.Decode(r, &sig); err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		id, err := d.Signatures.AddUpdate(r.Context(), &sig)
		if err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		respond.OK(w, success{Success: true, ID: id})
	}
}

// ChangeStatus handles GET /signature/change_status/{sid}/{status}/.
func ChangeStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r, d)
		if !ok {
			return
		}
		sid, status := chi.URLParam(r, "sid"), chi.URLParam(r, "status")
		if err := d.Signatures.ChangeStatus(r.Context(), u, sid, status); err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		respond.OK(w, success{Success: true})
	}
}

// DownloadSignatures handles GET /signature/download/?query=.
func DownloadSignatures(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r, d)
		if !ok {
			return
		}
		bundle, err := d.Signatures.Download(r.Context(), u, r.URL.Query().Get("query"))
		if err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		respond.File(w, bundle.Name, "application/zip", bundle.Data)
	}
}

// SignatureStats handles GET /signature/stats/.
func SignatureStats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r, d)
		if !ok {
			return
		}
		stats, err := d.Signatures.Statistics(r.Context(), u)
		if err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		respond.OK(w, stats)
	}
}

// UpdateAvailable handles GET /signature/update_available/?type=&last_update=.
func UpdateAvailable(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		since := time.Unix(0, 0).UTC()
		if raw := q.Get("last_update"); raw != "" {
			t, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				respond.Error(w, r, d.Logger,
					apperr.Errorf(apperr.ErrEmptyInput, "Invalid last_update date: %s", raw), nil)
				return
			}
			since = t
		}
		sigType := q.Get("type")
		if sigType == "" {
			sigType = "*"
		}

		available, err := d.Signatures.UpdateAvailable(r.Context(), sigType, since)
		if err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		respond.OK(w, map[string]bool{"update_available": available})
	}
}

// GetSignature handles GET /signature/{sid}/.
func GetSignature(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r, d)
		if !ok {
			return
		}
		sig, err := d.Signatures.Get(r.Context(), u, chi.URLParam(r, "sid"))
		if err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		respond.OK(w, sig)
	}
}

// UpdateSignature handles POST /signature/{sid}/.
func UpdateSignature(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		var sig domain.Signature
		if err := respond.Decode(r, &sig); err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		if err := d.Signatures.Update(r.Context(), sid, &sig); err != nil {
			respond.Error(w, r, d.Logger, err, failed)
			return
		}
		respond.OK(w, success{Success: true, SID: sid})
	}
}

// DeleteSignature handles DELETE /signature/{sid}/.
func DeleteSignature(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r, d)
		if !ok {
			return
		}
		sid := chi.URLParam(r, "sid")
		if err := d.Signatures.Delete(r.Context(), u, sid); err != nil {
			respond.Error(w, r, d.Logger, err, nil)
			return
		}
		d.Logger.Info("signature deleted",
			logger.String("sid", sid),
			logger.String("user", u.Username))
		respond.OK(w, success{Success: true})
	}
}
