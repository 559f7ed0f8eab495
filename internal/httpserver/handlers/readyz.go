package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Readyz reports ready once the datastore answers and the service catalog
// has been loaded at least once.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		resp := readyzResponse{Ready: true}
		if st := checkDatastore(r.Context(), d); !st.OK {
			resp = readyzResponse{Reason: "datastore: " + st.Error}
		} else if d.Catalog != nil && d.Catalog.Status().LastReload.IsZero() {
			resp = readyzResponse{Reason: "service catalog not loaded"}
		}

		if resp.Ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func checkDatastore(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		cs := componentStatus{OK: true, Mode: d.Datastore}
		if d.MemoryIndex != nil {
			cs.LastWrite = "never"
			if lw := d.MemoryIndex.GetLastWrite(); !lw.IsZero() {
				cs.LastWrite = lw.Format("2006-01-02 15:04:05")
			}
		}
		return cs
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.Datastore,
			Impact: "api-unavailable",
			Error:  "timeout",
		}
	}
	return componentStatus{OK: true, Mode: d.Datastore}
}
