package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
)

type componentStatus struct {
	OK             bool   `json:"ok"`
	ServicesLoaded *int   `json:"services_loaded,omitempty"`
	LastReload     string `json:"last_reload,omitempty"`
	LastWrite      string `json:"last_write,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Impact         string `json:"impact,omitempty"`
	Error          string `json:"error,omitempty"`
}

type infraResponse struct {
	State      string                     `json:"state"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"datastore": checkDatastore(r.Context(), d),
			"catalog":   catalogStatus(d),
			"ai":        aiStatus(d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(infraResponse{
			State:      determineState(components),
			Components: components,
		})
	}
}

func catalogStatus(d deps.Deps) componentStatus {
	if d.Catalog == nil {
		return componentStatus{OK: false, Error: "reloader not initialized"}
	}
	st := d.Catalog.Status()
	count := st.Services
	lastReload := "never"
	if !st.LastReload.IsZero() {
		lastReload = st.LastReload.Format("2006-01-02 15:04:05")
	}
	cs := componentStatus{
		OK:             !st.LastReload.IsZero() && st.LastError == nil,
		ServicesLoaded: &count,
		LastReload:     lastReload,
	}
	if st.LastError != nil {
		cs.Impact = "serving-previous-catalog"
		cs.Error = st.LastError.Error()
	}
	return cs
}

func aiStatus(d deps.Deps) componentStatus {
	if d.AI == nil || !d.AI.Enabled() {
		return componentStatus{OK: false, Mode: "disabled", Impact: "ai-summaries-unavailable"}
	}
	return componentStatus{OK: true, Mode: "proxy"}
}

func determineState(components map[string]componentStatus) string {
	// Without the datastore no API route works.
	if ds, ok := components["datastore"]; ok && !ds.OK {
		return "critical"
	}
	for _, name := range []string{"catalog", "ai"} {
		if c, ok := components[name]; ok && !c.OK {
			return "degraded"
		}
	}
	return "operational"
}
