package mw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/classification"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	v, err := auth.NewValidator("s3cret", "")
	require.NoError(t, err)
	engine, err := classification.New(classification.DefaultDefinition())
	require.NoError(t, err)

	token, err := v.Issue(&auth.User{Username: "alice", Classification: "secret//legal"}, time.Hour)
	require.NoError(t, err)

	var seen *auth.User
	h := Authenticate(v, engine, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.GetUser(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + token, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v4/signature/stats/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(h, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.EqualValues(t, 401, body["api_status_code"])
			}
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
	assert.Equal(t, "S//LE", seen.Access)
}

func TestRequireRole(t *testing.T) {
	withUser := func(roles ...string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(auth.WithUser(req.Context(), &auth.User{Username: "u", Roles: roles}))
	}

	h := RequireRole(auth.RoleSignatureManager)(okHandler())
	assert.Equal(t, http.StatusNoContent, serve(h, withUser(auth.RoleSignatureManager)).Code)
	assert.Equal(t, http.StatusNoContent, serve(h, withUser(auth.RoleAdmin)).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, withUser(auth.RoleUser)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	anyone := RequireRole()(okHandler())
	assert.Equal(t, http.StatusNoContent, serve(anyone, withUser()).Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{PerSecond: 0.001, Burst: 2})(okHandler())

	req := func(user string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/v4/ai/code/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		if user != "" {
			r = r.WithContext(auth.WithUser(r.Context(), &auth.User{Username: user}))
		}
		return r
	}

	first := serve(h, req("alice"))
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, serve(h, req("alice")).Code)

	limited := serve(h, req("alice"))
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	// Another user from the same address has its own bucket.
	assert.Equal(t, http.StatusNoContent, serve(h, req("bob")).Code)
	// Anonymous callers are keyed by IP.
	assert.Equal(t, http.StatusNoContent, serve(h, req("")).Code)
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8", "192.168.1.5"}, false, logger.NewNop())(okHandler())

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:5555", http.StatusNoContent},
		{"192.168.1.5:5555", http.StatusNoContent},
		{"172.16.0.1:5555", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = tt.remote
		assert.Equal(t, tt.want, serve(h, req).Code, tt.remote)
	}

	pass := AllowOnlyCIDRS(nil, false, logger.NewNop())(okHandler())
	assert.Equal(t, http.StatusNoContent, serve(pass, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"sigdesk.lab.local", "*.example.com"}, logger.NewNop())(okHandler())

	tests := []struct {
		host string
		want int
	}{
		{"sigdesk.lab.local", http.StatusNoContent},
		{"api.example.com", http.StatusNoContent},
		{"evil.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/reload", nil)
		req.Host = tt.host
		assert.Equal(t, tt.want, serve(h, req).Code, tt.host)
	}
}
