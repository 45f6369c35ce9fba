package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	var gotID string
	var gotAdmin bool
	h := authMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotID, _ = UserFromRequest(r)
		_, err := RequireAdmin(r.Context())
		gotAdmin = err == nil
	}))

	tests := []struct {
		name      string
		headers   map[string]string
		wantID    string
		wantAdmin bool
	}{
		{name: "anonymous"},
		{name: "user", headers: map[string]string{HeaderUserID: " ana "}, wantID: "ana"},
		{name: "admin", headers: map[string]string{HeaderUserID: "ops", HeaderUserRole: "Admin"}, wantID: "ops", wantAdmin: true},
		{name: "role without user", headers: map[string]string{HeaderUserRole: "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotAdmin = "", false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.wantID, gotID)
			assert.Equal(t, tt.wantAdmin, gotAdmin)
		})
	}
}

func TestGetUserID_Unauthenticated(t *testing.T) {
	_, err := GetUserID(context.Background())
	require.Error(t, err)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", getClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "192.0.2.9", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	assert.Equal(t, "198.51.100.1", getClientIP(req))
}
