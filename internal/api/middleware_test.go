package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terra-clan/maturity-engine/internal/models"
)

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		query   string
		want    string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer mk_abc"}, "", "mk_abc"},
		{"raw authorization", map[string]string{"Authorization": "mk_abc"}, "", "mk_abc"},
		{"x-api-key", map[string]string{"X-API-Key": "mk_xyz"}, "", "mk_xyz"},
		{"query ignored for plain requests", nil, "api_key=mk_q", ""},
		{"query on websocket handshake", map[string]string{"Upgrade": "websocket"}, "api_key=mk_q", "mk_q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/events/ws?"+tt.query, nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractAPIKey(r))
		})
	}
}

func TestRequireGlobal(t *testing.T) {
	m := NewAuthMiddleware(nil)
	handler := m.RequireGlobal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		client *models.ApiClient
		want   int
	}{
		{"global client", &models.ApiClient{Name: "admin", IsActive: true}, http.StatusNoContent},
		{"organization client", &models.ApiClient{Name: "portal", IsActive: true, OrganizationID: "org-acme"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodDelete, "/api/v1/organizations/org-acme", nil)
			r = r.WithContext(ContextWithClient(r.Context(), tt.client))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "***", maskKey("short"))
	assert.Equal(t, "mk_12345...", maskKey("mk_1234567890"))
}
