package api

import (
	"context"
	"net/http"

	"github.com/terra-clan/maturity-engine/internal/models"
)

type contextKey string

const clientContextKey contextKey = "api_client"

// ClientFromContext extracts ApiClient from context
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, ok := ctx.Value(clientContextKey).(*models.ApiClient)
	if !ok {
		return nil
	}
	return client
}

// ContextWithClient adds ApiClient to context
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

// organizationScope returns the organization a request is limited to.
// Organization-bound clients are pinned to their own; global clients may
// narrow the scope with the organization_id query parameter.
func organizationScope(r *http.Request) string {
	client := ClientFromContext(r.Context())
	if client != nil && !client.IsGlobal() {
		return client.OrganizationID
	}
	return r.URL.Query().Get("organization_id")
}

// canAccess reports whether the request's client may see data of orgID
func canAccess(r *http.Request, orgID string) bool {
	client := ClientFromContext(r.Context())
	return client.CanAccessOrganization(orgID)
}

// createdBy names the client issuing the request
func createdBy(r *http.Request) string {
	if client := ClientFromContext(r.Context()); client != nil {
		return client.Name
	}
	return ""
}
