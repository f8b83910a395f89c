package models

import (
	"strings"
	"time"
)

// ApiClient represents an authenticated API client
type ApiClient struct {
	ID             int               `json:"id"`
	Name           string            `json:"name"`
	ApiKey         string            `json:"-"` // Never serialize
	OrganizationID string            `json:"organization_id,omitempty"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      time.Time         `json:"created_at"`
	LastUsedAt     *time.Time        `json:"last_used_at,omitempty"`
	Permissions    []string          `json:"permissions"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// HasPermission checks if client has specific permission
// Supports wildcard permissions like "assessments:*"
func (c *ApiClient) HasPermission(required string) bool {
	if c == nil || !c.IsActive {
		return false
	}

	for _, perm := range c.Permissions {
		if perm == required || perm == "*" {
			return true
		}

		// "assessments:*" matches "assessments:read"
		if strings.HasSuffix(perm, ":*") {
			prefix := strings.TrimSuffix(perm, "*")
			if strings.HasPrefix(required, prefix) {
				return true
			}
		}
	}

	return false
}

// IsGlobal reports whether the client is not bound to an organization.
// Global clients see data of every tenant.
func (c *ApiClient) IsGlobal() bool {
	return c != nil && c.OrganizationID == ""
}

// CanAccessOrganization reports whether the client may read data of orgID
func (c *ApiClient) CanAccessOrganization(orgID string) bool {
	if c == nil {
		return false
	}
	return c.IsGlobal() || c.OrganizationID == orgID
}

// MaskedApiKey returns first 8 characters of API key for logging
func (c *ApiClient) MaskedApiKey() string {
	if len(c.ApiKey) < 8 {
		return "***"
	}
	return c.ApiKey[:8] + "..."
}
