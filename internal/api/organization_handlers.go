package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/models"
)

// OrganizationStore persists tenants
type OrganizationStore interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	DeleteOrganization(ctx context.Context, id string) error
}

// Organization handlers

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.organizations.ListOrganizations(r.Context())
	if err != nil {
		respondServiceError(w, err, "list organizations")
		return
	}

	visible := make([]*models.Organization, 0, len(orgs))
	for _, org := range orgs {
		if canAccess(r, org.ID) {
			visible = append(visible, org)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"organizations": visible,
		"total":         len(visible),
	})
}

func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req models.OrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = framework.Slug(name)
	}

	now := time.Now().UTC()
	org := &models.Organization{
		ID:          uuid.New().String(),
		Name:        name,
		Slug:        slug,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.organizations.CreateOrganization(r.Context(), org); err != nil {
		respondServiceError(w, err, "create organization")
		return
	}

	slog.Info("organization created", "id", org.ID, "slug", org.Slug)
	respondJSON(w, http.StatusCreated, org)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := s.visibleOrganization(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, org)
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var req models.OrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	org, ok := s.visibleOrganization(w, r)
	if !ok {
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		org.Name = name
	}
	if slug := strings.TrimSpace(req.Slug); slug != "" {
		org.Slug = slug
	}
	if req.Description != "" {
		org.Description = req.Description
	}
	org.UpdatedAt = time.Now().UTC()

	if err := s.organizations.UpdateOrganization(r.Context(), org); err != nil {
		respondServiceError(w, err, "update organization")
		return
	}
	respondJSON(w, http.StatusOK, org)
}

func (s *Server) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := s.visibleOrganization(w, r)
	if !ok {
		return
	}

	if err := s.organizations.DeleteOrganization(r.Context(), org.ID); err != nil {
		respondServiceError(w, err, "delete organization")
		return
	}

	slog.Info("organization deleted", "id", org.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) visibleOrganization(w http.ResponseWriter, r *http.Request) (*models.Organization, bool) {
	id := chi.URLParam(r, "id")
	if !canAccess(r, id) {
		respondError(w, http.StatusNotFound, "not_found", "organization not found")
		return nil, false
	}

	org, err := s.organizations.GetOrganization(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "get organization")
		return nil, false
	}
	if org == nil {
		respondError(w, http.StatusNotFound, "not_found", "organization not found")
		return nil, false
	}
	return org, true
}
