package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/models"
)

// Framework handlers: catalog browsing, registration and validation

func (s *Server) handleListFrameworks(w http.ResponseWriter, r *http.Request) {
	frameworks, err := s.catalog.List(r.Context(), organizationScope(r))
	if err != nil {
		respondServiceError(w, err, "list frameworks")
		return
	}
	if frameworks == nil {
		frameworks = []models.FrameworkSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"frameworks": frameworks,
		"total":      len(frameworks),
	})
}

func (s *Server) handleCreateFramework(w http.ResponseWriter, r *http.Request) {
	data, err := readDocument(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	orgID := organizationScope(r)
	fw, result, err := s.catalog.Register(r.Context(), orgID, data)
	if errors.Is(err, framework.ErrInvalidFramework) {
		respondValidation(w, result)
		return
	}
	if err != nil {
		respondServiceError(w, err, "create framework")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"framework": fw.Summary(),
		"warnings":  result.Warnings,
	})
}

// handleValidateFramework reports problems of a document without storing it
func (s *Server) handleValidateFramework(w http.ResponseWriter, r *http.Request) {
	data, err := readDocument(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, framework.ValidateBytes(data))
}

func (s *Server) handleFrameworkTemplate(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, json.RawMessage(framework.Template()))
}

func (s *Server) handleGetFramework(w http.ResponseWriter, r *http.Request) {
	fw, ok := s.visibleFramework(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, fw)
}

func (s *Server) handleFrameworkStructure(w http.ResponseWriter, r *http.Request) {
	fw, ok := s.visibleFramework(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, framework.StructureOf(fw))
}

func (s *Server) handleDeleteFramework(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.visibleFramework(w, r); !ok {
		return
	}
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err, "delete framework")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// visibleFramework loads the {id} framework, hiding other tenants' frameworks as not found
func (s *Server) visibleFramework(w http.ResponseWriter, r *http.Request) (*models.Framework, bool) {
	fw, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "get framework")
		return nil, false
	}
	if fw.OrganizationID != "" && !canAccess(r, fw.OrganizationID) {
		respondServiceError(w, framework.ErrFrameworkNotFound, "get framework")
		return nil, false
	}
	return fw, true
}
