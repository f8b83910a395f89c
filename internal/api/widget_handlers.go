package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/maturity-engine/internal/ingest"
	"github.com/terra-clan/maturity-engine/internal/models"
)

// Widget handlers serve the embedded mode. Each product has its own storage
// scope, nested under the organization of org-bound clients.

// productScope returns the storage scope of the product named in the path
func productScope(r *http.Request) string {
	return ingest.Scope(organizationScope(r), chi.URLParam(r, "productID"))
}

type widgetSubmitRequest struct {
	TeamName  string            `json:"team_name"`
	Responses []models.Response `json:"responses"`
}

func (s *Server) handleFrameworkStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.ingest.Status(r.Context(), productScope(r))
	if err != nil {
		respondServiceError(w, err, "get framework status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleActiveFramework(w http.ResponseWriter, r *http.Request) {
	fw, custom, err := s.ingest.Active(r.Context(), productScope(r))
	if err != nil {
		respondServiceError(w, err, "get active framework")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"custom":    custom,
		"framework": fw,
	})
}

func (s *Server) handleUploadFramework(w http.ResponseWriter, r *http.Request) {
	data, err := readDocument(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	preview, err := s.ingest.Upload(r.Context(), productScope(r), data)
	if err != nil {
		respondServiceError(w, err, "upload framework")
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

func (s *Server) handleConfirmFramework(w http.ResponseWriter, r *http.Request) {
	fw, err := s.ingest.Confirm(r.Context(), productScope(r))
	if err != nil {
		respondServiceError(w, err, "confirm framework")
		return
	}
	respondJSON(w, http.StatusOK, fw.Summary())
}

func (s *Server) handleCancelFramework(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.Cancel(r.Context(), productScope(r)); err != nil {
		respondServiceError(w, err, "cancel upload")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearFramework(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.Clear(r.Context(), productScope(r)); err != nil {
		respondServiceError(w, err, "clear framework")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWidgetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.widget.History(r.Context(), productScope(r))
	if err != nil {
		respondServiceError(w, err, "load history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": history,
		"total":       len(history),
	})
}

func (s *Server) handleWidgetSubmit(w http.ResponseWriter, r *http.Request) {
	var req widgetSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	entry, err := s.widget.Submit(r.Context(), productScope(r), req.TeamName, req.Responses)
	if err != nil {
		respondServiceError(w, err, "submit assessment")
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleWidgetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.widget.Entry(r.Context(), productScope(r), chi.URLParam(r, "entryID"))
	if err != nil {
		respondServiceError(w, err, "load history")
		return
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "not_found", "assessment not found")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
