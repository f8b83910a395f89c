package api

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/models"
	"github.com/terra-clan/maturity-engine/internal/report"
)

// Assessment handlers

func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.ListFilters{
		OrganizationID: organizationScope(r),
		FrameworkID:    q.Get("framework_id"),
		Status:         models.AssessmentStatus(q.Get("status")),
		Limit:          queryInt(r, "limit", 50),
		Offset:         queryInt(r, "offset", 0),
	}

	list, err := s.assessments.List(r.Context(), filters)
	if err != nil {
		respondServiceError(w, err, "list assessments")
		return
	}
	if list == nil {
		list = []*models.Assessment{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": list,
		"total":       len(list),
	})
}

func (s *Server) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssessmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	client := ClientFromContext(r.Context())
	if !client.IsGlobal() {
		req.OrganizationID = client.OrganizationID
	}

	a, err := s.assessments.Create(r.Context(), req, createdBy(r))
	if err != nil {
		respondServiceError(w, err, "create assessment")
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, ok := s.visibleAssessment(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAssessment(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateAssessmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if _, ok := s.visibleAssessment(w, r); !ok {
		return
	}

	a, err := s.assessments.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "update assessment")
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAssessment(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.visibleAssessment(w, r); !ok {
		return
	}
	if err := s.assessments.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "delete assessment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetResponses(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.visibleAssessment(w, r); !ok {
		return
	}

	responses, err := s.assessments.GetResponses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "get responses")
		return
	}
	if responses == nil {
		responses = []models.Response{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"responses": responses,
		"total":     len(responses),
	})
}

func (s *Server) handleSaveResponses(w http.ResponseWriter, r *http.Request) {
	var req models.SaveResponsesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if _, ok := s.visibleAssessment(w, r); !ok {
		return
	}

	a, err := s.assessments.SaveResponses(r.Context(), chi.URLParam(r, "id"), req.Responses)
	if err != nil {
		respondServiceError(w, err, "save responses")
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.visibleAssessment(w, r); !ok {
		return
	}

	p, err := s.assessments.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "get progress")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.visibleAssessment(w, r); !ok {
		return
	}

	a, err := s.assessments.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "submit assessment")
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// handleReport returns the report in the JSON envelope, or rendered as
// text or markdown when ?format= asks for it
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}
	if r.URL.Query().Get("format") == "" {
		format = report.FormatJSON
	}

	if _, ok := s.visibleAssessment(w, r); !ok {
		return
	}

	rep, err := s.assessments.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "build report")
		return
	}

	if format == report.FormatJSON {
		respondJSON(w, http.StatusOK, rep)
		return
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, rep, format); err != nil {
		respondServiceError(w, err, "render report")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.assessments.Analytics(r.Context(), organizationScope(r))
	if err != nil {
		respondServiceError(w, err, "build analytics")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// visibleAssessment loads the {id} assessment, hiding other tenants' assessments as not found
func (s *Server) visibleAssessment(w http.ResponseWriter, r *http.Request) (*models.Assessment, bool) {
	a, err := s.assessments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "get assessment")
		return nil, false
	}
	if !canAccess(r, a.OrganizationID) {
		respondServiceError(w, assessment.ErrAssessmentNotFound, "get assessment")
		return nil, false
	}
	return a, true
}
