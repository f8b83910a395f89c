package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/ingest"
)

// maxDocumentBytes bounds uploaded framework documents
const maxDocumentBytes = 1 << 20

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorData(w, status, code, message, nil)
}

// respondErrorData writes an error that carries details in data
func respondErrorData(w http.ResponseWriter, status int, code, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Data:    data,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func respondValidation(w http.ResponseWriter, result framework.Result) {
	respondErrorData(w, http.StatusUnprocessableEntity, "validation_failed", "framework document is invalid", result)
}

// respondServiceError maps service errors to HTTP responses
func respondServiceError(w http.ResponseWriter, err error, action string) {
	var incomplete *assessment.IncompleteError
	var rejected *ingest.RejectedError

	switch {
	case errors.As(err, &incomplete):
		respondErrorData(w, http.StatusUnprocessableEntity, "incomplete_submission", err.Error(),
			map[string]interface{}{"missing": incomplete.Missing})
	case errors.As(err, &rejected):
		respondValidation(w, rejected.Result)
	case errors.Is(err, assessment.ErrAssessmentNotFound):
		respondError(w, http.StatusNotFound, "not_found", "assessment not found")
	case errors.Is(err, framework.ErrFrameworkNotFound):
		respondError(w, http.StatusNotFound, "framework_not_found", "framework not found")
	case errors.Is(err, assessment.ErrAssessmentCompleted):
		respondError(w, http.StatusConflict, "assessment_completed", "assessment is already completed")
	case errors.Is(err, assessment.ErrNotCompleted):
		respondError(w, http.StatusConflict, "not_completed", "assessment is not completed")
	case errors.Is(err, assessment.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, assessment.ErrUnknownQuestion):
		respondError(w, http.StatusBadRequest, "unknown_question", err.Error())
	case errors.Is(err, assessment.ErrScoreOutOfRange):
		respondError(w, http.StatusBadRequest, "score_out_of_range", err.Error())
	case errors.Is(err, framework.ErrFrameworkInUse):
		respondError(w, http.StatusConflict, "framework_in_use", "framework is referenced by assessments")
	case errors.Is(err, framework.ErrBuiltinReadOnly):
		respondError(w, http.StatusForbidden, "builtin_read_only", "built-in frameworks cannot be modified")
	case errors.Is(err, ingest.ErrNoPendingUpload):
		respondError(w, http.StatusNotFound, "no_pending_upload", "no framework upload is awaiting confirmation")
	case errors.Is(err, ingest.ErrPreviewExpired):
		respondError(w, http.StatusGone, "preview_expired", "the pending upload has expired, upload it again")
	case errors.Is(err, ingest.ErrNoCustomFramework):
		respondError(w, http.StatusNotFound, "no_custom_framework", "no custom framework is active")
	default:
		slog.Error("request failed", "action", action, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func readDocument(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}
	return data, nil
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.health.HealthCheckAll(r.Context())

	resp := readiness{Status: "ready", Checks: make(map[string]string, len(results))}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := results[name]; err != nil {
			slog.Warn("dependency not ready", "dependency", name, "error", err)
			resp.Status = "not_ready"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ready" {
		respondErrorData(w, http.StatusServiceUnavailable, "not_ready", "service not ready", resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
