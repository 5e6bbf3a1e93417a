// Package handlers exposes the orchestrator over HTTP.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

// retryAfterSeconds is the polling hint returned while a job is not terminal.
const retryAfterSeconds = 10

// JobService is the orchestrator surface the handlers call.
type JobService interface {
	Categorize(ctx context.Context, rawPath string) (*models.CategorizeResponse, error)
	Segment(ctx context.Context, rawPath string, criteria map[string]any) (*models.SegmentationResponse, error)
	JobStatus(ctx context.Context, jobRunID, jobKind string) (*models.JobStatusResponse, error)
}

// JobHandlers serves the inbound job API.
type JobHandlers struct {
	Svc JobService
}

// Categorize handles POST {"s3FilePath": "..."}.
func (h *JobHandlers) Categorize(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.CategorizeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Svc.Categorize(r.Context(), req.S3FilePath)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Segment handles POST {"s3FilePath": "...", "criteria": {...}}.
func (h *JobHandlers) Segment(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.SegmentationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Svc.Segment(r.Context(), req.S3FilePath, req.Criteria)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// JobStatus handles GET /job-status/{jobRunId}?jobKind=categorize|segment.
// The run id may also be given as the jobRunId query parameter.
func (h *JobHandlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	jobRunID := r.URL.Query().Get("jobRunId")
	if jobRunID == "" {
		jobRunID = runIDFromPath(r.URL.Path)
	}
	if jobRunID == "" {
		WriteError(w, &services.ValidationError{Message: "jobRunId is required"})
		return
	}

	resp, err := h.Svc.JobStatus(r.Context(), jobRunID, r.URL.Query().Get("jobKind"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if !resp.Status.Terminal() {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	WriteJSON(w, http.StatusOK, resp)
}

func runIDFromPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	base := path.Base(p)
	if base == "." || base == "/" || base == "job-status" {
		return ""
	}
	return base
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	WriteJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{
		Error:   "Method not allowed",
		Details: fmt.Sprintf("use %s", method),
		Type:    services.ErrorTypeValidation,
	})
	return false
}
