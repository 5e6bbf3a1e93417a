package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into dst. On failure it writes a
// validation error response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		WriteError(w, &services.ValidationError{Message: "request body must be a JSON object: " + err.Error()})
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("Failed to encode response.", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("Failed to write response.", "error", err)
	}
}

// WriteError writes the structured error payload for err.
func WriteError(w http.ResponseWriter, err error) {
	code := services.HTTPStatus(err)
	errType := services.ErrorType(err)

	resp := models.ErrorResponse{Type: errType, Details: err.Error()}
	var notFound *services.NotFoundError
	switch {
	case errType == services.ErrorTypeValidation:
		resp.Error = "Invalid request"
	case errors.As(err, &notFound):
		resp.Error = "Job run not found"
	case errType == services.ErrorTypeGlue:
		resp.Error = "Batch job service error"
	default:
		resp.Error = "Internal server error"
		resp.Details = "An unexpected error occurred while processing the request"
		slog.Error("Request failed.", "error", err)
	}
	WriteJSON(w, code, resp)
}
