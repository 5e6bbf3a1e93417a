package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed or disallowed input. Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StorageError reports an object-store transport failure.
type StorageError struct {
	Op  string
	Ref string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("object store %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DispatchError reports that the batch-compute service rejected a job start
// or a status query. It is fatal to the request and never retried here.
type DispatchError struct {
	JobName string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch of job %q failed: %v", e.JobName, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// StatusQueryError reports that a job-status lookup failed for a reason other
// than an unknown run.
type StatusQueryError struct {
	JobRunID string
	Err      error
}

func (e *StatusQueryError) Error() string {
	return fmt.Sprintf("status query for run %q failed: %v", e.JobRunID, e.Err)
}

func (e *StatusQueryError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown job run.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ModelServiceError wraps a generative-model failure. It is always recovered
// by a fallback and never returned to callers.
type ModelServiceError struct {
	Op  string
	Err error
}

func (e *ModelServiceError) Error() string {
	return fmt.Sprintf("model service %s: %v", e.Op, e.Err)
}

func (e *ModelServiceError) Unwrap() error { return e.Err }

func errValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Error type discriminators carried in error payloads.
const (
	ErrorTypeValidation = "validation"
	ErrorTypeGlue       = "glue"
	ErrorTypeServer     = "server"
)

// ErrorType maps an error onto the discriminator callers branch on.
func ErrorType(err error) string {
	var validation *ValidationError
	var dispatch *DispatchError
	var query *StatusQueryError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &validation):
		return ErrorTypeValidation
	case errors.As(err, &dispatch), errors.As(err, &query), errors.As(err, &notFound):
		return ErrorTypeGlue
	default:
		return ErrorTypeServer
	}
}

// HTTPStatus maps an error onto an HTTP status code.
func HTTPStatus(err error) int {
	var validation *ValidationError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
