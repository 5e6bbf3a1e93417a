package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// NormalizeState maps a raw external state onto the internal taxonomy.
// Unrecognized states are treated as still running.
func NormalizeState(raw string) models.JobState {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCEEDED":
		return models.JobStateSucceeded
	case "FAILED", "TIMEOUT", "STOPPED", "ERROR", "CANCELLED":
		return models.JobStateFailed
	default:
		// STARTING, RUNNING, ACTIVE, QUEUED and anything unknown.
		return models.JobStateRunning
	}
}

// StatusNormalizer answers status queries by asking the batch service once.
type StatusNormalizer struct {
	runner BatchRunner
}

func NewStatusNormalizer(runner BatchRunner) *StatusNormalizer {
	return &StatusNormalizer{runner: runner}
}

// Status returns the normalized state of a run. An unknown run is a
// *NotFoundError; any other query failure is a *StatusQueryError.
func (n *StatusNormalizer) Status(ctx context.Context, jobRunID, jobName string) (models.JobStatus, error) {
	if strings.TrimSpace(jobRunID) == "" {
		return models.JobStatus{}, errValidation("jobRunId is required")
	}

	run, err := n.runner.GetRun(ctx, jobName, jobRunID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return models.JobStatus{}, &NotFoundError{Message: fmt.Sprintf("job run %q was not found for job %q", jobRunID, jobName)}
		}
		return models.JobStatus{}, &StatusQueryError{JobRunID: jobRunID, Err: err}
	}

	state := NormalizeState(run.State)
	return models.JobStatus{
		JobRunID:         jobRunID,
		State:            state,
		RawExternalState: run.State,
		Message:          statusMessage(state, run.Error),
	}, nil
}

func statusMessage(state models.JobState, externalError string) string {
	switch state {
	case models.JobStateSucceeded:
		return "Job succeeded"
	case models.JobStateFailed:
		if externalError == "" {
			externalError = "no error message reported"
		}
		return "Job failed: " + externalError
	default:
		return "Job is running"
	}
}
