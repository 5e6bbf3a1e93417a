package models

import (
	"fmt"
	"strings"
	"time"
)

// JobKind is one of the two pipelines this service can start.
type JobKind string

const (
	JobKindCategorize JobKind = "CATEGORIZE"
	JobKindSegment    JobKind = "SEGMENT"
)

// ParseJobKind accepts the spellings used by the inbound API.
func ParseJobKind(s string) (JobKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "categorize", "categorization":
		return JobKindCategorize, nil
	case "segment", "segmentation":
		return JobKindSegment, nil
	default:
		return "", fmt.Errorf("unknown job kind %q", s)
	}
}

// Operation is the value passed to the batch job's "operation" argument.
func (k JobKind) Operation() string {
	if k == JobKindSegment {
		return "segment"
	}
	return "categorize"
}

// JobState is the internal lifecycle taxonomy of a job run.
type JobState string

const (
	JobStateStarted   JobState = "STARTED"
	JobStateRunning   JobState = "RUNNING"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
)

// Terminal reports whether no further transitions are expected.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// JobRequest is one inbound request to run a pipeline.
type JobRequest struct {
	ObjectRef ObjectRef
	Kind      JobKind
	Criteria  map[string]any
}

// JobRun is created by the dispatcher once the batch service accepted a start.
type JobRun struct {
	JobRunID  string
	Kind      JobKind
	JobName   string
	StartedAt time.Time
}

// JobStatus is recomputed on every status query and never stored.
type JobStatus struct {
	JobRunID         string
	State            JobState
	RawExternalState string
	Message          string
}
