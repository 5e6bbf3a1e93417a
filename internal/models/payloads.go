package models

// These structs define the JSON payloads exchanged with API callers.

// CategorizeRequest is the body of a categorize call.
type CategorizeRequest struct {
	S3FilePath string `json:"s3FilePath"`
}

// CategorizeResponse is returned once the categorization job has started.
type CategorizeResponse struct {
	Message       string              `json:"message"`
	JobRunID      string              `json:"jobRunId"`
	Status        JobState            `json:"status"`
	Categories    []Category          `json:"categories"`
	Columns       []string            `json:"columns"`
	SegmentedRows []map[string]string `json:"segmentedRows"`
	Fallback      bool                `json:"fallback"`
	Warning       string              `json:"warning,omitempty"`
}

// SegmentationRequest is the body of a segmentation call.
type SegmentationRequest struct {
	S3FilePath string         `json:"s3FilePath"`
	Criteria   map[string]any `json:"criteria"`
}

// SegmentationResponse is returned once the segmentation job has started.
type SegmentationResponse struct {
	Message    string         `json:"message"`
	JobRunID   string         `json:"jobRunId"`
	Status     JobState       `json:"status"`
	Categories []Category     `json:"categories"`
	ScriptRef  string         `json:"scriptRef"`
	OutputRef  string         `json:"outputRef"`
	Criteria   map[string]any `json:"segmentationCriteria"`
	Warning    string         `json:"warning,omitempty"`
}

// JobStatusResponse reports the normalized state of a job run.
type JobStatusResponse struct {
	JobRunID  string        `json:"jobRunId"`
	Status    JobState      `json:"status"`
	RawStatus string        `json:"rawStatus"`
	Message   string        `json:"message"`
	Results   *ResultRecord `json:"results,omitempty"`
}

// ErrorResponse is the structured failure payload; Type is one of
// "validation", "glue" or "server".
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Type    string `json:"type"`
}
