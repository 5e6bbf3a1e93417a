package models

import "time"

// Column is a single entry of an inferred dataset schema.
type Column struct {
	Name string `firestore:"name" json:"name"`
	Type string `firestore:"type" json:"type"`
}

// Schema is the ordered list of columns found in a sampled object.
type Schema []Column

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, c := range s {
		names = append(names, c.Name)
	}
	return names
}

// Category is one suggested segment of a dataset.
type Category struct {
	Name           string   `firestore:"name" json:"name"`
	MatchedColumns []string `firestore:"matchedColumns" json:"matchedColumns"`
	Confidence     float64  `firestore:"confidence" json:"confidence"`
}

// CategorizationResult always holds at least one category.
type CategorizationResult struct {
	Categories     []Category `json:"categories"`
	SourceFileName string     `json:"sourceFileName"`
	Reasoning      string     `json:"reasoning,omitempty"`
	Fallback       bool       `json:"fallback"`
}

// GeneratedScript is the transformation code handed to the segmentation job.
type GeneratedScript struct {
	Content    string
	StorageRef ObjectRef
	Fallback   bool
}

// ResultPayload carries the output of one pipeline step.
type ResultPayload struct {
	Categories         []Category          `firestore:"categories,omitempty" json:"categories,omitempty"`
	SegmentedRows      []map[string]string `firestore:"segmentedRows,omitempty" json:"segmentedRows"`
	Columns            []string            `firestore:"columns,omitempty" json:"columns"`
	Criteria           map[string]any      `firestore:"criteria,omitempty" json:"criteria,omitempty"`
	GeneratedScriptRef *ObjectRef          `firestore:"generatedScriptRef,omitempty" json:"generatedScriptRef,omitempty"`
	OutputRef          *ObjectRef          `firestore:"outputRef,omitempty" json:"outputRef,omitempty"`
	TotalRecords       int64               `firestore:"totalRecords,omitempty" json:"totalRecords,omitempty"`
	SegmentCounts      map[string]int64    `firestore:"segmentCounts,omitempty" json:"segmentCounts,omitempty"`
}

// ResultRecord is the append-only record kept by the result store.
// Records are never updated; the latest one per job kind wins on read.
type ResultRecord struct {
	ID             string        `firestore:"-" json:"id"`
	Kind           JobKind       `firestore:"jobKind" json:"jobKind"`
	JobRunID       string        `firestore:"jobRunId" json:"jobRunId"`
	JobName        string        `firestore:"jobName,omitempty" json:"jobName,omitempty"`
	SourceFileName string        `firestore:"sourceFileName,omitempty" json:"sourceFileName,omitempty"`
	CreatedAt      time.Time     `firestore:"createdAt" json:"createdAt"`
	Payload        ResultPayload `firestore:"payload" json:"payload"`
}
