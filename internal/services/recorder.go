package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// GCSEvent is the payload of an object-finalized CloudEvent.
type GCSEvent struct {
	Bucket  string    `json:"bucket"`
	Name    string    `json:"name"`
	Updated time.Time `json:"updated"`
}

// SegmentColumn is added to every preview row to name the segment it came from.
const SegmentColumn = "segment"

const (
	summaryObject   = "summary.json"
	previewDir      = "previews"
	previewMaxBytes = 256 << 10
	previewWorkers  = 4
	summaryMaxBytes = 1 << 20
)

// JobSummary is the summary a segmentation run writes next to its output.
type JobSummary struct {
	JobRunID     string           `json:"jobRunId"`
	JobName      string           `json:"jobName"`
	Columns      []string         `json:"columns"`
	Segments     map[string]int64 `json:"segments"`
	TotalRecords int64            `json:"totalRecords"`
}

// RecorderConfig locates segmentation output.
type RecorderConfig struct {
	Scheme          string
	OutputPrefix    string
	SegmentationJob string
	PreviewRows     int
}

// ResultRecorder turns a finished segmentation run's output into a SEGMENT
// result record.
type ResultRecorder struct {
	objects *ObjectChecker
	results ResultStore
	config  RecorderConfig
	now     func() time.Time
}

func NewResultRecorder(cfg RecorderConfig, objects *ObjectChecker, results ResultStore) *ResultRecorder {
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 20
	}
	return &ResultRecorder{objects: objects, results: results, config: cfg, now: time.Now}
}

// RunOutputKey is the key of the output directory of a segmentation run
// started at ts. A trailing slash on prefix is ignored.
func RunOutputKey(prefix string, ts time.Time) string {
	return strings.TrimSuffix(prefix, "/") + "/" + ts.UTC().Format(outputTimeLayout)
}

// runDir returns the output directory of the run that wrote object name, if
// name is a run summary.
func (r *ResultRecorder) runDir(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, strings.TrimSuffix(r.config.OutputPrefix, "/")+"/")
	if !ok {
		return "", false
	}
	run, file, ok := strings.Cut(rest, "/")
	if !ok || run == "" || file != summaryObject {
		return "", false
	}
	return strings.TrimSuffix(name, "/"+summaryObject), true
}

// Process records the run whose summary object e names. Other objects are
// ignored.
func (r *ResultRecorder) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	dir, ok := r.runDir(e.Name)
	if !ok {
		logCtx.Debug("Object is not a run summary. Skipping.")
		return nil
	}

	summaryRef := models.ObjectRef{Scheme: r.config.Scheme, Bucket: e.Bucket, Key: e.Name}
	data, err := r.objects.Read(ctx, summaryRef, summaryMaxBytes)
	if err != nil {
		logCtx.Error("Failed to read run summary", "error", err)
		return err
	}
	var summary JobSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		// A malformed summary will never parse; retrying the event does not help.
		logCtx.Error("Run summary is not valid JSON. Skipping.", "error", err)
		return nil
	}
	if summary.JobName == "" {
		summary.JobName = r.config.SegmentationJob
	}
	if summary.JobRunID == "" {
		// Keeps the record id stable across redeliveries of the same event.
		summary.JobRunID = path.Base(dir)
	}
	// The object's update time is the same on every redelivery, so a
	// redelivered event appends nothing new.
	createdAt := e.Updated
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	logCtx = logCtx.With("jobRunId", summary.JobRunID, "jobName", summary.JobName)

	rows, err := r.previews(ctx, logCtx, e.Bucket, dir, summary.Segments)
	if err != nil {
		logCtx.Error("Failed to load segment previews", "error", err)
		return err
	}

	outputRef := models.ObjectRef{Scheme: r.config.Scheme, Bucket: e.Bucket, Key: dir}
	rec := models.ResultRecord{
		Kind:      models.JobKindSegment,
		JobRunID:  summary.JobRunID,
		JobName:   summary.JobName,
		CreatedAt: createdAt.UTC(),
		Payload: models.ResultPayload{
			SegmentedRows: rows,
			Columns:       summary.Columns,
			OutputRef:     &outputRef,
			TotalRecords:  summary.TotalRecords,
			SegmentCounts: summary.Segments,
		},
	}
	if err := r.results.Put(ctx, rec); err != nil {
		logCtx.Error("Failed to record segmentation result", "error", err)
		return fmt.Errorf("record segmentation result: %w", err)
	}

	logCtx.Info("Segmentation result recorded.", "segments", len(summary.Segments), "previewRows", len(rows))
	return nil
}

// previews loads the first rows of every segment concurrently. A segment
// without a preview file contributes no rows.
func (r *ResultRecorder) previews(ctx context.Context, logCtx *slog.Logger, bucket, dir string, segments map[string]int64) ([]map[string]string, error) {
	names := make([]string, 0, len(segments))
	for name := range segments {
		names = append(names, name)
	}
	slices.Sort(names)

	perSegment := make([][]map[string]string, len(names))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(previewWorkers)

	for i, name := range names {
		eg.Go(func() error {
			ref := models.ObjectRef{Scheme: r.config.Scheme, Bucket: bucket, Key: dir + "/" + previewDir + "/" + name + ".csv"}
			data, err := r.objects.Read(gctx, ref, previewMaxBytes)
			if err != nil {
				var validation *ValidationError
				if errors.As(err, &validation) {
					logCtx.Warn("Segment preview missing.", "segment", name)
					return nil
				}
				return fmt.Errorf("segment %s: %w", name, err)
			}
			sample, err := ReadSample(data, ref.FileName(), r.config.PreviewRows, len(data) >= previewMaxBytes)
			if err != nil {
				logCtx.Warn("Segment preview unreadable.", "segment", name, "error", err)
				return nil
			}
			for _, row := range sample.Rows {
				row[SegmentColumn] = name
			}
			perSegment[i] = sample.Rows
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var rows []map[string]string
	for _, segRows := range perSegment {
		rows = append(rows, segRows...)
	}
	return rows, nil
}
