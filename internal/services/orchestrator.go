package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// OrchestratorConfig names the jobs and artifact locations the orchestrator
// uses. All values come from config.Config.
type OrchestratorConfig struct {
	CategorizationJob      string
	SegmentationJob        string
	CategorizationFunction string

	ArtifactScheme  string
	ScriptBucket    string
	ScriptKeyPrefix string
	OutputBucket    string
	OutputPrefix    string

	SampleRows     int
	SampleMaxBytes int64
}

// Orchestrator runs the inbound operations. Each step of a request happens in
// a fixed order and a failed step stops the request.
type Orchestrator struct {
	config      OrchestratorConfig
	validator   *PathValidator
	objects     *ObjectChecker
	categorizer *Categorizer
	scripts     *ScriptGenerator
	dispatcher  *Dispatcher
	status      *StatusNormalizer
	results     ResultStore
	now         func() time.Time
}

// Deps bundles the collaborators of an Orchestrator.
type Deps struct {
	Validator   *PathValidator
	Objects     *ObjectChecker
	Categorizer *Categorizer
	Scripts     *ScriptGenerator
	Dispatcher  *Dispatcher
	Status      *StatusNormalizer
	Results     ResultStore
}

func NewOrchestrator(cfg OrchestratorConfig, deps Deps) *Orchestrator {
	return &Orchestrator{
		config:      cfg,
		validator:   deps.Validator,
		objects:     deps.Objects,
		categorizer: deps.Categorizer,
		scripts:     deps.Scripts,
		dispatcher:  deps.Dispatcher,
		status:      deps.Status,
		results:     deps.Results,
		now:         time.Now,
	}
}

// outputTimeLayout names a segmentation run's output directory.
const outputTimeLayout = "20060102T150405.000000Z"

// prepared is the state shared by both pipelines once the input is sampled
// and categorized.
type prepared struct {
	ref            models.ObjectRef
	sample         Sample
	categorization models.CategorizationResult
}

func (o *Orchestrator) prepare(ctx context.Context, rawPath string) (*prepared, error) {
	ref, err := o.validator.Parse(rawPath)
	if err != nil {
		return nil, err
	}

	exists, err := o.objects.Exists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errValidation("the file '%s' does not exist", ref.String())
	}

	data, err := o.objects.Read(ctx, ref, o.config.SampleMaxBytes)
	if err != nil {
		return nil, err
	}
	truncated := o.config.SampleMaxBytes > 0 && int64(len(data)) >= o.config.SampleMaxBytes
	sample, err := ReadSample(data, ref.FileName(), o.config.SampleRows, truncated)
	if err != nil {
		return nil, err
	}

	return &prepared{
		ref:            ref,
		sample:         sample,
		categorization: o.categorizer.Categorize(ctx, sample, ref.FileName()),
	}, nil
}

// Categorize starts the categorization job for the object at rawPath.
func (o *Orchestrator) Categorize(ctx context.Context, rawPath string) (*models.CategorizeResponse, error) {
	startedAt := o.now().UTC()
	logCtx := slog.With("operation", "categorize", "objectPath", rawPath)

	p, err := o.prepare(ctx, rawPath)
	if err != nil {
		logCtx.Warn("Categorization request rejected.", "error", err)
		return nil, err
	}

	args := map[string]string{
		ArgObjectRef:    p.ref.String(),
		ArgOperation:    models.JobKindCategorize.Operation(),
		ArgFunctionName: o.config.CategorizationFunction,
	}
	run, err := o.dispatcher.Start(ctx, models.JobKindCategorize, o.config.CategorizationJob, args)
	if err != nil {
		return nil, err
	}

	resp := &models.CategorizeResponse{
		Message:       "Categorization job started successfully",
		JobRunID:      run.JobRunID,
		Status:        models.JobStateStarted,
		Categories:    p.categorization.Categories,
		Columns:       p.sample.Schema.Names(),
		SegmentedRows: p.sample.Rows,
		Fallback:      p.categorization.Fallback,
	}

	rec := models.ResultRecord{
		Kind:           models.JobKindCategorize,
		JobRunID:       run.JobRunID,
		JobName:        run.JobName,
		SourceFileName: p.categorization.SourceFileName,
		CreatedAt:      startedAt,
		Payload: models.ResultPayload{
			Categories:    p.categorization.Categories,
			SegmentedRows: p.sample.Rows,
			Columns:       p.sample.Schema.Names(),
		},
	}
	if err := o.results.Put(ctx, rec); err != nil {
		logCtx.Error("Failed to record categorization result.", "jobRunId", run.JobRunID, "error", err)
		resp.Warning = "job started but its result record could not be saved"
	}

	logCtx.Info("Categorization job started.", "jobRunId", run.JobRunID, "fallback", p.categorization.Fallback)
	return resp, nil
}

// Segment generates and stages a segmentation script for the object at
// rawPath, then starts the segmentation job. When criteria is empty it is
// derived from the suggested categories.
func (o *Orchestrator) Segment(ctx context.Context, rawPath string, criteria map[string]any) (*models.SegmentationResponse, error) {
	startedAt := o.now().UTC()
	logCtx := slog.With("operation", "segment", "objectPath", rawPath)

	p, err := o.prepare(ctx, rawPath)
	if err != nil {
		logCtx.Warn("Segmentation request rejected.", "error", err)
		return nil, err
	}
	if len(criteria) == 0 {
		criteria = criteriaFromCategories(p.categorization.Categories)
	}
	criteriaJSON, err := renderJSON(criteria)
	if err != nil {
		return nil, errValidation("criteria cannot be encoded as JSON: %v", err)
	}

	script := o.scripts.Generate(ctx, p.sample.Schema, p.categorization.Categories, criteria, p.sample)
	scriptRef, err := o.objects.Stage(ctx, []byte(script.Content), o.config.ScriptBucket, o.config.ScriptKeyPrefix, startedAt)
	if err != nil {
		logCtx.Error("Failed to stage segmentation script.", "error", err)
		return nil, err
	}
	script.StorageRef = scriptRef

	outputRef := models.ObjectRef{
		Scheme: o.config.ArtifactScheme,
		Bucket: o.config.OutputBucket,
		Key:    RunOutputKey(o.config.OutputPrefix, startedAt),
	}

	args := map[string]string{
		ArgObjectRef: p.ref.String(),
		ArgOperation: models.JobKindSegment.Operation(),
		ArgScriptRef: scriptRef.String(),
		ArgCriteria:  criteriaJSON,
		ArgOutputRef: outputRef.String(),
	}
	run, err := o.dispatcher.Start(ctx, models.JobKindSegment, o.config.SegmentationJob, args)
	if err != nil {
		return nil, err
	}

	resp := &models.SegmentationResponse{
		Message:    "Segmentation job started successfully",
		JobRunID:   run.JobRunID,
		Status:     models.JobStateStarted,
		Categories: p.categorization.Categories,
		ScriptRef:  scriptRef.String(),
		OutputRef:  outputRef.String(),
		Criteria:   criteria,
	}

	rec := models.ResultRecord{
		Kind:           models.JobKindSegment,
		JobRunID:       run.JobRunID,
		JobName:        run.JobName,
		SourceFileName: p.categorization.SourceFileName,
		CreatedAt:      startedAt,
		Payload: models.ResultPayload{
			Categories:         p.categorization.Categories,
			Columns:            p.sample.Schema.Names(),
			Criteria:           criteria,
			GeneratedScriptRef: &scriptRef,
			OutputRef:          &outputRef,
		},
	}
	if err := o.results.Put(ctx, rec); err != nil {
		logCtx.Error("Failed to record segmentation request.", "jobRunId", run.JobRunID, "error", err)
		resp.Warning = "job started but its result record could not be saved"
	}

	logCtx.Info("Segmentation job started.",
		"jobRunId", run.JobRunID,
		"scriptRef", scriptRef.String(),
		"templateScript", script.Fallback,
	)
	return resp, nil
}

// JobStatus reports the normalized state of a run and, once it succeeded,
// the latest result recorded for its job kind.
func (o *Orchestrator) JobStatus(ctx context.Context, jobRunID, jobKind string) (*models.JobStatusResponse, error) {
	kind := models.JobKindCategorize
	if jobKind != "" {
		var err error
		if kind, err = models.ParseJobKind(jobKind); err != nil {
			return nil, errValidation("%v", err)
		}
	}
	jobName := o.jobName(kind)

	status, err := o.status.Status(ctx, jobRunID, jobName)
	if err != nil {
		return nil, err
	}

	resp := &models.JobStatusResponse{
		JobRunID:  status.JobRunID,
		Status:    status.State,
		RawStatus: status.RawExternalState,
		Message:   status.Message,
	}
	if status.State == models.JobStateSucceeded {
		rec, found, err := o.results.Latest(ctx, kind, jobName)
		if err != nil {
			return nil, fmt.Errorf("read latest %s result: %w", kind, err)
		}
		if found {
			resp.Results = &rec
		}
	}
	return resp, nil
}

func (o *Orchestrator) jobName(kind models.JobKind) string {
	if kind == models.JobKindSegment {
		return o.config.SegmentationJob
	}
	return o.config.CategorizationJob
}

func criteriaFromCategories(categories []models.Category) map[string]any {
	criteria := make(map[string]any, len(categories))
	for _, c := range categories {
		criteria[c.Name] = map[string]any{
			"columns": c.MatchedColumns,
			"filters": []any{},
		}
	}
	return criteria
}
