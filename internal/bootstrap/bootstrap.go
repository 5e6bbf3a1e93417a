// Package bootstrap wires configuration and cloud clients into the services
// each function entry point needs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/datasegmentationflow/internal/config"
	"github.com/Lllllllleong/datasegmentationflow/internal/gcp"
	"github.com/Lllllllleong/datasegmentationflow/internal/s3store"
	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

// logLevel is shared by the JSON handler installed in InitLogging so the level
// can be set once configuration is loaded.
var logLevel = new(slog.LevelVar)

// InitLogging installs structured JSON logging on stdout as the default logger.
func InitLogging() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// closers collects cleanup functions for clients created during wiring.
type closers []func() error

// closeOnError closes everything collected so far when *errp is set. Deferred
// by constructors so a partial init does not leak clients.
func (c *closers) closeOnError(errp *error) {
	if *errp == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("Failed to close clients after init failure.", "error", err)
	}
}

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// Orchestrator is the wired inbound API.
type Orchestrator struct {
	*services.Orchestrator
	closers
}

// Recorder is the wired result recorder.
type Recorder struct {
	*services.ResultRecorder
	closers
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logLevel.Set(cfg.SlogLevel())
	return cfg, nil
}

// NewOrchestrator loads configuration and builds every client the inbound
// functions need.
func NewOrchestrator(ctx context.Context) (_ *Orchestrator, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	var cs closers
	defer cs.closeOnError(&err)

	router, err := objectRouter(ctx, cfg, &cs)
	if err != nil {
		return nil, err
	}
	results, err := resultStore(ctx, cfg, &cs)
	if err != nil {
		return nil, err
	}

	vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	cs = append(cs, vertexClient.Close)

	runner, err := gcp.NewWorkflowRunner(ctx, cfg.ProjectID, cfg.WorkflowLocation)
	if err != nil {
		return nil, err
	}
	cs = append(cs, runner.Close)

	categorizer, err := services.NewCategorizer(vertexClient.Categorization(), cfg.SampleRows)
	if err != nil {
		return nil, err
	}

	orch := services.NewOrchestrator(OrchestratorConfig(cfg), services.Deps{
		Validator:   services.NewPathValidator(servedSchemes(cfg.AllowedSchemes, router), cfg.BucketPattern()),
		Objects:     services.NewObjectChecker(router, cfg.ArtifactScheme),
		Categorizer: categorizer,
		Scripts:     services.NewScriptGenerator(vertexClient.Scripting(), cfg.SampleRows),
		Dispatcher:  services.NewDispatcher(runner),
		Status:      services.NewStatusNormalizer(runner),
		Results:     results,
	})
	slog.Info("Orchestrator initialized.",
		"categorizationJob", cfg.CategorizationJob,
		"segmentationJob", cfg.SegmentationJob,
		"resultStore", cfg.ResultStoreBackend,
	)
	return &Orchestrator{Orchestrator: orch, closers: cs}, nil
}

// NewRecorder builds the result recorder. It needs object storage and the
// result store only.
func NewRecorder(ctx context.Context) (_ *Recorder, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	var cs closers
	defer cs.closeOnError(&err)

	router, err := objectRouter(ctx, cfg, &cs)
	if err != nil {
		return nil, err
	}
	results, err := resultStore(ctx, cfg, &cs)
	if err != nil {
		return nil, err
	}

	rec := services.NewResultRecorder(services.RecorderConfig{
		Scheme:          cfg.ArtifactScheme,
		OutputPrefix:    cfg.OutputPrefix,
		SegmentationJob: cfg.SegmentationJob,
		PreviewRows:     cfg.PreviewRows,
	}, services.NewObjectChecker(router, cfg.ArtifactScheme), results)
	slog.Info("Result recorder initialized.", "outputPrefix", cfg.OutputPrefix)
	return &Recorder{ResultRecorder: rec, closers: cs}, nil
}

// OrchestratorConfig projects the orchestrator's settings out of cfg.
func OrchestratorConfig(cfg *config.Config) services.OrchestratorConfig {
	return services.OrchestratorConfig{
		CategorizationJob:      cfg.CategorizationJob,
		SegmentationJob:        cfg.SegmentationJob,
		CategorizationFunction: cfg.CategorizationFunction,
		ArtifactScheme:         cfg.ArtifactScheme,
		ScriptBucket:           cfg.ScriptBucket,
		ScriptKeyPrefix:        cfg.ScriptKeyPrefix,
		OutputBucket:           cfg.OutputBucket,
		OutputPrefix:           cfg.OutputPrefix,
		SampleRows:             cfg.SampleRows,
		SampleMaxBytes:         cfg.SampleMaxBytes,
	}
}

func objectRouter(ctx context.Context, cfg *config.Config, cs *closers) (services.ObjectRouter, error) {
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	*cs = append(*cs, storageClient.Close)

	router := services.ObjectRouter{"gs": gcp.NewGCSStore(storageClient)}
	if cfg.S3.Enabled() {
		router["s3"] = s3store.New(cfg.S3)
	}
	if _, ok := router[cfg.ArtifactScheme]; !ok {
		return nil, fmt.Errorf("ARTIFACT_SCHEME %q has no configured object store", cfg.ArtifactScheme)
	}
	return router, nil
}

func resultStore(ctx context.Context, cfg *config.Config, cs *closers) (services.ResultStore, error) {
	if cfg.ResultStoreBackend == "memory" {
		slog.Warn("Using the in-memory result store; results are lost when the instance stops.")
		return services.NewMemoryResultStore(), nil
	}
	client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	*cs = append(*cs, client.Close)
	return gcp.NewFirestoreResultStore(client, cfg.ResultsCollection), nil
}

// servedSchemes keeps the allowed schemes that have a backend.
func servedSchemes(allowed []string, router services.ObjectRouter) []string {
	served := make([]string, 0, len(allowed))
	for _, s := range allowed {
		if _, ok := router[s]; ok {
			served = append(served, s)
			continue
		}
		slog.Warn("Scheme is allowed but has no object store configured; rejecting it.", "scheme", s)
	}
	return slices.Clip(served)
}
