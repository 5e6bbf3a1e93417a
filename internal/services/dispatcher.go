package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// ErrJobNotFound is returned by a BatchRunner when the named job or run does
// not exist.
var ErrJobNotFound = errors.New("job not found")

// RunState is the raw state of one run as the batch service reports it.
type RunState struct {
	State string
	Error string
}

// BatchRunner is the external batch-compute service.
type BatchRunner interface {
	StartRun(ctx context.Context, jobName string, args map[string]string) (string, error)
	GetRun(ctx context.Context, jobName, runID string) (RunState, error)
}

// Job argument names understood by both pipelines.
const (
	ArgObjectRef    = "objectRef"
	ArgOperation    = "operation"
	ArgFunctionName = "functionName"
	ArgScriptRef    = "scriptRef"
	ArgCriteria     = "criteria"
	ArgOutputRef    = "outputRef"
)

// Dispatcher starts batch jobs. Every call to Start issues exactly one start
// request; there is no deduplication or retry.
type Dispatcher struct {
	runner BatchRunner
	now    func() time.Time
}

func NewDispatcher(runner BatchRunner) *Dispatcher {
	return &Dispatcher{runner: runner, now: time.Now}
}

// Start launches jobName with args. Any failure, including an empty or
// unknown job name, is a *DispatchError.
func (d *Dispatcher) Start(ctx context.Context, kind models.JobKind, jobName string, args map[string]string) (models.JobRun, error) {
	if jobName == "" {
		return models.JobRun{}, &DispatchError{JobName: jobName, Err: errors.New("job name is empty")}
	}

	logCtx := slog.With("jobName", jobName, "jobKind", kind)
	logCtx.Info("Starting job run.", "objectRef", args[ArgObjectRef])

	runID, err := d.runner.StartRun(ctx, jobName, args)
	if err != nil {
		logCtx.Error("Job start rejected.", "error", err)
		return models.JobRun{}, &DispatchError{JobName: jobName, Err: err}
	}
	if runID == "" {
		return models.JobRun{}, &DispatchError{JobName: jobName, Err: errors.New("batch service returned no run id")}
	}

	logCtx.Info("Job run started.", "jobRunId", runID)
	return models.JobRun{
		JobRunID:  runID,
		Kind:      kind,
		JobName:   jobName,
		StartedAt: d.now().UTC(),
	}, nil
}
