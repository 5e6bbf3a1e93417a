package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

// executionsAPI is the subset of *executions.Client the runner uses.
type executionsAPI interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
	GetExecution(ctx context.Context, req *executionspb.GetExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
}

var _ executionsAPI = (*executions.Client)(nil)

// WorkflowRunner runs batch jobs as Cloud Workflows executions. A job name is
// a workflow id; a run id is the execution id.
type WorkflowRunner struct {
	api       executionsAPI
	projectID string
	location  string
}

var _ services.BatchRunner = (*WorkflowRunner)(nil)

// NewWorkflowRunner creates an executions client for projectID/location.
func NewWorkflowRunner(ctx context.Context, projectID, location string) (*WorkflowRunner, error) {
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &WorkflowRunner{api: client, projectID: projectID, location: location}, nil
}

func (r *WorkflowRunner) workflow(jobName string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", r.projectID, r.location, jobName)
}

// StartRun creates one execution with args as its JSON argument.
func (r *WorkflowRunner) StartRun(ctx context.Context, jobName string, args map[string]string) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow argument: %w", err)
	}
	exec, err := r.api.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent: r.workflow(jobName),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	})
	if err != nil {
		return "", mapNotFound(err, "workflow "+jobName)
	}
	return path.Base(exec.GetName()), nil
}

// GetRun reads the execution's current state.
func (r *WorkflowRunner) GetRun(ctx context.Context, jobName, runID string) (services.RunState, error) {
	exec, err := r.api.GetExecution(ctx, &executionspb.GetExecutionRequest{
		Name: r.workflow(jobName) + "/executions/" + runID,
	})
	if err != nil {
		return services.RunState{}, mapNotFound(err, "execution "+runID)
	}
	return services.RunState{
		State: exec.GetState().String(),
		Error: exec.GetError().GetPayload(),
	}, nil
}

// Close releases the underlying client when the runner owns one.
func (r *WorkflowRunner) Close() error {
	if c, ok := r.api.(*executions.Client); ok {
		return c.Close()
	}
	return nil
}

func mapNotFound(err error, what string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", what, services.ErrJobNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
