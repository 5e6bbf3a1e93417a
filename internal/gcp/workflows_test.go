package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

type fakeExecutions struct {
	created   []*executionspb.CreateExecutionRequest
	got       []*executionspb.GetExecutionRequest
	execution *executionspb.Execution
	err       error
}

func (f *fakeExecutions) CreateExecution(_ context.Context, req *executionspb.CreateExecutionRequest, _ ...gax.CallOption) (*executionspb.Execution, error) {
	f.created = append(f.created, req)
	if f.err != nil {
		return nil, f.err
	}
	return &executionspb.Execution{Name: req.GetParent() + "/executions/exec-123"}, nil
}

func (f *fakeExecutions) GetExecution(_ context.Context, req *executionspb.GetExecutionRequest, _ ...gax.CallOption) (*executionspb.Execution, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.execution, nil
}

func TestWorkflowRunner_StartRun(t *testing.T) {
	api := &fakeExecutions{}
	r := &WorkflowRunner{api: api, projectID: "proj", location: "us-central1"}

	id, err := r.StartRun(context.Background(), "data-segmentation-job", map[string]string{"objectRef": "s3://data-raw/a.csv"})
	require.NoError(t, err)
	assert.Equal(t, "exec-123", id)

	require.Len(t, api.created, 1)
	assert.Equal(t, "projects/proj/locations/us-central1/workflows/data-segmentation-job", api.created[0].GetParent())
	var arg map[string]string
	require.NoError(t, json.Unmarshal([]byte(api.created[0].GetExecution().GetArgument()), &arg))
	assert.Equal(t, "s3://data-raw/a.csv", arg["objectRef"])
}

func TestWorkflowRunner_GetRun(t *testing.T) {
	api := &fakeExecutions{execution: &executionspb.Execution{
		State: executionspb.Execution_FAILED,
		Error: &executionspb.Execution_Error{Payload: "step failed"},
	}}
	r := &WorkflowRunner{api: api, projectID: "proj", location: "eu-west1"}

	st, err := r.GetRun(context.Background(), "job", "exec-9")
	require.NoError(t, err)
	assert.Equal(t, "FAILED", st.State)
	assert.Equal(t, "step failed", st.Error)
	assert.Equal(t, "projects/proj/locations/eu-west1/workflows/job/executions/exec-9", api.got[0].GetName())
	assert.Equal(t, "FAILED", string(services.NormalizeState(st.State)))
}

func TestWorkflowRunner_NotFoundMapping(t *testing.T) {
	r := &WorkflowRunner{api: &fakeExecutions{err: status.Error(codes.NotFound, "workflow not found")}, projectID: "p", location: "l"}

	_, err := r.StartRun(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, services.ErrJobNotFound)
	_, err = r.GetRun(context.Background(), "job", "nope")
	assert.ErrorIs(t, err, services.ErrJobNotFound)

	r.api = &fakeExecutions{err: status.Error(codes.PermissionDenied, "denied")}
	_, err = r.StartRun(context.Background(), "job", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, services.ErrJobNotFound))
}
