package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/datasegmentationflow/internal/bootstrap"
	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

var (
	recorderInstance *bootstrap.Recorder
	once             sync.Once
	initErr          error
)

func init() {
	bootstrap.InitLogging()

	// Triggered by object finalization in the segmentation output bucket.
	functions.CloudEvent("RecordJobOutput", recordJobOutput)
}

// main is required by the Go Functions Framework.
func main() {}

// recordJobOutput is the Cloud Function entry point.
func recordJobOutput(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		recorderInstance, initErr = bootstrap.NewRecorder(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with context inside Process; returning one marks the
	// invocation as failed so the event is redelivered.
	return recorderInstance.Process(ctx, gcsEvent)
}
