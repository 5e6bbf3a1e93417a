package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/datasegmentationflow/internal/bootstrap"
	"github.com/Lllllllleong/datasegmentationflow/internal/handlers"
)

var (
	handlerInstance *handlers.JobHandlers
	once            sync.Once
	initErr         error
)

func init() {
	bootstrap.InitLogging()

	// "HandleSegmentation" is the entry point name configured in GCP.
	functions.HTTP("HandleSegmentation", handleSegmentation)
}

// main is required by the Go Functions Framework.
func main() {}

// handleSegmentation stages a segmentation script and starts the segmentation job.
func handleSegmentation(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		orch, err := bootstrap.NewOrchestrator(context.Background())
		if err != nil {
			initErr = err
			return
		}
		handlerInstance = &handlers.JobHandlers{Svc: orch}
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	handlerInstance.Segment(w, r)
}
