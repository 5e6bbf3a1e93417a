package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

// GCSStore is the Cloud Storage object store backend.
type GCSStore struct {
	client *storage.Client
}

var _ services.ObjectStore = (*GCSStore)(nil)

// NewGCSStore wraps an existing storage client.
func NewGCSStore(client *storage.Client) *GCSStore {
	return &GCSStore{client: client}
}

func (s *GCSStore) object(ref models.ObjectRef) *storage.ObjectHandle {
	return s.client.Bucket(ref.Bucket).Object(ref.Key)
}

// Head reports whether the object exists, using a metadata-only request.
func (s *GCSStore) Head(ctx context.Context, ref models.ObjectRef) (bool, error) {
	_, err := s.object(ref).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read attributes of gs://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return true, nil
}

// Read returns the first limit bytes of the object, or all of it when
// limit <= 0.
func (s *GCSStore) Read(ctx context.Context, ref models.ObjectRef, limit int64) ([]byte, error) {
	length := int64(-1)
	if limit > 0 {
		length = limit
	}
	reader, err := s.object(ref).NewRangeReader(ctx, 0, length)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, services.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return data, nil
}

// Write creates the object only if it does not already exist. An existing
// object is reported as services.ErrObjectExists.
func (s *GCSStore) Write(ctx context.Context, ref models.ObjectRef, data []byte, contentType string) error {
	writer := s.object(ref).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return services.ErrObjectExists
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return services.ErrObjectExists
		}
		slog.Error("Failed to finalize GCS write.", "bucket", ref.Bucket, "object", ref.Key, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
