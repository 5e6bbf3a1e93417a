package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// Sentinel errors object store backends return.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectExists   = errors.New("object already exists")
)

var errStagedContentDiffers = errors.New("a different script is already staged under this key")

// ObjectStore is the object store collaborator. Write must be create-only and
// return ErrObjectExists when the key is already taken.
type ObjectStore interface {
	Head(ctx context.Context, ref models.ObjectRef) (bool, error)
	Read(ctx context.Context, ref models.ObjectRef, limit int64) ([]byte, error)
	Write(ctx context.Context, ref models.ObjectRef, data []byte, contentType string) error
}

// ObjectRouter dispatches to a backend by ObjectRef.Scheme.
type ObjectRouter map[string]ObjectStore

func (r ObjectRouter) backend(ref models.ObjectRef) (ObjectStore, error) {
	store, ok := r[ref.Scheme]
	if !ok {
		return nil, fmt.Errorf("no object store configured for scheme %q", ref.Scheme)
	}
	return store, nil
}

func (r ObjectRouter) Head(ctx context.Context, ref models.ObjectRef) (bool, error) {
	store, err := r.backend(ref)
	if err != nil {
		return false, err
	}
	return store.Head(ctx, ref)
}

func (r ObjectRouter) Read(ctx context.Context, ref models.ObjectRef, limit int64) ([]byte, error) {
	store, err := r.backend(ref)
	if err != nil {
		return nil, err
	}
	return store.Read(ctx, ref, limit)
}

func (r ObjectRouter) Write(ctx context.Context, ref models.ObjectRef, data []byte, contentType string) error {
	store, err := r.backend(ref)
	if err != nil {
		return err
	}
	return store.Write(ctx, ref, data, contentType)
}

// stageTimeLayout is an ISO-8601 UTC timestamp with microseconds.
const stageTimeLayout = "2006-01-02T15:04:05.000000Z"

// ScriptKey derives the object key for a staged script.
func ScriptKey(keyPrefix string, ts time.Time) string {
	return keyPrefix + ts.UTC().Format(stageTimeLayout) + ".py"
}

// ObjectChecker confirms input objects exist and stages generated artifacts.
type ObjectChecker struct {
	store  ObjectStore
	scheme string
}

// NewObjectChecker returns a checker that stages artifacts under scheme.
func NewObjectChecker(store ObjectStore, artifactScheme string) *ObjectChecker {
	return &ObjectChecker{store: store, scheme: artifactScheme}
}

// Exists issues a metadata-only probe. An absent object is (false, nil);
// transport failures are returned as *StorageError.
func (c *ObjectChecker) Exists(ctx context.Context, ref models.ObjectRef) (bool, error) {
	ok, err := c.store.Head(ctx, ref)
	if err != nil {
		return false, &StorageError{Op: "head", Ref: ref.String(), Err: err}
	}
	return ok, nil
}

// Read returns at most limit bytes of the object; limit <= 0 reads it all.
func (c *ObjectChecker) Read(ctx context.Context, ref models.ObjectRef, limit int64) ([]byte, error) {
	data, err := c.store.Read(ctx, ref, limit)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, errValidation("the file '%s' does not exist", ref.String())
		}
		return nil, &StorageError{Op: "read", Ref: ref.String(), Err: err}
	}
	return data, nil
}

// Stage writes content under keyPrefix + ISO timestamp + ".py". Calling it
// again with the same timestamp and content finds the object already written
// and succeeds without a second write. Different content under a taken key is
// a StorageError.
func (c *ObjectChecker) Stage(ctx context.Context, content []byte, bucket, keyPrefix string, ts time.Time) (models.ObjectRef, error) {
	ref := models.ObjectRef{Scheme: c.scheme, Bucket: bucket, Key: ScriptKey(keyPrefix, ts)}
	err := c.store.Write(ctx, ref, content, "text/x-python")
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, ErrObjectExists) {
		return models.ObjectRef{}, &StorageError{Op: "write", Ref: ref.String(), Err: err}
	}

	existing, err := c.store.Read(ctx, ref, int64(len(content))+1)
	if err != nil {
		return models.ObjectRef{}, &StorageError{Op: "read", Ref: ref.String(), Err: err}
	}
	if !bytes.Equal(existing, content) {
		return models.ObjectRef{}, &StorageError{Op: "write", Ref: ref.String(), Err: errStagedContentDiffers}
	}
	slog.Info("Script already staged, skipping write.", "scriptRef", ref.String())
	return ref, nil
}
