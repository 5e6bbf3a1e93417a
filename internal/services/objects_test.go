package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

func TestObjectChecker_Exists(t *testing.T) {
	store := newMemStore()
	store.put("s3://data-raw/customers.csv", customersCSV)
	checker := NewObjectChecker(store, "gs")
	ctx := context.Background()

	ok, err := checker.Exists(ctx, models.ObjectRef{Scheme: "s3", Bucket: "data-raw", Key: "customers.csv"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.Exists(ctx, models.ObjectRef{Scheme: "s3", Bucket: "data-raw", Key: "missing.csv"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectChecker_ExistsTransportFailure(t *testing.T) {
	store := newMemStore()
	store.headErr = errors.New("connection reset")
	checker := NewObjectChecker(store, "gs")

	_, err := checker.Exists(context.Background(), models.ObjectRef{Scheme: "s3", Bucket: "data-raw", Key: "a.csv"})
	require.Error(t, err)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "head", storageErr.Op)
	assert.Equal(t, ErrorTypeServer, ErrorType(err))
}

func TestObjectChecker_StageThenRead(t *testing.T) {
	store := newMemStore()
	checker := NewObjectChecker(store, "gs")
	ctx := context.Background()
	ts := time.Date(2024, 3, 5, 10, 20, 30, 123456000, time.UTC)

	ref, err := checker.Stage(ctx, []byte("print('hi')\n"), "data-temp", "scripts/segmentation-script-", ts)
	require.NoError(t, err)
	assert.Equal(t, "gs", ref.Scheme)
	assert.Equal(t, "data-temp", ref.Bucket)
	assert.Equal(t, "scripts/segmentation-script-2024-03-05T10:20:30.123456Z.py", ref.Key)

	data, err := checker.Read(ctx, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
}

func TestObjectChecker_StageIsIdempotent(t *testing.T) {
	store := newMemStore()
	checker := NewObjectChecker(store, "gs")
	ctx := context.Background()
	ts := time.Now()

	first, err := checker.Stage(ctx, []byte("x = 1"), "data-temp", "p-", ts)
	require.NoError(t, err)
	second, err := checker.Stage(ctx, []byte("x = 1"), "data-temp", "p-", ts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.writes)
}

func TestObjectChecker_StageWriteFailure(t *testing.T) {
	store := newMemStore()
	store.writeErr = errors.New("quota exceeded")
	checker := NewObjectChecker(store, "gs")

	_, err := checker.Stage(context.Background(), []byte("x"), "data-temp", "p-", time.Now())
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "write", storageErr.Op)
}

func TestObjectChecker_ReadMissingIsValidation(t *testing.T) {
	checker := NewObjectChecker(newMemStore(), "gs")

	_, err := checker.Read(context.Background(), models.ObjectRef{Scheme: "gs", Bucket: "data-raw", Key: "nope.csv"}, 10)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestObjectRouter(t *testing.T) {
	gs := newMemStore()
	s3 := newMemStore()
	s3.put("s3://data-raw/a.csv", "a")
	router := ObjectRouter{"gs": gs, "s3": s3}
	ctx := context.Background()

	ok, err := router.Head(ctx, models.ObjectRef{Scheme: "s3", Bucket: "data-raw", Key: "a.csv"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, gs.callCount())

	_, err = router.Head(ctx, models.ObjectRef{Scheme: "az", Bucket: "data-raw", Key: "a.csv"})
	assert.Error(t, err)
}

func TestObjectChecker_StageRejectsDifferentContentUnderTakenKey(t *testing.T) {
	store := newMemStore()
	checker := NewObjectChecker(store, "gs")
	ctx := context.Background()
	ts := time.Date(2024, 6, 1, 12, 30, 45, 123456000, time.UTC)

	ref, err := checker.Stage(ctx, []byte("script A"), "data-temp", "p-", ts)
	require.NoError(t, err)

	_, err = checker.Stage(ctx, []byte("script B"), "data-temp", "p-", ts)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, ref.String(), storageErr.Ref)

	data, err := checker.Read(ctx, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, "script A", string(data))
	assert.Equal(t, 1, store.writes)
}
