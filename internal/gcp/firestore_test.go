package gcp

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// newEmulatorStore connects to the Firestore emulator, or skips the test when
// FIRESTORE_EMULATOR_HOST is not set.
func newEmulatorStore(t *testing.T) *FirestoreResultStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := NewFirestoreClient(context.Background(), "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewFirestoreResultStore(client, fmt.Sprintf("results-%d", time.Now().UnixNano()))
}

func TestFirestoreResultStore_LatestWins(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for _, rec := range []models.ResultRecord{
		{Kind: models.JobKindSegment, JobRunID: "jr_b", JobName: "seg", CreatedAt: t1.Add(time.Minute)},
		{Kind: models.JobKindSegment, JobRunID: "jr_c", JobName: "seg", CreatedAt: t1.Add(2 * time.Minute)},
		{Kind: models.JobKindSegment, JobRunID: "jr_a", JobName: "seg", CreatedAt: t1},
		{Kind: models.JobKindCategorize, JobRunID: "jr_z", JobName: "cat", CreatedAt: t1.Add(time.Hour)},
	} {
		require.NoError(t, store.Put(ctx, rec))
	}

	got, found, err := store.Latest(ctx, models.JobKindSegment, "seg")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "jr_c", got.JobRunID)
	assert.NotEmpty(t, got.ID)

	_, found, err = store.Latest(ctx, models.JobKindSegment, "other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFirestoreResultStore_PutTwiceIsOneAppend(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	rec := models.ResultRecord{Kind: models.JobKindCategorize, JobRunID: "jr_1", JobName: "cat", CreatedAt: time.Now().UTC()}

	require.NoError(t, store.Put(ctx, rec))
	rec.SourceFileName = "changed.csv"
	require.NoError(t, store.Put(ctx, rec))

	got, found, err := store.Latest(ctx, models.JobKindCategorize, "cat")
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, got.SourceFileName)
}
