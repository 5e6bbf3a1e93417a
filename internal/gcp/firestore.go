package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreResultStore keeps result records as documents of one collection.
// Documents are only ever created, never updated.
type FirestoreResultStore struct {
	client     *firestore.Client
	collection string
}

var _ services.ResultStore = (*FirestoreResultStore)(nil)

func NewFirestoreResultStore(client *firestore.Client, collection string) *FirestoreResultStore {
	return &FirestoreResultStore{client: client, collection: collection}
}

// Put creates the record's document. A document with the same id already
// exists only when the same record was appended before, so that is success.
func (s *FirestoreResultStore) Put(ctx context.Context, rec models.ResultRecord) error {
	id := rec.ID
	if id == "" {
		id = services.RecordID(rec)
	}
	_, err := s.client.Collection(s.collection).Doc(id).Create(ctx, rec)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create result document %s: %w", id, err)
	}
	return nil
}

// Latest returns the newest record of kind, optionally restricted to jobName.
// The query needs a composite index on (jobKind, jobName, createdAt desc,
// jobRunId desc).
func (s *FirestoreResultStore) Latest(ctx context.Context, kind models.JobKind, jobName string) (models.ResultRecord, bool, error) {
	q := s.client.Collection(s.collection).Where("jobKind", "==", string(kind))
	if jobName != "" {
		q = q.Where("jobName", "==", jobName)
	}
	docs, err := q.OrderBy("createdAt", firestore.Desc).
		OrderBy("jobRunId", firestore.Desc).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return models.ResultRecord{}, false, fmt.Errorf("failed to query latest %s result: %w", kind, err)
	}
	if len(docs) == 0 {
		return models.ResultRecord{}, false, nil
	}

	var rec models.ResultRecord
	if err := docs[0].DataTo(&rec); err != nil {
		return models.ResultRecord{}, false, fmt.Errorf("failed to decode result document %s: %w", docs[0].Ref.ID, err)
	}
	rec.ID = docs[0].Ref.ID
	return rec, true, nil
}
