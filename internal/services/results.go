package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// ResultStore is an append-only store of ResultRecords. Records are never
// updated; Latest picks the newest by CreatedAt, ties broken by the greater
// JobRunID.
type ResultStore interface {
	Put(ctx context.Context, rec models.ResultRecord) error
	Latest(ctx context.Context, kind models.JobKind, jobName string) (models.ResultRecord, bool, error)
}

// RecordID derives the storage key of rec. A record without a run id gets a
// random run component.
func RecordID(rec models.ResultRecord) string {
	run := rec.JobRunID
	if run == "" {
		run = uuid.NewString()
	}
	return fmt.Sprintf("%s_%s_%d", rec.Kind, run, rec.CreatedAt.UnixNano())
}

// Newer reports whether a should win over b in a latest-wins read.
func Newer(a, b models.ResultRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.JobRunID > b.JobRunID
}

// MemoryResultStore keeps records in process memory. Used for local runs and
// tests.
type MemoryResultStore struct {
	mu      sync.Mutex
	records map[string]models.ResultRecord
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{records: make(map[string]models.ResultRecord)}
}

func (s *MemoryResultStore) Put(_ context.Context, rec models.ResultRecord) error {
	if rec.ID == "" {
		rec.ID = RecordID(rec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return nil
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryResultStore) Latest(_ context.Context, kind models.JobKind, jobName string) (models.ResultRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best models.ResultRecord
	found := false
	for _, rec := range s.records {
		if rec.Kind != kind || (jobName != "" && rec.JobName != jobName) {
			continue
		}
		if !found || Newer(rec, best) {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

// Len returns the number of stored records.
func (s *MemoryResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
