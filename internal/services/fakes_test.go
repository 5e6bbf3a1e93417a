package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// memStore is an in-memory ObjectStore with call counters.
type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	headErr  error
	readErr  error
	writeErr error
	calls    int
	writes   int
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) put(ref string, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = []byte(data)
}

func (s *memStore) get(ref string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[ref]
	return data, ok
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memStore) Head(_ context.Context, ref models.ObjectRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.headErr != nil {
		return false, s.headErr
	}
	_, ok := s.objects[ref.String()]
	return ok, nil
}

func (s *memStore) Read(_ context.Context, ref models.ObjectRef, limit int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.readErr != nil {
		return nil, s.readErr
	}
	data, ok := s.objects[ref.String()]
	if !ok {
		return nil, ErrObjectNotFound
	}
	if limit > 0 && int64(len(data)) > limit {
		data = data[:limit]
	}
	return append([]byte(nil), data...), nil
}

func (s *memStore) Write(_ context.Context, ref models.ObjectRef, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.writeErr != nil {
		return s.writeErr
	}
	if _, ok := s.objects[ref.String()]; ok {
		return ErrObjectExists
	}
	s.writes++
	s.objects[ref.String()] = append([]byte(nil), data...)
	return nil
}

// fakeModel replies with reply, or err, and records prompts.
type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// fakeRunner knows a fixed set of jobs and hands out sequential run ids.
type fakeRunner struct {
	mu       sync.Mutex
	jobs     map[string]bool
	runs     map[string]RunState
	started  []map[string]string
	startErr error
	getErr   error
	next     int
	gets     int
}

func newFakeRunner(jobs ...string) *fakeRunner {
	r := &fakeRunner{jobs: make(map[string]bool), runs: make(map[string]RunState)}
	for _, j := range jobs {
		r.jobs[j] = true
	}
	return r
}

func (r *fakeRunner) StartRun(_ context.Context, jobName string, args map[string]string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return "", r.startErr
	}
	if !r.jobs[jobName] {
		return "", fmt.Errorf("workflow %s: %w", jobName, ErrJobNotFound)
	}
	r.next++
	id := fmt.Sprintf("jr_%04d", r.next)
	r.runs[jobName+"/"+id] = RunState{State: "ACTIVE"}
	copied := make(map[string]string, len(args))
	for k, v := range args {
		copied[k] = v
	}
	r.started = append(r.started, copied)
	return id, nil
}

func (r *fakeRunner) GetRun(_ context.Context, jobName, runID string) (RunState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.getErr != nil {
		return RunState{}, r.getErr
	}
	st, ok := r.runs[jobName+"/"+runID]
	if !ok {
		return RunState{}, fmt.Errorf("execution %s: %w", runID, ErrJobNotFound)
	}
	return st, nil
}

func (r *fakeRunner) setState(jobName, runID, state, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[jobName+"/"+runID] = RunState{State: state, Error: errMsg}
}

func (r *fakeRunner) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

// failingResults is a ResultStore whose writes always fail.
type failingResults struct {
	*MemoryResultStore
}

func (failingResults) Put(context.Context, models.ResultRecord) error {
	return fmt.Errorf("result store unavailable")
}

const customersCSV = `id,name,age,vip,balance
1,Ada,36,true,10.5
2,Grace,45,false,200
3,Linus,29,true,0.75
`

func csvWithRows(n int) string {
	var b strings.Builder
	b.WriteString("id,region\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,region-%d\n", i, i%3)
	}
	return b.String()
}
