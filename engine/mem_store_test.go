package engine_test

import (
	"sort"
	"sync"

	"github.com/franksops/s3xfer/store"
)

// memStore is a concurrency-safe store.Store for pool tests.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]store.JobRecord
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]store.JobRecord)}
}

func (m *memStore) SaveJob(job *store.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memStore) GetJob(id string) (*store.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return &job, nil
}

func (m *memStore) ListJobs() ([]*store.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.JobRecord, 0, len(m.jobs))
	for _, j := range m.jobs {
		j := j
		out = append(out, &j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *memStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = make(map[string]store.JobRecord)
	return nil
}

func (m *memStore) Close() error { return nil }
