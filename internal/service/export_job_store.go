package service

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/class-builder-api/internal/models"
)

// ExportJobStore keeps export job records in memory. Jobs are short lived and
// their files are removed by the cleanup loop, so nothing here is persisted.
type ExportJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.ExportJob
	now  func() time.Time
}

// NewExportJobStore returns an empty store.
func NewExportJobStore() *ExportJobStore {
	return &ExportJobStore{
		jobs: make(map[string]*models.ExportJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create assigns an id and timestamp when missing and stores a copy.
func (s *ExportJobStore) Create(job *models.ExportJob) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	cp := *job
	s.mu.Lock()
	s.jobs[job.ID] = &cp
	s.mu.Unlock()
}

// Get returns a copy of the job.
func (s *ExportJobStore) Get(id string) (*models.ExportJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Update mutates the job under the write lock.
func (s *ExportJobStore) Update(id string, fn func(*models.ExportJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

// Delete removes a job record.
func (s *ExportJobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// FinishedBefore lists terminal jobs finished before cutoff, oldest first.
func (s *ExportJobStore) FinishedBefore(cutoff time.Time) []models.ExportJob {
	s.mu.RLock()
	out := make([]models.ExportJob, 0)
	for _, job := range s.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(*out[j].FinishedAt) })
	return out
}

// Len returns the number of tracked jobs.
func (s *ExportJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
