package service

import (
	"sync"
	"time"

	"github.com/noah-isme/class-builder-api/internal/models"
)

// proposalStore keeps live proposals in process memory. Expired entries are
// dropped lazily on access and by sweep.
type proposalStore struct {
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]*models.Proposal
}

func newProposalStore(now func() time.Time) *proposalStore {
	if now == nil {
		now = time.Now
	}
	return &proposalStore{
		now:   now,
		items: make(map[string]*models.Proposal),
	}
}

func (s *proposalStore) Save(proposal *models.Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ID] = proposal
}

// Get returns a copy of the proposal that callers may read without locking.
func (s *proposalStore) Get(id string) (*models.Proposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	var cp *models.Proposal
	if ok && !proposal.Expired(s.now()) {
		cp = proposal.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if cp == nil {
		s.Delete(id)
		return nil, false
	}
	return cp, true
}

// Update runs fn against the stored proposal while holding the write lock.
func (s *proposalStore) Update(id string, fn func(*models.Proposal) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok {
		return false, nil
	}
	if proposal.Expired(s.now()) {
		delete(s.items, id)
		return false, nil
	}
	return true, fn(proposal)
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Sweep removes expired proposals and returns how many were dropped.
func (s *proposalStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, p := range s.items {
		if p.Expired(now) {
			delete(s.items, id)
			dropped++
		}
	}
	return dropped
}

func (s *proposalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
