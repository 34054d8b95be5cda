package cache

import (
	"context"
	"sync"
)

// MemoryQuotaStore keeps quota counters in process memory. Counters are lost
// on restart, so it is meant for local development and tests.
type MemoryQuotaStore struct {
	mu   sync.Mutex
	used map[string]int
}

// NewMemoryQuotaStore creates an empty in-memory quota store
func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{used: make(map[string]int)}
}

// GetUsed returns the consumed count
func (s *MemoryQuotaStore) GetUsed(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[userID], nil
}

// IncrementIfBelow increments the counter while it is below limit
func (s *MemoryQuotaStore) IncrementIfBelow(_ context.Context, userID string, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.used[userID]
	if used >= limit {
		return used, false, nil
	}
	used++
	s.used[userID] = used
	return used, true, nil
}

// Reset sets the counter back to zero
func (s *MemoryQuotaStore) Reset(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.used, userID)
	return nil
}

// Seed sets a counter directly
func (s *MemoryQuotaStore) Seed(userID string, used int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used[userID] = used
}
