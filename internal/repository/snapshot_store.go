package repository

import (
	"sync"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"
)

// MemorySnapshotStore holds the latest snapshot behind an RWMutex.
// Snapshots are swapped whole; readers never see a half-built one.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	snap *models.Snapshot
}

// NewMemorySnapshotStore seeds the store with every pair unavailable.
func NewMemorySnapshotStore(instruments []models.Instrument, timeframes []string) *MemorySnapshotStore {
	return &MemorySnapshotStore{snap: models.NewSnapshot(instruments, timeframes)}
}

func (s *MemorySnapshotStore) Latest() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *MemorySnapshotStore) Publish(snap *models.Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

var _ domrepo.SnapshotStore = (*MemorySnapshotStore)(nil)
