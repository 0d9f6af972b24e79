// Package testutil holds in-memory fakes used by tests across the module,
// adapted from the teacher's internal/e2e memory-backed StateStorage
// (pkg/gotd/telegram/updates/internal/e2e/storage_mem.go).
package testutil

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"go.mau.fi/tgsync/updates"
)

var _ updates.StateStorage = (*MemStorage)(nil)

// MemStorage is a sync.Mutex-guarded, process-local StateStorage. Unlike
// the teacher's granular memStorage (one setter per field, written through
// on every change), this only has to satisfy the simplified Load/Save
// snapshot contract updates.StateStorage defines.
type MemStorage struct {
	mu        sync.Mutex
	snapshots map[int64]updates.Snapshot
}

// NewMemStorage returns an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{snapshots: make(map[int64]updates.Snapshot)}
}

func (s *MemStorage) Load(_ context.Context, userID int64) (updates.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[userID]
	if !ok {
		return updates.Snapshot{}, false, nil
	}
	return snap.Clone(), true, nil
}

func (s *MemStorage) Save(_ context.Context, userID int64, snapshot updates.Snapshot) error {
	if userID == 0 {
		return errors.New("testutil: userID must be nonzero")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[userID] = snapshot.Clone()
	return nil
}
