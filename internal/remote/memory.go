package remote

import (
	"context"
	"fmt"
	"sync"

	"storage-sync/internal/record"
)

// MemoryStoreName is the registry name of MemoryStore.
const MemoryStoreName = "memory"

// MemoryStore keeps the remote set in process. It is safe for concurrent use
// and is shared by every device in tests and single-host deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	version int64
	order   []record.StorageID
	records map[record.StorageID]record.Record
}

// NewMemoryStore creates an empty store at version 0.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[record.StorageID]record.Record),
	}
}

func (s *MemoryStore) Name() string {
	return MemoryStoreName
}

func (s *MemoryStore) Fetch(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]record.Record, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.records[id])
	}
	return &Manifest{Version: s.version, Records: records}, nil
}

func (s *MemoryStore) Write(ctx context.Context, op WriteOperation) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if op.BaseVersion != s.version {
		return 0, fmt.Errorf("%w: base %d, current %d", ErrVersionConflict, op.BaseVersion, s.version)
	}

	deleted := make(map[record.StorageID]struct{}, len(op.Deletes))
	for _, id := range op.Deletes {
		if _, ok := s.records[id]; !ok {
			return 0, fmt.Errorf("delete %s: record not found", id)
		}
		deleted[id] = struct{}{}
	}
	for _, r := range op.Inserts {
		if _, ok := s.records[r.StorageID()]; ok {
			if _, replaced := deleted[r.StorageID()]; !replaced {
				return 0, fmt.Errorf("insert %s: storage id already in use", r.StorageID())
			}
		}
	}

	if len(deleted) > 0 {
		kept := s.order[:0]
		for _, id := range s.order {
			if _, ok := deleted[id]; ok {
				delete(s.records, id)
				continue
			}
			kept = append(kept, id)
		}
		s.order = kept
	}
	for _, r := range op.Inserts {
		s.records[r.StorageID()] = r
		s.order = append(s.order, r.StorageID())
	}

	s.version++
	return s.version, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
