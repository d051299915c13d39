package eventstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventstore"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of the event store, suitable for
// tests and the console frontend without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[uuid.UUID][]account.Event
}

// NewWithMemory creates an empty in-memory event store.
func NewWithMemory() *MemoryStore {
	return &MemoryStore{streams: make(map[uuid.UUID][]account.Event)}
}

// ReadStream returns a copy of the stream's events from version 0.
func (s *MemoryStore) ReadStream(_ context.Context, id uuid.UUID) ([]account.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream := s.streams[id]
	out := make([]account.Event, len(stream))
	copy(out, stream)
	return out, nil
}

// Append validates every stream's expected version under one lock before
// writing anything, so a conflict on any stream leaves every stream
// untouched.
func (s *MemoryStore) Append(_ context.Context, appends ...eventstore.StreamAppend) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(appends))
	for _, ap := range appends {
		if _, dup := seen[ap.AggregateID]; dup {
			return fmt.Errorf("duplicate stream %s in append", ap.AggregateID)
		}
		seen[ap.AggregateID] = struct{}{}
		if int64(len(s.streams[ap.AggregateID])) != ap.ExpectedVersion {
			return eventstore.ErrVersionConflict
		}
	}

	for _, ap := range appends {
		for i, e := range ap.Events {
			e.Version = ap.ExpectedVersion + int64(i)
			s.streams[ap.AggregateID] = append(s.streams[ap.AggregateID], e)
		}
	}
	return nil
}

var _ eventstore.Store = (*MemoryStore)(nil)
