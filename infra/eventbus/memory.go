// Package eventbus provides the in-memory implementation of the post-commit
// event bus.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventbus"
)

// MemoryBus is a simple in-memory implementation of the eventbus.Bus
// interface. Handlers run synchronously on the publishing goroutine.
type MemoryBus struct {
	mu        sync.RWMutex
	handlers  map[account.EventKind][]eventbus.HandlerFunc
	logger    *slog.Logger
	published []account.Event
}

// NewWithMemory creates a new in-memory event bus.
func NewWithMemory(logger *slog.Logger) *MemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBus{
		handlers: make(map[account.EventKind][]eventbus.HandlerFunc),
		logger:   logger.With("bus", "memory"),
	}
}

// Subscribe registers a handler for a specific event kind.
func (b *MemoryBus) Subscribe(kind account.EventKind, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish dispatches each event to the handlers registered for its kind.
func (b *MemoryBus) Publish(ctx context.Context, events ...account.Event) error {
	for _, e := range events {
		b.mu.RLock()
		handlers := b.handlers[e.Kind]
		b.mu.RUnlock()

		b.mu.Lock()
		b.published = append(b.published, e)
		b.mu.Unlock()

		b.logger.Debug("publish", "kind", e.Kind, "aggregateID", e.AggregateID, "version", e.Version)
		for _, handler := range handlers {
			handler(ctx, e)
		}
	}
	return nil
}

// Published returns the events published so far. Useful in tests.
func (b *MemoryBus) Published() []account.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]account.Event, len(b.published))
	copy(out, b.published)
	return out
}

var _ eventbus.Bus = (*MemoryBus)(nil)
