// Package repository implements the aggregate repository over the abstract
// event store: load is a fresh replay, save is a multi-stream append.
package repository

import (
	"context"
	"fmt"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventstore"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
)

type accountRepository struct {
	store eventstore.Store
}

// NewAccountRepository creates an event-sourced account repository over the
// given store.
func NewAccountRepository(store eventstore.Store) repository.AccountRepository {
	return &accountRepository{store: store}
}

// Get replays the account's events into a fresh projection.
func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	events, err := r.store.ReadStream(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return account.Replay(id, events)
}

// Save submits every aggregate's uncommitted events as one atomic append.
// Aggregates without pending events are skipped; when nothing is pending the
// call is a no-op. The aggregates are only marked committed after the store
// accepted the whole batch.
func (r *accountRepository) Save(ctx context.Context, accounts ...*account.Account) error {
	appends := make([]eventstore.StreamAppend, 0, len(accounts))
	dirty := make([]*account.Account, 0, len(accounts))
	for _, a := range accounts {
		events := a.UncommittedEvents()
		if len(events) == 0 {
			continue
		}
		appends = append(appends, eventstore.StreamAppend{
			AggregateID:     a.ID,
			ExpectedVersion: a.Version,
			Events:          events,
		})
		dirty = append(dirty, a)
	}
	if len(appends) == 0 {
		return nil
	}
	if err := r.store.Append(ctx, appends...); err != nil {
		return err
	}
	for _, a := range dirty {
		a.MarkCommitted()
	}
	return nil
}
