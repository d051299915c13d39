// Package repository defines the aggregate repository contract consumed by
// the ledger service.
package repository

import (
	"context"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/google/uuid"
)

// AccountRepository loads account aggregates by replay and commits their
// uncommitted events.
//
// Save accepts one or more aggregates and must commit all of their pending
// events or none of them. A partial commit across aggregates (debit persisted,
// credit lost) would break the ledger's conservation invariant and must never
// be observable.
type AccountRepository interface {
	// Get replays the account's event stream into a fresh projection.
	// An account with zero events is account.ErrAccountNotFound.
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// Save appends each aggregate's uncommitted events with its committed
	// version as the expected version. On success the aggregates are marked
	// committed; on eventstore.ErrVersionConflict nothing is written.
	Save(ctx context.Context, accounts ...*account.Account) error
}
