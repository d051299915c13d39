// Package eventbus defines the contract for post-commit notification of
// committed account events. Subscribers observe the ledger; they never affect
// command outcome.
package eventbus

import (
	"context"

	"github.com/amirasaad/ledger/pkg/domain/account"
)

// HandlerFunc handles one committed event.
type HandlerFunc func(ctx context.Context, event account.Event)

// Bus publishes committed events to subscribers registered per event kind.
type Bus interface {
	Publish(ctx context.Context, events ...account.Event) error
	Subscribe(kind account.EventKind, handler HandlerFunc)
}
