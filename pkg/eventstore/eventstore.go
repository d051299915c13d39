// Package eventstore defines the append/replay contract the ledger core
// depends on. Implementations live under infra/eventstore.
package eventstore

import (
	"context"
	"errors"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/google/uuid"
)

// ErrVersionConflict is returned by Append when a stream's current version
// does not equal the expected version. Nothing is written in that case.
var ErrVersionConflict = errors.New("event stream version conflict")

// StreamAppend is one aggregate's contribution to an Append call. Events are
// assigned strictly increasing versions starting at ExpectedVersion.
type StreamAppend struct {
	AggregateID     uuid.UUID
	ExpectedVersion int64
	Events          []account.Event
}

// Store is the append-only event log, ordered per aggregate.
//
// Append is atomic across every submitted stream: either all events of all
// streams are durably recorded, or none are. This multi-stream atomicity is
// what makes the dual-aggregate transfer commit safe. A version mismatch on
// any stream fails the whole call with ErrVersionConflict.
type Store interface {
	ReadStream(ctx context.Context, id uuid.UUID) ([]account.Event, error)
	Append(ctx context.Context, appends ...StreamAppend) error
}
