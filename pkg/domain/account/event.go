package account

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the type of an account event.
type EventKind string

const (
	KindOpened                EventKind = "Opened"
	KindClosed                EventKind = "Closed"
	KindCredited              EventKind = "Credited"
	KindDebited               EventKind = "Debited"
	KindTransferValidated     EventKind = "TransferValidated"
	KindOverdraftLimitChanged EventKind = "OverdraftLimitChanged"
	KindPasswordChanged       EventKind = "PasswordChanged"
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	return string(k)
}

// Kinds returns every event kind an account stream can contain.
func Kinds() []EventKind {
	return []EventKind{
		KindOpened,
		KindClosed,
		KindCredited,
		KindDebited,
		KindTransferValidated,
		KindOverdraftLimitChanged,
		KindPasswordChanged,
	}
}

// Payload is the typed body of an account event.
type Payload interface {
	Kind() EventKind
}

// Opened is the first event of every account stream.
type Opened struct {
	FullName     string `json:"full_name"`
	EmailAddress string `json:"email_address"`
	PasswordHash string `json:"password_hash"`
}

// Closed marks the account as terminally closed.
type Closed struct{}

// Credited increases the balance by Amount minor units.
type Credited struct {
	Amount int64 `json:"amount"`
}

// Debited decreases the balance by Amount minor units.
type Debited struct {
	Amount int64 `json:"amount"`
}

// TransferValidated records that an outgoing transfer passed validation on the
// debiting account. It does not move funds; the paired Debited and Credited
// events do.
type TransferValidated struct {
	ToAccountID   uuid.UUID `json:"to_account_id"`
	Amount        int64     `json:"amount"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// OverdraftLimitChanged sets a new overdraft limit.
type OverdraftLimitChanged struct {
	Limit int64 `json:"limit"`
}

// PasswordChanged stores a new password hash.
type PasswordChanged struct {
	PasswordHash string `json:"password_hash"`
}

func (Opened) Kind() EventKind                { return KindOpened }
func (Closed) Kind() EventKind                { return KindClosed }
func (Credited) Kind() EventKind              { return KindCredited }
func (Debited) Kind() EventKind               { return KindDebited }
func (TransferValidated) Kind() EventKind     { return KindTransferValidated }
func (OverdraftLimitChanged) Kind() EventKind { return KindOverdraftLimitChanged }
func (PasswordChanged) Kind() EventKind       { return KindPasswordChanged }

// Event is an immutable record in an account's stream. Versions start at 0 and
// increase by one per event; the stream is the only source of truth for the
// aggregate's state.
type Event struct {
	AggregateID uuid.UUID
	Version     int64
	Kind        EventKind
	Payload     Payload
	Timestamp   time.Time
}
