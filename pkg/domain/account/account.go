// Package account holds the event-sourced account aggregate. State is derived
// solely from the account's ordered event stream; command methods validate
// against current state, record an event, and fold it in. Nothing outside
// apply mutates the projection.
package account

import (
	"fmt"
	"time"

	"github.com/amirasaad/ledger/pkg/utils"
	"github.com/google/uuid"
)

// Account is the in-memory projection of one account's event stream.
//
// Invariants:
//   - OverdraftLimit >= 0.
//   - Balance >= -OverdraftLimit after every committed event.
//   - Once Closed is true it never becomes false, and Balance and
//     OverdraftLimit never change again.
type Account struct {
	ID             uuid.UUID
	FullName       string
	EmailAddress   string
	PasswordHash   string
	Balance        int64
	OverdraftLimit int64
	Closed         bool

	// Version counts committed events; it is the expected version for the
	// next append (optimistic concurrency).
	Version int64

	pending   []Event
	transfers map[uuid.UUID]struct{}
}

// Open creates a new account aggregate with its Opened event pending. The
// caller owns id derivation and password hashing; same-email-same-id
// idempotency is the ledger service's responsibility.
func Open(id uuid.UUID, fullName, emailAddress, passwordHash string) *Account {
	a := newAccount(id)
	a.record(Opened{
		FullName:     fullName,
		EmailAddress: emailAddress,
		PasswordHash: passwordHash,
	})
	return a
}

// Replay folds an ordered event stream into a fresh projection. A stream with
// zero events is ErrAccountNotFound.
func Replay(id uuid.UUID, events []Event) (*Account, error) {
	if len(events) == 0 {
		return nil, ErrAccountNotFound
	}
	a := newAccount(id)
	for _, e := range events {
		if err := apply(a, e); err != nil {
			return nil, err
		}
	}
	a.Version = int64(len(events))
	return a, nil
}

func newAccount(id uuid.UUID) *Account {
	return &Account{
		ID:        id,
		transfers: make(map[uuid.UUID]struct{}),
	}
}

// Close marks the account as terminally closed. Closing an already-closed
// account is accepted and records another Closed event; the fold keeps the
// state unchanged.
func (a *Account) Close() {
	a.record(Closed{})
}

// Credit increases the balance. The amount must be positive and the account
// open.
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidDeposit
	}
	if a.Closed {
		return ErrAccountClosed
	}
	a.record(Credited{Amount: amount})
	return nil
}

// Debit decreases the balance. The amount must be positive, the account open,
// and the resulting balance must not breach the overdraft floor.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Closed {
		return ErrAccountClosed
	}
	if a.Balance-amount < -a.OverdraftLimit {
		return ErrInsufficientFunds
	}
	a.record(Debited{Amount: amount})
	return nil
}

// ValidateTransfer checks an outgoing transfer against this (debiting) account
// and records a TransferValidated event carrying the deterministic transaction
// id. Funds movement is a separate Debit on this account and Credit on the
// destination.
func (a *Account) ValidateTransfer(toAccountID uuid.UUID, amount int64, transactionID uuid.UUID) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Balance-amount < -a.OverdraftLimit {
		return ErrInsufficientFunds
	}
	if a.Closed {
		return ErrAccountClosed
	}
	if a.ID == toAccountID {
		return ErrSelfTransfer
	}
	a.record(TransferValidated{
		ToAccountID:   toAccountID,
		Amount:        amount,
		TransactionID: transactionID,
	})
	return nil
}

// HasValidatedTransfer reports whether a transfer with the given transaction
// id was already validated on this account, committed or pending. It backs
// idempotent transfer replay detection.
func (a *Account) HasValidatedTransfer(transactionID uuid.UUID) bool {
	_, ok := a.transfers[transactionID]
	return ok
}

// SetOverdraftLimit replaces the overdraft limit. The limit must not be
// negative and the account must be open.
func (a *Account) SetOverdraftLimit(limit int64) error {
	if limit < 0 {
		return ErrInvalidOverdraftLimit
	}
	if a.Closed {
		return ErrAccountClosed
	}
	a.record(OverdraftLimitChanged{Limit: limit})
	return nil
}

// ChangePassword stores a new password hash. Verifying the old password is
// the caller's responsibility.
func (a *Account) ChangePassword(newPasswordHash string) {
	a.record(PasswordChanged{PasswordHash: newPasswordHash})
}

// Authenticate is a pure query: it fails with ErrBadCredentials when the
// email is syntactically invalid, does not match this account, or the
// password does not match the stored hash.
func (a *Account) Authenticate(emailAddress, password string) error {
	if !utils.IsEmail(emailAddress) {
		return ErrBadCredentials
	}
	if a.EmailAddress != emailAddress {
		return ErrBadCredentials
	}
	if !utils.CheckPasswordHash(password, a.PasswordHash) {
		return ErrBadCredentials
	}
	return nil
}

// UncommittedEvents returns a copy of the events recorded since the last
// commit, in order.
func (a *Account) UncommittedEvents() []Event {
	out := make([]Event, len(a.pending))
	copy(out, a.pending)
	return out
}

// MarkCommitted advances the committed version past the pending events and
// drops them. The repository calls this after a successful append.
func (a *Account) MarkCommitted() {
	a.Version += int64(len(a.pending))
	a.pending = nil
}

func (a *Account) record(p Payload) {
	e := Event{
		AggregateID: a.ID,
		Version:     a.Version + int64(len(a.pending)),
		Kind:        p.Kind(),
		Payload:     p,
		Timestamp:   time.Now().UTC(),
	}
	a.pending = append(a.pending, e)
	// Commands validate before recording, so the fold cannot fail here.
	_ = apply(a, e)
}

// apply folds a single event into the projection. It is the only place that
// mutates account state, dispatched over the payload union.
func apply(a *Account, e Event) error {
	switch p := e.Payload.(type) {
	case Opened:
		a.FullName = p.FullName
		a.EmailAddress = p.EmailAddress
		a.PasswordHash = p.PasswordHash
		a.Balance = 0
		a.OverdraftLimit = 0
		a.Closed = false
	case Closed:
		a.Closed = true
	case Credited:
		a.Balance += p.Amount
	case Debited:
		a.Balance -= p.Amount
	case TransferValidated:
		a.transfers[p.TransactionID] = struct{}{}
	case OverdraftLimitChanged:
		a.OverdraftLimit = p.Limit
	case PasswordChanged:
		a.PasswordHash = p.PasswordHash
	default:
		return fmt.Errorf("unknown event payload %T for kind %q", e.Payload, e.Kind)
	}
	return nil
}
