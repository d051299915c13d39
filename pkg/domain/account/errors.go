package account

import "errors"

var (
	// ErrAccountNotFound is returned when no events exist for the requested account id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountClosed is returned when a mutating command targets a closed account.
	ErrAccountClosed = errors.New("account is closed")

	// ErrInsufficientFunds is returned when a debit or transfer would push the
	// balance below the overdraft floor.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidDeposit is returned when a deposit amount is not positive.
	ErrInvalidDeposit = errors.New("deposit amount must be positive")

	// ErrInvalidAmount is returned when a debit or transfer amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidOverdraftLimit is returned when an overdraft limit is negative.
	ErrInvalidOverdraftLimit = errors.New("overdraft limit must not be negative")

	// ErrBadCredentials is returned on any authentication failure: malformed
	// email, unknown email, or password mismatch.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrSelfTransfer is returned when a transfer names the same account on
	// both sides.
	ErrSelfTransfer = errors.New("cannot transfer to same account")
)
