// Package ledger provides the bank application service. It orchestrates
// account aggregates through the repository: load by replay, invoke the
// aggregate command, append the produced events, and retry on optimistic
// concurrency conflicts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventbus"
	"github.com/amirasaad/ledger/pkg/eventstore"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/amirasaad/ledger/pkg/utils"
	"github.com/google/uuid"
)

const defaultMaxRetries = 3

// AccountIDForEmail derives the stable account id for an email address
// (uuid5 over the URL namespace). Account existence for an email is a pure
// function of the email, not a lookup table.
func AccountIDForEmail(emailAddress string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(emailAddress))
}

// TransactionID derives the deterministic transfer transaction id from the
// participating accounts and the amount. Replaying the same transfer request
// yields the same id, which is the ledger's defense against double-apply.
func TransactionID(fromID, toID uuid.UUID, amount int64) uuid.UUID {
	return uuid.NewSHA1(
		uuid.NameSpaceURL,
		[]byte(fromID.String()+toID.String()+strconv.FormatInt(amount, 10)),
	)
}

// Service is the bank: it owns command orchestration, identity derivation,
// and the atomic dual-aggregate commit for transfers. All amounts are minor
// currency units.
type Service struct {
	repo       repository.AccountRepository
	bus        eventbus.Bus
	logger     *slog.Logger
	maxRetries int
}

// New constructs a Service. The bus may be nil when post-commit notification
// is not wanted; cfg may be nil to accept defaults.
func New(
	repo repository.AccountRepository,
	bus eventbus.Bus,
	logger *slog.Logger,
	cfg *config.Ledger,
) *Service {
	maxRetries := defaultMaxRetries
	if cfg != nil && cfg.MaxRetries > 0 {
		maxRetries = cfg.MaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		bus:        bus,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// OpenAccount opens an account for the email address, hashing the password.
// Opening is idempotent per email: if an aggregate already exists for the
// derived id, the existing id is returned and no event is produced.
func (s *Service) OpenAccount(
	ctx context.Context,
	fullName, emailAddress, password string,
) (uuid.UUID, error) {
	id := AccountIDForEmail(emailAddress)
	log := s.logger.With("op", "OpenAccount", "accountID", id)

	hash, err := utils.HashPassword(password)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	err = s.withRetry(ctx, log, func() error {
		_, err := s.repo.Get(ctx, id)
		if err == nil {
			log.Info("account already open for email")
			return nil
		}
		if !errors.Is(err, account.ErrAccountNotFound) {
			return err
		}
		a := account.Open(id, fullName, emailAddress, hash)
		events := a.UncommittedEvents()
		if err := s.repo.Save(ctx, a); err != nil {
			return err
		}
		s.publish(ctx, events)
		log.Info("account opened")
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// AccountIDByEmail returns the deterministic id for an email address. The id
// is returned whether or not the account exists; callers must not assume
// existence from the id alone.
func (s *Service) AccountIDByEmail(emailAddress string) uuid.UUID {
	return AccountIDForEmail(emailAddress)
}

// Authenticate verifies the email/password pair and returns the account id.
// Any failure, including an unknown email, is account.ErrBadCredentials.
func (s *Service) Authenticate(
	ctx context.Context,
	emailAddress, password string,
) (uuid.UUID, error) {
	id := AccountIDForEmail(emailAddress)
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return uuid.Nil, account.ErrBadCredentials
		}
		return uuid.Nil, err
	}
	if err := a.Authenticate(emailAddress, password); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ValidatePassword checks a password against the account's stored hash.
func (s *Service) ValidatePassword(
	ctx context.Context,
	accountID uuid.UUID,
	password string,
) error {
	a, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(password, a.PasswordHash) {
		return account.ErrBadCredentials
	}
	return nil
}

// ChangePassword replaces the account password after validating the old one.
func (s *Service) ChangePassword(
	ctx context.Context,
	accountID uuid.UUID,
	oldPassword, newPassword string,
) error {
	if err := s.ValidatePassword(ctx, accountID, oldPassword); err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	log := s.logger.With("op", "ChangePassword", "accountID", accountID)
	return s.withRetry(ctx, log, func() error {
		a, err := s.repo.Get(ctx, accountID)
		if err != nil {
			return err
		}
		a.ChangePassword(hash)
		events := a.UncommittedEvents()
		if err := s.repo.Save(ctx, a); err != nil {
			return err
		}
		s.publish(ctx, events)
		return nil
	})
}

// Deposit credits the account with the amount.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, amount int64) error {
	log := s.logger.With("op", "Deposit", "accountID", accountID)
	return s.withRetry(ctx, log, func() error {
		a, err := s.repo.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if err := a.Credit(amount); err != nil {
			return err
		}
		events := a.UncommittedEvents()
		if err := s.repo.Save(ctx, a); err != nil {
			return err
		}
		s.publish(ctx, events)
		log.Info("deposit committed", "amount", amount)
		return nil
	})
}

// Withdraw debits the account with the amount.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64) error {
	log := s.logger.With("op", "Withdraw", "accountID", accountID)
	return s.withRetry(ctx, log, func() error {
		a, err := s.repo.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if err := a.Debit(amount); err != nil {
			return err
		}
		events := a.UncommittedEvents()
		if err := s.repo.Save(ctx, a); err != nil {
			return err
		}
		s.publish(ctx, events)
		log.Info("withdraw committed", "amount", amount)
		return nil
	})
}

// Transfer moves the amount from one account to another. The debit and the
// credit are committed atomically through a single multi-stream append; a
// transfer whose deterministic transaction id was already validated on the
// debiting account is a no-op success (idempotent replay).
func (s *Service) Transfer(
	ctx context.Context,
	fromID, toID uuid.UUID,
	amount int64,
) error {
	transactionID := TransactionID(fromID, toID, amount)
	log := s.logger.With(
		"op", "Transfer",
		"fromID", fromID,
		"toID", toID,
		"transactionID", transactionID,
	)
	return s.withRetry(ctx, log, func() error {
		from, err := s.repo.Get(ctx, fromID)
		if err != nil {
			if errors.Is(err, account.ErrAccountNotFound) {
				return fmt.Errorf("debit account %s: %w", fromID, account.ErrAccountNotFound)
			}
			return err
		}
		to, err := s.repo.Get(ctx, toID)
		if err != nil {
			if errors.Is(err, account.ErrAccountNotFound) {
				return fmt.Errorf("credit account %s: %w", toID, account.ErrAccountNotFound)
			}
			return err
		}

		if from.HasValidatedTransfer(transactionID) {
			log.Info("transfer already applied, suppressing replay")
			return nil
		}

		if err := from.ValidateTransfer(toID, amount, transactionID); err != nil {
			return err
		}
		if err := from.Debit(amount); err != nil {
			return err
		}
		if err := to.Credit(amount); err != nil {
			return err
		}

		events := append(from.UncommittedEvents(), to.UncommittedEvents()...)
		if err := s.repo.Save(ctx, from, to); err != nil {
			return err
		}
		s.publish(ctx, events)
		log.Info("transfer committed", "amount", amount)
		return nil
	})
}

// CloseAccount marks the account closed. Closing an already-closed account is
// accepted as a no-op event.
func (s *Service) CloseAccount(ctx context.Context, accountID uuid.UUID) error {
	log := s.logger.With("op", "CloseAccount", "accountID", accountID)
	return s.withRetry(ctx, log, func() error {
		a, err := s.repo.Get(ctx, accountID)
		if err != nil {
			return err
		}
		a.Close()
		events := a.UncommittedEvents()
		if err := s.repo.Save(ctx, a); err != nil {
			return err
		}
		s.publish(ctx, events)
		log.Info("account closed")
		return nil
	})
}

// GetBalance returns the account balance in minor currency units.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	a, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// GetOverdraftLimit returns the account overdraft limit in minor currency
// units.
func (s *Service) GetOverdraftLimit(ctx context.Context, accountID uuid.UUID) (int64, error) {
	a, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return a.OverdraftLimit, nil
}

// SetOverdraftLimit sets the account overdraft limit.
func (s *Service) SetOverdraftLimit(
	ctx context.Context,
	accountID uuid.UUID,
	limit int64,
) error {
	log := s.logger.With("op", "SetOverdraftLimit", "accountID", accountID)
	return s.withRetry(ctx, log, func() error {
		a, err := s.repo.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if err := a.SetOverdraftLimit(limit); err != nil {
			return err
		}
		events := a.UncommittedEvents()
		if err := s.repo.Save(ctx, a); err != nil {
			return err
		}
		s.publish(ctx, events)
		log.Info("overdraft limit set", "limit", limit)
		return nil
	})
}

// withRetry runs the load-validate-append loop, reattempting only on
// eventstore.ErrVersionConflict. The function reloads its aggregates on every
// attempt, so each retry revalidates against fresh state.
func (s *Service) withRetry(ctx context.Context, log *slog.Logger, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = fn()
		if !errors.Is(err, eventstore.ErrVersionConflict) {
			return err
		}
		log.Warn("version conflict, retrying", "attempt", attempt)
	}
	return err
}

func (s *Service) publish(ctx context.Context, events []account.Event) {
	if s.bus == nil || len(events) == 0 {
		return
	}
	if err := s.bus.Publish(ctx, events...); err != nil {
		s.logger.Warn("publish committed events", "error", err)
	}
}
