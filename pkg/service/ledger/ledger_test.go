package ledger_test

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"testing"

	infraeventbus "github.com/amirasaad/ledger/infra/eventbus"
	infraeventstore "github.com/amirasaad/ledger/infra/eventstore"
	infrarepository "github.com/amirasaad/ledger/infra/repository"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventstore"
	"github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	log.SetOutput(io.Discard)

	os.Exit(m.Run())
}

func newTestService(t *testing.T) (*ledger.Service, *infraeventbus.MemoryBus) {
	t.Helper()
	store := infraeventstore.NewWithMemory()
	repo := infrarepository.NewAccountRepository(store)
	bus := infraeventbus.NewWithMemory(slog.Default())
	return ledger.New(repo, bus, slog.Default(), nil), bus
}

func createAliceWith20000(t *testing.T, svc *ledger.Service) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	alice, err := svc.OpenAccount(ctx, "Alice", "alice@example.com", "alice")
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)

	require.NoError(t, svc.Deposit(ctx, alice, 10000))
	require.NoError(t, svc.Deposit(ctx, alice, 10000))
	return alice
}

func createBob(t *testing.T, svc *ledger.Service) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	bob, err := svc.OpenAccount(ctx, "Bob", "bob@example.com", "bob")
	require.NoError(t, err)
	require.NoError(t, svc.Deposit(ctx, bob, 100))
	require.NoError(t, svc.Deposit(ctx, bob, 100))
	return bob
}

func createSue(t *testing.T, svc *ledger.Service) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	sue, err := svc.OpenAccount(ctx, "Sue", "sue@example.com", "sue")
	require.NoError(t, err)
	require.NoError(t, svc.Deposit(ctx, sue, 100))
	return sue
}

func TestAccountDoesNotExist(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	alice := svc.AccountIDByEmail("alice@example.com")
	_, err := svc.GetBalance(context.Background(), alice)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestOpenAccountIdempotent(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	assert.Equal(t, alice, svc.AccountIDByEmail("alice@example.com"))

	// Opening again with the same email resolves to the same account and
	// leaves its state alone.
	again, err := svc.OpenAccount(ctx, "Alice", "alice@example.com", "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, again)

	balance, err := svc.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), balance)
}

func TestDeposit(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	bob := createBob(t, svc)

	balance, err := svc.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), balance)

	balance, err = svc.GetBalance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)

	t.Run("account does not exist", func(t *testing.T) {
		err := svc.Deposit(ctx, uuid.Nil, 100)
		assert.ErrorIs(t, err, account.ErrAccountNotFound)
	})

	t.Run("negative amount", func(t *testing.T) {
		err := svc.Deposit(ctx, alice, -100)
		assert.ErrorIs(t, err, account.ErrInvalidDeposit)

		balance, err := svc.GetBalance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, int64(20000), balance)
	})
}

func TestWithdraw(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	require.NoError(t, svc.Withdraw(ctx, alice, 5000))

	balance, err := svc.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), balance)

	t.Run("account does not exist", func(t *testing.T) {
		err := svc.Withdraw(ctx, uuid.Nil, 100)
		assert.ErrorIs(t, err, account.ErrAccountNotFound)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		err := svc.Withdraw(ctx, alice, 25000)
		assert.ErrorIs(t, err, account.ErrInsufficientFunds)

		balance, err := svc.GetBalance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, int64(15000), balance)
	})
}

func TestTransfer(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	bob := createBob(t, svc)
	sue := createSue(t, svc)

	require.NoError(t, svc.Transfer(ctx, alice, bob, 5000))
	require.NoError(t, svc.Transfer(ctx, bob, sue, 100))

	assertBalance(t, svc, alice, 15000)
	assertBalance(t, svc, bob, 5100)
	assertBalance(t, svc, sue, 200)

	t.Run("insufficient funds", func(t *testing.T) {
		err := svc.Transfer(ctx, alice, bob, 100000)
		assert.ErrorIs(t, err, account.ErrInsufficientFunds)

		assertBalance(t, svc, alice, 15000)
		assertBalance(t, svc, bob, 5100)
		assertBalance(t, svc, sue, 200)
	})

	t.Run("debit account does not exist", func(t *testing.T) {
		err := svc.Transfer(ctx, uuid.Nil, bob, 100)
		assert.ErrorIs(t, err, account.ErrAccountNotFound)
	})

	t.Run("credit account does not exist", func(t *testing.T) {
		err := svc.Transfer(ctx, alice, uuid.Nil, 100)
		assert.ErrorIs(t, err, account.ErrAccountNotFound)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		err := svc.Transfer(ctx, alice, bob, -100)
		assert.ErrorIs(t, err, account.ErrInvalidAmount)
	})

	t.Run("self transfer", func(t *testing.T) {
		err := svc.Transfer(ctx, alice, alice, 100)
		assert.ErrorIs(t, err, account.ErrSelfTransfer)
	})
}

func TestTransferConservesTotal(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	bob := createBob(t, svc)

	before := balanceOf(t, svc, alice) + balanceOf(t, svc, bob)
	require.NoError(t, svc.Transfer(ctx, alice, bob, 7300))
	after := balanceOf(t, svc, alice) + balanceOf(t, svc, bob)
	assert.Equal(t, before, after)
}

func TestTransferReplayIsSuppressed(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	bob := createBob(t, svc)

	require.NoError(t, svc.Transfer(ctx, alice, bob, 5000))
	// Same (from, to, amount) derives the same transaction id: the replay is
	// accepted but does not move funds again.
	require.NoError(t, svc.Transfer(ctx, alice, bob, 5000))

	assertBalance(t, svc, alice, 15000)
	assertBalance(t, svc, bob, 5200)
}

func TestClosed(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	bob := createBob(t, svc)

	require.NoError(t, svc.CloseAccount(ctx, alice))

	assert.ErrorIs(t, svc.Transfer(ctx, alice, bob, 5000), account.ErrAccountClosed)
	assert.ErrorIs(t, svc.Withdraw(ctx, alice, 100), account.ErrAccountClosed)
	assert.ErrorIs(t, svc.Deposit(ctx, alice, 100000), account.ErrAccountClosed)
	assert.ErrorIs(t, svc.SetOverdraftLimit(ctx, alice, 50000), account.ErrAccountClosed)

	t.Run("closed as credit side", func(t *testing.T) {
		err := svc.Transfer(ctx, bob, alice, 100)
		assert.ErrorIs(t, err, account.ErrAccountClosed)
		assertBalance(t, svc, bob, 200)
	})

	t.Run("closing again is accepted", func(t *testing.T) {
		assert.NoError(t, svc.CloseAccount(ctx, alice))
	})

	assertBalance(t, svc, alice, 20000)
	assertBalance(t, svc, bob, 200)

	limit, err := svc.GetOverdraftLimit(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit)
	limit, err = svc.GetOverdraftLimit(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit)
}

func TestOverdraft(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	bob := createBob(t, svc)

	limit, err := svc.GetOverdraftLimit(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit)

	require.NoError(t, svc.SetOverdraftLimit(ctx, bob, 50000))

	t.Run("negative limit", func(t *testing.T) {
		err := svc.SetOverdraftLimit(ctx, bob, -50000)
		assert.ErrorIs(t, err, account.ErrInvalidOverdraftLimit)
	})

	limit, err = svc.GetOverdraftLimit(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), limit)

	require.NoError(t, svc.Withdraw(ctx, bob, 50200))
	assertBalance(t, svc, bob, -50000)

	t.Run("at the floor", func(t *testing.T) {
		err := svc.Withdraw(ctx, bob, 100)
		assert.ErrorIs(t, err, account.ErrInsufficientFunds)
	})

	t.Run("account does not exist", func(t *testing.T) {
		_, err := svc.GetOverdraftLimit(ctx, uuid.Nil)
		assert.ErrorIs(t, err, account.ErrAccountNotFound)

		err = svc.SetOverdraftLimit(ctx, uuid.Nil, 50000)
		assert.ErrorIs(t, err, account.ErrAccountNotFound)
	})
}

func TestPassword(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)

	require.NoError(t, svc.ValidatePassword(ctx, alice, "alice"))
	require.NoError(t, svc.ChangePassword(ctx, alice, "alice", "alice2"))
	require.NoError(t, svc.ValidatePassword(ctx, alice, "alice2"))
	assert.ErrorIs(t, svc.ValidatePassword(ctx, alice, "alice"), account.ErrBadCredentials)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)

	id, err := svc.Authenticate(ctx, "alice@example.com", "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, id)

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "alice@example.com", "bob")
		assert.ErrorIs(t, err, account.ErrBadCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody@example.com", "alice")
		assert.ErrorIs(t, err, account.ErrBadCredentials)
	})

	t.Run("malformed email", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not-an-email", "alice")
		assert.ErrorIs(t, err, account.ErrBadCredentials)
	})
}

func TestCommittedEventsArePublished(t *testing.T) {
	t.Parallel()
	svc, bus := newTestService(t)
	ctx := context.Background()

	alice := createAliceWith20000(t, svc)
	require.NoError(t, svc.Withdraw(ctx, alice, 5000))

	kinds := make([]account.EventKind, 0)
	for _, e := range bus.Published() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []account.EventKind{
		account.KindOpened,
		account.KindCredited,
		account.KindCredited,
		account.KindDebited,
	}, kinds)
}

// conflictOnceStore wraps a store and fails the first append with a version
// conflict, exercising the service's retry loop.
type conflictOnceStore struct {
	eventstore.Store
	mu       sync.Mutex
	injected bool
}

func (s *conflictOnceStore) Append(ctx context.Context, appends ...eventstore.StreamAppend) error {
	s.mu.Lock()
	if !s.injected {
		s.injected = true
		s.mu.Unlock()
		return eventstore.ErrVersionConflict
	}
	s.mu.Unlock()
	return s.Store.Append(ctx, appends...)
}

func TestVersionConflictIsRetried(t *testing.T) {
	t.Parallel()
	store := &conflictOnceStore{Store: infraeventstore.NewWithMemory()}
	repo := infrarepository.NewAccountRepository(store)
	svc := ledger.New(repo, nil, slog.Default(), nil)

	alice, err := svc.OpenAccount(context.Background(), "Alice", "alice@example.com", "alice")
	require.NoError(t, err)
	assertBalance(t, svc, alice, 0)
}

func assertBalance(t *testing.T, svc *ledger.Service, id uuid.UUID, want int64) {
	t.Helper()
	assert.Equal(t, want, balanceOf(t, svc, id))
}

func balanceOf(t *testing.T, svc *ledger.Service, id uuid.UUID) int64 {
	t.Helper()
	balance, err := svc.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return balance
}
