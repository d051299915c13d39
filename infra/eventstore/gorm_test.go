package eventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	infraeventstore "github.com/amirasaad/ledger/infra/eventstore"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockedStore(t *testing.T) (*infraeventstore.GormStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return infraeventstore.NewWithGorm(db), mock
}

func TestGormStore_ReadStream(t *testing.T) {
	store, mock := newMockedStore(t)
	id := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "version", "kind", "payload", "created_at"}).
		AddRow(1, id, 0, "Opened", []byte(`{"full_name":"Alice","email_address":"alice@example.com","password_hash":"h"}`), now).
		AddRow(2, id, 1, "Credited", []byte(`{"amount":10000}`), now)
	mock.ExpectQuery(`SELECT (.+) FROM "account_events" WHERE aggregate_id = \$1 ORDER BY version ASC`).
		WithArgs(id).
		WillReturnRows(rows)

	events, err := store.ReadStream(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, events, 2)

	opened, ok := events[0].Payload.(account.Opened)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", opened.EmailAddress)

	credited, ok := events[1].Payload.(account.Credited)
	require.True(t, ok)
	assert.Equal(t, int64(10000), credited.Amount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ReadStream_UnknownKind(t *testing.T) {
	store, mock := newMockedStore(t)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "version", "kind", "payload", "created_at"}).
		AddRow(1, id, 0, "Bogus", []byte(`{}`), time.Now().UTC())
	mock.ExpectQuery(`SELECT (.+) FROM "account_events"`).
		WithArgs(id).
		WillReturnRows(rows)

	_, err := store.ReadStream(context.Background(), id)
	assert.Error(t, err)
}

func TestGormStore_Append(t *testing.T) {
	store, mock := newMockedStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "account_events" WHERE aggregate_id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO "account_events" (.+) RETURNING "id"`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := store.Append(context.Background(), eventstore.StreamAppend{
		AggregateID:     id,
		ExpectedVersion: 0,
		Events: []account.Event{
			{
				AggregateID: id,
				Version:     0,
				Kind:        account.KindOpened,
				Payload:     account.Opened{FullName: "Alice", EmailAddress: "alice@example.com"},
				Timestamp:   time.Now().UTC(),
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Append_VersionConflict(t *testing.T) {
	store, mock := newMockedStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "account_events" WHERE aggregate_id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	err := store.Append(context.Background(), eventstore.StreamAppend{
		AggregateID:     id,
		ExpectedVersion: 1,
		Events: []account.Event{
			{AggregateID: id, Kind: account.KindCredited, Payload: account.Credited{Amount: 1}},
		},
	})
	assert.ErrorIs(t, err, eventstore.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
