package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventstore"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is the database row for one account event.
type EventRecord struct {
	ID          uint      `gorm:"primaryKey"`
	AggregateID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_stream_version,priority:1"`
	Version     int64     `gorm:"uniqueIndex:idx_stream_version,priority:2"`
	Kind        string    `gorm:"type:varchar(64);not null"`
	Payload     []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time
}

// TableName specifies the table name for the EventRecord model.
func (EventRecord) TableName() string {
	return "account_events"
}

// GormStore persists event streams through gorm. The unique
// (aggregate_id, version) index backs the optimistic concurrency check at the
// database level, on top of the in-transaction version read.
type GormStore struct {
	db *gorm.DB
}

// NewWithGorm creates an event store over the given *gorm.DB.
func NewWithGorm(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the events table and index.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&EventRecord{})
}

// ReadStream returns the stream's events from version 0, decoding payloads by
// kind.
func (s *GormStore) ReadStream(ctx context.Context, id uuid.UUID) ([]account.Event, error) {
	var records []EventRecord
	err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", id).
		Order("version ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", id, err)
	}

	events := make([]account.Event, 0, len(records))
	for _, rec := range records {
		payload, err := decodePayload(account.EventKind(rec.Kind), rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode event %s v%d: %w", id, rec.Version, err)
		}
		events = append(events, account.Event{
			AggregateID: rec.AggregateID,
			Version:     rec.Version,
			Kind:        account.EventKind(rec.Kind),
			Payload:     payload,
			Timestamp:   rec.CreatedAt,
		})
	}
	return events, nil
}

// Append writes every stream's events in one database transaction: the
// per-stream version check and all inserts commit together or roll back
// together. A concurrent writer that slips between the check and the insert
// trips the unique index, which is reported as ErrVersionConflict as well.
func (s *GormStore) Append(ctx context.Context, appends ...eventstore.StreamAppend) error {
	if len(appends) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ap := range appends {
			var current int64
			err := tx.Model(&EventRecord{}).
				Where("aggregate_id = ?", ap.AggregateID).
				Count(&current).Error
			if err != nil {
				return fmt.Errorf("count stream %s: %w", ap.AggregateID, err)
			}
			if current != ap.ExpectedVersion {
				return eventstore.ErrVersionConflict
			}
		}

		for _, ap := range appends {
			for i, e := range ap.Events {
				payload, err := encodePayload(e.Payload)
				if err != nil {
					return fmt.Errorf("encode event %s: %w", ap.AggregateID, err)
				}
				rec := EventRecord{
					AggregateID: ap.AggregateID,
					Version:     ap.ExpectedVersion + int64(i),
					Kind:        e.Kind.String(),
					Payload:     payload,
					CreatedAt:   e.Timestamp,
				}
				if err := tx.Create(&rec).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return eventstore.ErrVersionConflict
					}
					return fmt.Errorf("append to stream %s: %w", ap.AggregateID, err)
				}
			}
		}
		return nil
	})
}

var _ eventstore.Store = (*GormStore)(nil)
