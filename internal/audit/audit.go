// Package audit persists every domain event the dispatcher publishes to a
// durable, append-only store, independent of the message bus (§SPEC_FULL
// domain stack: a bus subscriber can be down or lossy; the audit trail
// answers "what happened to seat X" without replaying the whole event
// stream).
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// Record is the gorm model backing the audit_records table. Payload is
// stored as raw JSON rather than a typed column per event kind, since the
// payload shape varies by EventKind and this table exists to be read by
// humans and indexers, not joined against.
type Record struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	TraceID    string `gorm:"index;size:32"`
	Kind       string `gorm:"index;size:32"`
	MarketKey  string `gorm:"index;size:64"`
	Payload    []byte
	OccurredAt time.Time `gorm:"index"`
}

func (Record) TableName() string { return "audit_records" }

// Store is an interfaces.EventPublisher that writes every event to
// Postgres through gorm, mirroring the repository shape of
// internal/db/repositories/order_repository.go (WithContext, Create,
// logged-and-returned errors) rather than rolling a bespoke SQL layer.
type Store struct {
	db  *gorm.DB
	log interfaces.Logger
}

// Open connects to Postgres and migrates the audit_records table.
func Open(dsn string, log interfaces.Logger) (*Store, error) {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// NewStore wraps an already-open *gorm.DB, letting callers share a
// connection pool across audit and other repositories, or hand in a
// sqlite-backed DB in tests.
func NewStore(db *gorm.DB, log interfaces.Logger) *Store {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	return &Store{db: db, log: log}
}

// recordFromEvent builds the row to persist for event, kept free of the
// database handle so it can be exercised without a live connection.
func recordFromEvent(event types.Event) (*Record, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal payload: %w", err)
	}
	return &Record{
		TraceID:    event.TraceID,
		Kind:       string(event.Kind),
		MarketKey:  fmt.Sprintf("%x", event.Market),
		Payload:    payload,
		OccurredAt: event.Timestamp,
	}, nil
}

// Publish implements interfaces.EventPublisher.
func (s *Store) Publish(ctx context.Context, event types.Event) error {
	rec, err := recordFromEvent(event)
	if err != nil {
		return err
	}
	if result := s.db.WithContext(ctx).Create(rec); result.Error != nil {
		s.log.Error("audit.write_failed", "trace", event.TraceID, "kind", rec.Kind, "err", result.Error.Error())
		return result.Error
	}
	return nil
}

// ByTrace returns every record sharing a trace ID, in the order they were
// written (a PlaceOrder call fans out into one row per fill plus the
// resting-order row, all under the same trace).
func (s *Store) ByTrace(ctx context.Context, traceID string) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("trace_id = ?", traceID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("audit: query by trace: %w", err)
	}
	return records, nil
}

// ByMarket returns the most recent records for a market, newest first.
func (s *Store) ByMarket(ctx context.Context, marketKey types.TraderKey, limit int) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("market_key = ?", fmt.Sprintf("%x", marketKey)).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("audit: query by market: %w", err)
	}
	return records, nil
}

var _ interfaces.EventPublisher = (*Store)(nil)
