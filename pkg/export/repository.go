package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by Get when no record exists for a request id.
var ErrNotFound = errors.New("export status record not found")

// StatusStore is the durable per-request status contract. Upsert never
// duplicates rows for a request id, and a Get immediately following an Upsert
// from the same orchestration observes that write.
type StatusStore interface {
	Get(ctx context.Context, requestID string) (*StatusRecord, error)
	Upsert(ctx context.Context, rec *StatusRecord) error
	SetState(ctx context.Context, requestID, state string) error
	RecordAttempt(ctx context.Context, requestID string, attempt int) error
	SetNotificationSent(ctx context.Context, requestID string, sent bool) error
}

// Repository is the Postgres-backed StatusStore.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&StatusRecord{})
}

func (r *Repository) Get(ctx context.Context, requestID string) (*StatusRecord, error) {
	var rec StatusRecord
	result := r.db.WithContext(ctx).First(&rec, "request_id = ?", requestID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, Transient(KindStatusWrite, fmt.Errorf("reading status record: %w", result.Error))
	}
	return &rec, nil
}

// Upsert creates or overwrites the record keyed on request_id. Concurrent
// upserts for the same id resolve in the database, not via in-process locks.
func (r *Repository) Upsert(ctx context.Context, rec *StatusRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	// attempt_count is deliberately absent from the update set: it is owned
	// by RecordAttempt and must survive the terminal upsert.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state", "artifact_reference", "error_detail",
			"params", "notification_sent", "updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return Transient(KindStatusWrite, fmt.Errorf("upserting status record: %w", err))
	}
	return nil
}

func (r *Repository) SetState(ctx context.Context, requestID, state string) error {
	err := r.db.WithContext(ctx).Model(&StatusRecord{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"state":      state,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return Transient(KindStatusWrite, fmt.Errorf("updating state to %s: %w", state, err))
	}
	return nil
}

// RecordAttempt stores how many tries the currently retrying step has used.
// The column only ever grows, so the record ends up reflecting the worst
// step of the whole run.
func (r *Repository) RecordAttempt(ctx context.Context, requestID string, attempt int) error {
	err := r.db.WithContext(ctx).Model(&StatusRecord{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"attempt_count": gorm.Expr("GREATEST(attempt_count, ?)", attempt),
			"updated_at":    time.Now().UTC(),
		}).Error
	if err != nil {
		return Transient(KindStatusWrite, fmt.Errorf("recording attempt count: %w", err))
	}
	return nil
}

func (r *Repository) SetNotificationSent(ctx context.Context, requestID string, sent bool) error {
	err := r.db.WithContext(ctx).Model(&StatusRecord{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"notification_sent": sent,
			"updated_at":        time.Now().UTC(),
		}).Error
	if err != nil {
		return Transient(KindStatusWrite, fmt.Errorf("updating notification_sent: %w", err))
	}
	return nil
}
