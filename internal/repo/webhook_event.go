// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the WebhookEvent
// idempotency ledger. Insertion doubles as the deduplication lock: the
// unique index on event_id guarantees at-most-once processing even when the
// same update is delivered concurrently to several service instances.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/telegive/bot-service/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a ledger row already exists for the given
// unique key (e.g. a webhook event id seen before).
var ErrDuplicate = errors.New("duplicate")

// GetWebhookEvent returns the ledger row for eventID or ErrNotFound.
func GetWebhookEvent(ctx context.Context, db *gorm.DB, eventID int64) (*domain.WebhookEvent, error) {
	var rec domain.WebhookEvent
	err := db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateWebhookEvent inserts a pending ledger row for eventID and returns
// ErrDuplicate on a unique violation. This insert is the serialization
// point of the intake pipeline: whichever caller wins the insert owns the
// event; everyone else must treat it as already processed.
func CreateWebhookEvent(ctx context.Context, db *gorm.DB, eventID int64, payloadKind string, senderID, chatID int64) (*domain.WebhookEvent, error) {
	rec := &domain.WebhookEvent{
		EventID:     eventID,
		PayloadKind: payloadKind,
		SenderID:    senderID,
		ChatID:      chatID,
		Status:      domain.EventPending,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// FinishWebhookEvent moves a pending row to its terminal status with timing
// and optional error detail. Terminal rows are never touched again.
func FinishWebhookEvent(ctx context.Context, db *gorm.DB, eventID int64, status, errorDetail string, elapsed time.Duration) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("event_id = ? AND status = ?", eventID, domain.EventPending).
		Updates(map[string]any{
			"status":        status,
			"error_detail":  errorDetail,
			"processing_ms": elapsed.Milliseconds(),
			"processed_at":  &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountWebhookEvents returns the number of ledger rows with the given status.
func CountWebhookEvents(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("status = ?", status).
		Count(&total).Error
	return total, err
}
