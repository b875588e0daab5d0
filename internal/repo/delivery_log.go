// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the outbound
// delivery ledger.
//
// Error semantics follow the other repositories: ErrNotFound when a row is
// missing or a conditional update matched nothing, raw GORM errors otherwise.
//
// Functions:
//
//   - CreateDeliveryLog(ctx, db, campaignID, recipientID, kind, text) -> *domain.DeliveryLog, error
//     Inserts a pending ledger row for one outbound notification.
//
//   - MarkDeliverySent(ctx, db, id, platformMessageID) -> error
//     Records a successful attempt: status=sent, attempt++, delivered_at set.
//
//   - MarkDeliveryFailed(ctx, db, id, errKind, detail) -> error
//     Records a failed attempt: attempt++, error class and detail stored.
//     Rows whose error is permanent, or whose attempt budget is exhausted,
//     are promoted straight to permanently_failed.
//
//   - ListRetryableDeliveries(ctx, db, limit) -> []domain.DeliveryLog, error
//     Returns failed rows still inside their attempt budget whose error is
//     not permanent. Backoff eligibility is the scheduler's concern.
//
//   - DeliveryStats(ctx, db, campaignID) -> map[status]count, error
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/telegive/bot-service/internal/domain"
)

// CreateDeliveryLog inserts a pending ledger row for one outbound
// notification to recipientID. ScheduledAt is set to now (UTC).
func CreateDeliveryLog(ctx context.Context, db *gorm.DB, campaignID, recipientID int64, kind, text string) (*domain.DeliveryLog, error) {
	row := &domain.DeliveryLog{
		CampaignID:  campaignID,
		RecipientID: recipientID,
		MessageKind: kind,
		Text:        text,
		Status:      domain.DeliveryPending,
		MaxAttempts: 3,
		ScheduledAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// MarkDeliverySent records a successful send attempt for row id.
func MarkDeliverySent(ctx context.Context, db *gorm.DB, id, platformMessageID int64) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.DeliveryLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              domain.DeliverySent,
			"attempt_count":       gorm.Expr("attempt_count + 1"),
			"platform_message_id": platformMessageID,
			"last_error_kind":     "",
			"error_detail":        "",
			"last_attempt_at":     &now,
			"delivered_at":        &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDeliveryFailed records a failed send attempt for row id with its error
// classification. Permanent errors and exhausted attempt budgets terminate
// the row: it becomes permanently_failed and the retry scheduler will never
// select it again.
func MarkDeliveryFailed(ctx context.Context, db *gorm.DB, id int64, errKind, detail string) error {
	now := time.Now().UTC()

	var row domain.DeliveryLog
	if err := db.WithContext(ctx).First(&row, id).Error; err != nil {
		return err
	}

	status := domain.DeliveryFailed
	if errKind == domain.ErrClassPermanent || row.AttemptCount+1 >= row.MaxAttempts {
		status = domain.DeliveryPermanentlyFailed
	}

	res := db.WithContext(ctx).
		Model(&domain.DeliveryLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_error_kind": errKind,
			"error_detail":    detail,
			"last_attempt_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRetryableDeliveries returns failed rows that are still inside their
// attempt budget and whose last error was not permanent, oldest attempts
// first. Whether enough backoff time has elapsed is decided by the caller.
func ListRetryableDeliveries(ctx context.Context, db *gorm.DB, limit int) ([]domain.DeliveryLog, error) {
	var out []domain.DeliveryLog
	q := db.WithContext(ctx).
		Where("status = ? AND attempt_count < max_attempts AND last_error_kind <> ?",
			domain.DeliveryFailed, domain.ErrClassPermanent).
		Order("last_attempt_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// DeliveryStats returns row counts per delivery status for a campaign.
func DeliveryStats(ctx context.Context, db *gorm.DB, campaignID int64) (map[string]int64, error) {
	type bucket struct {
		Status string
		Total  int64
	}
	var rows []bucket
	err := db.WithContext(ctx).
		Model(&domain.DeliveryLog{}).
		Select("status, count(*) as total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, b := range rows {
		out[b.Status] = b.Total
	}
	return out, nil
}
