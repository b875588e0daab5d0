// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// InteractionState model: the single live conversation record per sender.
//
// All mutation is via single-row writes so concurrent events for the same
// sender are serialized at the storage layer rather than by an in-process
// lock (several service instances may be running). Rows past their TTL are
// treated as absent by readers.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/telegive/bot-service/internal/domain"
)

// GetInteractionState returns the non-expired state row for senderID, or
// ErrNotFound when the sender has no live session.
func GetInteractionState(ctx context.Context, db *gorm.DB, senderID int64, now time.Time) (*domain.InteractionState, error) {
	var st domain.InteractionState
	err := db.WithContext(ctx).
		Where("sender_id = ? AND expires_at > ?", senderID, now).
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// PutInteractionState writes the state row for st.SenderID, replacing any
// previous row (last-writer-wins). UpdatedAt is stamped here.
func PutInteractionState(ctx context.Context, db *gorm.DB, st *domain.InteractionState) error {
	st.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sender_id"}},
			UpdateAll: true,
		}).
		Create(st).Error
}

// IncrementCaptchaAttempts bumps attempt_count by one for senderID, but only
// while the row is still in awaiting_captcha and not expired. The conditional
// update keeps two racing answers from double-counting past the row's real
// state. Returns the new attempt count, or ErrNotFound when no live captcha
// session exists.
func IncrementCaptchaAttempts(ctx context.Context, db *gorm.DB, senderID int64, now time.Time) (int, error) {
	res := db.WithContext(ctx).
		Model(&domain.InteractionState{}).
		Where("sender_id = ? AND state = ? AND expires_at > ?", senderID, domain.StateAwaitingCaptcha, now).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	var st domain.InteractionState
	if err := db.WithContext(ctx).Where("sender_id = ?", senderID).First(&st).Error; err != nil {
		return 0, err
	}
	return st.AttemptCount, nil
}

// ClearInteractionState deletes the state row for senderID. Deleting an
// absent row is not an error.
func ClearInteractionState(ctx context.Context, db *gorm.DB, senderID int64) error {
	return db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Delete(&domain.InteractionState{}).Error
}

// DeleteExpiredInteractionStates removes rows whose TTL has passed and
// returns how many were deleted. Readers already ignore expired rows; this
// keeps the table from growing unboundedly.
func DeleteExpiredInteractionStates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.InteractionState{})
	return res.RowsAffected, res.Error
}
