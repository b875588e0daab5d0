// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the permanent
// CaptchaVerification flag.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/telegive/bot-service/internal/domain"
)

// IsVerified reports whether senderID has ever passed the captcha challenge.
func IsVerified(ctx context.Context, db *gorm.DB, senderID int64) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CaptchaVerification{}).
		Where("sender_id = ?", senderID).
		Count(&total).Error
	return total > 0, err
}

// MarkVerified records that senderID passed the captcha, remembering the
// campaign that triggered the first verification. The flag is insert-once:
// a concurrent or repeated call that loses the primary-key race is a no-op
// success, never an error.
func MarkVerified(ctx context.Context, db *gorm.DB, senderID, campaignID int64) error {
	rec := &domain.CaptchaVerification{
		SenderID:        senderID,
		FirstCampaignID: campaignID,
		CompletedAt:     time.Now().UTC(),
	}
	err := db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return nil
	}
	return err
}

// isUniqueViolation matches the plain-text UNIQUE errors produced by
// glebarez/sqlite, which GORM does not always translate.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
