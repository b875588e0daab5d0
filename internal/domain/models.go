// Package domain defines the persistence models for the giveaway bot
// backend: the webhook idempotency ledger, per-user interaction state,
// the permanent captcha verification flag, and the outbound delivery
// ledger. These types are mapped with GORM and form the core data layer
// of the service.
package domain

import "time"

// Interaction states for the participation workflow.
const (
	StateIdle                 = "idle"
	StateAwaitingCaptcha      = "awaiting_captcha"
	StateAwaitingSubscription = "awaiting_subscription"
)

// Delivery statuses for DeliveryLog rows.
const (
	DeliveryPending           = "pending"
	DeliverySent              = "sent"
	DeliveryFailed            = "failed"
	DeliveryPermanentlyFailed = "permanently_failed"
)

// Message kinds recorded in the delivery ledger.
const (
	KindWinner       = "winner"
	KindLoser        = "loser"
	KindConfirmation = "confirmation"
	KindCaptcha      = "captcha"
)

// Error classifications for failed delivery attempts. Permanent errors
// (recipient blocked the bot, chat not found) are never retried.
const (
	ErrClassPermanent = "permanent"
	ErrClassTransient = "transient"
)

// InteractionState is the single live conversation record for a sender.
// It carries the workflow state plus the contextual payload needed to
// resume it (which campaign, the expected captcha answer, attempts).
//
// Exactly one row may exist per sender; every write replaces the previous
// one (last-writer-wins), and rows past ExpiresAt are treated as absent.
type InteractionState struct {
	SenderID      int64     `json:"sender_id"      gorm:"primaryKey;autoIncrement:false"`
	State         string    `json:"state"          gorm:"type:varchar(32);not null"`
	CampaignID    int64     `json:"campaign_id"    gorm:"not null"`
	PendingAnswer int       `json:"pending_answer"`
	AttemptCount  int       `json:"attempt_count"  gorm:"not null;default:0"`
	MaxAttempts   int       `json:"max_attempts"   gorm:"not null;default:3"`
	QuestionText  string    `json:"question_text"  gorm:"type:varchar(255)"`
	UpdatedAt     time.Time `json:"updated_at"`
	ExpiresAt     time.Time `json:"expires_at"     gorm:"index;not null"`
}

// TableName returns the database table name for InteractionState.
func (InteractionState) TableName() string { return "interaction_states" }

// Expired reports whether the state row is past its TTL at the given time.
func (s InteractionState) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// CaptchaVerification records that a sender has passed the verification
// challenge at least once. The row is created exactly once and never
// mutated or deleted; it decouples "has ever passed captcha" from any
// single campaign.
type CaptchaVerification struct {
	SenderID        int64     `json:"sender_id"         gorm:"primaryKey;autoIncrement:false"`
	FirstCampaignID int64     `json:"first_campaign_id" gorm:"not null"`
	CompletedAt     time.Time `json:"completed_at"      gorm:"not null"`
}

// TableName returns the database table name for CaptchaVerification.
func (CaptchaVerification) TableName() string { return "captcha_verifications" }

// DeliveryLog is one row of the outbound delivery ledger: a single
// (campaign, recipient, message kind) notification and its attempt history.
//
// Fields:
//   - Status: pending → sent | failed → permanently_failed.
//   - AttemptCount / MaxAttempts: retry budget; once AttemptCount reaches
//     MaxAttempts the row is terminal.
//   - LastErrorKind: "permanent" or "transient"; permanent rows are never
//     selected for retry regardless of attempt count.
//   - PlatformMessageID: message id assigned by the platform on success.
//   - ScheduledAt / LastAttemptAt / DeliveredAt: attempt timing, used by
//     the retry scheduler's backoff checks.
type DeliveryLog struct {
	ID                int64      `json:"id"                  gorm:"primaryKey"`
	CampaignID        int64      `json:"campaign_id"         gorm:"not null;index:idx_campaign_deliveries"`
	RecipientID       int64      `json:"recipient_id"        gorm:"not null"`
	MessageKind       string     `json:"message_kind"        gorm:"type:varchar(32);not null"`
	Text              string     `json:"-"                   gorm:"type:text;not null"`
	Status            string     `json:"status"              gorm:"type:varchar(24);not null;default:'pending';index"`
	AttemptCount      int        `json:"attempt_count"       gorm:"not null;default:0"`
	MaxAttempts       int        `json:"max_attempts"        gorm:"not null;default:3"`
	LastErrorKind     string     `json:"last_error_kind,omitempty"  gorm:"type:varchar(16)"`
	ErrorDetail       string     `json:"error_detail,omitempty"     gorm:"type:text"`
	PlatformMessageID int64      `json:"platform_message_id,omitempty"`
	ScheduledAt       time.Time  `json:"scheduled_at"`
	LastAttemptAt     *time.Time `json:"last_attempt_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
}

// TableName returns the database table name for DeliveryLog.
func (DeliveryLog) TableName() string { return "delivery_logs" }
