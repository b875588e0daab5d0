// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Webhook event processing statuses.
const (
	EventPending   = "pending"
	EventProcessed = "processed"
	EventFailed    = "failed"
)

// Payload kinds recognized by the intake pipeline.
const (
	PayloadMessage  = "message"
	PayloadCallback = "callback_query"
	PayloadOther    = "other"
)

// WebhookEvent is the idempotency ledger entry for one inbound platform
// event, keyed by the platform-assigned update id. The row is inserted as
// "pending" before any processing starts; the unique index on EventID is
// what enforces at-most-once processing across service instances, so a
// unique-constraint violation on insert means "duplicate, skip".
//
// The row is mutated exactly once afterwards, to a terminal status with
// timing and error detail, and is never deleted by this service.
type WebhookEvent struct {
	ID           int64      `json:"id"            gorm:"primaryKey"`
	EventID      int64      `json:"event_id"      gorm:"uniqueIndex:ux_webhook_event_id;not null"`
	PayloadKind  string     `json:"payload_kind"  gorm:"type:varchar(32);not null"`
	SenderID     int64      `json:"sender_id"`
	ChatID       int64      `json:"chat_id"`
	Status       string     `json:"status"        gorm:"type:varchar(16);not null;default:'pending'"`
	ErrorDetail  string     `json:"error_detail,omitempty" gorm:"type:text"`
	ProcessingMS int64      `json:"processing_ms"`
	ReceivedAt   time.Time  `json:"received_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// TableName implements the GORM tabler interface.
func (WebhookEvent) TableName() string { return "webhook_events" }
