package services

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/telegive/bot-service/internal/domain"
	"github.com/telegive/bot-service/internal/repo"
	"github.com/telegive/bot-service/internal/telegram"
)

// retryBackoff maps the attempt count already consumed to the minimum wait
// before the next attempt. Index 0 applies after the first failure.
var retryBackoff = []time.Duration{5 * time.Minute, 15 * time.Minute, 60 * time.Minute}

// DeliveryService owns the durable outbound ledger: every campaign message
// gets a delivery_logs row before the first send attempt, failures are
// classified as transient or permanent, and transient ones are retried on
// a backoff schedule until the attempt budget runs out.
type DeliveryService struct {
	DB     *gorm.DB
	Sender telegram.Sender

	// RetryBatch caps how many rows one retry sweep picks up. Zero means
	// no cap.
	RetryBatch int
}

func NewDeliveryService(db *gorm.DB, sender telegram.Sender) *DeliveryService {
	return &DeliveryService{DB: db, Sender: sender, RetryBatch: 100}
}

// Enqueue records the message in the ledger and attempts delivery
// immediately. The returned row reflects the post-attempt state; the error
// reports ledger failures only; a send failure is captured in the row, not
// returned, because the retry sweep owns it from here.
func (d *DeliveryService) Enqueue(ctx context.Context, campaignID, recipientID int64, kind, text string, keyboard *telegram.InlineKeyboard) (*domain.DeliveryLog, error) {
	row, err := repo.CreateDeliveryLog(ctx, d.DB, campaignID, recipientID, kind, text)
	if err != nil {
		return nil, err
	}
	if err := d.attempt(ctx, row, keyboard); err != nil {
		return row, err
	}
	return row, nil
}

// attempt performs one send, updates the ledger, and mirrors the resulting
// state back onto row so callers see the post-attempt status without a
// re-read.
func (d *DeliveryService) attempt(ctx context.Context, row *domain.DeliveryLog, keyboard *telegram.InlineKeyboard) error {
	res, sendErr := d.Sender.Send(ctx, row.RecipientID, row.Text, keyboard)
	if sendErr == nil {
		if err := repo.MarkDeliverySent(ctx, d.DB, row.ID, res.MessageID); err != nil {
			return err
		}
		row.Status = domain.DeliverySent
		row.AttemptCount++
		row.PlatformMessageID = res.MessageID
		row.LastErrorKind = ""
		row.ErrorDetail = ""
		deliveryAttempts.WithLabelValues(row.MessageKind, domain.DeliverySent).Inc()
		return nil
	}

	kind, detail := classifySendError(sendErr)
	log.Warn().
		Int64("campaign_id", row.CampaignID).
		Int64("recipient_id", row.RecipientID).
		Str("error_kind", kind).
		Str("detail", detail).
		Msg("delivery attempt failed")

	if err := repo.MarkDeliveryFailed(ctx, d.DB, row.ID, kind, detail); err != nil {
		return err
	}
	row.AttemptCount++
	row.LastErrorKind = kind
	row.ErrorDetail = detail
	// Mirror the ledger's promotion rule.
	if kind == domain.ErrClassPermanent || row.AttemptCount >= row.MaxAttempts {
		row.Status = domain.DeliveryPermanentlyFailed
	} else {
		row.Status = domain.DeliveryFailed
	}
	deliveryAttempts.WithLabelValues(row.MessageKind, row.Status).Inc()
	return nil
}

// classifySendError maps a send failure onto the ledger's error taxonomy.
// Anything that is not a classified API error (timeouts, DNS, connection
// resets) counts as transient.
func classifySendError(err error) (kind, detail string) {
	var apiErr *telegram.SendError
	if errors.As(err, &apiErr) {
		if apiErr.Permanent() {
			return domain.ErrClassPermanent, apiErr.Desc
		}
		return domain.ErrClassTransient, apiErr.Desc
	}
	return domain.ErrClassTransient, err.Error()
}

// ProcessRetryQueue sweeps the ledger for retryable failures whose backoff
// window has elapsed and re-attempts them. It returns how many rows it
// attempted; rows still inside their backoff window are skipped without
// consuming budget.
func (d *DeliveryService) ProcessRetryQueue(ctx context.Context) (int, error) {
	retryRuns.Inc()
	rows, err := repo.ListRetryableDeliveries(ctx, d.DB, d.RetryBatch)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	attempted := 0
	for i := range rows {
		row := &rows[i]
		if !retryDue(row, now) {
			continue
		}
		retrySelected.Inc()
		attempted++
		if err := d.attempt(ctx, row, nil); err != nil {
			log.Error().Err(err).Int64("delivery_id", row.ID).Msg("retry ledger update failed")
		}
	}
	return attempted, nil
}

// retryDue reports whether the row's backoff window has elapsed. The wait
// grows with the attempt count; attempts beyond the schedule reuse its
// last step.
func retryDue(row *domain.DeliveryLog, now time.Time) bool {
	if row.LastAttemptAt == nil {
		return true
	}
	idx := row.AttemptCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryBackoff) {
		idx = len(retryBackoff) - 1
	}
	return now.Sub(*row.LastAttemptAt) >= retryBackoff[idx]
}

// RetryScheduler wraps a cron runner around the retry sweep and the
// expired-session cleanup so both run unattended.
type RetryScheduler struct {
	cron     *cron.Cron
	delivery *DeliveryService
	db       *gorm.DB
}

// NewRetryScheduler registers the periodic jobs. Interval specs use the
// cron "@every" form, e.g. "@every 5m".
func NewRetryScheduler(d *DeliveryService, db *gorm.DB, retrySpec, cleanupSpec string) (*RetryScheduler, error) {
	s := &RetryScheduler{cron: cron.New(), delivery: d, db: db}

	if _, err := s.cron.AddFunc(retrySpec, s.runRetries); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cleanupSpec, s.runCleanup); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RetryScheduler) runRetries() {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	n, err := s.delivery.ProcessRetryQueue(ctx)
	if err != nil {
		log.Error().Err(err).Msg("retry sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("attempted", n).Msg("retry sweep complete")
	}
}

func (s *RetryScheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := repo.DeleteExpiredInteractionStates(ctx, s.db, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("expired session cleanup failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("expired sessions cleaned up")
	}
}

// Start launches the scheduler's jobs in their own goroutines.
func (s *RetryScheduler) Start() { s.cron.Start() }

// Stop halts scheduling and blocks until running jobs finish.
func (s *RetryScheduler) Stop() {
	<-s.cron.Stop().Done()
}
