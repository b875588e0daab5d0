package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/telegive/bot-service/internal/domain"
	"github.com/telegive/bot-service/internal/repo"
	"github.com/telegive/bot-service/internal/telegram"
)

// AckOutcome describes what the intake pipeline did with one raw update.
// The transport layer acknowledges receipt regardless of the outcome; this
// exists for logging, metrics and the response body.
type AckOutcome string

const (
	AckProcessed   AckOutcome = "processed"
	AckDuplicate   AckOutcome = "duplicate"
	AckUnsupported AckOutcome = "unsupported"
	AckFailed      AckOutcome = "failed"
)

// Workflow is the slice of WorkflowService the intake pipeline dispatches
// into.
type Workflow interface {
	HandleMessage(ctx context.Context, msg telegram.InboundMessage) error
	HandleCallback(ctx context.Context, cb telegram.InboundCallback) error
}

// IntakeService turns raw webhook bodies into exactly-once workflow
// dispatches. Deduplication is insert-as-lock on the event's platform ID:
// whichever concurrent request wins the insert owns processing, every
// other request observes a duplicate and backs off.
type IntakeService struct {
	DB       *gorm.DB
	Workflow Workflow
}

func NewIntakeService(db *gorm.DB, wf Workflow) *IntakeService {
	return &IntakeService{DB: db, Workflow: wf}
}

// Ingest records, deduplicates and dispatches one raw update. It returns
// the outcome and never lets a processing failure escape as an error the
// transport would turn into a non-2xx status: the platform retries non-2xx
// responses forever, and a poison update must not wedge the webhook.
func (s *IntakeService) Ingest(ctx context.Context, raw []byte) AckOutcome {
	update, err := telegram.DecodeUpdate(raw)
	if err != nil {
		log.Warn().Err(err).Msg("discarding undecodable update")
		webhookEvents.WithLabelValues("unknown", "unsupported").Inc()
		return AckUnsupported
	}
	eventID := update.UpdateID

	inbound, err := telegram.Classify(update)
	if err != nil {
		// Recorded so a replay of the same update id stays a no-op.
		s.recordUnsupported(ctx, eventID, err)
		webhookEvents.WithLabelValues("unknown", "unsupported").Inc()
		return AckUnsupported
	}

	if _, err := repo.CreateWebhookEvent(ctx, s.DB, eventID, inbound.Kind(), inbound.Sender(), chatOf(inbound)); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			webhookEvents.WithLabelValues(inbound.Kind(), "duplicate").Inc()
			return AckDuplicate
		}
		log.Error().Err(err).Int64("event_id", eventID).Msg("failed to record webhook event")
		webhookEvents.WithLabelValues(inbound.Kind(), "error").Inc()
		return AckFailed
	}

	start := time.Now()
	dispatchErr := s.dispatch(ctx, inbound)
	elapsed := time.Since(start)

	status := domain.EventProcessed
	detail := ""
	outcome := AckProcessed
	if dispatchErr != nil {
		status = domain.EventFailed
		detail = dispatchErr.Error()
		outcome = AckFailed
		log.Error().Err(dispatchErr).
			Int64("event_id", eventID).
			Str("kind", inbound.Kind()).
			Int64("sender_id", inbound.Sender()).
			Msg("event processing failed")
	}
	if err := repo.FinishWebhookEvent(ctx, s.DB, eventID, status, detail, elapsed); err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("failed to finalize webhook event")
	}
	webhookEvents.WithLabelValues(inbound.Kind(), string(outcome)).Inc()
	return outcome
}

// dispatch routes the typed inbound into the workflow, converting a panic
// in handler code into an error so the event row still gets finalized.
func (s *IntakeService) dispatch(ctx context.Context, inbound telegram.Inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %s event: %v", inbound.Kind(), r)
		}
	}()

	switch in := inbound.(type) {
	case telegram.InboundMessage:
		return s.Workflow.HandleMessage(ctx, in)
	case telegram.InboundCallback:
		return s.Workflow.HandleCallback(ctx, in)
	default:
		return ErrUnknownMessageKind
	}
}

// recordUnsupported persists an unsupported-payload event in terminal state
// so replays of the same update id deduplicate. Duplicate inserts are a
// no-op.
func (s *IntakeService) recordUnsupported(ctx context.Context, eventID int64, cause error) {
	_, err := repo.CreateWebhookEvent(ctx, s.DB, eventID, domain.PayloadOther, 0, 0)
	if err != nil {
		if !errors.Is(err, repo.ErrDuplicate) {
			log.Warn().Err(err).Int64("event_id", eventID).Msg("failed to record unsupported event")
		}
		return
	}
	if err := repo.FinishWebhookEvent(ctx, s.DB, eventID, domain.EventFailed, cause.Error(), 0); err != nil {
		log.Warn().Err(err).Int64("event_id", eventID).Msg("failed to finalize unsupported event")
	}
}

// chatOf extracts the chat id from either inbound variant.
func chatOf(inbound telegram.Inbound) int64 {
	switch in := inbound.(type) {
	case telegram.InboundMessage:
		return in.ChatID
	case telegram.InboundCallback:
		return in.ChatID
	default:
		return 0
	}
}
