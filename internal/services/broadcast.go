package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/telegive/bot-service/internal/domain"
)

// defaultBatchSize is how many recipients one paced batch covers. The
// platform throttles bots around 30 messages per second; batching at that
// size with an inter-batch limiter keeps a large campaign under the cap.
const defaultBatchSize = 30

// BroadcastService dispatches end-of-campaign results to every participant
// through the delivery ledger, pacing batches to respect platform rate
// limits.
type BroadcastService struct {
	Delivery *DeliveryService

	// BatchSize is the number of recipients per paced batch.
	BatchSize int
	// Limiter gates batch starts. One token is consumed per batch.
	Limiter *rate.Limiter
}

func NewBroadcastService(d *DeliveryService) *BroadcastService {
	return &BroadcastService{
		Delivery:  d,
		BatchSize: defaultBatchSize,
		Limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Failure records one recipient whose message did not go out on the first
// attempt, with the classification that decides its fate.
type Failure struct {
	RecipientID int64  `json:"recipient_id"`
	ErrorKind   string `json:"error_kind"`
	Detail      string `json:"detail,omitempty"`
}

// Summary is the first-pass result of a broadcast. Transient failures stay
// in the ledger for the retry sweep; blocked counts recipients rejected
// permanently (bot blocked, chat gone) that will never be retried.
type Summary struct {
	CampaignID int64     `json:"campaign_id"`
	Total      int       `json:"total"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Blocked    int       `json:"blocked"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Broadcast sends the campaign's result to every recipient: winnerText to
// recipients in winnerIDs, loserText to everyone else. Empty texts fall
// back to the stock result messages. Each recipient gets a ledger row
// regardless of outcome, so the campaign's delivery state is always
// reconstructable from the database. The context cancels pacing waits but
// already-ledgered rows are left for the retry sweep.
func (b *BroadcastService) Broadcast(ctx context.Context, campaignID int64, recipientIDs, winnerIDs []int64, winnerText, loserText string) (*Summary, error) {
	if len(recipientIDs) == 0 {
		return nil, ErrEmptyRecipients
	}
	if winnerText == "" {
		winnerText = msgDefaultWinnerText
	}
	if loserText == "" {
		loserText = msgDefaultLoserText
	}
	winners := make(map[int64]struct{}, len(winnerIDs))
	for _, id := range winnerIDs {
		winners[id] = struct{}{}
	}

	sum := &Summary{CampaignID: campaignID, Total: len(recipientIDs)}
	batch := b.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	for start := 0; start < len(recipientIDs); start += batch {
		if err := b.Limiter.Wait(ctx); err != nil {
			return sum, err
		}
		end := start + batch
		if end > len(recipientIDs) {
			end = len(recipientIDs)
		}
		for _, recipientID := range recipientIDs[start:end] {
			kind, text := domain.KindLoser, loserText
			if _, won := winners[recipientID]; won {
				kind, text = domain.KindWinner, winnerText
			}

			row, err := b.Delivery.Enqueue(ctx, campaignID, recipientID, kind, text, nil)
			if err != nil {
				// Ledger write failed; the recipient has no row to retry
				// from, so surface it as a hard failure.
				sum.Failed++
				sum.Failures = append(sum.Failures, Failure{
					RecipientID: recipientID,
					ErrorKind:   domain.ErrClassTransient,
					Detail:      err.Error(),
				})
				continue
			}
			switch row.Status {
			case domain.DeliverySent:
				sum.Sent++
			case domain.DeliveryPermanentlyFailed:
				sum.Blocked++
				sum.Failures = append(sum.Failures, Failure{
					RecipientID: recipientID,
					ErrorKind:   row.LastErrorKind,
					Detail:      row.ErrorDetail,
				})
			default:
				sum.Failed++
				sum.Failures = append(sum.Failures, Failure{
					RecipientID: recipientID,
					ErrorKind:   row.LastErrorKind,
					Detail:      row.ErrorDetail,
				})
			}
		}
	}

	log.Info().
		Int64("campaign_id", campaignID).
		Int("total", sum.Total).
		Int("winners", len(winnerIDs)).
		Int("sent", sum.Sent).
		Int("failed", sum.Failed).
		Int("blocked", sum.Blocked).
		Msg("broadcast first pass complete")
	return sum, nil
}
