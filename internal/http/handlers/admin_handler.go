// Admin HTTP handlers.
//
// These endpoints are for sibling services and operators, guarded by the
// AdminAuth middleware:
//   - POST /api/v1/broadcast              bulk winner/loser dispatch
//   - POST /api/v1/send                   single direct message via the ledger
//   - GET  /api/v1/deliveries/:campaign   per-campaign delivery status counts
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/telegive/bot-service/internal/domain"
	"github.com/telegive/bot-service/internal/services"
	"github.com/telegive/bot-service/internal/telegram"
)

// Broadcaster is the bulk-dispatch contract consumed by the admin handlers.
type Broadcaster interface {
	Broadcast(ctx context.Context, campaignID int64, recipientIDs, winnerIDs []int64, winnerText, loserText string) (*services.Summary, error)
}

// Dispatcher is the single-message delivery contract.
type Dispatcher interface {
	Enqueue(ctx context.Context, campaignID, recipientID int64, kind, text string, keyboard *telegram.InlineKeyboard) (*domain.DeliveryLog, error)
}

// Stats exposes per-campaign delivery ledger aggregates.
type Stats interface {
	DeliveryStats(ctx context.Context, campaignID int64) (map[string]int64, error)
}

// Handlers groups the HTTP endpoints. It depends on narrow service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	intake       Intake
	broadcaster  Broadcaster
	dispatcher   Dispatcher
	stats        Stats
	webhookToken string
}

// New constructs a Handlers bound to the given services. webhookToken is
// the bot token expected in the webhook path.
func New(intake Intake, b Broadcaster, d Dispatcher, s Stats, webhookToken string) *Handlers {
	return &Handlers{
		intake:       intake,
		broadcaster:  b,
		dispatcher:   d,
		stats:        s,
		webhookToken: webhookToken,
	}
}

// BroadcastRequest is the body of POST /api/v1/broadcast. WinnerIDs may be
// empty (everyone gets the loser message); empty message texts fall back to
// the stock result replies.
type BroadcastRequest struct {
	CampaignID    int64   `json:"campaign_id" binding:"required,gt=0"`
	RecipientIDs  []int64 `json:"recipient_ids" binding:"required,min=1"`
	WinnerIDs     []int64 `json:"winner_ids"`
	WinnerMessage string  `json:"winner_message"`
	LoserMessage  string  `json:"loser_message"`
}

// Broadcast handles POST /api/v1/broadcast. The response is the first-pass
// summary: transient failures remain in the ledger and are retried in the
// background, so Sent can keep growing after this call returns.
func (h *Handlers) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	sum, err := h.broadcaster.Broadcast(c.Request.Context(),
		req.CampaignID, req.RecipientIDs, req.WinnerIDs, req.WinnerMessage, req.LoserMessage)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeBroadcastFailed, "broadcast failed")
		return
	}
	ok(c, http.StatusOK, sum)
}

// SendRequest is the body of POST /api/v1/send.
type SendRequest struct {
	CampaignID  int64  `json:"campaign_id" binding:"required,gt=0"`
	RecipientID int64  `json:"recipient_id" binding:"required,gt=0"`
	Kind        string `json:"kind" binding:"required,oneof=winner loser confirmation captcha"`
	Text        string `json:"text" binding:"required"`
}

// Send handles POST /api/v1/send: one direct message through the delivery
// ledger, so it gets the same failure classification and retry treatment as
// a broadcast.
func (h *Handlers) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	row, err := h.dispatcher.Enqueue(c.Request.Context(), req.CampaignID, req.RecipientID, req.Kind, req.Text, nil)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSendFailed, "send failed")
		return
	}
	ok(c, http.StatusOK, row)
}

// Deliveries handles GET /api/v1/deliveries/:campaign, returning ledger row
// counts per status for the campaign.
func (h *Handlers) Deliveries(c *gin.Context) {
	campaignID, err := strconv.ParseInt(c.Param("campaign"), 10, 64)
	if err != nil || campaignID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "campaign must be a positive integer")
		return
	}

	counts, err := h.stats.DeliveryStats(c.Request.Context(), campaignID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load delivery stats")
		return
	}
	ok(c, http.StatusOK, gin.H{"campaign_id": campaignID, "statuses": counts})
}
