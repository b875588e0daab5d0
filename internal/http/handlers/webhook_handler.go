// Webhook HTTP handler.
//
// POST /webhook/:token receives raw platform updates. The path token is the
// bot token and doubles as the endpoint's authentication: a mismatch gets a
// 404 indistinguishable from an unknown route. For a valid token the
// endpoint acknowledges with 200 regardless of what processing did with the
// update: the platform redelivers non-2xx responses indefinitely, so a
// poison update must be absorbed, never bounced.
package handlers

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telegive/bot-service/internal/services"
)

// maxUpdateBytes caps the webhook body size. Platform updates are small;
// anything larger is not a legitimate update.
const maxUpdateBytes = 1 << 20

// Intake is the update-ingestion contract consumed by the webhook handler.
type Intake interface {
	Ingest(ctx context.Context, raw []byte) services.AckOutcome
}

// Webhook handles POST /webhook/:token.
func (h *Handlers) Webhook(c *gin.Context) {
	token := c.Param("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBytes))
	if err != nil {
		// Acknowledge anyway; a torn body will be redelivered by the
		// platform with the same update id and deduplicated then.
		ok(c, http.StatusOK, gin.H{"ok": true, "result": string(services.AckFailed)})
		return
	}

	outcome := h.intake.Ingest(c.Request.Context(), raw)
	ok(c, http.StatusOK, gin.H{"ok": true, "result": string(outcome)})
}
