// Outbound send primitive.
//
// BotClient wraps the platform's sendMessage call and classifies every
// failure as permanent (recipient blocked the bot, destination not found)
// or transient (timeouts, connectivity, throttling, server errors). The
// classification decides whether the delivery ledger will ever retry the
// message, so it is made here, next to the wire protocol, and nowhere else.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/telegive/bot-service/internal/domain"
)

// maxMessageRunes is the platform's hard limit on message text length.
const maxMessageRunes = 4096

// Sender delivers one text message (with optional interactive controls) to
// a recipient. Implementations classify failures via *SendError.
type Sender interface {
	Send(ctx context.Context, recipientID int64, text string, keyboard *InlineKeyboard) (SendResult, error)
}

// SendResult carries the platform-assigned message id of a successful send.
type SendResult struct {
	MessageID int64
}

// SendError is a classified delivery failure. Class is one of
// domain.ErrClassPermanent or domain.ErrClassTransient; Code is a stable
// machine-readable reason.
type SendError struct {
	Class string
	Code  string
	Desc  string
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("send failed (%s/%s): %s", e.Class, e.Code, e.Desc)
}

// Permanent reports whether the failure should never be retried.
func (e *SendError) Permanent() bool { return e.Class == domain.ErrClassPermanent }

// BotClient is the HTTP implementation of Sender against the platform's
// bot API. It is safe for concurrent use.
type BotClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

// NewBotClient builds a BotClient for the given bot token. timeout bounds
// each send call; keep it in single-digit seconds so a slow platform cannot
// stall the intake path.
func NewBotClient(baseURL, token string, timeout time.Duration) *BotClient {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &BotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboard `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send implements Sender.
func (c *BotClient) Send(ctx context.Context, recipientID int64, text string, keyboard *InlineKeyboard) (SendResult, error) {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:      recipientID,
		Text:        truncateRunes(text, maxMessageRunes),
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	})
	if err != nil {
		return SendResult{}, &SendError{Class: domain.ErrClassPermanent, Code: "encode_failed", Desc: err.Error()}
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, &SendError{Class: domain.ErrClassPermanent, Code: "bad_request", Desc: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		// Timeouts, DNS and connection failures: the platform may simply be
		// unreachable right now.
		return SendResult{}, &SendError{Class: domain.ErrClassTransient, Code: "network_error", Desc: err.Error()}
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SendResult{}, &SendError{Class: domain.ErrClassTransient, Code: "bad_response", Desc: err.Error()}
	}
	if out.OK {
		return SendResult{MessageID: out.Result.MessageID}, nil
	}
	return SendResult{}, classifyAPIError(out.ErrorCode, out.Description)
}

// classifyAPIError maps a platform error response to a SendError.
//
// 403 means the recipient blocked the bot (or the bot was kicked): no retry
// will ever succeed. "chat not found" on 400 is equally final. Throttling
// (429) and server-side errors are worth retrying later; remaining 4xx
// responses indicate a malformed request that a retry would only repeat.
func classifyAPIError(code int, description string) *SendError {
	low := strings.ToLower(description)
	switch {
	case code == 403:
		reason := "forbidden"
		if strings.Contains(low, "blocked") {
			reason = "user_blocked"
		}
		return &SendError{Class: domain.ErrClassPermanent, Code: reason, Desc: description}
	case code == 400 && strings.Contains(low, "chat not found"):
		return &SendError{Class: domain.ErrClassPermanent, Code: "chat_not_found", Desc: description}
	case code == 429 || code >= 500:
		return &SendError{Class: domain.ErrClassTransient, Code: "throttled_or_unavailable", Desc: description}
	default:
		return &SendError{Class: domain.ErrClassPermanent, Code: "rejected", Desc: description}
	}
}

// truncateRunes clips s to at most n runes, appending an ellipsis marker
// when clipped.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
