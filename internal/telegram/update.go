// Package telegram contains the wire-format types exchanged with the
// messaging platform: inbound update envelopes, the callback-token codec
// for interactive buttons, and the outbound send primitive with failure
// classification.
//
// The package decodes loose platform JSON exactly once, at the intake
// boundary, into a small tagged union (Inbound) so the rest of the service
// never handles raw maps or unparsed callback strings.
package telegram

import (
	"encoding/json"
	"errors"
)

// Errors returned while decoding inbound updates.
var (
	// ErrMissingEventID indicates the envelope carried no update id, so the
	// event cannot be deduplicated and must be rejected.
	ErrMissingEventID = errors.New("update is missing update_id")

	// ErrUnsupportedPayload indicates the envelope carried none of the
	// recognized payload shapes.
	ErrUnsupportedPayload = errors.New("unsupported update payload")
)

// Update is the inbound webhook envelope. Exactly one payload field is
// expected to be set per update.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Text      string `json:"text,omitempty"`
}

// CallbackQuery is the follow-up event produced by a button click. Data
// carries the opaque callback token encoded by this package's builders.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// User identifies the platform account that produced an event.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Chat identifies where an event happened. Type is "private", "group",
// "supergroup" or "channel".
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// Inbound is the decoded, classified form of an update payload. It is a
// closed set: InboundMessage or InboundCallback.
type Inbound interface {
	// Kind returns the payload kind recorded in the idempotency ledger.
	Kind() string
	// Sender returns the account id that produced the event.
	Sender() int64
	inbound()
}

// InboundMessage is a plain text message (possibly a /command) sent to the
// bot.
type InboundMessage struct {
	SenderID  int64
	ChatID    int64
	ChatType  string
	MessageID int64
	Text      string
}

func (InboundMessage) Kind() string    { return "message" }
func (m InboundMessage) Sender() int64 { return m.SenderID }
func (InboundMessage) inbound()        {}

// Private reports whether the message arrived in a one-to-one chat.
// Group and channel traffic is ignored by the workflow.
func (m InboundMessage) Private() bool { return m.ChatType == "private" }

// InboundCallback is a button click. Action is the parsed callback token;
// it is never nil (unparseable tokens fail decoding).
type InboundCallback struct {
	SenderID    int64
	ChatID      int64
	ChatType    string
	MessageID   int64
	Action      CallbackAction
	FromChannel bool
}

func (InboundCallback) Kind() string    { return "callback_query" }
func (c InboundCallback) Sender() int64 { return c.SenderID }
func (InboundCallback) inbound()        {}

// DecodeUpdate parses the raw webhook body into an envelope. It fails only
// on malformed JSON or a missing update id; payload classification happens
// in Classify.
func DecodeUpdate(raw []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	if u.UpdateID == 0 {
		return nil, ErrMissingEventID
	}
	return &u, nil
}

// Classify converts the envelope into its tagged-union form. Updates that
// carry no recognized payload, and callbacks whose token does not parse,
// return ErrUnsupportedPayload (wrapped for callbacks).
func Classify(u *Update) (Inbound, error) {
	switch {
	case u.Message != nil:
		m := u.Message
		return InboundMessage{
			SenderID:  userID(m.From),
			ChatID:    chatID(m.Chat),
			ChatType:  chatType(m.Chat),
			MessageID: m.MessageID,
			Text:      m.Text,
		}, nil

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		action, err := ParseCallback(q.Data)
		if err != nil {
			return nil, err
		}
		var chat *Chat
		var msgID int64
		if q.Message != nil {
			chat = q.Message.Chat
			msgID = q.Message.MessageID
		}
		ct := chatType(chat)
		return InboundCallback{
			SenderID:    userID(q.From),
			ChatID:      chatID(chat),
			ChatType:    ct,
			MessageID:   msgID,
			Action:      action,
			FromChannel: ct == "channel" || ct == "supergroup",
		}, nil

	default:
		return nil, ErrUnsupportedPayload
	}
}

func userID(u *User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func chatID(c *Chat) int64 {
	if c == nil {
		return 0
	}
	return c.ID
}

func chatType(c *Chat) string {
	if c == nil {
		return ""
	}
	return c.Type
}
