package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// UserInfo is the sender metadata forwarded on registration.
type UserInfo struct {
	Username    string `json:"username,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	FromChannel bool   `json:"from_channel"`
}

// SubscriptionTarget names one channel a participant must be subscribed to.
type SubscriptionTarget struct {
	ChannelID       int64  `json:"channel_id"`
	ChannelUsername string `json:"channel_username"`
}

// RegistrationResult is the participant service's answer to a registration
// attempt. Duplicate registration is a no-op success: AlreadyParticipating
// is set and no new record is created.
type RegistrationResult struct {
	AlreadyParticipating bool                 `json:"already_participating"`
	RequiresSubscription bool                 `json:"requires_subscription"`
	SubscriptionTargets  []SubscriptionTarget `json:"subscription_requirements,omitempty"`
	Confirmed            bool                 `json:"confirmed"`
	ParticipantCount     int64                `json:"participant_count,omitempty"`
}

// WinnerStatus is the participant service's answer to a result lookup.
type WinnerStatus struct {
	Participated bool `json:"participated"`
	IsWinner     bool `json:"is_winner"`
}

// ParticipantClient talks to the participant-record service.
type ParticipantClient struct {
	baseClient
}

// NewParticipantClient builds a client for the participant service at
// baseURL.
func NewParticipantClient(baseURL string, timeout time.Duration) *ParticipantClient {
	return &ParticipantClient{newBaseClient(baseURL, timeout)}
}

// Register records participation of senderID in campaignID. The uniqueness
// invariant (campaign, sender) lives in the collaborator; a repeated call
// reports AlreadyParticipating instead of failing.
func (c *ParticipantClient) Register(ctx context.Context, campaignID, senderID int64, info UserInfo) (RegistrationResult, error) {
	var out RegistrationResult
	err := c.doJSON(ctx, http.MethodPost, "/api/participants/register", map[string]any{
		"giveaway_id": campaignID,
		"user_id":     senderID,
		"user_info":   info,
	}, &out)
	return out, err
}

// IsParticipating reports whether senderID already holds a participation
// record for campaignID.
func (c *ParticipantClient) IsParticipating(ctx context.Context, campaignID, senderID int64) (bool, error) {
	var out struct {
		AlreadyParticipating bool `json:"already_participating"`
	}
	path := fmt.Sprintf("/api/participants/status/%d/%d", campaignID, senderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.AlreadyParticipating, nil
}

// CheckWinnerStatus reports whether senderID participated in campaignID and
// whether they won.
func (c *ParticipantClient) CheckWinnerStatus(ctx context.Context, campaignID, senderID int64) (WinnerStatus, error) {
	var out WinnerStatus
	path := fmt.Sprintf("/api/participants/winner-status/%d/%d", campaignID, senderID)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}
