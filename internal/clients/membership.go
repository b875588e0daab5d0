package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// MembershipClient talks to the channel-membership service.
type MembershipClient struct {
	baseClient
}

// NewMembershipClient builds a client for the channel service at baseURL.
func NewMembershipClient(baseURL string, timeout time.Duration) *MembershipClient {
	return &MembershipClient{newBaseClient(baseURL, timeout)}
}

// VerifySubscription reports whether senderID is currently a member of the
// target channel.
func (c *MembershipClient) VerifySubscription(ctx context.Context, senderID int64, target SubscriptionTarget) (bool, error) {
	var out struct {
		IsMember bool `json:"is_member"`
	}
	path := fmt.Sprintf("/api/channels/%d/members/%d", target.ChannelID, senderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.IsMember, nil
}

// SubscriptionTargets returns the channels a participant of campaignID must
// be subscribed to. An empty slice means the campaign has no subscription
// requirement.
func (c *MembershipClient) SubscriptionTargets(ctx context.Context, campaignID int64) ([]SubscriptionTarget, error) {
	var out struct {
		Targets []SubscriptionTarget `json:"subscription_requirements"`
	}
	path := fmt.Sprintf("/api/giveaways/%d/subscription-requirements", campaignID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Targets, nil
}
