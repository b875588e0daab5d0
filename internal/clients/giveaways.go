package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Campaign statuses reported by the giveaway service.
const (
	CampaignActive   = "active"
	CampaignFinished = "finished"
)

// Campaign is the giveaway metadata this backend consumes: identity, status
// and the result messages configured by the organizer.
type Campaign struct {
	ID            int64  `json:"id"`
	Status        string `json:"status"`
	WinnerMessage string `json:"winner_message,omitempty"`
	LoserMessage  string `json:"loser_message,omitempty"`
}

// GiveawayClient talks to the giveaway-metadata service.
type GiveawayClient struct {
	baseClient
}

// NewGiveawayClient builds a client for the giveaway service at baseURL.
func NewGiveawayClient(baseURL string, timeout time.Duration) *GiveawayClient {
	return &GiveawayClient{newBaseClient(baseURL, timeout)}
}

// ResolveByToken resolves the opaque result token embedded in a VIEW
// RESULTS button to its campaign.
func (c *GiveawayClient) ResolveByToken(ctx context.Context, token string) (*Campaign, error) {
	var out struct {
		Giveaway Campaign `json:"giveaway"`
	}
	path := "/api/giveaways/by-token/" + url.PathEscape(token)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Giveaway, nil
}
