package feed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/polysquad/internal/model"
)

// GetActivities fetches the most recent trade/redeem events for a venue
// address, newest first. The limit bounds how many events are returned.
func (c *Client) GetActivities(ctx context.Context, venueAddress string, limit int) ([]model.Activity, error) {
	query := url.Values{}
	query.Set("user", venueAddress)
	query["type"] = []string{model.ActivityTrade, model.ActivityRedeem}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp []apiActivity
	if err := c.get(ctx, "/activity", query, &resp); err != nil {
		return nil, fmt.Errorf("get activities for %s: %w", venueAddress, err)
	}

	activities := make([]model.Activity, 0, len(resp))
	for _, a := range resp {
		activities = append(activities, a.ToActivity())
	}

	return activities, nil
}
