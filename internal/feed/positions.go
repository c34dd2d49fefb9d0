package feed

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polysquad/internal/model"
)

// GetOpenPositions fetches a venue address's current open positions.
func (c *Client) GetOpenPositions(ctx context.Context, venueAddress string) ([]model.Position, error) {
	return c.getPositions(ctx, venueAddress, false)
}

// GetClosedPositions fetches a venue address's settled positions,
// carrying the realized PnL per position.
func (c *Client) GetClosedPositions(ctx context.Context, venueAddress string) ([]model.Position, error) {
	return c.getPositions(ctx, venueAddress, true)
}

func (c *Client) getPositions(ctx context.Context, venueAddress string, closed bool) ([]model.Position, error) {
	query := url.Values{}
	query.Set("user", venueAddress)
	if closed {
		query.Set("closed", "true")
	}

	var resp []apiPosition
	if err := c.get(ctx, "/positions", query, &resp); err != nil {
		return nil, fmt.Errorf("get positions for %s: %w", venueAddress, err)
	}

	positions := make([]model.Position, 0, len(resp))
	for _, p := range resp {
		positions = append(positions, p.ToPosition())
	}

	return positions, nil
}

// GetPortfolioValue fetches the total value of a venue address's open
// positions (the unrealized side of live PnL).
func (c *Client) GetPortfolioValue(ctx context.Context, venueAddress string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("user", venueAddress)

	var resp []apiValue
	if err := c.get(ctx, "/value", query, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("get portfolio value for %s: %w", venueAddress, err)
	}

	total := decimal.Zero
	for _, v := range resp {
		total = total.Add(decimal.NewFromFloat(v.Value))
	}

	return total, nil
}
