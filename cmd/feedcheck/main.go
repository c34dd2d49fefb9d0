// feedcheck exercises the venue data API for a single address and
// prints what the ingestion bot and leaderboard would see.
// Usage: go run ./cmd/feedcheck --config configs/server.local.yaml --address 0x...
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/polysquad/internal/bot"
	"github.com/rickgao/polysquad/internal/config"
	"github.com/rickgao/polysquad/internal/feed"
)

func main() {
	configPath := flag.String("config", "configs/server.example.yaml", "path to config file")
	address := flag.String("address", "", "venue address to inspect")
	limit := flag.Int("limit", 5, "activities to fetch")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *address == "" {
		logger.Error("--address is required")
		os.Exit(1)
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	client := feed.NewClient(
		cfg.Venue.DataURL,
		cfg.Venue.APIKey,
		feed.WithLogger(logger),
		feed.WithTimeout(cfg.Venue.Timeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	activities, err := client.GetActivities(ctx, *address, *limit)
	if err != nil {
		logger.Error("failed to fetch activities", "error", err)
		os.Exit(1)
	}

	fmt.Printf("=== activities (%d) ===\n", len(activities))
	for _, a := range activities {
		fmt.Printf("%s  %s/%s  $%.2f  %s\n",
			time.Unix(a.Timestamp, 0).UTC().Format(time.RFC3339),
			a.Type, a.Side, a.UsdcSize, a.TransactionHash)
		fmt.Printf("  would post: %s\n", bot.FormatActivity(a, "feedcheck"))
	}

	open, err := client.GetOpenPositions(ctx, *address)
	if err != nil {
		logger.Error("failed to fetch open positions", "error", err)
		os.Exit(1)
	}
	fmt.Printf("=== open positions (%d) ===\n", len(open))
	for _, p := range open {
		fmt.Printf("%-40s %-10s cashPnl=%.2f value=%.2f\n", p.Title, p.Outcome, p.CashPnl, p.CurrentValue)
	}

	closed, err := client.GetClosedPositions(ctx, *address)
	if err != nil {
		logger.Error("failed to fetch closed positions", "error", err)
		os.Exit(1)
	}
	var realized float64
	for _, p := range closed {
		realized += p.RealizedPnl
	}

	value, err := client.GetPortfolioValue(ctx, *address)
	if err != nil {
		logger.Error("failed to fetch portfolio value", "error", err)
		os.Exit(1)
	}

	fmt.Printf("=== pnl ===\nrealized=%.2f portfolio=%s\n", realized, value.StringFixed(2))
}
