package bot

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/polysquad/internal/model"
)

// PrincipalSource lists principals with a linked venue address.
type PrincipalSource interface {
	ListTrackedPrincipals(ctx context.Context) ([]model.Principal, error)
}

// StateStore persists per-principal ingestion checkpoints.
type StateStore interface {
	// GetBotState returns nil when no checkpoint exists yet.
	GetBotState(ctx context.Context, venueAddress string) (*model.BotState, error)
	UpsertBotState(ctx context.Context, st model.BotState) error
}

// SquadSource resolves the rooms a principal belongs to.
type SquadSource interface {
	SquadIDsFor(ctx context.Context, address string) ([]int64, error)
}

// ActivitySource fetches recent venue events for an address.
type ActivitySource interface {
	GetActivities(ctx context.Context, venueAddress string, limit int) ([]model.Activity, error)
}

// Broadcaster posts automated messages to rooms.
type Broadcaster interface {
	BroadcastAutomated(ctx context.Context, squadID int64, body string) error
}

// Config holds ingestion loop configuration.
type Config struct {
	Interval    time.Duration // Poll cadence (default: 15s)
	Cooldown    time.Duration // Min gap between posts per principal (default: 5s)
	Concurrency int           // Max principals processed in parallel (default: 10)
	Timeout     time.Duration // Per-principal processing timeout (default: 10s)
	FeedLimit   int           // Activities fetched per principal (default: 5)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Second,
		Cooldown:    5 * time.Second,
		Concurrency: 10,
		Timeout:     10 * time.Second,
		FeedLimit:   5,
	}
}

// Bot periodically turns venue activity into automated room messages.
type Bot struct {
	cfg        Config
	principals PrincipalSource
	states     StateStore
	squads     SquadSource
	feed       ActivitySource
	poster     Broadcaster
	logger     *slog.Logger

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Bot.
func New(cfg Config, principals PrincipalSource, states StateStore, squads SquadSource, feed ActivitySource, poster Broadcaster, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		cfg:        cfg,
		principals: principals,
		states:     states,
		squads:     squads,
		feed:       feed,
		poster:     poster,
		logger:     logger,
		now:        time.Now,
	}
}

// Start begins the polling loop.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go b.run()

	b.logger.Info("ingestion bot started",
		"interval", b.cfg.Interval,
		"cooldown", b.cfg.Cooldown,
		"concurrency", b.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("ingestion bot stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop. Cycles run inline on this goroutine so
// they can never overlap; the ticker drops ticks while a cycle runs.
func (b *Bot) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	b.runCycle()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.runCycle()
		}
	}
}

// runCycle processes every tracked principal once, concurrently, with
// per-principal isolation.
func (b *Bot) runCycle() {
	start := b.now()

	listCtx, cancel := context.WithTimeout(b.ctx, b.cfg.Timeout)
	principals, err := b.principals.ListTrackedPrincipals(listCtx)
	cancel()
	if err != nil {
		b.logger.Error("failed to list tracked principals", "err", err)
		return
	}

	if len(principals) == 0 {
		b.logger.Debug("no tracked principals to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, b.cfg.Concurrency)
	var wg sync.WaitGroup
	var posted, skipped, errors atomic.Int64

	for _, p := range principals {
		wg.Add(1)
		go func(p model.Principal) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-b.ctx.Done():
				return
			}

			switch outcome, err := b.processPrincipal(p); {
			case err != nil:
				b.logger.Warn("failed to process principal",
					"principal", p.Address,
					"venue_address", p.VenueAddress,
					"err", err,
				)
				errors.Add(1)
			case outcome == outcomePosted:
				posted.Add(1)
			default:
				skipped.Add(1)
			}
		}(p)
	}

	wg.Wait()

	b.logger.Info("ingestion cycle complete",
		"principals", len(principals),
		"posted", posted.Load(),
		"skipped", skipped.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

type cycleOutcome int

const (
	outcomeSkipped cycleOutcome = iota
	outcomePosted
)

// processPrincipal handles one principal for one cycle. Only the
// newest feed event is ever considered; older pending events are never
// backfilled.
func (b *Bot) processPrincipal(p model.Principal) (cycleOutcome, error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.Timeout)
	defer cancel()

	activities, err := b.feed.GetActivities(ctx, p.VenueAddress, b.cfg.FeedLimit)
	if err != nil {
		// Upstream failure is never treated as a new event.
		return outcomeSkipped, err
	}
	if len(activities) == 0 {
		return outcomeSkipped, nil
	}

	newest := newestActivity(activities)

	state, err := b.states.GetBotState(ctx, p.VenueAddress)
	if err != nil {
		return outcomeSkipped, err
	}
	if state != nil && state.LastSeenEventID == newest.TransactionHash {
		// Nothing new since the last cycle.
		return outcomeSkipped, nil
	}

	next := model.BotState{
		VenueAddress:    p.VenueAddress,
		LastSeenEventID: newest.TransactionHash,
	}
	if state != nil {
		next.LastPostAt = state.LastPostAt
	}

	posted := false
	if b.cooldownClear(state) {
		squadIDs, err := b.squads.SquadIDsFor(ctx, p.Address)
		if err != nil {
			// Store failure aborts this principal's step without
			// advancing the checkpoint.
			return outcomeSkipped, err
		}

		if len(squadIDs) > 0 {
			body := FormatActivity(newest, p.Username)
			for _, squadID := range squadIDs {
				if err := b.poster.BroadcastAutomated(ctx, squadID, body); err != nil {
					b.logger.Warn("failed to broadcast automated message",
						"principal", p.Address,
						"room", squadID,
						"err", err,
					)
					continue
				}
				posted = true
			}
		}
	} else {
		b.logger.Debug("post suppressed by cooldown",
			"principal", p.Address,
			"event", newest.TransactionHash,
		)
	}

	if posted {
		now := b.now()
		next.LastPostAt = &now
	}

	// The checkpoint advances even when the post was suppressed or the
	// principal has no rooms: the event must never be reconsidered.
	if err := b.states.UpsertBotState(ctx, next); err != nil {
		return outcomeSkipped, err
	}

	if posted {
		return outcomePosted, nil
	}
	return outcomeSkipped, nil
}

// cooldownClear reports whether enough time has passed since the last
// post for this principal.
func (b *Bot) cooldownClear(state *model.BotState) bool {
	if state == nil || state.LastPostAt == nil {
		return true
	}
	return b.now().Sub(*state.LastPostAt) >= b.cfg.Cooldown
}

// newestActivity picks the newest event. The feed claims newest-first
// ordering but is not trusted blindly: events are re-sorted by
// timestamp (transaction hash as tie-break) before taking the head.
func newestActivity(activities []model.Activity) model.Activity {
	sorted := make([]model.Activity, len(activities))
	copy(sorted, activities)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp > sorted[j].Timestamp
		}
		return sorted[i].TransactionHash > sorted[j].TransactionHash
	})
	return sorted[0]
}
