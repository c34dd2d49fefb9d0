package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/polysquad/internal/model"
)

// MemberSource lists the principals in a squad.
type MemberSource interface {
	ListMembers(ctx context.Context, squadID int64) ([]model.Principal, error)
}

// PnlSource fetches position data from the venue.
type PnlSource interface {
	GetOpenPositions(ctx context.Context, venueAddress string) ([]model.Position, error)
	GetClosedPositions(ctx context.Context, venueAddress string) ([]model.Position, error)
	GetPortfolioValue(ctx context.Context, venueAddress string) (decimal.Decimal, error)
}

// Config holds leaderboard configuration.
type Config struct {
	TTL           time.Duration // Cache lifetime per squad (default: 30s)
	MemberTimeout time.Duration // Budget for one member's venue calls (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Second,
		MemberTimeout: 10 * time.Second,
	}
}

// Service computes and caches squad leaderboards.
type Service struct {
	cfg     Config
	members MemberSource
	pnl     PnlSource
	logger  *slog.Logger

	cache  *cache
	flight singleflight.Group
}

// New creates a Service.
func New(cfg Config, members MemberSource, pnl PnlSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.MemberTimeout <= 0 {
		cfg.MemberTimeout = DefaultConfig().MemberTimeout
	}
	return &Service{
		cfg:     cfg,
		members: members,
		pnl:     pnl,
		logger:  logger,
		cache:   newCache(cfg.TTL),
	}
}

// Get returns the squad's leaderboard, newest-computed within the TTL.
// Concurrent callers for the same squad share one computation.
func (s *Service) Get(ctx context.Context, squadID int64) ([]model.LeaderboardEntry, error) {
	if entries, ok := s.cache.get(squadID); ok {
		return entries, nil
	}

	v, err, _ := s.flight.Do(fmt.Sprintf("%d", squadID), func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the cache while we waited.
		if entries, ok := s.cache.get(squadID); ok {
			return entries, nil
		}

		entries, err := s.compute(ctx, squadID)
		if err != nil {
			return nil, err
		}
		s.cache.set(squadID, entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.LeaderboardEntry), nil
}

// Invalidate drops the cached board for a squad.
func (s *Service) Invalidate(squadID int64) {
	s.cache.invalidate(squadID)
}

func (s *Service) compute(ctx context.Context, squadID int64) ([]model.LeaderboardEntry, error) {
	members, err := s.members.ListMembers(ctx, squadID)
	if err != nil {
		return nil, fmt.Errorf("list members for squad %d: %w", squadID, err)
	}

	entries := make([]model.LeaderboardEntry, len(members))
	g, gctx := errgroup.WithContext(ctx)

	for i, m := range members {
		g.Go(func() error {
			entries[i] = s.memberEntry(gctx, m)
			return nil
		})
	}
	// Worker closures never return errors; degradation is per member.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Highest PnL first. The sort is stable, so equal-PnL members keep
	// the membership listing order (join time, then address).
	sortEntriesByPnl(entries)

	return entries, nil
}

// memberEntry computes one member's row. Any venue failure, or a
// missing venue address, degrades to a zero-PnL row.
func (s *Service) memberEntry(ctx context.Context, m model.Principal) model.LeaderboardEntry {
	entry := model.LeaderboardEntry{
		Address:   m.Address,
		Username:  m.Username,
		AvatarURL: m.AvatarURL(),
	}

	if m.VenueAddress == "" {
		return entry
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.MemberTimeout)
	defer cancel()

	var (
		open   []model.Position
		closed []model.Position
		value  decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		open, err = s.pnl.GetOpenPositions(gctx, m.VenueAddress)
		return err
	})
	g.Go(func() (err error) {
		closed, err = s.pnl.GetClosedPositions(gctx, m.VenueAddress)
		return err
	})
	g.Go(func() (err error) {
		value, err = s.pnl.GetPortfolioValue(gctx, m.VenueAddress)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("leaderboard member degraded",
			"principal", m.Address,
			"venue_address", m.VenueAddress,
			"err", err,
		)
		return entry
	}

	total := value
	for _, p := range closed {
		total = total.Add(decimal.NewFromFloat(p.RealizedPnl))
	}
	entry.TotalLivePnl = total.Round(2).InexactFloat64()
	entry.TopPosition = topPosition(open)

	return entry
}

func sortEntriesByPnl(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalLivePnl > entries[j].TotalLivePnl
	})
}

// topPosition picks the open position with the highest positive cash
// PnL, or nil when none is in profit.
func topPosition(open []model.Position) *model.TopPosition {
	var best *model.Position
	for i := range open {
		if open[i].CashPnl <= 0 {
			continue
		}
		if best == nil || open[i].CashPnl > best.CashPnl {
			best = &open[i]
		}
	}
	if best == nil {
		return nil
	}
	return &model.TopPosition{
		Title:   best.Title,
		Outcome: best.Outcome,
		Slug:    best.Slug,
		CashPnl: decimal.NewFromFloat(best.CashPnl).Round(2).InexactFloat64(),
	}
}
