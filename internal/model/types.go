package model

import (
	"math/rand/v2"
	"time"
)

// -----------------------------------------------------------------------------
// Relational Types
// -----------------------------------------------------------------------------

// Principal is a trading-account owner known to the system.
// Created on first successful identity assertion, never deleted.
type Principal struct {
	Address      string    // Primary key: lowercased EVM wallet address
	Username     string    // Display name
	VenueAddress string    // Polymarket proxy wallet for feed lookups, "" if not linked
	CreatedAt    time.Time // First login time
}

// AvatarURL returns the deterministic avatar for a principal.
// Avatars are derived, never stored.
func (p Principal) AvatarURL() string {
	return AvatarFor(p.Address)
}

// Squad is a bounded-membership chat/leaderboard group.
type Squad struct {
	ID         int64     // Primary key
	Name       string    // Display name
	InviteCode string    // Short human-shareable join token
	CreatedAt  time.Time // Creation time
}

// Membership sizing for the reference deployment.
const (
	MinSquadMembers = 3
	MaxSquadMembers = 10
)

// Message belongs to exactly one squad. Immutable once created except
// for retention deletion. Ordered by CreatedAt, ties broken by ID.
type Message struct {
	ID            int64     // Monotonic primary key
	SquadID       int64     // Foreign key to Squad
	AuthorAddress string    // Author principal address, "" for automated messages
	Body          string    // Message body (trusted markup for automated messages)
	IsBot         bool      // true = posted by the ingestion bot
	CreatedAt     time.Time // Persistence time
}

// BotState is the per-principal checkpoint of the ingestion loop,
// keyed by the principal's venue address (one row per address).
//
// LastSeenEventID only advances forward: once an event id is recorded
// it is never re-posted, even when the post itself was suppressed by
// the cooldown.
type BotState struct {
	VenueAddress    string     // Primary key
	LastSeenEventID string     // Transaction hash of the newest event already handled
	LastPostAt      *time.Time // Time of the last automated post, nil if never posted
}

// -----------------------------------------------------------------------------
// Feed Types
// -----------------------------------------------------------------------------

// Activity event types returned by the venue feed.
const (
	ActivityTrade  = "TRADE"
	ActivityRedeem = "REDEEM"
)

// Activity sides for TRADE events.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Activity is a single trade/redeem event from the venue feed.
type Activity struct {
	Timestamp       int64   // Unix seconds
	TransactionHash string  // Unique event identifier
	ConditionID     string  // Market condition id
	Type            string  // TRADE or REDEEM
	Side            string  // BUY or SELL (TRADE only)
	UsdcSize        float64 // Notional size in USDC
	Price           float64 // Fill price in [0, 1], 0 if not provided
	Title           string  // Market title
	Slug            string  // Event slug for deep links
	Outcome         string  // Outcome name
}

// Position is a single open or closed position from the venue.
type Position struct {
	Title        string  // Market title
	Outcome      string  // Outcome name
	Slug         string  // Event slug
	CashPnl      float64 // Unrealized cash PnL (open positions)
	RealizedPnl  float64 // Realized cash PnL (closed positions)
	CurrentValue float64 // Current position value
}

// -----------------------------------------------------------------------------
// Derived Types
// -----------------------------------------------------------------------------

// TopPosition summarizes a member's best-performing open position.
type TopPosition struct {
	Title   string  `json:"title"`
	Outcome string  `json:"outcome"`
	Slug    string  `json:"slug"`
	CashPnl float64 `json:"cashPnl"` // Rounded to 2dp
}

// LeaderboardEntry is one row of a squad's PnL leaderboard.
// Derived, never written back to the store.
type LeaderboardEntry struct {
	Address      string       `json:"principalRef"`
	Username     string       `json:"displayName"`
	AvatarURL    string       `json:"avatarRef"`
	TotalLivePnl float64      `json:"totalLivePnl"` // Realized + unrealized, rounded to 2dp
	TopPosition  *TopPosition `json:"topPosition"`  // nil when no open position has positive cash PnL
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

const inviteCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// InviteCodeLength is the length of squad invite codes.
const InviteCodeLength = 6

// NewInviteCode generates a random 6-character invite code.
func NewInviteCode() string {
	code := make([]byte, InviteCodeLength)
	for i := range code {
		code[i] = inviteCodeChars[rand.IntN(len(inviteCodeChars))]
	}
	return string(code)
}

// AvatarFor returns the deterministic avatar URL for a seed string.
func AvatarFor(seed string) string {
	return "https://api.dicebear.com/9.x/pixel-art/svg?seed=" + seed
}
