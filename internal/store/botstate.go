package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/polysquad/internal/model"
)

// GetBotState fetches the ingestion checkpoint for a venue address.
// Returns (nil, nil) when no checkpoint exists yet ("never posted").
func (s *Store) GetBotState(ctx context.Context, venueAddress string) (*model.BotState, error) {
	var st model.BotState
	err := s.pool.QueryRow(ctx, `
		SELECT venue_address, last_seen_event_id, last_post_at
		FROM bot_state
		WHERE venue_address = $1`,
		venueAddress,
	).Scan(&st.VenueAddress, &st.LastSeenEventID, &st.LastPostAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bot state: %w", err)
	}

	return &st, nil
}

// UpsertBotState writes the ingestion checkpoint, keyed on the venue
// address (one row per address).
func (s *Store) UpsertBotState(ctx context.Context, st model.BotState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bot_state (venue_address, last_seen_event_id, last_post_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (venue_address) DO UPDATE SET
			last_seen_event_id = EXCLUDED.last_seen_event_id,
			last_post_at       = EXCLUDED.last_post_at`,
		st.VenueAddress, st.LastSeenEventID, st.LastPostAt,
	)
	if err != nil {
		return fmt.Errorf("upsert bot state: %w", err)
	}
	return nil
}
