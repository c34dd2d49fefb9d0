package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/polysquad/internal/model"
)

// UpsertPrincipal creates a principal on first assertion or returns the
// existing record. The default username is derived from the address.
func (s *Store) UpsertPrincipal(ctx context.Context, address string) (model.Principal, error) {
	defaultUsername := "user_" + trimAddress(address)

	var p model.Principal
	err := s.pool.QueryRow(ctx, `
		INSERT INTO principals (address, username)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET address = EXCLUDED.address
		RETURNING address, username, COALESCE(venue_address, ''), created_at`,
		address, defaultUsername,
	).Scan(&p.Address, &p.Username, &p.VenueAddress, &p.CreatedAt)
	if err != nil {
		return model.Principal{}, fmt.Errorf("upsert principal: %w", err)
	}

	return p, nil
}

// GetPrincipal fetches a principal by address.
func (s *Store) GetPrincipal(ctx context.Context, address string) (model.Principal, error) {
	var p model.Principal
	err := s.pool.QueryRow(ctx, `
		SELECT address, username, COALESCE(venue_address, ''), created_at
		FROM principals
		WHERE address = $1`,
		address,
	).Scan(&p.Address, &p.Username, &p.VenueAddress, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Principal{}, ErrNotFound
	}
	if err != nil {
		return model.Principal{}, fmt.Errorf("get principal: %w", err)
	}

	return p, nil
}

// UpdateProfile updates a principal's display name and/or venue address.
// Empty username leaves the name unchanged; the venue address is always
// written (an empty value unlinks the feed).
func (s *Store) UpdateProfile(ctx context.Context, address, username, venueAddress string) (model.Principal, error) {
	var p model.Principal
	err := s.pool.QueryRow(ctx, `
		UPDATE principals
		SET username      = CASE WHEN $2 = '' THEN username ELSE $2 END,
		    venue_address = NULLIF($3, '')
		WHERE address = $1
		RETURNING address, username, COALESCE(venue_address, ''), created_at`,
		address, username, venueAddress,
	).Scan(&p.Address, &p.Username, &p.VenueAddress, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Principal{}, ErrNotFound
	}
	if err != nil {
		return model.Principal{}, fmt.Errorf("update profile: %w", err)
	}

	return p, nil
}

// ListTrackedPrincipals returns all principals with a linked venue
// address, in stable creation order. These are the principals the
// ingestion loop polls.
func (s *Store) ListTrackedPrincipals(ctx context.Context) ([]model.Principal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, username, venue_address, created_at
		FROM principals
		WHERE venue_address IS NOT NULL AND venue_address <> ''
		ORDER BY created_at, address`)
	if err != nil {
		return nil, fmt.Errorf("list tracked principals: %w", err)
	}
	defer rows.Close()

	var principals []model.Principal
	for rows.Next() {
		var p model.Principal
		if err := rows.Scan(&p.Address, &p.Username, &p.VenueAddress, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		principals = append(principals, p)
	}

	return principals, rows.Err()
}

// trimAddress shortens an address for default usernames (drops the 0x
// prefix and keeps the next six characters).
func trimAddress(address string) string {
	if len(address) > 2 && address[:2] == "0x" {
		address = address[2:]
	}
	if len(address) > 6 {
		address = address[:6]
	}
	return address
}
