package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/polysquad/internal/model"
)

// ErrSquadFull is returned when joining a squad at its membership cap.
var ErrSquadFull = errors.New("store: squad is full")

// CreateSquad creates a squad with a fresh invite code and adds the
// creator as its first member, atomically.
func (s *Store) CreateSquad(ctx context.Context, name, creatorAddress string) (model.Squad, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Squad{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var sq model.Squad
	err = tx.QueryRow(ctx, `
		INSERT INTO squads (name, invite_code)
		VALUES ($1, $2)
		RETURNING id, name, invite_code, created_at`,
		name, model.NewInviteCode(),
	).Scan(&sq.ID, &sq.Name, &sq.InviteCode, &sq.CreatedAt)
	if err != nil {
		return model.Squad{}, fmt.Errorf("insert squad: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO squad_members (squad_id, address)
		VALUES ($1, $2)`,
		sq.ID, creatorAddress,
	)
	if err != nil {
		return model.Squad{}, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Squad{}, fmt.Errorf("commit: %w", err)
	}

	return sq, nil
}

// GetSquad fetches a squad by id.
func (s *Store) GetSquad(ctx context.Context, squadID int64) (model.Squad, error) {
	var sq model.Squad
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, invite_code, created_at
		FROM squads
		WHERE id = $1`,
		squadID,
	).Scan(&sq.ID, &sq.Name, &sq.InviteCode, &sq.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Squad{}, ErrNotFound
	}
	if err != nil {
		return model.Squad{}, fmt.Errorf("get squad: %w", err)
	}

	return sq, nil
}

// GetSquadByInviteCode fetches a squad by its invite code.
func (s *Store) GetSquadByInviteCode(ctx context.Context, code string) (model.Squad, error) {
	var sq model.Squad
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, invite_code, created_at
		FROM squads
		WHERE invite_code = $1`,
		code,
	).Scan(&sq.ID, &sq.Name, &sq.InviteCode, &sq.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Squad{}, ErrNotFound
	}
	if err != nil {
		return model.Squad{}, fmt.Errorf("get squad by invite code: %w", err)
	}

	return sq, nil
}

// JoinSquad adds a principal to a squad. Idempotent for existing
// members; fails with ErrSquadFull at the membership cap. The member
// count is read under FOR UPDATE of the squad row so concurrent joins
// cannot overshoot the cap.
func (s *Store) JoinSquad(ctx context.Context, squadID int64, address string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM squads WHERE id = $1 FOR UPDATE`, squadID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock squad: %w", err)
	}

	var isMember bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM squad_members WHERE squad_id = $1 AND address = $2
		)`,
		squadID, address,
	).Scan(&isMember)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if isMember {
		return tx.Commit(ctx)
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM squad_members WHERE squad_id = $1`,
		squadID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if count >= model.MaxSquadMembers {
		return ErrSquadFull
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO squad_members (squad_id, address)
		VALUES ($1, $2)`,
		squadID, address,
	)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}

	return tx.Commit(ctx)
}

// IsMember reports whether a principal belongs to a squad.
func (s *Store) IsMember(ctx context.Context, squadID int64, address string) (bool, error) {
	var isMember bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM squad_members WHERE squad_id = $1 AND address = $2
		)`,
		squadID, address,
	).Scan(&isMember)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return isMember, nil
}

// ListMembers returns a squad's members in join order. The order is
// stable and is the tie-break order for leaderboard entries.
func (s *Store) ListMembers(ctx context.Context, squadID int64) ([]model.Principal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.address, p.username, COALESCE(p.venue_address, ''), p.created_at
		FROM squad_members m
		JOIN principals p ON p.address = m.address
		WHERE m.squad_id = $1
		ORDER BY m.joined_at, m.address`,
		squadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Principal
	for rows.Next() {
		var p model.Principal
		if err := rows.Scan(&p.Address, &p.Username, &p.VenueAddress, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, p)
	}

	return members, rows.Err()
}

// ListSquadsFor returns every squad a principal belongs to.
func (s *Store) ListSquadsFor(ctx context.Context, address string) ([]model.Squad, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.name, s.invite_code, s.created_at
		FROM squad_members m
		JOIN squads s ON s.id = m.squad_id
		WHERE m.address = $1
		ORDER BY m.joined_at`,
		address,
	)
	if err != nil {
		return nil, fmt.Errorf("list squads: %w", err)
	}
	defer rows.Close()

	var squads []model.Squad
	for rows.Next() {
		var sq model.Squad
		if err := rows.Scan(&sq.ID, &sq.Name, &sq.InviteCode, &sq.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan squad: %w", err)
		}
		squads = append(squads, sq)
	}

	return squads, rows.Err()
}

// SquadIDsFor returns the ids of every squad a principal belongs to.
// Used by the ingestion loop to resolve broadcast targets.
func (s *Store) SquadIDsFor(ctx context.Context, address string) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT squad_id FROM squad_members WHERE address = $1 ORDER BY squad_id`,
		address,
	)
	if err != nil {
		return nil, fmt.Errorf("list squad ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan squad id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
