package store

import (
	"context"
	"fmt"

	"github.com/rickgao/polysquad/internal/model"
)

// SaveMessage persists a message and returns the stored row with its
// assigned id and timestamp. The (created_at, id) pair defines message
// order within a squad.
func (s *Store) SaveMessage(ctx context.Context, m model.Message) (model.Message, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (squad_id, author_address, body, is_bot)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		RETURNING id, created_at`,
		m.SquadID, m.AuthorAddress, m.Body, m.IsBot,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("save message: %w", err)
	}

	return m, nil
}

// ListMessages returns a squad's most recent messages in ascending
// order (creation time, then id), capped at the history limit.
func (s *Store) ListMessages(ctx context.Context, squadID int64) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, squad_id, COALESCE(author_address, ''), body, is_bot, created_at
		FROM (
			SELECT * FROM messages
			WHERE squad_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id`,
		squadID, s.opts.HistoryLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SquadID, &m.AuthorAddress, &m.Body, &m.IsBot, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// DeleteOldMessages removes a squad's messages older than the retention
// window in a single atomic statement.
func (s *Store) DeleteOldMessages(ctx context.Context, squadID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM messages
		WHERE squad_id = $1 AND created_at < now() - make_interval(secs => $2)`,
		squadID, s.opts.RetentionMaxAge.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("delete old messages: %w", err)
	}
	return nil
}
