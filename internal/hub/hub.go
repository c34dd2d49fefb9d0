package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/polysquad/internal/model"
)

// Errors surfaced to callers of hub operations.
var (
	// ErrUnauthorized means the session's principal is not a member of
	// the target room.
	ErrUnauthorized = errors.New("hub: not a room member")

	// ErrInvalidInput means the message body was empty after trimming.
	ErrInvalidInput = errors.New("hub: invalid input")

	// ErrStoreUnavailable means the durable store rejected the
	// operation; nothing was delivered.
	ErrStoreUnavailable = errors.New("hub: store unavailable")
)

// Store is the durable-store surface the hub needs.
type Store interface {
	IsMember(ctx context.Context, squadID int64, address string) (bool, error)
	SaveMessage(ctx context.Context, m model.Message) (model.Message, error)
	DeleteOldMessages(ctx context.Context, squadID int64) error
}

// Config holds hub settings.
type Config struct {
	SessionBuffer int           // Initial outbound queue capacity per session
	WriteTimeout  time.Duration // Per-frame write deadline
	PingInterval  time.Duration // Heartbeat cadence
	ReadLimit     int64         // Max inbound frame size in bytes
	StoreTimeout  time.Duration // Bound on store calls made by hub operations
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionBuffer: 64,
		WriteTimeout:  10 * time.Second,
		PingInterval:  30 * time.Second,
		ReadLimit:     4096,
		StoreTimeout:  5 * time.Second,
	}
}

// Hub tracks live sessions per room and fans persisted messages out to
// them. One lock per room serializes membership changes and delivery,
// so persisted order equals delivery order for every listener.
type Hub struct {
	cfg    Config
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[int64]*room
}

type room struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	// defunct is set, under both h.mu and r.mu, when the room is removed
	// from h.rooms. A caller that locked a stale pointer must re-resolve.
	defunct bool
}

// Stats holds hub counters for health reporting.
type Stats struct {
	Rooms    int
	Sessions int
}

// New creates a Hub.
func New(cfg Config, store Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:    cfg,
		store:  store,
		logger: logger,
		rooms:  make(map[int64]*room),
	}
}

// Join records the session as a listener of the room. Fails with
// ErrUnauthorized if the session's principal has no membership row.
// A session may listen to multiple rooms simultaneously.
func (h *Hub) Join(ctx context.Context, s *Session, squadID int64) error {
	if err := h.checkMembership(ctx, squadID, s.principal.Address); err != nil {
		return err
	}

	r := h.lockRoom(squadID)
	r.sessions[s.id] = s
	r.mu.Unlock()

	h.logger.Debug("session joined room",
		"session", s.id,
		"principal", s.principal.Address,
		"room", squadID,
	)

	return nil
}

// Send persists a message authored by the session's principal and
// delivers it to every session listening to the room. The room lock is
// held across persist and delivery; if persistence fails nothing is
// delivered. Retention runs fire-and-forget after a successful persist.
func (h *Hub) Send(ctx context.Context, s *Session, squadID int64, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrInvalidInput
	}

	if err := h.checkMembership(ctx, squadID, s.principal.Address); err != nil {
		return err
	}

	return h.deliver(ctx, squadID, model.Message{
		SquadID:       squadID,
		AuthorAddress: s.principal.Address,
		Body:          body,
	}, AuthorFor(s.principal))
}

// BroadcastAutomated persists and delivers a system-generated message
// with no author. Used only by the ingestion loop, which has already
// resolved room membership; no membership check is performed.
func (h *Hub) BroadcastAutomated(ctx context.Context, squadID int64, body string) error {
	return h.deliver(ctx, squadID, model.Message{
		SquadID: squadID,
		Body:    body,
		IsBot:   true,
	}, botAuthor)
}

// Leave removes the session from every room it was listening to.
// Idempotent.
func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, r := range h.rooms {
		r.mu.Lock()
		delete(r.sessions, s.id)
		if len(r.sessions) == 0 {
			r.defunct = true
			delete(h.rooms, id)
		}
		r.mu.Unlock()
	}
}

// Stats returns current hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{Rooms: len(h.rooms)}
	for _, r := range h.rooms {
		r.mu.Lock()
		stats.Sessions += len(r.sessions)
		r.mu.Unlock()
	}
	return stats
}

// deliver persists the message and fans it out in one critical section
// per room.
func (h *Hub) deliver(ctx context.Context, squadID int64, m model.Message, author Author) error {
	r := h.lockRoom(squadID)

	storeCtx, cancel := context.WithTimeout(ctx, h.cfg.StoreTimeout)
	defer cancel()

	saved, err := h.store.SaveMessage(storeCtx, m)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Retention is fire-and-forget: its failure must not fail the send.
	go h.runRetention(squadID)

	env := Envelope{Type: EventMessage}
	msg := NewChatMessage(saved, author)
	env.Message = &msg

	for _, s := range r.sessions {
		s.enqueue(env)
	}
	empty := len(r.sessions) == 0
	r.mu.Unlock()

	// Broadcasting to a room with no listeners must not leave a live
	// room object behind.
	if empty {
		h.pruneIfEmpty(squadID)
	}

	return nil
}

func (h *Hub) runRetention(squadID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.StoreTimeout)
	defer cancel()

	if err := h.store.DeleteOldMessages(ctx, squadID); err != nil {
		h.logger.Warn("retention pass failed",
			"room", squadID,
			"err", err,
		)
	}
}

func (h *Hub) checkMembership(ctx context.Context, squadID int64, address string) error {
	storeCtx, cancel := context.WithTimeout(ctx, h.cfg.StoreTimeout)
	defer cancel()

	ok, err := h.store.IsMember(storeCtx, squadID, address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// room returns the live room for a squad, creating it if needed.
func (h *Hub) room(squadID int64) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[squadID]
	if !ok {
		r = &room{sessions: make(map[uuid.UUID]*Session)}
		h.rooms[squadID] = r
	}
	return r
}

// lockRoom returns the room for a squad with its lock held. A room can
// be pruned between the map lookup and acquiring its lock; in that case
// the pointer is stale (inserting into it would orphan the session), so
// the lookup is retried until it lands on the object still in the map.
func (h *Hub) lockRoom(squadID int64) *room {
	for {
		r := h.room(squadID)
		r.mu.Lock()
		if !r.defunct {
			return r
		}
		r.mu.Unlock()
	}
}

// pruneIfEmpty removes the room from the map when it has no listeners,
// marking the object defunct under both locks.
func (h *Hub) pruneIfEmpty(squadID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[squadID]
	if !ok {
		return
	}

	r.mu.Lock()
	if len(r.sessions) == 0 {
		r.defunct = true
		delete(h.rooms, squadID)
	}
	r.mu.Unlock()
}
