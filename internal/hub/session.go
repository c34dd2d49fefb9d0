package hub

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/polysquad/internal/model"
)

// Session is one connected WebSocket client bound to a principal.
type Session struct {
	id        uuid.UUID
	hub       *Hub
	principal model.Principal
	conn      *websocket.Conn

	out *outboundQueue

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession creates a session for an upgraded connection.
func (h *Hub) NewSession(conn *websocket.Conn, principal model.Principal) *Session {
	return &Session{
		id:        uuid.New(),
		hub:       h,
		principal: principal,
		conn:      conn,
		out:       newOutboundQueue(h.cfg.SessionBuffer),
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Principal returns the principal this session authenticated as.
func (s *Session) Principal() model.Principal {
	return s.principal
}

// Run services the connection until it closes: a write pump drains the
// outbound queue, a heartbeat sends pings, and the calling goroutine
// reads client events. On return the session has left every room.
func (s *Session) Run() {
	go s.writePump()
	go s.heartbeatLoop()

	s.readLoop()

	s.hub.Leave(s)
	s.close()
}

// enqueue hands an envelope to the session's outbound queue. The queue
// grows instead of blocking, so callers holding a room lock never wait
// on a slow client.
func (s *Session) enqueue(env Envelope) bool {
	return s.out.Send(env)
}

// close tears the session down. Idempotent.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.out.Close()

		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
	})
}

// readLoop parses client events and dispatches them to the hub.
// Operations run on a background context: in-flight work completes and
// persists even if the session disconnects mid-call.
func (s *Session) readLoop() {
	s.conn.SetReadLimit(s.hub.cfg.ReadLimit)
	s.resetReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.resetReadDeadline()
		return nil
	})

	for {
		var ev ClientEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.hub.logger.Debug("session read ended",
					"session", s.id,
					"err", err,
				)
			}
			return
		}
		s.resetReadDeadline()

		s.dispatch(ev)
	}
}

// dispatch handles one client event, reporting failures as errorNotice
// events rather than dropping the connection.
func (s *Session) dispatch(ev ClientEvent) {
	roomID, err := strconv.ParseInt(ev.RoomID, 10, 64)
	if err != nil {
		s.notifyError("invalid room reference")
		return
	}

	ctx := context.Background()

	switch ev.Type {
	case EventJoin:
		err = s.hub.Join(ctx, s, roomID)
	case EventSendMessage:
		err = s.hub.Send(ctx, s, roomID, ev.Content)
	default:
		s.notifyError("unknown event type")
		return
	}

	if err != nil {
		s.notifyError(noticeFor(err))
	}
}

// notifyError queues an errorNotice event for the client.
func (s *Session) notifyError(msg string) {
	s.enqueue(Envelope{Type: EventErrorNotice, Error: msg})
}

// noticeFor maps hub errors to client-facing notices.
func noticeFor(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "you are not a member of this room"
	case errors.Is(err, ErrInvalidInput):
		return "message cannot be empty"
	case errors.Is(err, ErrStoreUnavailable):
		return "message could not be saved, try again"
	default:
		return "internal error"
	}
}

// writePump drains the outbound queue onto the connection in FIFO
// order, closing the session on write failure.
func (s *Session) writePump() {
	for {
		env, ok := s.out.Receive()
		if !ok {
			return
		}

		s.conn.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteTimeout))
		if err := s.conn.WriteJSON(env); err != nil {
			s.hub.logger.Debug("session write failed",
				"session", s.id,
				"err", err,
			)
			s.close()
			return
		}
	}
}

// heartbeatLoop pings the client on an interval so dead connections
// are detected by the read deadline.
func (s *Session) heartbeatLoop() {
	ticker := time.NewTicker(s.hub.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(s.hub.cfg.WriteTimeout),
			)
			if err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *Session) resetReadDeadline() {
	s.conn.SetReadDeadline(time.Now().Add(s.hub.cfg.PingInterval * 2))
}
