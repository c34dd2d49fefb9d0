package server

import (
	"errors"
	"net/http"

	"github.com/rickgao/polysquad/internal/store"
)

// handleWebSocket upgrades an authenticated connection and hands it to
// the hub. Browsers cannot set headers on WebSocket dials, so the
// token rides in the query string instead.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		s.writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	address, err := s.tokens.Assert(token)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	p, err := s.dir.GetPrincipal(r.Context(), address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusUnauthorized, "unknown principal")
		} else {
			s.serverError(w, r, err)
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	session := s.hub.NewSession(conn, p)
	s.logger.Debug("session connected",
		"session", session.ID(),
		"principal", p.Address,
	)

	go func() {
		session.Run()
		s.logger.Debug("session disconnected", "session", session.ID())
	}()
}
