package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/polysquad/internal/hub"
	"github.com/rickgao/polysquad/internal/model"
	"github.com/rickgao/polysquad/internal/store"
)

// Directory is the store surface the HTTP handlers need.
type Directory interface {
	Ping(ctx context.Context) error
	UpsertPrincipal(ctx context.Context, address string) (model.Principal, error)
	GetPrincipal(ctx context.Context, address string) (model.Principal, error)
	UpdateProfile(ctx context.Context, address, username, venueAddress string) (model.Principal, error)
	CreateSquad(ctx context.Context, name, creatorAddress string) (model.Squad, error)
	GetSquad(ctx context.Context, squadID int64) (model.Squad, error)
	GetSquadByInviteCode(ctx context.Context, code string) (model.Squad, error)
	JoinSquad(ctx context.Context, squadID int64, address string) error
	IsMember(ctx context.Context, squadID int64, address string) (bool, error)
	ListMembers(ctx context.Context, squadID int64) ([]model.Principal, error)
	ListSquadsFor(ctx context.Context, address string) ([]model.Squad, error)
	ListMessages(ctx context.Context, squadID int64) ([]model.Message, error)
}

// Boards computes squad leaderboards.
type Boards interface {
	Get(ctx context.Context, squadID int64) ([]model.LeaderboardEntry, error)
	Invalidate(squadID int64)
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(address string) (string, error)
	Assert(token string) (string, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	dir      Directory
	hub      *hub.Hub
	boards   Boards
	tokens   Tokens
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a Server.
func New(dir Directory, h *hub.Hub, boards Boards, tokens Tokens, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dir:    dir,
		hub:    h,
		boards: boards,
		tokens: tokens,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from a separate origin; token
			// auth is the access control, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.HandleFunc("GET /api/user/me", s.withAuth(s.handleMe))
	mux.HandleFunc("POST /api/user/profile", s.withAuth(s.handleUpdateProfile))

	mux.HandleFunc("POST /api/squads/create", s.withAuth(s.handleCreateSquad))
	mux.HandleFunc("POST /api/squads/join", s.withAuth(s.handleJoinSquad))
	mux.HandleFunc("GET /api/squads", s.withAuth(s.handleListSquads))
	mux.HandleFunc("GET /api/squads/{id}", s.withAuth(s.handleGetSquad))
	mux.HandleFunc("GET /api/squads/{id}/messages", s.withAuth(s.handleListMessages))
	mux.HandleFunc("GET /api/squads/{id}/leaderboard", s.withAuth(s.handleLeaderboard))

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

// authedHandler is an HTTP handler that runs with a verified principal.
type authedHandler func(w http.ResponseWriter, r *http.Request, p model.Principal)

// withAuth verifies the bearer token and loads the principal before
// invoking the handler.
func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.authenticate(w, r)
		if !ok {
			return
		}
		next(w, r, p)
	}
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	token := bearerToken(r)
	if token == "" {
		s.writeError(w, http.StatusUnauthorized, "missing bearer token")
		return model.Principal{}, false
	}

	address, err := s.tokens.Assert(token)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return model.Principal{}, false
	}

	p, err := s.dir.GetPrincipal(r.Context(), address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusUnauthorized, "unknown principal")
		} else {
			s.serverError(w, r, err)
		}
		return model.Principal{}, false
	}

	return p, true
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to encode response", "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// serverError logs the cause and returns an opaque 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"err", err,
	)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	if err := s.dir.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Components["postgres"] = map[string]string{
			"status": "disconnected",
			"error":  err.Error(),
		}
	} else {
		health.Components["postgres"] = "connected"
	}

	stats := s.hub.Stats()
	health.Components["hub"] = map[string]int{
		"rooms":    stats.Rooms,
		"sessions": stats.Sessions,
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}
