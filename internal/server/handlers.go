package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rickgao/polysquad/internal/hub"
	"github.com/rickgao/polysquad/internal/model"
	"github.com/rickgao/polysquad/internal/store"
)

const maxBodyBytes = 1 << 16

type userResponse struct {
	Address      string `json:"evmAddress"`
	Username     string `json:"username"`
	VenueAddress string `json:"venueAddress,omitempty"`
	AvatarURL    string `json:"avatarUrl"`
}

func userFor(p model.Principal) userResponse {
	return userResponse{
		Address:      p.Address,
		Username:     p.Username,
		VenueAddress: p.VenueAddress,
		AvatarURL:    p.AvatarURL(),
	}
}

type squadResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	InviteCode string `json:"inviteCode"`
	CreatedAt  string `json:"createdAt"`
}

func squadFor(sq model.Squad) squadResponse {
	return squadResponse{
		ID:         sq.ID,
		Name:       sq.Name,
		InviteCode: sq.InviteCode,
		CreatedAt:  sq.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// handleLogin upserts the principal for a wallet address and issues a
// bearer token. There is no password: possession of the address is
// asserted by the client's wallet flow.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"evmAddress"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	address := strings.ToLower(strings.TrimSpace(req.Address))
	if address == "" {
		s.writeError(w, http.StatusBadRequest, "evmAddress is required")
		return
	}

	p, err := s.dir.UpsertPrincipal(r.Context(), address)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	token, err := s.tokens.Issue(p.Address)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{Token: token, User: userFor(p)})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, p model.Principal) {
	s.writeJSON(w, http.StatusOK, userFor(p))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, p model.Principal) {
	var req struct {
		Username     string `json:"username"`
		VenueAddress string `json:"venueAddress"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	updated, err := s.dir.UpdateProfile(r.Context(), p.Address,
		strings.TrimSpace(req.Username),
		strings.ToLower(strings.TrimSpace(req.VenueAddress)),
	)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, userFor(updated))
}

func (s *Server) handleCreateSquad(w http.ResponseWriter, r *http.Request, p model.Principal) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sq, err := s.dir.CreateSquad(r.Context(), name, p.Address)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, squadFor(sq))
}

func (s *Server) handleJoinSquad(w http.ResponseWriter, r *http.Request, p model.Principal) {
	var req struct {
		InviteCode string `json:"inviteCode"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.InviteCode))
	if code == "" {
		s.writeError(w, http.StatusBadRequest, "inviteCode is required")
		return
	}

	sq, err := s.dir.GetSquadByInviteCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "invite code not found")
			return
		}
		s.serverError(w, r, err)
		return
	}

	if err := s.dir.JoinSquad(r.Context(), sq.ID, p.Address); err != nil {
		if errors.Is(err, store.ErrSquadFull) {
			s.writeError(w, http.StatusConflict, "squad is full")
			return
		}
		s.serverError(w, r, err)
		return
	}

	// Membership changed; the cached board no longer reflects the roster.
	s.boards.Invalidate(sq.ID)

	s.writeJSON(w, http.StatusOK, squadFor(sq))
}

func (s *Server) handleListSquads(w http.ResponseWriter, r *http.Request, p model.Principal) {
	squads, err := s.dir.ListSquadsFor(r.Context(), p.Address)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	resp := make([]squadResponse, 0, len(squads))
	for _, sq := range squads {
		resp = append(resp, squadFor(sq))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// squadFromPath parses the {id} path segment and enforces membership.
func (s *Server) squadFromPath(w http.ResponseWriter, r *http.Request, p model.Principal) (model.Squad, bool) {
	squadID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid squad id")
		return model.Squad{}, false
	}

	sq, err := s.dir.GetSquad(r.Context(), squadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "squad not found")
		} else {
			s.serverError(w, r, err)
		}
		return model.Squad{}, false
	}

	ok, err := s.dir.IsMember(r.Context(), squadID, p.Address)
	if err != nil {
		s.serverError(w, r, err)
		return model.Squad{}, false
	}
	if !ok {
		s.writeError(w, http.StatusForbidden, "not a member of this squad")
		return model.Squad{}, false
	}

	return sq, true
}

func (s *Server) handleGetSquad(w http.ResponseWriter, r *http.Request, p model.Principal) {
	sq, ok := s.squadFromPath(w, r, p)
	if !ok {
		return
	}

	members, err := s.dir.ListMembers(r.Context(), sq.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	memberResp := make([]userResponse, 0, len(members))
	for _, m := range members {
		memberResp = append(memberResp, userFor(m))
	}

	s.writeJSON(w, http.StatusOK, struct {
		squadResponse
		Members []userResponse `json:"members"`
	}{squadResponse: squadFor(sq), Members: memberResp})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, p model.Principal) {
	sq, ok := s.squadFromPath(w, r, p)
	if !ok {
		return
	}

	messages, err := s.dir.ListMessages(r.Context(), sq.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	members, err := s.dir.ListMembers(r.Context(), sq.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	authors := make(map[string]hub.Author, len(members))
	for _, m := range members {
		authors[m.Address] = hub.AuthorFor(m)
	}

	resp := make([]hub.ChatMessage, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, hub.NewChatMessage(m, s.authorFor(m, authors)))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// authorFor resolves a persisted message's author display data.
// Departed members degrade to an address-only identity.
func (s *Server) authorFor(m model.Message, members map[string]hub.Author) hub.Author {
	if m.IsBot {
		return hub.BotAuthor()
	}
	if a, ok := members[m.AuthorAddress]; ok {
		return a
	}
	return hub.AuthorFor(model.Principal{
		Address:  m.AuthorAddress,
		Username: m.AuthorAddress,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request, p model.Principal) {
	sq, ok := s.squadFromPath(w, r, p)
	if !ok {
		return
	}

	entries, err := s.boards.Get(r.Context(), sq.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, entries)
}
