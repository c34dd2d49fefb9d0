package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/polysquad/internal/hub"
	"github.com/rickgao/polysquad/internal/model"
	"github.com/rickgao/polysquad/internal/store"
)

// fakeDir implements Directory and the hub's store surface in memory.
type fakeDir struct {
	mu         sync.Mutex
	principals map[string]model.Principal
	squads     map[int64]model.Squad
	members    map[int64][]string
	messages   map[int64][]model.Message
	nextSquad  int64
	nextMsg    int64
}

func newFakeDir() *fakeDir {
	return &fakeDir{
		principals: make(map[string]model.Principal),
		squads:     make(map[int64]model.Squad),
		members:    make(map[int64][]string),
		messages:   make(map[int64][]model.Message),
	}
}

func (f *fakeDir) Ping(context.Context) error { return nil }

func (f *fakeDir) UpsertPrincipal(_ context.Context, address string) (model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.principals[address]; ok {
		return p, nil
	}
	p := model.Principal{Address: address, Username: "user_" + address, CreatedAt: time.Now()}
	f.principals[address] = p
	return p, nil
}

func (f *fakeDir) GetPrincipal(_ context.Context, address string) (model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.principals[address]
	if !ok {
		return model.Principal{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeDir) UpdateProfile(_ context.Context, address, username, venueAddress string) (model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.principals[address]
	if username != "" {
		p.Username = username
	}
	if venueAddress != "" {
		p.VenueAddress = venueAddress
	}
	f.principals[address] = p
	return p, nil
}

func (f *fakeDir) CreateSquad(_ context.Context, name, creatorAddress string) (model.Squad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSquad++
	sq := model.Squad{ID: f.nextSquad, Name: name, InviteCode: fmt.Sprintf("CODE%02d", f.nextSquad), CreatedAt: time.Now()}
	f.squads[sq.ID] = sq
	f.members[sq.ID] = []string{creatorAddress}
	return sq, nil
}

func (f *fakeDir) GetSquad(_ context.Context, squadID int64) (model.Squad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sq, ok := f.squads[squadID]
	if !ok {
		return model.Squad{}, store.ErrNotFound
	}
	return sq, nil
}

func (f *fakeDir) GetSquadByInviteCode(_ context.Context, code string) (model.Squad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sq := range f.squads {
		if sq.InviteCode == code {
			return sq, nil
		}
	}
	return model.Squad{}, store.ErrNotFound
}

func (f *fakeDir) JoinSquad(_ context.Context, squadID int64, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.members[squadID] {
		if a == address {
			return nil
		}
	}
	if len(f.members[squadID]) >= model.MaxSquadMembers {
		return store.ErrSquadFull
	}
	f.members[squadID] = append(f.members[squadID], address)
	return nil
}

func (f *fakeDir) IsMember(_ context.Context, squadID int64, address string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.members[squadID] {
		if a == address {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDir) ListMembers(_ context.Context, squadID int64) ([]model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Principal, 0, len(f.members[squadID]))
	for _, a := range f.members[squadID] {
		out = append(out, f.principals[a])
	}
	return out, nil
}

func (f *fakeDir) ListSquadsFor(_ context.Context, address string) ([]model.Squad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Squad
	for id, members := range f.members {
		for _, a := range members {
			if a == address {
				out = append(out, f.squads[id])
			}
		}
	}
	return out, nil
}

func (f *fakeDir) ListMessages(_ context.Context, squadID int64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[squadID], nil
}

func (f *fakeDir) SaveMessage(_ context.Context, m model.Message) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsg++
	m.ID = f.nextMsg
	m.CreatedAt = time.Now()
	f.messages[m.SquadID] = append(f.messages[m.SquadID], m)
	return m, nil
}

func (f *fakeDir) DeleteOldMessages(context.Context, int64) error { return nil }

// fakeBoards records invalidations and serves a fixed board.
type fakeBoards struct {
	mu          sync.Mutex
	entries     []model.LeaderboardEntry
	invalidated []int64
}

func (f *fakeBoards) Get(context.Context, int64) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

func (f *fakeBoards) Invalidate(squadID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, squadID)
}

// fakeTokens maps token "tok:<addr>" to <addr>.
type fakeTokens struct{}

func (fakeTokens) Issue(address string) (string, error) { return "tok:" + address, nil }

func (fakeTokens) Assert(token string) (string, error) {
	addr, ok := strings.CutPrefix(token, "tok:")
	if !ok {
		return "", fmt.Errorf("bad token")
	}
	return addr, nil
}

type testEnv struct {
	dir    *fakeDir
	boards *fakeBoards
	srv    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := newFakeDir()
	boards := &fakeBoards{}
	h := hub.New(hub.DefaultConfig(), dir, nil)
	s := New(dir, h, boards, fakeTokens{}, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{dir: dir, boards: boards, srv: srv}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

// login registers a principal and returns its token.
func (e *testEnv) login(t *testing.T, address string) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{"evmAddress": address})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	body := decodeBody[struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}](t, resp)
	return body.Token
}

func TestLoginIssuesTokenAndUpserts(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{"evmAddress": "0xABC"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}](t, resp)

	// Addresses normalize to lowercase.
	if body.User.Address != "0xabc" {
		t.Errorf("address = %q, want 0xabc", body.User.Address)
	}
	if body.Token != "tok:0xabc" {
		t.Errorf("token = %q", body.Token)
	}
	if body.User.AvatarURL == "" {
		t.Error("avatarUrl empty")
	}
}

func TestLoginRejectsEmptyAddress(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{"evmAddress": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/user/me", "/api/squads"} {
		if resp := env.request(t, http.MethodGet, path, "", nil); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, resp.StatusCode)
		}
		if resp := env.request(t, http.MethodGet, path, "garbage", nil); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token = %d, want 401", path, resp.StatusCode)
		}
	}

	// A valid token for an unregistered principal is still rejected.
	if resp := env.request(t, http.MethodGet, "/api/user/me", "tok:0xghost", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unknown principal = %d, want 401", resp.StatusCode)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "0xabc")

	resp := env.request(t, http.MethodPost, "/api/user/profile", token,
		map[string]string{"username": "alice", "venueAddress": "0xVENUE"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	user := decodeBody[userResponse](t, resp)
	if user.Username != "alice" || user.VenueAddress != "0xvenue" {
		t.Errorf("user = %+v", user)
	}
}

func TestSquadLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "0xaaa")
	bob := env.login(t, "0xbbb")

	resp := env.request(t, http.MethodPost, "/api/squads/create", alice, map[string]string{"name": "degens"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	sq := decodeBody[squadResponse](t, resp)
	if sq.Name != "degens" || sq.InviteCode == "" {
		t.Fatalf("squad = %+v", sq)
	}

	// Bob cannot read the squad before joining.
	path := fmt.Sprintf("/api/squads/%d", sq.ID)
	if resp := env.request(t, http.MethodGet, path, bob, nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("outsider get = %d, want 403", resp.StatusCode)
	}

	// Joining with a bad code is a 404.
	if resp := env.request(t, http.MethodPost, "/api/squads/join", bob, map[string]string{"inviteCode": "NOPE42"}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("bad code = %d, want 404", resp.StatusCode)
	}

	// Invite codes are case-insensitive on input.
	resp = env.request(t, http.MethodPost, "/api/squads/join", bob, map[string]string{"inviteCode": strings.ToLower(sq.InviteCode)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join status = %d, want 200", resp.StatusCode)
	}

	// Joining invalidates the cached leaderboard.
	env.boards.mu.Lock()
	invalidated := len(env.boards.invalidated) == 1 && env.boards.invalidated[0] == sq.ID
	env.boards.mu.Unlock()
	if !invalidated {
		t.Error("join did not invalidate the leaderboard cache")
	}

	// Now the squad detail lists both members.
	resp = env.request(t, http.MethodGet, path, bob, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("member get = %d, want 200", resp.StatusCode)
	}
	detail := decodeBody[struct {
		squadResponse
		Members []userResponse `json:"members"`
	}](t, resp)
	if len(detail.Members) != 2 {
		t.Errorf("members = %d, want 2", len(detail.Members))
	}

	// And it shows up in Bob's squad list.
	resp = env.request(t, http.MethodGet, "/api/squads", bob, nil)
	squads := decodeBody[[]squadResponse](t, resp)
	if len(squads) != 1 || squads[0].ID != sq.ID {
		t.Errorf("squads = %+v", squads)
	}
}

func TestJoinFullSquad(t *testing.T) {
	env := newTestEnv(t)
	creator := env.login(t, "0xcreator")

	resp := env.request(t, http.MethodPost, "/api/squads/create", creator, map[string]string{"name": "full"})
	sq := decodeBody[squadResponse](t, resp)

	for i := 1; i < model.MaxSquadMembers; i++ {
		tok := env.login(t, fmt.Sprintf("0x%03d", i))
		if resp := env.request(t, http.MethodPost, "/api/squads/join", tok, map[string]string{"inviteCode": sq.InviteCode}); resp.StatusCode != http.StatusOK {
			t.Fatalf("join %d = %d", i, resp.StatusCode)
		}
	}

	late := env.login(t, "0xlate")
	if resp := env.request(t, http.MethodPost, "/api/squads/join", late, map[string]string{"inviteCode": sq.InviteCode}); resp.StatusCode != http.StatusConflict {
		t.Errorf("join full squad = %d, want 409", resp.StatusCode)
	}
}

func TestMessageHistoryResolvesAuthors(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "0xaaa")

	resp := env.request(t, http.MethodPost, "/api/squads/create", alice, map[string]string{"name": "room"})
	sq := decodeBody[squadResponse](t, resp)

	env.dir.SaveMessage(context.Background(), model.Message{SquadID: sq.ID, AuthorAddress: "0xaaa", Body: "hi"})
	env.dir.SaveMessage(context.Background(), model.Message{SquadID: sq.ID, IsBot: true, Body: "📈 trade"})

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/squads/%d/messages", sq.ID), alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	msgs := decodeBody[[]hub.ChatMessage](t, resp)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Author.Address != "0xaaa" {
		t.Errorf("author = %+v", msgs[0].Author)
	}
	if !msgs[1].IsBot || msgs[1].Author.Username != "Bot" {
		t.Errorf("bot message = %+v", msgs[1])
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "0xaaa")
	outsider := env.login(t, "0xout")

	resp := env.request(t, http.MethodPost, "/api/squads/create", alice, map[string]string{"name": "room"})
	sq := decodeBody[squadResponse](t, resp)

	env.boards.mu.Lock()
	env.boards.entries = []model.LeaderboardEntry{{Address: "0xaaa", Username: "alice", TotalLivePnl: 12.34}}
	env.boards.mu.Unlock()

	path := fmt.Sprintf("/api/squads/%d/leaderboard", sq.ID)
	if resp := env.request(t, http.MethodGet, path, outsider, nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("outsider = %d, want 403", resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, path, alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	entries := decodeBody[[]model.LeaderboardEntry](t, resp)
	if len(entries) != 1 || entries[0].TotalLivePnl != 12.34 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	if resp := env.request(t, http.MethodGet, "/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func dialWS(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded with bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("resp = %+v, want 401", resp)
	}
}

func TestWebSocketChatRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "0xaaa")

	resp := env.request(t, http.MethodPost, "/api/squads/create", alice, map[string]string{"name": "room"})
	sq := decodeBody[squadResponse](t, resp)
	roomID := fmt.Sprintf("%d", sq.ID)

	conn := dialWS(t, env, alice)

	join := hub.ClientEvent{Type: hub.EventJoin, RoomID: roomID}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatal(err)
	}
	send := hub.ClientEvent{Type: hub.EventSendMessage, RoomID: roomID, Content: "hello"}
	if err := conn.WriteJSON(send); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env1 hub.Envelope
	if err := conn.ReadJSON(&env1); err != nil {
		t.Fatal(err)
	}
	if env1.Type != hub.EventMessage || env1.Message == nil || env1.Message.Content != "hello" {
		t.Fatalf("envelope = %+v", env1)
	}
	if env1.Message.Author.Address != "0xaaa" {
		t.Errorf("author = %+v", env1.Message.Author)
	}
}

func TestWebSocketOutsiderGetsErrorNotice(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "0xaaa")
	mallory := env.login(t, "0xmmm")

	resp := env.request(t, http.MethodPost, "/api/squads/create", alice, map[string]string{"name": "room"})
	sq := decodeBody[squadResponse](t, resp)

	conn := dialWS(t, env, mallory)
	join := hub.ClientEvent{Type: hub.EventJoin, RoomID: fmt.Sprintf("%d", sq.ID)}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envlp hub.Envelope
	if err := conn.ReadJSON(&envlp); err != nil {
		t.Fatal(err)
	}
	if envlp.Type != hub.EventErrorNotice || envlp.Error == "" {
		t.Errorf("envelope = %+v, want errorNotice", envlp)
	}
}
