package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ernie/crewvoice/internal/auth"
	"github.com/ernie/crewvoice/internal/automute"
	"github.com/ernie/crewvoice/internal/collector"
	"github.com/ernie/crewvoice/internal/config"
	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/leaderboard"
	"github.com/ernie/crewvoice/internal/matchlog"
	"github.com/ernie/crewvoice/internal/narrative"
	"github.com/ernie/crewvoice/internal/voice"
)

const (
	matchJSON = `{"match_id":5,"result":"Crewmates Win","event_file":"5-events.json","players":[
		{"name":"Aiden","color":6,"team":"crewmate","alive":true},
		{"name":"zurg","color":14,"team":"impostor","alive":false}
	]}`
	eventsJSON = `[{"Event":"Exiled","Player":"zurg"}]`
)

type testEnv struct {
	router  *Router
	manager *collector.Manager
	store   *leaderboard.Memory
	auth    *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{"5.json": matchJSON, "5-events.json": eventsJSON} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	channels := voice.NewChannels([]config.ChannelConfig{{Name: "lobby", VoiceID: "v1", TextID: "t1"}})
	store := leaderboard.NewMemory()
	manager := collector.NewManager(collector.Deps{
		Channels: channels,
		Resolver: voice.NewResolver(channels, 80),
		Automute: automute.New(automute.Options{Enabled: true}),
		Linker:   collector.NewLinker(store, 80),
		Store:    store,
		Matches:  matchlog.NewDir(dir),
		Builder:  narrative.NewBuilder(narrative.Options{}),
	})

	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	authService := auth.NewService("test-secret", time.Hour, "admin", hash)
	return &testEnv{
		router:  NewRouter(store, manager, authService),
		manager: manager,
		store:   store,
		auth:    authService,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := e.auth.Login("admin", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	rec := newTestEnv(t).do(t, "GET", "/health", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetSessions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/sessions", "", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty sessions = %s", rec.Body.String())
	}

	env.manager.HandleEvent(context.Background(), &domain.GameEvent{
		EventName:    domain.GameEventStart,
		GameCode:     "ABCDEF",
		MatchID:      5,
		Players:      []string{"Aiden"},
		PlayerColors: []int{6},
	})
	var sessions []domain.Session
	decode(t, env.do(t, "GET", "/api/sessions", "", ""), &sessions)
	if len(sessions) != 1 || sessions[0].GameCode != "ABCDEF" || sessions[0].MatchID != 5 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestGetChannels(t *testing.T) {
	var channels []domain.ChannelStatus
	decode(t, newTestEnv(t).do(t, "GET", "/api/channels", "", ""), &channels)
	if len(channels) != 1 || channels[0].Name != "lobby" || channels[0].VoiceID != "v1" {
		t.Errorf("channels = %+v", channels)
	}
}

func TestGetNarrative(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/matches/5/narrative", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp NarrativeResponse
	decode(t, rec, &resp)
	if resp.MatchID != 5 || resp.Result != domain.ResultCrewmatesWin || len(resp.Entries) != 2 {
		t.Errorf("narrative = %+v", resp)
	}
	if !strings.Contains(resp.Entries[0].Text, "Ejected") {
		t.Errorf("first round = %q", resp.Entries[0].Text)
	}

	if rec := env.do(t, "GET", "/api/matches/6/narrative", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing match status = %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/matches/abc/narrative", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
}

func TestLeaderboardAndPlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"Aiden", "zurg", "Mantis"} {
		env.store.CreatePlayer(ctx, name)
	}

	var entries []domain.LeaderboardEntry
	decode(t, env.do(t, "GET", "/api/leaderboard?limit=2", "", ""), &entries)
	if len(entries) != 2 || entries[0].Rank != 1 {
		t.Errorf("leaderboard = %+v", entries)
	}

	var entry domain.LeaderboardEntry
	decode(t, env.do(t, "GET", "/api/players/zurg", "", ""), &entry)
	if entry.Name != "zurg" || entry.MMR != leaderboard.DefaultRating {
		t.Errorf("player = %+v", entry)
	}
	if rec := env.do(t, "GET", "/api/players/nobody", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing player status = %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/auth/login", `{"username":"admin","password":"hunter22"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var resp LoginResponse
	decode(t, rec, &resp)
	if resp.Token == "" || !resp.IsAdmin {
		t.Errorf("login = %+v", resp)
	}

	if resp.ExpiresAt.IsZero() {
		t.Error("login response without expiry")
	}

	var me WhoAmIResponse
	decode(t, env.do(t, "GET", "/api/auth/whoami", "", resp.Token), &me)
	if !me.Authenticated || me.Username != "admin" || !me.IsAdmin || me.ExpiresAt == nil {
		t.Errorf("whoami = %+v", me)
	}
	var anon WhoAmIResponse
	decode(t, env.do(t, "GET", "/api/auth/whoami", "", "garbage"), &anon)
	if anon.Authenticated {
		t.Errorf("whoami with a bad token = %+v", anon)
	}

	if rec := env.do(t, "POST", "/api/auth/login", `{"username":"admin","password":"nope"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d", rec.Code)
	}
	if rec := env.do(t, "POST", "/api/auth/login", `{`, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d", rec.Code)
	}
}

func TestAutomuteSwitch(t *testing.T) {
	env := newTestEnv(t)

	var state AutomuteRequest
	decode(t, env.do(t, "GET", "/api/automute", "", ""), &state)
	if !state.Enabled {
		t.Error("automute should start enabled")
	}

	if rec := env.do(t, "PUT", "/api/automute", `{"enabled":false}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous toggle status = %d", rec.Code)
	}
	if !env.manager.AutomuteEnabled() {
		t.Fatal("anonymous request switched automute off")
	}

	userToken, _ := env.auth.GenerateToken("viewer", false)
	if rec := env.do(t, "PUT", "/api/automute", `{"enabled":false}`, userToken); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin toggle status = %d", rec.Code)
	}

	rec := env.do(t, "PUT", "/api/automute", `{"enabled":false}`, env.adminToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin toggle status = %d", rec.Code)
	}
	if env.manager.AutomuteEnabled() {
		t.Error("automute still enabled")
	}
}

func TestLinkAndUnlink(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	ctx := context.Background()

	if rec := env.do(t, "PUT", "/api/players/Aiden/link", `{"discord_id":"abc"}`, token); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
	rec := env.do(t, "PUT", "/api/players/Aiden/link", `{"discord_id":"123456789012345678"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("link status = %d: %s", rec.Code, rec.Body.String())
	}
	if e, err := env.store.PlayerByName(ctx, "Aiden"); err != nil || e.DiscordID != "123456789012345678" {
		t.Errorf("Aiden = %+v, %v", e, err)
	}

	if rec := env.do(t, "DELETE", "/api/players/Aiden/link", "", token); rec.Code != http.StatusOK {
		t.Errorf("unlink status = %d", rec.Code)
	}
	if e, _ := env.store.PlayerByName(ctx, "Aiden"); e.Linked() {
		t.Error("Aiden still linked")
	}
	if rec := env.do(t, "DELETE", "/api/players/nobody/link", "", token); rec.Code != http.StatusNotFound {
		t.Errorf("unlink missing status = %d", rec.Code)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.router.StartWebSocketHub(ctx)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.router.wsHub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.manager.SetAutomute(false)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event domain.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != domain.EventAutomuteToggle || event.Data != false {
		t.Errorf("event = %+v", event)
	}
}

func TestWebSocketClientChannelFilter(t *testing.T) {
	all := &WebSocketClient{}
	lobby := &WebSocketClient{channel: "lobby"}
	if !all.wants("upstairs") || !lobby.wants("lobby") || !lobby.wants("") {
		t.Error("client dropped an event it should receive")
	}
	if lobby.wants("upstairs") {
		t.Error("filtered client received another channel's event")
	}
}

func TestWebSocketHubRefusesClientsAfterShutdown(t *testing.T) {
	h := NewWebSocketHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	if h.add(&WebSocketClient{send: make(chan []byte, 1)}) {
		t.Error("client added to a stopped hub")
	}
	if n := h.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d, want 0", n)
	}
}
