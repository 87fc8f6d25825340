package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/config"
	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/telemetry"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func testClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
	hub.Register(client)
	return client
}

func receive(t *testing.T, client *WSClient) WSMessage {
	t.Helper()
	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return wsMsg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast message")
	}
	return WSMessage{}
}

// ─── Hub ───────────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, ChannelValveState)

	hub.Broadcast(ChannelValveState, map[string]any{"name": "S1", "open": true})

	if msg := receive(t, client); msg.Type != WSTypeEvent || msg.EventType != ChannelValveState {
		t.Errorf("message = %+v, want %s event", msg, ChannelValveState)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, ChannelPressure)

	hub.Broadcast(ChannelValveState, map[string]any{"name": "S1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}
	client := testClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	// A second unregister must not close the channel twice.
	hub.Unregister(client)
}

func TestHub_EventSinks(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, ChannelValveState, ChannelSequenceStatus, ChannelPressure)

	hub.OnValveStateChanged([]valve.Status{{Name: "S1", Open: true}, {Name: "S2"}})
	msg := receive(t, client)
	if msg.EventType != ChannelValveState {
		t.Fatalf("event_type = %q, want %q", msg.EventType, ChannelValveState)
	}
	payload, _ := json.Marshal(msg.Payload)
	var valves ValveStatePayload
	if err := json.Unmarshal(payload, &valves); err != nil {
		t.Fatalf("unmarshal valves: %v", err)
	}
	if len(valves.Valves) != 2 || !valves.Valves[0].Open || valves.Valves[1].Open {
		t.Errorf("valves = %+v", valves.Valves)
	}

	hub.OnSequenceStatus("Sequence complete.", sequence.SeveritySuccess)
	msg = receive(t, client)
	payload, _ = json.Marshal(msg.Payload)
	var status SequenceStatusPayload
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if msg.EventType != ChannelSequenceStatus || status.Message != "Sequence complete." || status.Severity != sequence.SeveritySuccess {
		t.Errorf("status event = %+v / %+v", msg, status)
	}

	hub.OnPressure(telemetry.Reading{At: time.Now(), Pressures: []float64{1.5, 2.5}})
	msg = receive(t, client)
	payload, _ = json.Marshal(msg.Payload)
	var reading telemetry.Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		t.Fatalf("unmarshal reading: %v", err)
	}
	if msg.EventType != ChannelPressure || len(reading.Pressures) != 2 || reading.Pressures[1] != 2.5 {
		t.Errorf("pressure event = %+v / %+v", msg, reading)
	}
}

func TestHub_DropsForFullOrClosedClients(t *testing.T) {
	hub := testHub(t)
	slow := testClient(hub, ChannelSequenceStatus)
	for j := 0; j < wsSendBufferSize; j++ {
		hub.OnSequenceStatus("fill", sequence.SeverityInfo)
	}
	if hub.Dropped() != 0 {
		t.Fatalf("Dropped() = %d before queue was full", hub.Dropped())
	}
	hub.OnSequenceStatus("overflow", sequence.SeverityInfo)
	if hub.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", hub.Dropped())
	}

	hub.Unregister(slow)
	if slow.enqueue([]byte("late")) {
		t.Error("enqueue succeeded after Unregister")
	}
}

// ─── Tickets ───────────────────────────────────────────────────────

func TestWSTicket_SingleUse(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", "")
	expectStatus(t, w, http.StatusOK)

	resp := decode[map[string]any](t, w)
	ticket, ok := resp["ticket"].(string)
	if !ok || ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}

	entry, ok := env.srv.tickets.consume(ticket)
	if !ok {
		t.Error("ticket should be valid on first use")
	}
	if entry.operator != "tester" {
		t.Errorf("ticket operator = %q, want tester", entry.operator)
	}
	if _, ok := env.srv.tickets.consume(ticket); ok {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_RequiresAuth(t *testing.T) {
	env := testServer(t)
	expectStatus(t, env.doAnon(t, http.MethodPost, "/api/v1/auth/ws-ticket"), http.StatusUnauthorized)
}

func TestWSTicket_Expiry(t *testing.T) {
	store := newTicketStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	expired := store.issue("tester")
	fresh := store.issue("tester")

	now = now.Add(ticketTTL + time.Second)
	if _, ok := store.consume(expired); ok {
		t.Error("expired ticket should not be valid")
	}

	store.cleanExpired()
	if n := store.len(); n != 0 {
		t.Errorf("tickets after clean = %d, want 0", n)
	}
	if _, ok := store.consume(fresh); ok {
		t.Error("cleaned ticket should not be valid")
	}
}

// ─── Live connections ──────────────────────────────────────────────

// liveServer serves the router on a real listener.
func liveServer(t *testing.T) (*testEnv, string) {
	t.Helper()
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)
	return env, strings.TrimPrefix(ts.URL, "http://")
}

// connectWebSocket fetches a ticket with the env's token and connects.
func connectWebSocket(t *testing.T, env *testEnv, addr string) *websocket.Conn {
	t.Helper()

	req, _ := http.NewRequest(http.MethodPost, "http://"+addr+"/api/v1/auth/ws-ticket", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	ticketResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get ticket failed: %v", err)
	}
	defer ticketResp.Body.Close()

	var ticketResult struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(ticketResp.Body).Decode(&ticketResult); err != nil {
		t.Fatalf("decode ticket response: %v", err)
	}

	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws?ticket="+ticketResult.Ticket, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func subscribe(t *testing.T, ws *websocket.Conn, channels ...string) {
	t.Helper()
	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}
}

func TestWebSocket_ValveEventsReachClient(t *testing.T) {
	env, addr := liveServer(t)
	ws := connectWebSocket(t, env, addr)
	subscribe(t, ws, ChannelValveState)

	if env.srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", env.srv.hub.ClientCount())
	}

	expectStatus(t, env.do(t, http.MethodPut, "/api/v1/valves/V1", `{"open": true}`), http.StatusOK)

	var msg struct {
		Type      string            `json:"type"`
		EventType string            `json:"event_type"`
		Payload   ValveStatePayload `json:"payload"`
	}
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != ChannelValveState {
		t.Fatalf("message = %+v", msg)
	}
	if len(msg.Payload.Valves) != len(testValves) || !msg.Payload.Valves[2].Open {
		t.Errorf("valves = %+v, want V1 open", msg.Payload.Valves)
	}
}

func TestWebSocket_SubscribeUnsubscribe(t *testing.T) {
	env, addr := liveServer(t)
	ws := connectWebSocket(t, env, addr)
	subscribe(t, ws, ChannelValveState, ChannelSequenceStatus)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelValveState}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read unsubscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "unsub-1" {
		t.Fatalf("unsubscribe response = %+v", resp)
	}

	// Only the status event should arrive: the valve change is filtered out.
	expectStatus(t, env.do(t, http.MethodPut, "/api/v1/valves/NOPE", `{"open": true}`), http.StatusNotFound)
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if resp.EventType != ChannelSequenceStatus {
		t.Errorf("event_type = %q, want %q", resp.EventType, ChannelSequenceStatus)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env, addr := liveServer(t)
	ws := connectWebSocket(t, env, addr)

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong || resp.ID != "ping-1" {
		t.Errorf("response = %+v, want pong ping-1", resp)
	}
}

func TestWebSocket_BadMessages(t *testing.T) {
	env, addr := liveServer(t)
	ws := connectWebSocket(t, env, addr)

	for _, raw := range []string{`not json`, `{"type": "unknown_type", "id": "x"}`} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write %q: %v", raw, err)
		}
		ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
		var resp WSMessage
		if err := ws.ReadJSON(&resp); err != nil {
			t.Fatalf("read error response: %v", err)
		}
		if resp.Type != WSTypeError {
			t.Errorf("response to %q = %s, want error", raw, resp.Type)
		}
	}
}

func TestWebSocket_SubscribeRejectsUnknownChannel(t *testing.T) {
	env, addr := liveServer(t)
	ws := connectWebSocket(t, env, addr)

	for _, msg := range []WSMessage{
		{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{"valve.bogus"}}},
		{Type: WSTypeSubscribe, ID: "s2"},
	} {
		if err := ws.WriteJSON(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
		var resp WSMessage
		if err := ws.ReadJSON(&resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.Type != WSTypeError || resp.ID != msg.ID {
			t.Errorf("response = %+v, want error for %s", resp, msg.ID)
		}
	}
}

func TestWebSocket_TicketRequired(t *testing.T) {
	_, addr := liveServer(t)

	for _, query := range []string{"", "?ticket=invalid-ticket"} {
		_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws"+query, nil)
		if err == nil {
			t.Fatalf("expected error connecting with %q", query)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("dial %q: resp = %v, want 401", query, resp)
		}
	}
}
