package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinelwatch/sentinelwatch/pkg/types"
	"github.com/sentinelwatch/sentinelwatch/server/internal/store"
	wsHub "github.com/sentinelwatch/sentinelwatch/server/internal/ws"
)

const (
	testInterval = 20 * time.Millisecond
	testFeedSize = 10
)

// --- helpers ----------------------------------------------------------------

func newStore(clientIDs ...string) *store.Store {
	st := store.New(time.Hour)
	for _, id := range clientIDs {
		st.Add(&types.Snapshot{
			ClientID:   id,
			ClientType: "linux_desktop",
			Timestamp:  time.Now().UTC(),
		})
	}
	return st
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// URL, the hub, and a cleanup function.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testInterval, testFeedSize)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one text message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

func decodeFeed(t *testing.T, msg []byte) (event string, activities []interface{}) {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	event, _ = m["event"].(string)
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	activities, _ = data["activities"].([]interface{})
	return event, activities
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateFeed(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore("desk-1"))

	conn := dial(t, wsURL)
	event, activities := decodeFeed(t, readMessage(t, conn))

	if event != "activities" {
		t.Errorf("event: got %v, want activities", event)
	}
	if len(activities) != 1 {
		t.Errorf("activities: got %d, want 1", len(activities))
	}
}

func TestHub_EmptyStore_EmptyFeed(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore())
	conn := dial(t, wsURL)

	_, activities := decodeFeed(t, readMessage(t, conn))
	if len(activities) != 0 {
		t.Errorf("activities: got %d, want 0", len(activities))
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	for i := 0; i < 3; i++ {
		conn := dial(t, wsURL)
		readMessage(t, conn) // consume initial message
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountDecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume immediate feed (empty store)

	// Record an activity after connect.
	st.Add(&types.Snapshot{
		ClientID:   "late-client",
		ClientType: "linux_server",
		Timestamp:  time.Now().UTC(),
	})

	// The next tick should broadcast a feed containing the new activity.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("waiting for tick broadcast: %v", err)
	}

	_, activities := decodeFeed(t, msg)
	if len(activities) != 1 {
		t.Fatalf("tick broadcast: got %d activities, want 1", len(activities))
	}
	a := activities[0].(map[string]interface{})
	snap := a["snapshot"].(map[string]interface{})
	if snap["client_id"] != "late-client" {
		t.Errorf("client_id: got %v, want late-client", snap["client_id"])
	}
}

func TestHub_AllClientsReceiveBroadcast(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore("desk-1"))

	conns := make([]*websocket.Conn, 3)
	for i := 0; i < 3; i++ {
		conns[i] = dial(t, wsURL)
	}

	for i, conn := range conns {
		event, _ := decodeFeed(t, readMessage(t, conn))
		if event != "activities" {
			t.Errorf("client %d: event: got %v, want activities", i, event)
		}
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel() // signal shutdown

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(), testInterval, testFeedSize)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
