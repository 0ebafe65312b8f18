package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("account"))
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { hub.Stop(context.Background()) })
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, accountID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?account=" + accountID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return event
}

func TestPublishReachesOnlyOwnAccount(t *testing.T) {
	hub, server := newTestHub(t)

	alice := dial(t, server, "acct-alice")
	bob := dial(t, server, "acct-bob")
	waitForClients(t, hub, 2)

	hub.Publish("acct-alice", "trade.created", map[string]string{"id": "t-1"})

	event := readEvent(t, alice)
	if event.Event != "trade.created" {
		t.Errorf("unexpected event %s", event.Event)
	}

	bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatal("expected no event for other account")
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	hub, server := newTestHub(t)

	alice := dial(t, server, "acct-alice")
	bob := dial(t, server, "acct-bob")
	waitForClients(t, hub, 2)

	hub.Broadcast("price.tick", map[string]interface{}{"pair": "BTC/USD", "price": 64000})

	for _, conn := range []*websocket.Conn{alice, bob} {
		event := readEvent(t, conn)
		if event.Event != "price.tick" {
			t.Errorf("unexpected event %s", event.Event)
		}
	}
}

func TestDisconnectDetaches(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dial(t, server, "acct-1")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestConcurrentPublishDropsSlowClient(t *testing.T) {
	hub := NewHub(nil, nil)

	// A client whose buffer is already full, without a write pump draining
	// it, so every delivery takes the slow-consumer path.
	slow := &client{
		accountID: "acct-slow",
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	for i := 0; i < sendBuffer; i++ {
		slow.send <- []byte("{}")
	}
	hub.mu.Lock()
	hub.clients["acct-slow"] = map[*client]struct{}{slow: {}}
	hub.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish("acct-slow", "trade.created", map[string]string{"id": "t-1"})
			}
		}()
	}
	wg.Wait()

	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("expected slow client to be dropped, have %d clients", n)
	}
	select {
	case <-slow.done:
	default:
		t.Fatal("expected dropped client to be signalled shut down")
	}
}
