package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketsim/marketsim/internal/market"
)

func TestManagerBroadcastsOnlyToSubscribedClients(t *testing.T) {
	mgr := NewManager(16)
	srv := httptest.NewServer(Handler(mgr))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := controlMessage{Action: "subscribe", Symbols: []string{"XYZ"}}
	data, _ := json.Marshal(sub)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mgr.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mgr.ClientCount() != 1 {
		t.Fatalf("expected 1 registered client, got %d", mgr.ClientCount())
	}

	time.Sleep(50 * time.Millisecond) // let the subscribe control message land

	mgr.OnBBO("ABC", market.BBO{BidPrice: 100, AskPrice: 101}, 0, false)
	mgr.OnBBO("XYZ", market.BBO{BidPrice: 9990, AskPrice: 10010}, 10000, true)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(msg, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.Symbol != "XYZ" {
		t.Fatalf("expected only the XYZ snapshot to arrive, got %q", snap.Symbol)
	}
}
