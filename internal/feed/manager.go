package feed

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/marketsim/marketsim/internal/market"
)

// Snapshot is the wire format pushed to every subscribed client on a
// BBO or last-trade change.
type Snapshot struct {
	Symbol        string `json:"symbol"`
	BidPrice      int64  `json:"bid_price_cents"`
	BidQty        int64  `json:"bid_qty"`
	AskPrice      int64  `json:"ask_price_cents"`
	AskQty        int64  `json:"ask_qty"`
	LastTrade     int64  `json:"last_trade_cents,omitempty"`
	HasLastTrade  bool   `json:"has_last_trade"`
}

// Manager fans BBO snapshots out to subscribed WebSocket clients. It
// implements exchange.BBOListener, so it can be wired directly via
// ExchangeAgent.SetListener.
type Manager struct {
	mu         sync.RWMutex
	clients    map[uint64]*Client
	bufferSize int
}

// NewManager creates a feed manager. bufferSize bounds each client's
// outbound queue; a slow client drops snapshots rather than blocking
// the exchange.
func NewManager(bufferSize int) *Manager {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Manager{clients: make(map[uint64]*Client), bufferSize: bufferSize}
}

// Register adds a new client connection.
func (m *Manager) Register(conn *websocket.Conn) *Client {
	c := NewClient(conn, m.bufferSize)
	m.mu.Lock()
	m.clients[c.ID] = c
	m.mu.Unlock()
	log.Printf("feed client %d connected (%s)", c.ID, conn.RemoteAddr())
	return c
}

// Unregister removes and closes a client connection.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	delete(m.clients, c.ID)
	m.mu.Unlock()
	c.Close()
	log.Printf("feed client %d disconnected", c.ID)
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// OnBBO implements exchange.BBOListener: encodes one snapshot and fans
// it out to every client subscribed to symbol.
func (m *Manager) OnBBO(symbol string, bbo market.BBO, lastTrade int64, hasLastTrade bool) {
	snap := Snapshot{
		Symbol:       symbol,
		BidPrice:     bbo.BidPrice,
		BidQty:       bbo.BidQty,
		AskPrice:     bbo.AskPrice,
		AskQty:       bbo.AskQty,
		LastTrade:    lastTrade,
		HasLastTrade: hasLastTrade,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("feed: marshal snapshot: %v", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.IsSubscribed(symbol) {
			c.Send(data)
		}
	}
}
