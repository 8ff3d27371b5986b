// Package feed broadcasts BBO/last-trade snapshots to subscribed
// websocket clients. Adapted from the example feed simulator's
// session.Client/Manager: a per-client buffered send channel with
// drop-on-full semantics, subscription by symbol (or "*" for all),
// JSON-only encoding (the simulator has no binary wire format to mirror).
package feed

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Client represents one connected WebSocket subscriber.
type Client struct {
	ID   uint64
	Conn *websocket.Conn

	mu         sync.RWMutex
	symbols    map[string]bool
	allSymbols bool

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	Dropped uint64
}

var clientIDCounter uint64

// NewClient wraps a WebSocket connection as a feed subscriber.
func NewClient(conn *websocket.Conn, bufferSize int) *Client {
	return &Client{
		ID:      atomic.AddUint64(&clientIDCounter, 1),
		Conn:    conn,
		symbols: make(map[string]bool),
		sendCh:  make(chan []byte, bufferSize),
		done:    make(chan struct{}),
	}
}

// Subscribe adds symbols to this client's subscription set.
func (c *Client) Subscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		if s == "*" {
			c.allSymbols = true
			continue
		}
		c.symbols[s] = true
	}
}

// IsSubscribed reports whether this client wants updates for symbol.
func (c *Client) IsSubscribed(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allSymbols || c.symbols[symbol]
}

// Send enqueues data for the client's write pump. Returns false, and
// counts a drop, if the client's buffer is full.
func (c *Client) Send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		atomic.AddUint64(&c.Dropped, 1)
		return false
	}
}

// SendCh exposes the outbound queue for the write pump.
func (c *Client) SendCh() <-chan []byte {
	return c.sendCh
}

// Done is closed when the client disconnects.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close terminates the client connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}
