package feed

import "testing"

func TestClientSubscriptionBySymbol(t *testing.T) {
	c := &Client{symbols: make(map[string]bool)}
	c.Subscribe([]string{"XYZ", "ABC"})

	if !c.IsSubscribed("XYZ") {
		t.Error("expected subscribed to XYZ")
	}
	if c.IsSubscribed("DEF") {
		t.Error("expected not subscribed to DEF")
	}
}

func TestClientWildcardSubscription(t *testing.T) {
	c := &Client{symbols: make(map[string]bool)}
	c.Subscribe([]string{"*"})

	if !c.IsSubscribed("ANYTHING") {
		t.Error("expected wildcard subscription to match any symbol")
	}
}

func TestClientSendDropsWhenBufferFull(t *testing.T) {
	c := &Client{symbols: make(map[string]bool), sendCh: make(chan []byte, 1)}
	if !c.Send([]byte("a")) {
		t.Fatal("expected first send to succeed")
	}
	if c.Send([]byte("b")) {
		t.Fatal("expected second send to fail (buffer full)")
	}
	if c.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", c.Dropped)
	}
}
