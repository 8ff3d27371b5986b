package eventlog

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/marketsim/marketsim/internal/kernel"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent-0.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	want := []Event{
		NewEvent(0, kernel.SimTime(100), "WHEN_MKT_OPEN", nil),
		NewEvent(0, kernel.SimTime(200), "LIMIT_ORDER", map[string]any{"symbol": "XYZ", "qty": float64(10)}),
	}
	for _, e := range want {
		if err := w.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if w.Count() != 2 {
		t.Fatalf("expected count 2, got %d", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].TimestampNs != want[i].TimestampNs || got[i].Name != want[i].Name {
			t.Errorf("event %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestReaderEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF on empty log, got %v", err)
	}
}
