package persist

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestTradeDocumentRoundTripsThroughBSON(t *testing.T) {
	doc := TradeDocument{
		RunID: "run-1", TimestampNs: 123456, Symbol: "XYZ",
		Price: 10050, Quantity: 7, BuyAgentID: 1, SellAgentID: 2,
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out TradeDocument
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != doc {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, doc)
	}
}

func TestBBODocumentRoundTripsThroughBSON(t *testing.T) {
	doc := BBODocument{
		RunID: "run-1", TimestampNs: 500, Symbol: "XYZ",
		BidPrice: 9990, BidQty: 10, AskPrice: 10010, AskQty: 12,
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out BBODocument
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != doc {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, doc)
	}
}
