// Package persist provides an optional MongoDB sink for a run's summary
// document, trades, and BBO snapshots, alongside the mandatory JSONL event
// log (internal/eventlog). Grounded on the example feed simulator's
// Store/EnsureIndexes pair: connect-and-ping at construction, idempotent
// index creation, one collection per document kind.
package persist

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Store wraps the MongoDB client and database used to persist one run.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to MongoDB and returns a Store. The URI should
// include the database name (e.g. mongodb://localhost:27017/marketsim);
// if absent, "marketsim" is used.
func NewStore(ctx context.Context, uri string) (*Store, error) {
	clientOpts := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := "marketsim"
	if u, parseErr := url.Parse(uri); parseErr == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			dbName = name
		}
	}

	log.Printf("connected to MongoDB (db=%s)", dbName)
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) {
	_ = s.client.Disconnect(ctx)
}

// DB returns the underlying mongo.Database.
func (s *Store) DB() *mongo.Database {
	return s.db
}

// Migrate creates indexes for every collection this package writes to.
func (s *Store) Migrate(ctx context.Context) error {
	return EnsureIndexes(ctx, s.db)
}

// RunDocument records a scenario run's identity and configuration.
type RunDocument struct {
	RunID    string `bson:"run_id"`
	Scenario string `bson:"scenario"`
	Seed     int64  `bson:"seed"`
	Duration int64  `bson:"duration_ns"`
}

// TradeDocument records one executed trade.
type TradeDocument struct {
	RunID       string `bson:"run_id"`
	TimestampNs int64  `bson:"timestamp_ns"`
	Symbol      string `bson:"symbol"`
	Price       int64  `bson:"price_cents"`
	Quantity    int64  `bson:"quantity"`
	BuyAgentID  int    `bson:"buy_agent_id"`
	SellAgentID int    `bson:"sell_agent_id"`
}

// BBODocument records one BBO/last-trade snapshot.
type BBODocument struct {
	RunID       string `bson:"run_id"`
	TimestampNs int64  `bson:"timestamp_ns"`
	Symbol      string `bson:"symbol"`
	BidPrice    int64  `bson:"bid_price_cents"`
	BidQty      int64  `bson:"bid_qty"`
	AskPrice    int64  `bson:"ask_price_cents"`
	AskQty      int64  `bson:"ask_qty"`
}

// InsertRun persists the run's configuration document once.
func (s *Store) InsertRun(ctx context.Context, doc RunDocument) error {
	_, err := s.db.Collection("runs").InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertTrade persists one executed trade.
func (s *Store) InsertTrade(ctx context.Context, doc TradeDocument) error {
	_, err := s.db.Collection("trades").InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBBO persists one BBO snapshot.
func (s *Store) InsertBBO(ctx context.Context, doc BBODocument) error {
	_, err := s.db.Collection("bbo_snapshots").InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert bbo: %w", err)
	}
	return nil
}

// QueryTrades returns the trades persisted for a run, newest first.
func (s *Store) QueryTrades(ctx context.Context, runID string, limit int) ([]TradeDocument, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp_ns", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.db.Collection("trades").Find(ctx, bson.M{"run_id": runID}, opts)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer cursor.Close(ctx)

	trades := []TradeDocument{}
	if err := cursor.All(ctx, &trades); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	return trades, nil
}
