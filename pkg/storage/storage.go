// Package storage journals executed trades and rejections in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/enorith/hookbot/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	pair TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	size REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	position_size REAL NOT NULL,
	strategy TEXT NOT NULL,
	ts INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rejections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pair TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	size REAL NOT NULL,
	hook TEXT NOT NULL,
	reason TEXT NOT NULL,
	ts INTEGER NOT NULL
);`

type Storage struct {
	db *sql.DB
}

// FromMemory opens a private in-memory database.
func FromMemory() (*Storage, error) {
	return open(":memory:")
}

func FromFile(path string) (*Storage, error) {
	return open(path)
}

func open(dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// an in-memory database lives and dies with its connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Storage{db: db}, nil
}

func (*Storage) Name() string { return "storage" }

// PostTrade records the outcome; it lets the storage be registered as an observer.
func (s *Storage) PostTrade(outcome model.Outcome) error {
	switch {
	case outcome.Trade != nil:
		return s.SaveTrade(*outcome.Trade, strategyName(outcome.Context))
	case outcome.Rejection != nil:
		return s.SaveRejection(outcome.Proposal, *outcome.Rejection)
	}
	return nil
}

func (s *Storage) SaveTrade(trade model.ExecutedTrade, strategy string) error {
	_, err := s.db.Exec(
		`INSERT INTO trades (id, pair, side, price, size, realized_pnl, position_size, strategy, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Pair, string(trade.Side), trade.Price, trade.Size,
		trade.RealizedPnL, trade.Position.Size, strategy, trade.Time.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", trade.ID, err)
	}
	return nil
}

func (s *Storage) SaveRejection(proposal model.Proposal, rejection model.Rejection) error {
	_, err := s.db.Exec(
		`INSERT INTO rejections (pair, side, price, size, hook, reason, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		proposal.Pair, string(proposal.Side), proposal.Price, proposal.Size,
		rejection.Hook, rejection.Reason, proposal.Time.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert rejection: %w", err)
	}
	return nil
}

// Trades returns the journaled trades in execution time order. Position holds only Size.
func (s *Storage) Trades() ([]model.ExecutedTrade, error) {
	rows, err := s.db.Query(
		`SELECT id, pair, side, price, size, realized_pnl, position_size, ts FROM trades ORDER BY ts, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.ExecutedTrade
	for rows.Next() {
		var (
			trade model.ExecutedTrade
			side  string
			ts    int64
		)
		if err := rows.Scan(&trade.ID, &trade.Pair, &side, &trade.Price, &trade.Size,
			&trade.RealizedPnL, &trade.Position.Size, &ts); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trade.Side = model.Side(side)
		trade.Time = time.Unix(0, ts).UTC()
		trade.Position.Pair = trade.Pair
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// StoredRejection is a journaled rejected proposal.
type StoredRejection struct {
	Proposal  model.Proposal
	Rejection model.Rejection
}

func (s *Storage) Rejections() ([]StoredRejection, error) {
	rows, err := s.db.Query(`SELECT pair, side, price, size, hook, reason, ts FROM rejections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rejections: %w", err)
	}
	defer rows.Close()

	var result []StoredRejection
	for rows.Next() {
		var (
			item StoredRejection
			side string
			ts   int64
		)
		if err := rows.Scan(&item.Proposal.Pair, &side, &item.Proposal.Price, &item.Proposal.Size,
			&item.Rejection.Hook, &item.Rejection.Reason, &ts); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		item.Proposal.Side = model.Side(side)
		item.Proposal.Time = time.Unix(0, ts).UTC()
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func strategyName(ctx model.StrategyContext) string {
	if ctx == nil {
		return ""
	}
	return ctx.Strategy()
}
