// Package storage implements the two cooperating persistence pieces
// the engine can optionally attach: a raw-SQL interop sidecar with
// the exact schema external tooling expects, and a gorm-backed
// operational state store used purely for restart recovery.
package storage

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/tracker"
)

// Sidecar persists orders, fills, status updates and pnl snapshots to
// SQLite in the schema documented for external interop. A nil
// *Sidecar makes every hook a no-op.
type Sidecar struct {
	db *sql.DB
}

// OpenSidecar opens (creating if needed) a SQLite database at path and
// migrates the interop schema.
func OpenSidecar(path string) (*Sidecar, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sidecar: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("storage: ping sidecar: %w", err)
	}
	s := &Sidecar{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("storage: sidecar connected")
	return s, nil
}

func (s *Sidecar) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		ticker TEXT,
		is_buy INT,
		quantity INT,
		price INT,
		outcome_yes INT,
		timestamp_ns INT
	);

	CREATE TABLE IF NOT EXISTS fills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT,
		qty INT,
		price INT,
		timestamp_ms INT
	);

	CREATE TABLE IF NOT EXISTS status_updates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT,
		status INT,
		timestamp_ms INT
	);

	CREATE TABLE IF NOT EXISTS pnl_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		balance INT,
		pnl INT,
		daily_pnl_raw INT,
		timestamp_ms INT
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("storage: migrate sidecar: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Sidecar) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// OnOrderTracked records a newly tracked order. Errors are logged,
// never propagated, matching the engine's "persistence is a sidecar"
// stance.
func (s *Sidecar) OnOrderTracked(id string, o order.Order) {
	if s == nil {
		return
	}
	isBuy := 0
	if o.IsBuy {
		isBuy = 1
	}
	outcomeYes := 0
	if o.OutcomeYes {
		outcomeYes = 1
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO orders (id, ticker, is_buy, quantity, price, outcome_yes, timestamp_ns) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, o.Market.Ticker, isBuy, o.Quantity, o.Price.Raw, outcomeYes, o.CreationTimestampNs,
	)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("storage: insert order failed")
	}
}

// OnFill records one fill against an order.
func (s *Sidecar) OnFill(orderID string, qty int32, p price.Price, timestampNs int64) {
	if s == nil {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO fills (order_id, qty, price, timestamp_ms) VALUES (?, ?, ?, ?)`,
		orderID, qty, p.Raw, timestampNs/1e6,
	)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("storage: insert fill failed")
	}
}

// OnStatusChange records a status transition.
func (s *Sidecar) OnStatusChange(orderID string, status tracker.Status) {
	if s == nil {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO status_updates (order_id, status, timestamp_ms) VALUES (?, ?, strftime('%s','now')*1000)`,
		orderID, int(status),
	)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("storage: insert status update failed")
	}
}

// OnPnLSnapshot records a periodic balance/pnl snapshot.
func (s *Sidecar) OnPnLSnapshot(balance, pnl, dailyPnlRaw price.Price, timestampMs int64) {
	if s == nil {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO pnl_history (balance, pnl, daily_pnl_raw, timestamp_ms) VALUES (?, ?, ?, ?)`,
		balance.Raw, pnl.Raw, dailyPnlRaw.Raw, timestampMs,
	)
	if err != nil {
		log.Error().Err(err).Msg("storage: insert pnl snapshot failed")
	}
}
