package storage

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/tracker"
)

func TestNilSidecarHooksAreNoops(t *testing.T) {
	var s *Sidecar
	m := market.New("AAPL")
	o, _ := order.New(order.Order{Market: m, Quantity: 10, IsBuy: true, Price: price.FromCents(50), Backend: "paper"})

	s.OnOrderTracked("id-1", o)
	s.OnFill("id-1", 10, price.FromCents(50), 1)
	s.OnStatusChange("id-1", tracker.Filled)
	s.OnPnLSnapshot(price.FromDouble(100), price.Zero, price.Zero, 1)
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error closing nil sidecar: %v", err)
	}
}

func TestSidecarMigratesAndRecordsOrder(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSidecar(filepath.Join(dir, "sidecar.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	m := market.New("AAPL")
	o, _ := order.New(order.Order{Market: m, Quantity: 10, IsBuy: true, Price: price.FromCents(50), Backend: "paper"})
	o.CreationTimestampNs = 123

	s.OnOrderTracked("id-1", o)

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM orders WHERE id = ?`, "id-1").Scan(&count); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("orders count = %d, want 1", count)
	}
}

func TestSidecarRecordsFillsStatusAndPnl(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSidecar(filepath.Join(dir, "sidecar.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	s.OnFill("id-1", 5, price.FromCents(50), 2000)
	s.OnStatusChange("id-1", tracker.PartiallyFilled)
	s.OnPnLSnapshot(price.FromDouble(100), price.FromDouble(1), price.Zero, 3000)

	assertOne(t, s.db, `SELECT COUNT(*) FROM fills WHERE order_id = ?`, "id-1")
	assertOne(t, s.db, `SELECT COUNT(*) FROM status_updates WHERE order_id = ?`, "id-1")
	assertOne(t, s.db, `SELECT COUNT(*) FROM pnl_history WHERE timestamp_ms = ?`, 3000)
}

func assertOne(t *testing.T, db *sql.DB, query string, arg interface{}) {
	t.Helper()
	var count int
	if err := db.QueryRow(query, arg).Scan(&count); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("query %q with arg %v returned count %d, want 1", query, arg, count)
	}
}
