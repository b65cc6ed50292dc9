package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

func writeTape(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestRunFromCSVLimitBuyFillsAtNextPrice(t *testing.T) {
	tape := writeTape(t, "tape.csv", ""+
		"timestamp_s,ticker,yes_price,no_price\n"+
		"0,AAPL,0.55,0.45\n"+
		"1,AAPL,0.52,0.48\n"+
		"2,AAPL,0.48,0.52\n"+
		"3,AAPL,0.47,0.53\n")

	e := New(0)
	b1 := e.AddBackend("b1", price.FromDouble(1000), DefaultLatency, SlippageModel{})

	m := market.New("AAPL")
	o, err := order.New(order.Order{
		Market:     m,
		Quantity:   100,
		IsBuy:      true,
		OutcomeYes: true,
		Price:      price.FromDouble(0.50),
		Backend:    "b1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Core().Dispatch(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.RunFromCSV(tape); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := e.Core().GetPosition(m); got != 100 {
		t.Fatalf("position = %d, want 100", got)
	}
	wantBalance := price.FromDouble(1000).Sub(price.FromDouble(0.50).MulQty(100))
	if got := b1.GetBalance(); got.Raw != wantBalance.Raw {
		t.Fatalf("balance = %v, want %v", got, wantBalance)
	}
}

func TestRunFromJSONLimitBuyFillsAtNextPrice(t *testing.T) {
	tape := writeTape(t, "tape.json", `[
		{"timestamp":0,"ticker":"AAPL","yes_price":0.55,"no_price":0.45},
		{"timestamp":1,"ticker":"AAPL","yes_price":0.52,"no_price":0.48},
		{"timestamp":2,"ticker":"AAPL","yes_price":0.48,"no_price":0.52},
		{"timestamp":3,"ticker":"AAPL","yes_price":0.47,"no_price":0.53}
	]`)

	e := New(0)
	e.AddBackend("b1", price.FromDouble(1000), DefaultLatency, SlippageModel{})

	m := market.New("AAPL")
	o, _ := order.New(order.Order{
		Market:     m,
		Quantity:   100,
		IsBuy:      true,
		OutcomeYes: true,
		Price:      price.FromDouble(0.50),
		Backend:    "b1",
	})
	if _, err := e.Core().Dispatch(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.RunFromJSON(tape); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.Core().GetPosition(m); got != 100 {
		t.Fatalf("position = %d, want 100", got)
	}
}

func TestTWAPOverTenSecondsDeliversFullQuantity(t *testing.T) {
	rows := ""
	for i := 0; i <= 10; i++ {
		rows += itoaRow(i) + ",X,0.50,0.50\n"
	}
	tape := writeTape(t, "tape.csv", "timestamp_s,ticker,yes_price,no_price\n"+rows)

	e := New(0)
	e.AddBackend("b1", price.FromDouble(1000), DefaultLatency, SlippageModel{})

	m := market.New("X")
	o, err := order.New(order.Order{
		Market:     m,
		Quantity:   100,
		IsBuy:      true,
		OutcomeYes: true,
		Backend:    "b1",
		AlgoType:   order.AlgoTWAP,
		AlgoParams: order.AlgoParams{DurationSec: 10},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Core().Dispatch(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.RunFromCSV(tape); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var dispatched int32
	for _, r := range e.Core().Tracker().GetAll() {
		if r.Order.Market.Hash == m.Hash {
			dispatched += r.Order.Quantity
		}
	}
	if dispatched != 100 {
		t.Fatalf("cumulative dispatched qty = %d, want 100", dispatched)
	}
	if e.Core().Scheduler().ActiveCount() != 0 {
		t.Fatalf("expected the TWAP instance to have removed itself")
	}
}

func TestTrailingStopTriggersAfterReversal(t *testing.T) {
	prices := []float64{0.50, 0.48, 0.46, 0.47, 0.49}
	rows := ""
	for i, p := range prices {
		rows += itoaRow(i) + ",X," + ftoa(p) + "," + ftoa(1-p) + "\n"
	}
	tape := writeTape(t, "tape.csv", "timestamp_s,ticker,yes_price,no_price\n"+rows)

	e := New(0)
	e.AddBackend("b1", price.FromDouble(1000), DefaultLatency, SlippageModel{})

	m := market.New("X")
	o, err := order.New(order.Order{
		Market:     m,
		Quantity:   10,
		IsBuy:      true,
		OutcomeYes: true,
		Backend:    "b1",
		AlgoType:   order.AlgoTrailing,
		AlgoParams: order.AlgoParams{TrailAmount: price.FromDouble(0.02)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Core().Dispatch(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.RunFromCSV(tape); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var dispatched int32
	for _, r := range e.Core().Tracker().GetAll() {
		if r.Order.Market.Hash == m.Hash {
			dispatched += r.Order.Quantity
		}
	}
	if dispatched != 10 {
		t.Fatalf("dispatched qty = %d, want 10 (one market order on trigger)", dispatched)
	}
	if e.Core().Scheduler().ActiveCount() != 0 {
		t.Fatalf("expected the trailing stop instance to have removed itself")
	}
}

func TestArbitrageExecutesOnceAndStopsOnSecondTick(t *testing.T) {
	e := New(0)
	b1 := e.AddBackend("b1", price.FromDouble(1000), DefaultLatency, SlippageModel{})
	b2 := e.AddBackend("b2", price.FromDouble(1000), DefaultLatency, SlippageModel{})

	m := market.New("EVT")
	b1.updateQuote(m, price.FromDouble(0.40), price.FromDouble(0.60))
	b2.updateQuote(m, price.FromDouble(0.50), price.FromDouble(0.50))

	o, err := order.New(order.Order{
		Market:     m,
		Quantity:   10,
		IsBuy:      true,
		OutcomeYes: true,
		Backend:    "b1",
		AlgoType:   order.AlgoArbitrage,
		AlgoParams: order.AlgoParams{
			ArbMarket2:   m,
			ArbBackend2:  "b2",
			ArbMinProfit: price.FromDouble(0.05),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Core().Dispatch(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.Core().Scheduler().Tick(e.Core())

	records := e.Core().Tracker().GetAll()
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2 (one leg per backend)", len(records))
	}
	if e.Core().Scheduler().ActiveCount() != 0 {
		t.Fatalf("expected arbitrage to have removed itself after firing")
	}

	e.Core().Scheduler().Tick(e.Core())
	if got := len(e.Core().Tracker().GetAll()); got != 2 {
		t.Fatalf("second tick with the same prices should dispatch nothing new, got %d records", got)
	}
}

func itoaRow(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func ftoa(f float64) string {
	cents := int(f*100 + 0.5)
	return itoaRow(cents/100) + "." + pad2(cents%100)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + itoaRow(n)
	}
	return itoaRow(n)
}
