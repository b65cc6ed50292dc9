// Package backtest implements the deterministic replay engine: it
// drives the same scheduler and algorithm code as live trading against
// a recorded price tape, advancing a virtual clock instead of wall
// time and matching pending orders with a configurable latency and
// slippage model.
package backtest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/clock"
	"github.com/web3guy0/polybot/internal/engine"
	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/price"
)

// Row is one tape entry: a market quote observed at a point in
// simulated time.
type Row struct {
	TimestampS int64
	Ticker     string
	YesPrice   float64
	NoPrice    float64
}

// Engine replays a tape against one or more BacktestBackends, sharing
// its virtual clock with the underlying execution engine so algorithm
// code runs unmodified.
type Engine struct {
	clk      *clock.Backtest
	core     *engine.Engine
	backends []*Backend
}

// New constructs a backtest engine starting its virtual clock at
// startNs and wiring a fresh execution engine to it.
func New(startNs int64) *Engine {
	clk := clock.NewBacktestNs(startNs)
	return &Engine{
		clk:  clk,
		core: engine.New(clk),
	}
}

// Core returns the underlying execution engine, for registering
// non-backtest-specific backends or reading final balance/positions.
func (e *Engine) Core() *engine.Engine { return e.core }

// AddBackend creates and registers a new backtest backend named name,
// returning it so the caller can dispatch orders against it.
func (e *Engine) AddBackend(name string, startingBalance price.Price, latency LatencyModel, slippage SlippageModel) *Backend {
	b := newBacktestBackend(name, startingBalance, e.clk, latency, slippage)
	b.onFill = e.core.ApplyFill
	e.core.RegisterBackend(b)
	e.backends = append(e.backends, b)
	return b
}

// RunFromCSV replays a header-then-rows CSV tape of
// (timestamp_s, ticker, yes_price, no_price).
func (e *Engine) RunFromCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backtest: open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	if _, err := r.Read(); err != nil { // header
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("backtest: read csv header: %w", err)
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("backtest: skipping malformed csv row")
			continue
		}
		row, ok := parseCSVRow(record)
		if !ok {
			continue
		}
		e.step(row)
	}
	return nil
}

func parseCSVRow(record []string) (Row, bool) {
	if len(record) < 4 {
		return Row{}, false
	}
	ts, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return Row{}, false
	}
	yes, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return Row{}, false
	}
	no, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return Row{}, false
	}
	return Row{TimestampS: ts, Ticker: record[1], YesPrice: yes, NoPrice: no}, true
}

type jsonRow struct {
	Timestamp int64   `json:"timestamp"`
	Ticker    string  `json:"ticker"`
	YesPrice  float64 `json:"yes_price"`
	NoPrice   float64 `json:"no_price"`
}

// RunFromJSON replays an array-of-objects tape in array order. As in
// RunFromCSV, each row's timestamp field sets the virtual clock, so
// pending-order visibility and algorithm timing depend on it; a tape
// without timestamps replays every row at time 0.
func (e *Engine) RunFromJSON(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("backtest: open json: %w", err)
	}
	var rows []jsonRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("backtest: parse json tape: %w", err)
	}
	for _, r := range rows {
		e.step(Row{TimestampS: r.Timestamp, Ticker: r.Ticker, YesPrice: r.YesPrice, NoPrice: r.NoPrice})
	}
	return nil
}

// step advances the virtual clock, updates every backend's price
// cache for the row's market, ticks the scheduler, then matches
// pending orders on every backtest backend.
func (e *Engine) step(row Row) {
	e.clk.SetNs(row.TimestampS * 1_000_000_000)
	m := market.New(row.Ticker)
	for _, b := range e.backends {
		b.updateQuote(m, price.FromDouble(row.YesPrice), price.FromDouble(row.NoPrice))
	}

	e.core.Scheduler().Tick(e.core)

	now := e.clk.NowNs()
	for _, b := range e.backends {
		b.matchOrders(now)
	}
}
