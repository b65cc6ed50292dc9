package backtest

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/backend"
	"github.com/web3guy0/polybot/internal/clock"
	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

// LatencyModel delays a created order's visibility to matching.
type LatencyModel struct {
	MeanLatencyNs int64
}

// DefaultLatency is the spec-documented default: 5 ms.
var DefaultLatency = LatencyModel{MeanLatencyNs: 5_000_000}

// SlippageModel adjusts fill price adverse to the trader. VolMultiplier
// is accepted for configuration symmetry with config.SlippageConfig but
// is never applied to a fill, matching the source's own unused field.
type SlippageModel struct {
	FixedBps      float64
	VolMultiplier float64
}

type quote struct {
	yes price.Price
	no  price.Price
}

type pendingOrder struct {
	id          string
	order       order.Order
	visibleAtNs int64
}

// Backend is the venue-agnostic simulated backend the backtest engine
// drives: orders become visible to matching only after the latency
// window elapses, then fill against the current tape price.
type Backend struct {
	mu sync.Mutex

	name     string
	clk      clock.Clock
	latency  LatencyModel
	slippage SlippageModel

	nextID    int64
	quotes    map[uint32]quote
	tickers   map[uint32]string
	pending   []pendingOrder
	balance   price.Price
	positions map[uint32]int64
	volume    map[uint32]price.Price

	onFill func(id string, m market.ID, isBuy bool, qty int32, p price.Price, timestampNs int64)
}

func newBacktestBackend(name string, startingBalance price.Price, clk clock.Clock, latency LatencyModel, slippage SlippageModel) *Backend {
	return &Backend{
		name:      name,
		clk:       clk,
		latency:   latency,
		slippage:  slippage,
		quotes:    make(map[uint32]quote),
		tickers:   make(map[uint32]string),
		balance:   startingBalance,
		positions: make(map[uint32]int64),
		volume:    make(map[uint32]price.Price),
	}
}

func (b *Backend) updateQuote(m market.ID, yes, no price.Price) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[m.Hash] = quote{yes: yes, no: no}
	b.tickers[m.Hash] = m.Ticker
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) GetPrice(m market.ID, outcomeYes bool) price.Price {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quotes[m.Hash]
	if !ok {
		return price.Zero
	}
	if outcomeYes {
		return q.yes
	}
	return q.no
}

func (b *Backend) GetDepth(m market.ID, isBid bool) price.Price {
	return price.Zero
}

func (b *Backend) GetVolume(m market.ID) price.Price {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume[m.Hash]
}

func (b *Backend) GetBalance() price.Price {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance
}

func (b *Backend) GetPositions() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := make([]map[string]interface{}, 0, len(b.positions))
	for hash, size := range b.positions {
		ticker := b.tickers[hash]
		if ticker == "" {
			ticker = fmt.Sprintf("%d", hash)
		}
		rows = append(rows, map[string]interface{}{
			"ticker":   ticker,
			"quantity": size,
		})
	}
	out, err := json.Marshal(map[string]interface{}{"positions": rows})
	if err != nil {
		return "", fmt.Errorf("backtest: marshal positions: %w", err)
	}
	return string(out), nil
}

// CreateOrder queues o as a pending order, invisible to matching until
// the latency window elapses. It always succeeds at this stage;
// rejection (if any) happens at match time only through non-fill.
func (b *Backend) CreateOrder(o order.Order) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("bt-%s-%d", b.name, atomic.AddInt64(&b.nextID, 1))
	if _, known := b.tickers[o.Market.Hash]; !known {
		b.tickers[o.Market.Hash] = o.Market.Ticker
	}
	b.pending = append(b.pending, pendingOrder{
		id:          id,
		order:       o,
		visibleAtNs: b.clk.NowNs() + b.latency.MeanLatencyNs,
	})
	return id, nil
}

func (b *Backend) CancelOrder(id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.pending {
		if p.id == id {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) CreateBatch(orders []order.Order) ([]string, error) {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		id, err := b.CreateOrder(o)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// matchOrders scans pending orders whose visibility window has
// elapsed and fills those that cross the current market price. Fills
// are one-shot for the full order quantity.
func (b *Backend) matchOrders(nowNs int64) {
	b.mu.Lock()
	var remaining []pendingOrder
	var filled []pendingOrder
	for _, p := range b.pending {
		if p.visibleAtNs > nowNs {
			remaining = append(remaining, p)
			continue
		}
		marketPrice := b.priceForLocked(p.order.Market, p.order.OutcomeYes)
		if marketPrice.IsZero() {
			remaining = append(remaining, p)
			continue
		}
		if !crosses(p.order, marketPrice) {
			remaining = append(remaining, p)
			continue
		}
		filled = append(filled, p)
	}
	b.pending = remaining

	for _, p := range filled {
		fillPrice := p.order.Price
		if fillPrice.IsZero() {
			fillPrice = b.priceForLocked(p.order.Market, p.order.OutcomeYes)
		}
		fillPrice = fillPrice.WithSlippage(b.slippage.FixedBps, p.order.IsBuy)

		qty := int64(p.order.Quantity)
		if p.order.IsBuy {
			b.positions[p.order.Market.Hash] += qty
			b.balance = b.balance.Sub(fillPrice.MulQty(qty))
		} else {
			b.positions[p.order.Market.Hash] -= qty
			b.balance = b.balance.Add(fillPrice.MulQty(qty))
		}
		b.volume[p.order.Market.Hash] = b.volume[p.order.Market.Hash].Add(price.FromRaw(qty * price.Scale))

		log.Info().
			Str("backend", b.name).
			Str("id", p.id).
			Str("market", p.order.Market.Ticker).
			Bool("is_buy", p.order.IsBuy).
			Int32("qty", p.order.Quantity).
			Str("fill_price", fillPrice.String()).
			Msg("backtest: order filled")

		if b.onFill != nil {
			b.onFill(p.id, p.order.Market, p.order.IsBuy, p.order.Quantity, fillPrice, nowNs)
		}
	}
	b.mu.Unlock()
}

// priceForLocked must be called with b.mu held.
func (b *Backend) priceForLocked(m market.ID, outcomeYes bool) price.Price {
	q, ok := b.quotes[m.Hash]
	if !ok {
		return price.Zero
	}
	if outcomeYes {
		return q.yes
	}
	return q.no
}

// crosses reports whether the current market price satisfies o: a
// market order (price.raw == 0) always crosses; a buy limit crosses
// when the market has fallen to or below the limit; a sell limit
// crosses when the market has risen to or above the limit.
func crosses(o order.Order, marketPrice price.Price) bool {
	if o.Price.IsZero() {
		return true
	}
	if o.IsBuy {
		return marketPrice.LessThanOrEqual(o.Price)
	}
	return marketPrice.GreaterThanOrEqual(o.Price)
}

var _ backend.Backend = (*Backend)(nil)
