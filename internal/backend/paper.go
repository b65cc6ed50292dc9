package backend

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

// Paper is an in-memory simulated backend: orders fill immediately at
// their limit (or the last quoted price for market orders), with
// optional fixed-bps slippage adverse to the trader.
type Paper struct {
	mu sync.Mutex

	name        string
	slippageBps float64

	nextID    int64
	quotes    map[uint32]quote // market hash -> last quoted yes/no price
	tickers   map[uint32]string
	books     map[uint32]*market.OrderBook
	volume    map[uint32]price.Price
	balance   price.Price
	positions map[uint32]int64 // market hash -> signed size
}

type quote struct {
	yes price.Price
	no  price.Price
}

// NewPaper creates a paper backend named name, starting with the
// given cash balance.
func NewPaper(name string, startingBalance price.Price) *Paper {
	return &Paper{
		name:      name,
		quotes:    make(map[uint32]quote),
		tickers:   make(map[uint32]string),
		books:     make(map[uint32]*market.OrderBook),
		volume:    make(map[uint32]price.Price),
		balance:   startingBalance,
		positions: make(map[uint32]int64),
	}
}

// SetSlippageBps configures fixed adverse slippage applied to every
// simulated fill.
func (p *Paper) SetSlippageBps(bps float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slippageBps = bps
}

// UpdateQuote sets the last-known yes/no price for a market, used as
// the market-order fill price and as get_price's answer.
func (p *Paper) UpdateQuote(m market.ID, yes, no price.Price) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[m.Hash] = quote{yes: yes, no: no}
	p.tickers[m.Hash] = m.Ticker
}

// Book returns (creating if needed) the local order book mirror for
// m, so callers can seed depth for get_depth.
func (p *Paper) Book(m market.ID) *market.OrderBook {
	p.mu.Lock()
	defer p.mu.Unlock()
	ob, ok := p.books[m.Hash]
	if !ok {
		ob = market.NewOrderBook()
		p.books[m.Hash] = ob
	}
	return ob
}

func (p *Paper) Name() string { return p.name }

func (p *Paper) GetPrice(m market.ID, outcomeYes bool) price.Price {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.quotes[m.Hash]
	if !ok {
		return price.Zero
	}
	if outcomeYes {
		return q.yes
	}
	return q.no
}

func (p *Paper) GetDepth(m market.ID, isBid bool) price.Price {
	p.mu.Lock()
	ob, ok := p.books[m.Hash]
	p.mu.Unlock()
	if !ok {
		return price.Zero
	}
	return ob.BestDepth(isBid)
}

func (p *Paper) GetVolume(m market.ID) price.Price {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume[m.Hash]
}

func (p *Paper) GetBalance() price.Price {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

func (p *Paper) GetPositions() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := make([]positionsWrapperRow, 0, len(p.positions))
	for hash, size := range p.positions {
		ticker := p.tickers[hash]
		if ticker == "" {
			ticker = fmt.Sprintf("%d", hash)
		}
		rows = append(rows, positionsWrapperRow{
			Ticker:   ticker,
			Quantity: size,
		})
	}
	b, err := json.Marshal(positionsWrapperShape{Positions: rows})
	if err != nil {
		return "", fmt.Errorf("paper: marshal positions: %w", err)
	}
	return string(b), nil
}

func (p *Paper) CreateOrder(o order.Order) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.quotes[o.Market.Hash]
	if !ok {
		log.Debug().Str("backend", p.name).Str("market", o.Market.Ticker).Msg("paper: no quote, rejecting order")
		return ErrorID, nil
	}

	fillPrice := o.Price
	if fillPrice.IsZero() {
		if o.OutcomeYes {
			fillPrice = q.yes
		} else {
			fillPrice = q.no
		}
	}
	fillPrice = fillPrice.WithSlippage(p.slippageBps, o.IsBuy)

	id := fmt.Sprintf("paper-%d", atomic.AddInt64(&p.nextID, 1))

	if _, known := p.tickers[o.Market.Hash]; !known {
		p.tickers[o.Market.Hash] = o.Market.Ticker
	}

	qty := int64(o.Quantity)
	if o.IsBuy {
		p.positions[o.Market.Hash] += qty
		p.balance = p.balance.Sub(fillPrice.MulQty(qty))
	} else {
		p.positions[o.Market.Hash] -= qty
		p.balance = p.balance.Add(fillPrice.MulQty(qty))
	}
	p.volume[o.Market.Hash] = p.volume[o.Market.Hash].Add(price.FromRaw(qty * price.Scale))

	log.Info().
		Str("backend", p.name).
		Str("id", id).
		Str("market", o.Market.Ticker).
		Bool("is_buy", o.IsBuy).
		Int32("qty", o.Quantity).
		Str("fill_price", fillPrice.String()).
		Msg("paper: order filled")

	return id, nil
}

func (p *Paper) CancelOrder(id string) (bool, error) {
	// Paper orders fill synchronously in CreateOrder; nothing rests.
	return false, nil
}

func (p *Paper) CreateBatch(orders []order.Order) ([]string, error) {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		id, err := p.CreateOrder(o)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
