// Package algo implements the execution algorithms (TWAP, VWAP, Peg,
// Trailing Stop, Market Maker, Arbitrage), the Strategy hook interface,
// and the double-buffered scheduler that drives them.
package algo

import (
	"github.com/web3guy0/polybot/internal/clock"
	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/tracker"
)

// Engine is the capability surface an algorithm or strategy sees on
// every tick. The concrete execution engine implements this; algo
// never imports the engine package, avoiding a cycle.
type Engine interface {
	Clock() clock.Clock
	GetPrice(m market.ID, outcomeYes bool) price.Price
	GetDepth(m market.ID, isBid bool) price.Price
	GetVolume(m market.ID) price.Price
	GetPriceFromBackend(backendName string, m market.ID, outcomeYes bool) price.Price
	Dispatch(o order.Order) (string, error)
	CancelOrder(backendName, id string) (bool, error)
	Tracker() *tracker.Tracker
}

// Algo is one running execution algorithm instance. Tick returns true
// once the algorithm has completed and should be removed.
type Algo interface {
	Tick(eng Engine) bool
}

// Strategy shares the algorithm tick contract plus two event hooks.
// A strategy that never terminates returns false from every OnTick.
type Strategy interface {
	Name() string
	OnTick(eng Engine) bool
	OnMarketEvent(eng Engine, m market.ID, p price.Price, qty int64)
	OnExecutionEvent(eng Engine, id string, status tracker.Status)
}

// New constructs the algorithm instance dictated by o.AlgoType. It
// returns nil for AlgoNone (no factory entry) or an unknown type.
func New(o order.Order, now clock.Clock) Algo {
	switch o.AlgoType {
	case order.AlgoTWAP:
		return NewTWAP(o, now)
	case order.AlgoVWAP:
		return NewVWAP(o)
	case order.AlgoPeg:
		return NewPeg(o)
	case order.AlgoTrailing:
		return NewTrailingStop(o)
	case order.AlgoMarketMaker:
		return NewMarketMaker(o)
	case order.AlgoArbitrage:
		return NewArbitrage(o)
	default:
		return nil
	}
}
