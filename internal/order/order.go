// Package order defines the immutable Order record that flows from
// strategy/algorithm code into the execution engine, and the small
// enums that classify it.
package order

import (
	"fmt"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/price"
)

// TimeInForce selects resting vs. immediate-or-cancel semantics.
type TimeInForce int

const (
	GTC TimeInForce = iota // resting until filled or cancelled
	IOC                    // fill now, cancel remainder
	FOK                    // fill fully or cancel entirely
)

// SelfTradePrevention picks which side yields when an account's own
// orders would cross.
type SelfTradePrevention int

const (
	STPNone SelfTradePrevention = iota
	STPCancelNew
	STPCancelOld
	STPCancelBoth
)

// AlgoType tags which execution algorithm, if any, owns this order.
type AlgoType int

const (
	AlgoNone AlgoType = iota
	AlgoPeg
	AlgoTWAP
	AlgoVWAP
	AlgoTrailing
	AlgoArbitrage
	AlgoMarketMaker
)

func (t AlgoType) String() string {
	switch t {
	case AlgoNone:
		return "none"
	case AlgoPeg:
		return "peg"
	case AlgoTWAP:
		return "twap"
	case AlgoVWAP:
		return "vwap"
	case AlgoTrailing:
		return "trailing_stop"
	case AlgoArbitrage:
		return "arbitrage"
	case AlgoMarketMaker:
		return "market_maker"
	default:
		return "unknown"
	}
}

// PriceRef names which side of the book an algorithm pegs to.
type PriceRef int

const (
	RefBid PriceRef = iota
	RefAsk
	RefMid
)

// AlgoParams is a tagged union of the per-algorithm configuration
// blocks from spec. Only the fields relevant to Order.AlgoType are
// read; the rest are zero.
type AlgoParams struct {
	// TWAP
	DurationSec int64

	// VWAP
	ParticipationRate float64

	// Trailing stop
	TrailAmount price.Price

	// Peg
	PegRef    PriceRef
	PegOffset price.Price

	// Market maker
	MMRef    PriceRef
	MMSpread price.Price

	// Arbitrage
	ArbMarket2  market.ID
	ArbBackend2 string
	ArbMinProfit price.Price
}

// Order is a fully-specified, immutable instruction. Construct with
// New, which validates the fields the source would otherwise accept
// and fail on only once dispatched.
type Order struct {
	Market              market.ID
	Market2             market.ID // set only when IsSpread
	IsSpread            bool
	Quantity            int32
	IsBuy               bool
	OutcomeYes          bool
	Price               price.Price // zero means market order
	TIF                 TimeInForce
	PostOnly            bool
	DisplayQty          int32 // iceberg; 0 means not an iceberg
	TPPrice             price.Price
	SLPrice             price.Price
	AccountHash         uint32
	STP                 SelfTradePrevention
	CreationTimestampNs int64
	AlgoType            AlgoType
	AlgoParams          AlgoParams
	Backend             string // resolved to a registered backend by the engine
}

// New validates and constructs an Order. It rejects the known
// construction-time failure modes so they never reach the engine:
// non-positive quantity, a negative iceberg display quantity, a VWAP
// participation rate outside (0, 1], and a non-positive TWAP
// duration_sec.
func New(o Order) (Order, error) {
	if o.Quantity <= 0 {
		return Order{}, fmt.Errorf("order: quantity must be > 0, got %d", o.Quantity)
	}
	if o.DisplayQty < 0 {
		return Order{}, fmt.Errorf("order: display_qty must be >= 0, got %d", o.DisplayQty)
	}
	if o.AlgoType == AlgoVWAP {
		r := o.AlgoParams.ParticipationRate
		if r <= 0 || r > 1 {
			return Order{}, fmt.Errorf("order: vwap participation_rate must be in (0,1], got %v", r)
		}
	}
	if o.AlgoType == AlgoTWAP && o.AlgoParams.DurationSec <= 0 {
		return Order{}, fmt.Errorf("order: twap duration_sec must be > 0, got %d", o.AlgoParams.DurationSec)
	}
	return o, nil
}

// ChildFrom derives a plain (non-algo) order for dispatch by an
// algorithm instance: same market, outcome and backend as the parent,
// algo_type reset to None.
func ChildFrom(parent Order, quantity int32, isBuy bool, p price.Price, tif TimeInForce) (Order, error) {
	return New(Order{
		Market:              parent.Market,
		Quantity:            quantity,
		IsBuy:                isBuy,
		OutcomeYes:          parent.OutcomeYes,
		Price:               p,
		TIF:                 tif,
		AccountHash:         parent.AccountHash,
		CreationTimestampNs: parent.CreationTimestampNs,
		AlgoType:            AlgoNone,
		Backend:             parent.Backend,
	})
}
