package algo

import (
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

// TrailingStop tracks a watermark off the best price seen since
// activation and fires a market order once the price reverses by
// trail_amount from that watermark.
type TrailingStop struct {
	parent      order.Order
	trailAmount int64 // price.Price.Raw
	best        int64
	activated   bool
}

func NewTrailingStop(o order.Order) *TrailingStop {
	return &TrailingStop{
		parent:      o,
		trailAmount: o.AlgoParams.TrailAmount.Raw,
	}
}

func (ts *TrailingStop) Tick(eng Engine) bool {
	cur := eng.GetPrice(ts.parent.Market, ts.parent.OutcomeYes)
	if cur.IsZero() {
		return false
	}

	if !ts.activated {
		ts.best = cur.Raw
		ts.activated = true
		return false
	}

	improved := false
	if ts.parent.IsBuy {
		improved = cur.Raw < ts.best
	} else {
		improved = cur.Raw > ts.best
	}
	if improved {
		ts.best = cur.Raw
	}

	var stop int64
	var triggered bool
	if ts.parent.IsBuy {
		stop = ts.best + ts.trailAmount
		triggered = cur.Raw >= stop
	} else {
		stop = ts.best - ts.trailAmount
		triggered = cur.Raw <= stop
	}
	if !triggered {
		return false
	}

	child, err := order.ChildFrom(ts.parent, ts.parent.Quantity, ts.parent.IsBuy, price.Zero, order.GTC)
	if err != nil {
		log.Error().Err(err).Msg("trailing_stop: failed to build child order")
		return true
	}
	if _, err := eng.Dispatch(child); err != nil {
		log.Error().Err(err).Msg("trailing_stop: dispatch failed")
	}
	return true
}
