package algo

import (
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/tracker"
)

// MarketMaker quotes both sides around a reference price, cancelling
// the opposite quote and finishing the moment either side fills.
type MarketMaker struct {
	parent       order.Order
	ref          order.PriceRef
	spread       int64 // price.Price.Raw
	bidID        string
	askID        string
	lastRefPrice int64
	primed       bool
}

func NewMarketMaker(o order.Order) *MarketMaker {
	return &MarketMaker{
		parent: o,
		ref:    o.AlgoParams.MMRef,
		spread: o.AlgoParams.MMSpread.Raw,
	}
}

func (mm *MarketMaker) Tick(eng Engine) bool {
	reference := refPrice(eng, mm.parent.Market, mm.ref)
	if reference.IsZero() {
		return false
	}

	if mm.bidID != "" {
		if r, ok := eng.Tracker().Get(mm.bidID); ok && r.Status == tracker.Filled {
			mm.cancel(eng, mm.askID)
			return true
		}
	}
	if mm.askID != "" {
		if r, ok := eng.Tracker().Get(mm.askID); ok && r.Status == tracker.Filled {
			mm.cancel(eng, mm.bidID)
			return true
		}
	}

	if mm.primed && reference.Raw == mm.lastRefPrice {
		return false
	}

	mm.cancel(eng, mm.bidID)
	mm.cancel(eng, mm.askID)
	mm.bidID = ""
	mm.askID = ""

	half := mm.spread / 2
	bidPrice := price.FromRaw(reference.Raw - half)
	askPrice := price.FromRaw(reference.Raw + half)

	bidOrder, err := order.ChildFrom(mm.parent, mm.parent.Quantity, true, bidPrice, order.GTC)
	if err == nil {
		if id, err := eng.Dispatch(bidOrder); err == nil {
			mm.bidID = id
		} else {
			log.Error().Err(err).Msg("market_maker: bid dispatch failed")
		}
	}

	askOrder, err := order.ChildFrom(mm.parent, mm.parent.Quantity, false, askPrice, order.GTC)
	if err == nil {
		if id, err := eng.Dispatch(askOrder); err == nil {
			mm.askID = id
		} else {
			log.Error().Err(err).Msg("market_maker: ask dispatch failed")
		}
	}

	mm.lastRefPrice = reference.Raw
	mm.primed = true
	return false
}

func (mm *MarketMaker) cancel(eng Engine, id string) {
	if id == "" {
		return
	}
	if _, err := eng.CancelOrder(mm.parent.Backend, id); err != nil {
		log.Debug().Err(err).Str("id", id).Msg("market_maker: cancel failed")
	}
}
