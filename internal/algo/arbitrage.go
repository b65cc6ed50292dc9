package algo

import (
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

// Arbitrage watches YES prices for the same event on two backends and
// captures a one-shot cross when the spread clears min_profit.
type Arbitrage struct {
	parent    order.Order
	market2   market.ID
	backend2  string
	minProfit int64 // price.Price.Raw
	quantity  int32
	done      bool
}

func NewArbitrage(o order.Order) *Arbitrage {
	return &Arbitrage{
		parent:    o,
		market2:   o.AlgoParams.ArbMarket2,
		backend2:  o.AlgoParams.ArbBackend2,
		minProfit: o.AlgoParams.ArbMinProfit.Raw,
		quantity:  o.Quantity,
	}
}

func (a *Arbitrage) Tick(eng Engine) bool {
	if a.done {
		return true
	}

	p1 := eng.GetPriceFromBackend(a.parent.Backend, a.parent.Market, true)
	p2 := eng.GetPriceFromBackend(a.backend2, a.market2, true)
	if p1.IsZero() || p2.IsZero() {
		return false
	}

	switch {
	case p2.Raw > p1.Raw+a.minProfit:
		// buy cheap on b1, sell rich on b2
		a.dispatchLeg(eng, a.parent.Backend, a.parent.Market, true, p1.Raw)
		a.dispatchLeg(eng, a.backend2, a.market2, false, p2.Raw)
		a.done = true
		return true
	case p1.Raw > p2.Raw+a.minProfit:
		a.dispatchLeg(eng, a.backend2, a.market2, true, p2.Raw)
		a.dispatchLeg(eng, a.parent.Backend, a.parent.Market, false, p1.Raw)
		a.done = true
		return true
	default:
		return false
	}
}

func (a *Arbitrage) dispatchLeg(eng Engine, backendName string, m market.ID, isBuy bool, rawPrice int64) {
	leg, err := order.New(order.Order{
		Market:              m,
		Quantity:            a.quantity,
		IsBuy:               isBuy,
		OutcomeYes:          true,
		Price:               price.FromRaw(rawPrice),
		TIF:                 order.GTC,
		AccountHash:         a.parent.AccountHash,
		CreationTimestampNs: a.parent.CreationTimestampNs,
		AlgoType:            order.AlgoNone,
		Backend:             backendName,
	})
	if err != nil {
		log.Error().Err(err).Msg("arbitrage: failed to build leg order")
		return
	}
	if _, err := eng.Dispatch(leg); err != nil {
		log.Error().Err(err).Str("backend", backendName).Msg("arbitrage: leg dispatch failed")
	}
}
