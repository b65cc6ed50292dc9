package algo

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

const pegThrottle = 500 * time.Millisecond

// Peg maintains a resting quote at a fixed offset from a reference
// price, cancelling and replacing as the reference moves. It never
// completes on its own: Tick always returns false, and the scheduler
// has no call that removes a running instance.
type Peg struct {
	parent     order.Order
	ref        order.PriceRef
	offset     int64 // price.Price.Raw
	lastQuoted int64
	lastUpdate int64
	activeID   string
}

func NewPeg(o order.Order) *Peg {
	return &Peg{
		parent: o,
		ref:    o.AlgoParams.PegRef,
		offset: o.AlgoParams.PegOffset.Raw,
	}
}

func (p *Peg) Tick(eng Engine) bool {
	reference := refPrice(eng, p.parent.Market, p.ref)
	if reference.IsZero() {
		return false
	}

	target := reference.Raw + p.offset
	if target == p.lastQuoted {
		return false
	}

	nowNs := eng.Clock().NowNs()
	if p.lastUpdate != 0 && time.Duration(nowNs-p.lastUpdate) < pegThrottle {
		return false
	}

	p.cancelActive(eng)

	child, err := order.ChildFrom(p.parent, p.parent.Quantity, p.parent.IsBuy, price.FromRaw(target), order.GTC)
	if err != nil {
		log.Error().Err(err).Msg("peg: failed to build child order")
		return false
	}
	id, err := eng.Dispatch(child)
	if err != nil {
		log.Error().Err(err).Msg("peg: dispatch failed")
		return false
	}
	p.activeID = id
	p.lastQuoted = target
	p.lastUpdate = nowNs
	return false
}

func (p *Peg) cancelActive(eng Engine) {
	if p.activeID == "" {
		return
	}
	if _, err := eng.CancelOrder(p.parent.Backend, p.activeID); err != nil {
		log.Debug().Err(err).Str("id", p.activeID).Msg("peg: cancel failed")
	}
	p.activeID = ""
}
