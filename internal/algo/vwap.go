package algo

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

const vwapSliceInterval = 2 * time.Second

// VWAP participates as a fraction of realized market volume, slicing
// off the delta observed between ticks.
type VWAP struct {
	parent            order.Order
	participationRate float64
	totalQty          int32
	filledQty         int32
	lastVolume        float64
	primed            bool
	lastSliceNs       int64
}

// NewVWAP constructs a VWAP instance. Construction assumes order.New
// already rejected a rate outside (0,1].
func NewVWAP(o order.Order) *VWAP {
	return &VWAP{
		parent:            o,
		participationRate: o.AlgoParams.ParticipationRate,
		totalQty:          o.Quantity,
		lastVolume:        -1,
	}
}

func (v *VWAP) Tick(eng Engine) bool {
	if v.filledQty >= v.totalQty {
		return true
	}

	nowNs := eng.Clock().NowNs()
	if v.lastSliceNs != 0 && time.Duration(nowNs-v.lastSliceNs) < vwapSliceInterval {
		return false
	}
	v.lastSliceNs = nowNs

	current := eng.GetVolume(v.parent.Market).ToDouble()
	if !v.primed {
		v.lastVolume = current
		v.primed = true
		return false
	}

	delta := current - v.lastVolume
	v.lastVolume = current
	if delta <= 0 {
		return false
	}

	remaining := v.totalQty - v.filledQty
	slice := int32(delta * v.participationRate)
	if slice > remaining {
		slice = remaining
	}
	if slice <= 0 {
		return false
	}

	child, err := order.ChildFrom(v.parent, slice, v.parent.IsBuy, price.Zero, order.GTC)
	if err != nil {
		log.Error().Err(err).Msg("vwap: failed to build child order")
		return false
	}
	if _, err := eng.Dispatch(child); err != nil {
		log.Error().Err(err).Msg("vwap: dispatch failed")
		return false
	}
	v.filledQty += slice
	return false
}
