package algo

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/clock"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

const twapSliceInterval = 5 * time.Second

// TWAP slices a parent quantity evenly over duration_sec, dispatching
// the remainder immediately once the window elapses.
type TWAP struct {
	parent      order.Order
	durationSec int64
	totalQty    int32
	filledQty   int32
	startNs     int64
	lastSliceNs int64
}

// NewTWAP constructs a TWAP instance. now supplies start_ns at
// submission time; construction assumes order.New already rejected
// duration_sec <= 0.
func NewTWAP(o order.Order, now clock.Clock) *TWAP {
	return &TWAP{
		parent:      o,
		durationSec: o.AlgoParams.DurationSec,
		totalQty:    o.Quantity,
		startNs:     now.NowNs(),
	}
}

func (t *TWAP) Tick(eng Engine) bool {
	nowNs := eng.Clock().NowNs()
	elapsed := float64(nowNs-t.startNs) / 1e9

	if elapsed >= float64(t.durationSec) {
		remaining := t.totalQty - t.filledQty
		if remaining > 0 {
			t.dispatchSlice(eng, remaining)
		}
		return true
	}

	if t.lastSliceNs != 0 && time.Duration(nowNs-t.lastSliceNs) <= twapSliceInterval {
		return false
	}

	target := int32(elapsed / float64(t.durationSec) * float64(t.totalQty))
	slice := target - t.filledQty
	if slice > 0 {
		t.dispatchSlice(eng, slice)
	}
	t.lastSliceNs = nowNs
	return false
}

func (t *TWAP) dispatchSlice(eng Engine, qty int32) {
	child, err := order.ChildFrom(t.parent, qty, t.parent.IsBuy, price.Zero, order.GTC)
	if err != nil {
		log.Error().Err(err).Msg("twap: failed to build child order")
		return
	}
	if _, err := eng.Dispatch(child); err != nil {
		log.Error().Err(err).Msg("twap: dispatch failed")
		return
	}
	t.filledQty += qty
}
