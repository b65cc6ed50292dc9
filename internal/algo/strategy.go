package algo

import (
	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/tracker"
)

// EventStrategy is the built-in Strategy that invokes an action
// callback whenever a market event arrives for its target market. It
// never terminates on its own.
type EventStrategy struct {
	name             string
	target           market.ID
	onMarketEvent    func(eng Engine, p price.Price, qty int64)
	onExecutionEvent func(eng Engine, id string, status tracker.Status)
}

// NewEventStrategy builds an EventStrategy that fires action when a
// market event for target arrives. onExecution may be nil.
func NewEventStrategy(name string, target market.ID, action func(eng Engine, p price.Price, qty int64), onExecution func(eng Engine, id string, status tracker.Status)) *EventStrategy {
	return &EventStrategy{
		name:             name,
		target:           target,
		onMarketEvent:    action,
		onExecutionEvent: onExecution,
	}
}

func (e *EventStrategy) Name() string { return e.name }

// OnTick is a no-op: EventStrategy reacts only to broadcast events.
func (e *EventStrategy) OnTick(eng Engine) bool { return false }

func (e *EventStrategy) OnMarketEvent(eng Engine, m market.ID, p price.Price, qty int64) {
	if !m.Equal(e.target) || e.onMarketEvent == nil {
		return
	}
	e.onMarketEvent(eng, p, qty)
}

func (e *EventStrategy) OnExecutionEvent(eng Engine, id string, status tracker.Status) {
	if e.onExecutionEvent == nil {
		return
	}
	e.onExecutionEvent(eng, id, status)
}
