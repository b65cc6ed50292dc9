// Package engine implements the ExecutionEngine: the orchestrator
// that owns registered backends, the order tracker, and the algorithm
// scheduler, and drives them on a fixed-interval tick loop.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/algo"
	"github.com/web3guy0/polybot/internal/backend"
	"github.com/web3guy0/polybot/internal/clock"
	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/storage"
	"github.com/web3guy0/polybot/internal/tracker"
)

// TickInterval is the default scheduler tick period.
const TickInterval = 100 * time.Millisecond

// Engine is the ExecutionEngine. It satisfies algo.Engine so
// algorithms and strategies can call back into it on every tick
// without the algo package importing engine.
type Engine struct {
	mu sync.RWMutex

	clk          clock.Clock
	tickInterval time.Duration
	backends     []backend.Backend
	byName       map[string]backend.Backend
	tracker      *tracker.Tracker
	scheduler    *algo.Scheduler
	sidecar      *storage.Sidecar

	balance   price.Price
	positions map[uint32]int64
	running   bool
	stopCh    chan struct{}
}

// New constructs an engine with a wall or backtest clock, an empty
// backend list and a fresh tracker/scheduler pair, ticking at the
// default 100ms interval.
func New(clk clock.Clock) *Engine {
	return &Engine{
		clk:          clk,
		tickInterval: TickInterval,
		byName:       make(map[string]backend.Backend),
		tracker:      tracker.New(),
		scheduler:    algo.NewScheduler(),
		positions:    make(map[uint32]int64),
	}
}

// WithSidecar attaches the optional persistence sidecar. A nil
// sidecar (the default) makes every storage hook a no-op.
func (e *Engine) WithSidecar(s *storage.Sidecar) *Engine {
	e.sidecar = s
	return e
}

// WithTickInterval overrides the scheduler tick period.
func (e *Engine) WithTickInterval(d time.Duration) *Engine {
	if d > 0 {
		e.tickInterval = d
	}
	return e
}

// RegisterBackend adds b to the backend list, keyed by its name for
// per-backend lookups (arbitrage, order cancellation).
func (e *Engine) RegisterBackend(b backend.Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backends = append(e.backends, b)
	e.byName[b.Name()] = b
}

func (e *Engine) Clock() clock.Clock { return e.clk }
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }
func (e *Engine) Scheduler() *algo.Scheduler { return e.scheduler }

// Dispatch routes an order: algo-typed orders go to the scheduler,
// plain orders go straight to their bound backend.
func (e *Engine) Dispatch(o order.Order) (string, error) {
	if o.AlgoType != order.AlgoNone {
		e.scheduler.Submit(o, e)
		return "", nil
	}

	b, ok := e.lookupBackend(o.Backend)
	if !ok {
		log.Warn().Str("market", o.Market.Ticker).Msg("engine: dispatch with no backend bound")
		return "", nil
	}

	id, err := b.CreateOrder(o)
	if err != nil {
		return backend.ErrorID, err
	}
	e.tracker.Track(id, o)
	if e.sidecar != nil {
		e.sidecar.OnOrderTracked(id, o)
	}
	return id, nil
}

// DispatchBatch sends every order to a shared backend's CreateBatch
// when they all share one, otherwise dispatches them individually.
func (e *Engine) DispatchBatch(orders []order.Order) ([]string, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	backendName := orders[0].Backend
	shared := backendName != ""
	for _, o := range orders[1:] {
		if o.Backend != backendName {
			shared = false
			break
		}
	}
	if !shared {
		ids := make([]string, 0, len(orders))
		for _, o := range orders {
			id, err := e.Dispatch(o)
			if err != nil {
				return ids, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	b, ok := e.lookupBackend(backendName)
	if !ok {
		return nil, fmt.Errorf("engine: dispatch_batch: unknown backend %q", backendName)
	}
	ids, err := b.CreateBatch(orders)
	if err != nil {
		return ids, err
	}
	for i, id := range ids {
		e.tracker.Track(id, orders[i])
	}
	return ids, nil
}

// DispatchConditional evaluates cond against live engine state and
// dispatches o only if it holds.
func (e *Engine) DispatchConditional(cond func(eng *Engine) bool, o order.Order) (string, error) {
	if !cond(e) {
		return "", nil
	}
	return e.Dispatch(o)
}

// DispatchOCO dispatches both orders; they are linked only by the
// caller's own bookkeeping (venue-side OCO linking is a future
// extension, per spec).
func (e *Engine) DispatchOCO(a, b order.Order) (string, string, error) {
	idA, err := e.Dispatch(a)
	if err != nil {
		return idA, "", err
	}
	idB, err := e.Dispatch(b)
	return idA, idB, err
}

func (e *Engine) CancelOrder(backendName, id string) (bool, error) {
	b, ok := e.lookupBackend(backendName)
	if !ok {
		return false, fmt.Errorf("engine: cancel_order: unknown backend %q", backendName)
	}
	ok2, err := b.CancelOrder(id)
	if ok2 {
		e.tracker.UpdateStatus(id, tracker.Cancelled)
		if e.sidecar != nil {
			e.sidecar.OnStatusChange(id, tracker.Cancelled)
		}
	}
	return ok2, err
}

// GetPrice fans out over every registered backend in registration
// order and returns the first non-zero answer.
func (e *Engine) GetPrice(m market.ID, outcomeYes bool) price.Price {
	e.mu.RLock()
	backends := e.backends
	e.mu.RUnlock()
	for _, b := range backends {
		if p := b.GetPrice(m, outcomeYes); !p.IsZero() {
			return p
		}
	}
	return price.Zero
}

// GetPriceFromBackend queries exactly one named backend, used by the
// arbitrage algorithm which must compare two specific venues rather
// than an opaque fan-out.
func (e *Engine) GetPriceFromBackend(backendName string, m market.ID, outcomeYes bool) price.Price {
	b, ok := e.lookupBackend(backendName)
	if !ok {
		return price.Zero
	}
	return b.GetPrice(m, outcomeYes)
}

func (e *Engine) GetDepth(m market.ID, isBid bool) price.Price {
	e.mu.RLock()
	backends := e.backends
	e.mu.RUnlock()
	for _, b := range backends {
		if p := b.GetDepth(m, isBid); !p.IsZero() {
			return p
		}
	}
	return price.Zero
}

func (e *Engine) GetVolume(m market.ID) price.Price {
	e.mu.RLock()
	backends := e.backends
	e.mu.RUnlock()
	for _, b := range backends {
		if v := b.GetVolume(m); !v.IsZero() {
			return v
		}
	}
	return price.Zero
}

// GetPosition, GetBalance, GetExposure and GetPnL are served from the
// engine's cache. The live sync loop refreshes balance and positions;
// ApplyFill (the backtest fill callback) updates positions only.
func (e *Engine) GetPosition(m market.ID) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.positions[m.Hash]
}

func (e *Engine) GetBalance() price.Price {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balance
}

// GetExposure sums |position| * mark price across every open
// position, using the first non-zero YES price from the GetPrice
// fan-out for each market.
func (e *Engine) GetExposure() price.Price {
	e.mu.RLock()
	positions := make(map[uint32]int64, len(e.positions))
	for k, v := range e.positions {
		positions[k] = v
	}
	e.mu.RUnlock()

	total := price.Zero
	for hash, qty := range positions {
		if qty == 0 {
			continue
		}
		m := market.ID{Hash: hash}
		mark := e.GetPrice(m, true)
		abs := qty
		if abs < 0 {
			abs = -abs
		}
		total = total.Add(mark.MulQty(abs))
	}
	return total
}

// GetPnL returns balance plus mark-to-market exposure, a rough
// unrealized total rather than a realized/unrealized split.
func (e *Engine) GetPnL() price.Price {
	return e.GetBalance().Add(e.GetExposure())
}

// ApplyFill updates the cached position and records the fill with the
// tracker; called by a backend once it has matched an order.
func (e *Engine) ApplyFill(id string, m market.ID, isBuy bool, qty int32, p price.Price, timestampNs int64) {
	e.mu.Lock()
	delta := int64(qty)
	if !isBuy {
		delta = -delta
	}
	e.positions[m.Hash] += delta
	e.mu.Unlock()

	e.tracker.AddFill(id, qty, p, timestampNs)
	if e.sidecar != nil {
		e.sidecar.OnFill(id, qty, p, timestampNs)
	}
}

// Run enters the tick loop: while running, tick the scheduler then
// sleep the configured tick interval (TickInterval by default). Call from its own goroutine; Stop flips running
// so the loop exits on its next check.
func (e *Engine) Run() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.mu.Unlock()

	log.Info().Msg("engine: tick loop started")
	for {
		select {
		case <-stopCh:
			log.Info().Msg("engine: tick loop stopped")
			return
		default:
		}
		e.scheduler.Tick(e)
		time.Sleep(e.tickInterval)
	}
}

// Stop flips is_running so Run's loop exits on its next iteration.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stopCh)
}

func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func (e *Engine) lookupBackend(name string) (backend.Backend, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.byName[name]
	return b, ok
}
