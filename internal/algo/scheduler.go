package algo

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/tracker"
)

// Scheduler is the AlgoScheduler: it owns the active algorithm and
// strategy lists and ticks each of them in insertion order once per
// engine tick. Submissions made mid-tick are deferred to the next
// tick via double-buffered pending lists, so a newly submitted
// algorithm never runs twice in the same tick and the active slice is
// never mutated while it is being ranged over.
type Scheduler struct {
	mu sync.Mutex

	active           []Algo
	activeStrategies []Strategy
	pendingAlgos     []Algo
	pendingStrats    []Strategy
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Submit constructs the algorithm instance dictated by order's
// AlgoType and queues it for the next tick.
func (s *Scheduler) Submit(o order.Order, eng Engine) {
	a := New(o, eng.Clock())
	if a == nil {
		log.Error().Str("algo_type", o.AlgoType.String()).Msg("scheduler: no factory for algo type")
		return
	}
	s.mu.Lock()
	s.pendingAlgos = append(s.pendingAlgos, a)
	s.mu.Unlock()
}

// SubmitStrategy queues a strategy for the next tick.
func (s *Scheduler) SubmitStrategy(strat Strategy) {
	s.mu.Lock()
	s.pendingStrats = append(s.pendingStrats, strat)
	s.mu.Unlock()
}

// Tick drains pending submissions into the active lists, then ticks
// every active algorithm and strategy, removing those that complete
// or panic. A panic in one instance is isolated and never stops the
// loop.
func (s *Scheduler) Tick(eng Engine) {
	s.mu.Lock()
	if len(s.pendingAlgos) > 0 {
		s.active = append(s.active, s.pendingAlgos...)
		s.pendingAlgos = nil
	}
	if len(s.pendingStrats) > 0 {
		s.activeStrategies = append(s.activeStrategies, s.pendingStrats...)
		s.pendingStrats = nil
	}
	active := s.active
	strategies := s.activeStrategies
	s.mu.Unlock()

	survivors := active[:0:0]
	for _, a := range active {
		if !tickAlgoSafely(a, eng) {
			survivors = append(survivors, a)
		}
	}

	stratSurvivors := strategies[:0:0]
	for _, st := range strategies {
		if tickStrategySafely(st, eng) {
			stratSurvivors = append(stratSurvivors, st)
		}
	}

	s.mu.Lock()
	s.active = survivors
	s.activeStrategies = stratSurvivors
	s.mu.Unlock()
}

// tickAlgoSafely ticks a single algorithm, recovering from a panic so
// that one bad algorithm can never take down the scheduler loop. It
// returns true when the algorithm should be removed (completed or
// panicked).
func tickAlgoSafely(a Algo, eng Engine) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("scheduler: algorithm panicked, removing")
			done = true
		}
	}()
	return a.Tick(eng)
}

// tickStrategySafely runs a strategy's OnTick hook, recovering from a
// panic so it can be dropped rather than crash the loop. Returns true
// if the strategy should be kept.
func tickStrategySafely(st Strategy, eng Engine) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("strategy", st.Name()).Msg("scheduler: strategy panicked, removing")
			keep = false
		}
	}()
	done := st.OnTick(eng)
	return !done
}

// BroadcastMarketEvent forwards a market data update to every active
// strategy's OnMarketEvent hook.
func (s *Scheduler) BroadcastMarketEvent(eng Engine, m market.ID, p price.Price, qty int64) {
	s.mu.Lock()
	strategies := s.activeStrategies
	s.mu.Unlock()
	for _, st := range strategies {
		st.OnMarketEvent(eng, m, p, qty)
	}
}

// BroadcastExecutionEvent forwards an order status change to every
// active strategy's OnExecutionEvent hook.
func (s *Scheduler) BroadcastExecutionEvent(eng Engine, id string, status tracker.Status) {
	s.mu.Lock()
	strategies := s.activeStrategies
	s.mu.Unlock()
	for _, st := range strategies {
		st.OnExecutionEvent(eng, id, status)
	}
}

// ActiveCount reports how many algorithms are currently active, for
// diagnostics and tests.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
