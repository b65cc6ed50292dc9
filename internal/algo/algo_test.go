package algo

import (
	"testing"
	"time"

	"github.com/web3guy0/polybot/internal/clock"
	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/tracker"
)

// fakeEngine is a minimal, single-threaded Engine stand-in for
// algorithm unit tests.
type fakeEngine struct {
	clk          *clock.Backtest
	prices       map[string]price.Price // backendName|market.Hash|yes/no -> price
	depth        map[bool]price.Price   // isBid -> price
	volume       price.Price
	tracker      *tracker.Tracker
	dispatched   []order.Order
	nextID       int
	cancelled    []string
	failDispatch bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		clk:     clock.NewBacktest(time.Unix(0, 0)),
		prices:  make(map[string]price.Price),
		depth:   make(map[bool]price.Price),
		tracker: tracker.New(),
	}
}

func (f *fakeEngine) Clock() clock.Clock { return f.clk }

func (f *fakeEngine) GetPrice(m market.ID, outcomeYes bool) price.Price {
	return f.GetPriceFromBackend("default", m, outcomeYes)
}

func (f *fakeEngine) GetPriceFromBackend(backendName string, m market.ID, outcomeYes bool) price.Price {
	key := backendName
	if outcomeYes {
		key += ":yes"
	} else {
		key += ":no"
	}
	return f.prices[key]
}

func (f *fakeEngine) GetDepth(m market.ID, isBid bool) price.Price { return f.depth[isBid] }
func (f *fakeEngine) GetVolume(m market.ID) price.Price            { return f.volume }

func (f *fakeEngine) Dispatch(o order.Order) (string, error) {
	if f.failDispatch {
		return "error", nil
	}
	f.dispatched = append(f.dispatched, o)
	f.nextID++
	return itoa(f.nextID), nil
}

func (f *fakeEngine) CancelOrder(backendName, id string) (bool, error) {
	f.cancelled = append(f.cancelled, id)
	return true, nil
}

func (f *fakeEngine) Tracker() *tracker.Tracker { return f.tracker }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestTWAPDispatchesFullQuantityByDeadline(t *testing.T) {
	eng := newFakeEngine()
	o := mustOrder(order.Order{
		Market:   market.New("X"),
		Quantity: 100,
		IsBuy:    true,
		Backend:  "paper",
		AlgoType: order.AlgoTWAP,
		AlgoParams: order.AlgoParams{DurationSec: 10},
	})
	twap := NewTWAP(o, eng.clk)

	total := int32(0)
	for i := 0; i <= 10; i++ {
		eng.clk.SetNs(int64(i) * 1e9)
		done := twap.Tick(eng)
		if i == 10 && !done {
			t.Fatalf("expected done at t=10")
		}
	}
	for _, d := range eng.dispatched {
		total += d.Quantity
	}
	if total != 100 {
		t.Fatalf("total dispatched = %d, want 100", total)
	}
}

func TestTWAPRejectsZeroDurationAtConstruction(t *testing.T) {
	_, err := order.New(order.Order{
		Market:     market.New("X"),
		Quantity:   10,
		IsBuy:      true,
		Backend:    "paper",
		AlgoType:   order.AlgoTWAP,
		AlgoParams: order.AlgoParams{DurationSec: 0},
	})
	if err == nil {
		t.Fatalf("expected construction error for duration_sec=0")
	}
}

func TestVWAPDispatchesOnVolumeDelta(t *testing.T) {
	eng := newFakeEngine()
	o := mustOrder(order.Order{
		Market:     market.New("X"),
		Quantity:   100,
		IsBuy:      true,
		Backend:    "paper",
		AlgoType:   order.AlgoVWAP,
		AlgoParams: order.AlgoParams{ParticipationRate: 0.5},
	})
	v := NewVWAP(o)

	eng.volume = price.FromDouble(1000)
	if done := v.Tick(eng); done {
		t.Fatalf("first tick should just prime, not be done")
	}
	if len(eng.dispatched) != 0 {
		t.Fatalf("no dispatch expected on priming tick")
	}

	eng.clk.SetNs(int64(3 * 1e9))
	eng.volume = price.FromDouble(1020)
	v.Tick(eng)
	if len(eng.dispatched) != 1 {
		t.Fatalf("expected one dispatch after volume delta, got %d", len(eng.dispatched))
	}
	if eng.dispatched[0].Quantity != 10 {
		t.Fatalf("slice qty = %d, want 10 (20 delta * 0.5 rate)", eng.dispatched[0].Quantity)
	}
}

func TestPegThrottlesAndCancelsBeforeReplace(t *testing.T) {
	eng := newFakeEngine()
	o := mustOrder(order.Order{
		Market:   market.New("X"),
		Quantity: 10,
		IsBuy:    true,
		Backend:  "paper",
		AlgoType: order.AlgoPeg,
		AlgoParams: order.AlgoParams{
			PegRef:    order.RefMid,
			PegOffset: price.FromCents(1),
		},
	})
	peg := NewPeg(o)

	// Start the clock at a non-zero instant: a fresh Peg's lastUpdate
	// is 0 meaning "never quoted", and t=0 is indistinguishable from
	// that sentinel in a backtest clock that starts at the epoch.
	eng.clk.SetNs(1)

	eng.depth[true] = price.FromCents(40)
	eng.depth[false] = price.FromCents(60)
	peg.Tick(eng)
	if len(eng.dispatched) != 1 {
		t.Fatalf("expected first peg dispatch, got %d", len(eng.dispatched))
	}

	// Reference moves within the throttle window: no new dispatch.
	eng.clk.SetNs(100 * 1e6)
	eng.depth[true] = price.FromCents(45)
	eng.depth[false] = price.FromCents(65)
	peg.Tick(eng)
	if len(eng.dispatched) != 1 {
		t.Fatalf("expected throttled peg to skip dispatch within 500ms, got %d total", len(eng.dispatched))
	}

	// Past the throttle window: replace happens, old id cancelled.
	eng.clk.SetNs(600 * 1e6)
	peg.Tick(eng)
	if len(eng.dispatched) != 2 {
		t.Fatalf("expected second peg dispatch after throttle window, got %d", len(eng.dispatched))
	}
	if len(eng.cancelled) != 1 {
		t.Fatalf("expected one cancel before replace, got %d", len(eng.cancelled))
	}
}

func TestTrailingStopTriggersOnReversal(t *testing.T) {
	eng := newFakeEngine()
	o := mustOrder(order.Order{
		Market:     market.New("X"),
		Quantity:   10,
		IsBuy:      true,
		OutcomeYes: true,
		Backend:    "paper",
		AlgoType:   order.AlgoTrailing,
		AlgoParams: order.AlgoParams{TrailAmount: price.FromCents(2)},
	})
	ts := NewTrailingStop(o)

	seq := []int64{50, 48, 46, 47, 49}
	var done bool
	for _, cents := range seq {
		eng.prices["default:yes"] = price.FromCents(cents)
		done = ts.Tick(eng)
	}
	if !done {
		t.Fatalf("expected trailing stop to trigger by end of sequence")
	}
	if len(eng.dispatched) != 1 {
		t.Fatalf("expected exactly one trigger order, got %d", len(eng.dispatched))
	}
	if eng.dispatched[0].Quantity != 10 {
		t.Fatalf("trigger qty = %d, want 10", eng.dispatched[0].Quantity)
	}
}

func TestArbitrageExecutesOnceAndTerminates(t *testing.T) {
	eng := newFakeEngine()
	m1 := market.New("X")
	m2 := market.New("Y")
	o := mustOrder(order.Order{
		Market:   m1,
		Quantity: 10,
		IsBuy:    true,
		Backend:  "b1",
		AlgoType: order.AlgoArbitrage,
		AlgoParams: order.AlgoParams{
			ArbMarket2:   m2,
			ArbBackend2:  "b2",
			ArbMinProfit: price.FromCents(5),
		},
	})
	arb := NewArbitrage(o)

	eng.prices["b1:yes"] = price.FromCents(40)
	eng.prices["b2:yes"] = price.FromCents(50)

	done := arb.Tick(eng)
	if !done {
		t.Fatalf("expected arbitrage to complete on first profitable tick")
	}
	if len(eng.dispatched) != 2 {
		t.Fatalf("expected two legs dispatched, got %d", len(eng.dispatched))
	}

	before := len(eng.dispatched)
	arb.Tick(eng)
	if len(eng.dispatched) != before {
		t.Fatalf("arbitrage dispatched again after completion")
	}
}

func TestMarketMakerQuotesBothSidesAndEndsOnEitherFill(t *testing.T) {
	eng := newFakeEngine()
	o := mustOrder(order.Order{
		Market:   market.New("X"),
		Quantity: 10,
		IsBuy:    true,
		Backend:  "paper",
		AlgoType: order.AlgoMarketMaker,
		AlgoParams: order.AlgoParams{
			MMRef:    order.RefMid,
			MMSpread: price.FromCents(4),
		},
	})
	mm := NewMarketMaker(o)

	eng.depth[true] = price.FromCents(48)
	eng.depth[false] = price.FromCents(52)
	if done := mm.Tick(eng); done {
		t.Fatalf("first tick should just quote, not be done")
	}
	if len(eng.dispatched) != 2 {
		t.Fatalf("expected bid and ask quoted, got %d", len(eng.dispatched))
	}

	eng.tracker.Track(mm.bidID, o)
	eng.tracker.AddFill(mm.bidID, o.Quantity, price.FromCents(48), 0)

	done := mm.Tick(eng)
	if !done {
		t.Fatalf("expected market maker to finish once a side fills")
	}
	if len(eng.cancelled) != 1 {
		t.Fatalf("expected the opposite quote to be cancelled, got %d cancels", len(eng.cancelled))
	}
}

func TestSchedulerDoubleBuffersSubmissions(t *testing.T) {
	eng := newFakeEngine()
	s := NewScheduler()

	o := mustOrder(order.Order{
		Market:     market.New("X"),
		Quantity:   10,
		IsBuy:      true,
		Backend:    "paper",
		AlgoType:   order.AlgoTWAP,
		AlgoParams: order.AlgoParams{DurationSec: 100},
	})
	s.Submit(o, eng)

	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("algo submitted before the next tick should not be active yet, got %d", got)
	}
	s.Tick(eng)
	if got := s.ActiveCount(); got != 1 {
		t.Fatalf("algo should be active after the next tick, got %d", got)
	}
}

func TestSchedulerIsolatesPanickingAlgo(t *testing.T) {
	eng := newFakeEngine()
	s := NewScheduler()
	s.pendingAlgos = append(s.pendingAlgos, panickyAlgo{}, panickyAlgo{})
	s.Tick(eng) // drains pending -> active, ticks both; both panic and are removed
	s.Tick(eng) // nothing left to tick
	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("panicking algos should be removed, got %d still active", got)
	}
}

type panickyAlgo struct{}

func (panickyAlgo) Tick(eng Engine) bool { panic("boom") }

func mustOrder(o order.Order) order.Order {
	built, err := order.New(o)
	if err != nil {
		panic(err)
	}
	return built
}
