package engine

import (
	"testing"
	"time"

	"github.com/web3guy0/polybot/internal/backend"
	"github.com/web3guy0/polybot/internal/clock"
	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

func TestLiveSyncStateSumsBalanceAndPositions(t *testing.T) {
	e := New(clock.NewBacktest(time.Unix(0, 0)))
	p1 := backend.NewPaper("p1", price.FromDouble(100))
	p2 := backend.NewPaper("p2", price.FromDouble(50))
	e.RegisterBackend(p1)
	e.RegisterBackend(p2)

	m := market.New("AAPL")
	p1.UpdateQuote(m, price.FromCents(50), price.FromCents(50))
	o, _ := order.New(order.Order{
		Market:   m,
		Quantity: 10,
		IsBuy:    true,
		Price:    price.FromCents(50),
		Backend:  "p1",
	})
	_, _ = p1.CreateOrder(o)

	live := NewLive(e)
	live.syncState()

	if got := e.GetBalance(); got.ToDouble() <= 0 {
		t.Fatalf("GetBalance = %v, want positive sum", got)
	}
	if got := e.GetPosition(m); got != 10 {
		t.Fatalf("GetPosition after sync = %d, want 10", got)
	}
}

func TestLiveStartStopJoinsSyncGoroutine(t *testing.T) {
	e := New(clock.NewBacktest(time.Unix(0, 0)))
	live := NewLive(e)
	live.Start()
	time.Sleep(10 * time.Millisecond)
	live.Stop()
	if e.IsRunning() {
		t.Fatalf("expected engine to be stopped")
	}
}
