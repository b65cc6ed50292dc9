package backend

import (
	"testing"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

func TestPaperCreateOrderFillsAtQuoteWithSlippage(t *testing.T) {
	p := NewPaper("paper", price.FromDouble(1000))
	p.SetSlippageBps(100) // 1%
	m := market.New("AAPL")
	p.UpdateQuote(m, price.FromCents(50), price.FromCents(50))

	o, err := order.New(order.Order{
		Market:   m,
		Quantity: 10,
		IsBuy:    true,
		Price:    price.FromCents(50),
		Backend:  "paper",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := p.CreateOrder(o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == ErrorID || id == "" {
		t.Fatalf("expected a real order id, got %q", id)
	}

	bal := p.GetBalance()
	if bal.ToDouble() >= 1000-10*0.50 {
		t.Fatalf("balance %v should reflect adverse slippage on a buy", bal)
	}
}

func TestPaperCreateOrderRejectsWithoutQuote(t *testing.T) {
	p := NewPaper("paper", price.FromDouble(1000))
	o, _ := order.New(order.Order{
		Market:   market.New("UNQUOTED"),
		Quantity: 10,
		IsBuy:    true,
		Price:    price.FromCents(50),
		Backend:  "paper",
	})
	id, err := p.CreateOrder(o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != ErrorID {
		t.Fatalf("id = %q, want %q", id, ErrorID)
	}
}

func TestPaperPositionsRoundTripThroughJSON(t *testing.T) {
	p := NewPaper("paper", price.FromDouble(1000))
	m := market.New("AAPL")
	p.UpdateQuote(m, price.FromCents(50), price.FromCents(50))

	o, _ := order.New(order.Order{
		Market:   m,
		Quantity: 10,
		IsBuy:    true,
		Price:    price.FromCents(50),
		Backend:  "paper",
	})
	if _, err := p.CreateOrder(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := p.GetPositions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed := ParsePositions(raw)
	if len(parsed) != 1 {
		t.Fatalf("len(parsed) = %d, want 1", len(parsed))
	}
	if parsed[0].MarketHash != m.Hash || parsed[0].Size != 10 {
		t.Fatalf("parsed position = %+v, want hash=%d size=10", parsed[0], m.Hash)
	}
}

func TestPaperCreateBatch(t *testing.T) {
	p := NewPaper("paper", price.FromDouble(1000))
	m := market.New("AAPL")
	p.UpdateQuote(m, price.FromCents(50), price.FromCents(50))

	o1, _ := order.New(order.Order{Market: m, Quantity: 5, IsBuy: true, Price: price.FromCents(50), Backend: "paper"})
	o2, _ := order.New(order.Order{Market: m, Quantity: 3, IsBuy: false, Price: price.FromCents(50), Backend: "paper"})

	ids, err := p.CreateBatch([]order.Order{o1, o2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}
}
