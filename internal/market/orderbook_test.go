package market

import (
	"testing"

	"github.com/web3guy0/polybot/internal/price"
)

func TestOrderBookBestBidAsk(t *testing.T) {
	ob := NewOrderBook()
	ob.ApplySnapshot(
		map[price.Price]int64{
			price.FromCents(40): 100,
			price.FromCents(45): 50,
		},
		map[price.Price]int64{
			price.FromCents(55): 75,
			price.FromCents(60): 20,
		},
	)

	if got := ob.BestBid(); got.ToCents() != 45 {
		t.Fatalf("BestBid = %v, want 0.45", got)
	}
	if got := ob.BestAsk(); got.ToCents() != 55 {
		t.Fatalf("BestAsk = %v, want 0.55", got)
	}
	if got := ob.Mid(); got.ToCents() != 50 {
		t.Fatalf("Mid = %v, want 0.50", got)
	}
}

func TestOrderBookDeltaZeroRemovesLevel(t *testing.T) {
	ob := NewOrderBook()
	ob.ApplySnapshot(
		map[price.Price]int64{price.FromCents(40): 100},
		map[price.Price]int64{price.FromCents(55): 75},
	)

	if !ob.HasLevel(true, price.FromCents(40)) {
		t.Fatalf("expected bid level at 0.40 after snapshot")
	}

	ob.ApplyDelta(true, price.FromCents(40), 0)

	if ob.HasLevel(true, price.FromCents(40)) {
		t.Fatalf("level at 0.40 should be removed after zero-size delta")
	}
	if got := ob.BestBid(); !got.IsZero() {
		t.Fatalf("BestBid after emptying book = %v, want zero", got)
	}
}

func TestOrderBookDeltaAddsAndUpdatesLevel(t *testing.T) {
	ob := NewOrderBook()
	ob.ApplyDelta(false, price.FromCents(60), 30)
	if got := ob.BestAsk(); got.ToCents() != 60 {
		t.Fatalf("BestAsk = %v, want 0.60", got)
	}
	if got := ob.Depth(false); got != 1 {
		t.Fatalf("Depth(ask) = %d, want 1", got)
	}

	ob.ApplyDelta(false, price.FromCents(58), 10)
	if got := ob.BestAsk(); got.ToCents() != 58 {
		t.Fatalf("BestAsk after better ask = %v, want 0.58", got)
	}
	if got := ob.Depth(false); got != 2 {
		t.Fatalf("Depth(ask) = %d, want 2", got)
	}
}

func TestOrderBookEmptyIsZero(t *testing.T) {
	ob := NewOrderBook()
	if !ob.BestBid().IsZero() || !ob.BestAsk().IsZero() || !ob.Mid().IsZero() {
		t.Fatalf("empty book should report zero for best bid/ask/mid")
	}
}
