package market

import (
	"sync"

	"github.com/google/btree"

	"github.com/web3guy0/polybot/internal/price"
)

const btreeDegree = 32

// levelItem wraps one price level for btree ordering.
type levelItem struct {
	p    price.Price
	size int64
}

func (a *levelItem) Less(other btree.Item) bool {
	return a.p.Raw < other.(*levelItem).p.Raw
}

// side is one half of a book: bids (iterated descending) or asks
// (iterated ascending). A size of 0 removes the level entirely.
type side struct {
	tree *btree.BTree
	desc bool
}

func newSide(desc bool) *side {
	return &side{tree: btree.New(btreeDegree), desc: desc}
}

func (s *side) set(p price.Price, size int64) {
	if size <= 0 {
		s.tree.Delete(&levelItem{p: p})
		return
	}
	s.tree.ReplaceOrInsert(&levelItem{p: p, size: size})
}

func (s *side) best() (price.Price, int64, bool) {
	var it btree.Item
	if s.desc {
		it = s.tree.Max()
	} else {
		it = s.tree.Min()
	}
	if it == nil {
		return price.Zero, 0, false
	}
	lv := it.(*levelItem)
	return lv.p, lv.size, true
}

func (s *side) has(p price.Price) bool {
	return s.tree.Get(&levelItem{p: p}) != nil
}

func (s *side) len() int { return s.tree.Len() }

// OrderBook is the local mirror of one market's bid/ask ladders:
// sorted price -> size maps, bids descending, asks ascending.
type OrderBook struct {
	mu   sync.RWMutex
	bids *side
	asks *side
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: newSide(true),
		asks: newSide(false),
	}
}

// ApplySnapshot replaces both ladders wholesale.
func (b *OrderBook) ApplySnapshot(bids, asks map[price.Price]int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = newSide(true)
	b.asks = newSide(false)
	for p, sz := range bids {
		b.bids.set(p, sz)
	}
	for p, sz := range asks {
		b.asks.set(p, sz)
	}
}

// ApplyDelta updates a single level on one side. A size of 0 removes
// the level.
func (b *OrderBook) ApplyDelta(isBid bool, p price.Price, size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if isBid {
		b.bids.set(p, size)
	} else {
		b.asks.set(p, size)
	}
}

// BestBid returns the highest bid, or zero if the book has no bids.
func (b *OrderBook) BestBid() price.Price {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, _, _ := b.bids.best()
	return p
}

// BestAsk returns the lowest ask, or zero if the book has no asks.
func (b *OrderBook) BestAsk() price.Price {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, _, _ := b.asks.best()
	return p
}

// BestDepth returns the best price on the requested side.
func (b *OrderBook) BestDepth(isBid bool) price.Price {
	if isBid {
		return b.BestBid()
	}
	return b.BestAsk()
}

// Mid returns the midpoint of best bid and best ask, or zero if either
// side is empty.
func (b *OrderBook) Mid() price.Price {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, _, okBid := b.bids.best()
	ask, _, okAsk := b.asks.best()
	if !okBid || !okAsk {
		return price.Zero
	}
	return price.Mid(bid, ask)
}

// HasLevel reports whether a level still exists at p on the given
// side — used by the round-trip law that a zeroed delta removes it.
func (b *OrderBook) HasLevel(isBid bool, p price.Price) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if isBid {
		return b.bids.has(p)
	}
	return b.asks.has(p)
}

// Depth returns how many distinct price levels exist on a side.
func (b *OrderBook) Depth(isBid bool) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if isBid {
		return b.bids.len()
	}
	return b.asks.len()
}
