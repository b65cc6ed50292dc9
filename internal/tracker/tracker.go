// Package tracker owns the single source of truth for order status
// and fills: the OrderTracker.
package tracker

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

// Status is an OrderRecord's lifecycle state. Filled, Cancelled and
// Rejected are absorbing.
type Status int

const (
	Pending Status = iota
	Open
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Open:
		return "open"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Fill is one execution against an order.
type Fill struct {
	Qty       int32
	Price     price.Price
	TimestampNs int64
}

// Record is everything the tracker knows about one dispatched order.
type Record struct {
	ID           string
	Order        order.Order
	Status       Status
	FilledQty    int32
	AvgFillPrice price.Price
	Fills        []Fill

	totalCostRaw int64 // Σ qty*price.Raw, kept for incremental avg_fill_price
}

// errorSentinel is the venue failure id the tracker silently drops,
// per spec: an id that is empty or literally "error" never creates a
// record.
const errorSentinel = "error"

// Tracker is the OrderTracker: a single-mutex map of live and
// terminal order records.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{records: make(map[string]*Record)}
}

// Track inserts a new record for id with status Open. Ignores empty
// or "error" ids — those never reach the map.
func (t *Tracker) Track(id string, o order.Order) {
	if id == "" || id == errorSentinel {
		log.Debug().Str("id", id).Msg("tracker: ignoring sentinel order id")
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[id] = &Record{
		ID:     id,
		Order:  o,
		Status: Open,
	}
}

// UpdateStatus overwrites the status of an existing record. No-op if
// the id is unknown.
func (t *Tracker) UpdateStatus(id string, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	if !ok {
		return
	}
	r.Status = status
}

// AddFill records a fill, updates filled_qty and avg_fill_price in
// raw integer units, and promotes status to PartiallyFilled or Filled.
// No-op if the id is unknown.
func (t *Tracker) AddFill(id string, qty int32, p price.Price, timestampNs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	if !ok {
		return
	}
	if r.Status.Terminal() {
		return
	}

	r.Fills = append(r.Fills, Fill{Qty: qty, Price: p, TimestampNs: timestampNs})
	r.totalCostRaw += int64(qty) * p.Raw
	r.FilledQty += qty
	if r.FilledQty > 0 {
		r.AvgFillPrice = price.FromRaw(r.totalCostRaw / int64(r.FilledQty))
	}

	if r.FilledQty >= r.Order.Quantity {
		r.Status = Filled
	} else {
		r.Status = PartiallyFilled
	}
}

// CountOpen counts records for marketHash in {Pending, Open,
// PartiallyFilled}.
func (t *Tracker) CountOpen(marketHash uint32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.records {
		if r.Order.Market.Hash != marketHash {
			continue
		}
		switch r.Status {
		case Pending, Open, PartiallyFilled:
			n++
		}
	}
	return n
}

// Get returns a copy of the record for id, if any.
func (t *Tracker) Get(id string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// GetAll returns a snapshot copy of every record.
func (t *Tracker) GetAll() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, *r)
	}
	return out
}
