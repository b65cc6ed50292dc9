// Package price implements the fixed-point scalar used for every trade
// price and balance in the engine. Binary prediction markets trade in
// [0,1]; six decimal places of precision is ample headroom over the
// 2-4 decimal ticks venues actually quote.
package price

import "fmt"

// Scale is the implicit fixed-point denominator: raw units per 1.0.
const Scale int64 = 1_000_000

// Price is a signed fixed-point scalar. Zero is the sentinel for
// "market order" on an Order and for "unknown" on a quote.
type Price struct {
	Raw int64
}

// Zero is the canonical zero price.
var Zero = Price{}

// FromRaw wraps an already-scaled integer.
func FromRaw(raw int64) Price { return Price{Raw: raw} }

// FromDouble rounds a float to the nearest raw unit.
func FromDouble(d float64) Price {
	if d >= 0 {
		return Price{Raw: int64(d*float64(Scale) + 0.5)}
	}
	return Price{Raw: int64(d*float64(Scale) - 0.5)}
}

// FromCents converts whole cents (0-100) to a Price.
func FromCents(cents int64) Price {
	return FromTicks(cents, 100)
}

// FromTicks converts a venue tick count to a Price given the venue's
// ticks-per-unit (e.g. 100 for cents, 10000 for Polymarket's 4-decimal
// book).
func FromTicks(ticks, ticksPerUnit int64) Price {
	if ticksPerUnit == 0 {
		return Zero
	}
	return Price{Raw: ticks * (Scale / ticksPerUnit)}
}

// ToDouble returns the price as a float64.
func (p Price) ToDouble() float64 {
	return float64(p.Raw) / float64(Scale)
}

// ToCents returns the price in whole cents, truncated toward zero.
func (p Price) ToCents() int64 {
	return p.ToTicks(100)
}

// ToTicks returns the price in venue ticks for the given ticks-per-unit.
func (p Price) ToTicks(ticksPerUnit int64) int64 {
	if ticksPerUnit == 0 {
		return 0
	}
	return p.Raw / (Scale / ticksPerUnit)
}

// IsZero reports whether this is the market-order / unknown sentinel.
func (p Price) IsZero() bool { return p.Raw == 0 }

func (p Price) Add(o Price) Price { return Price{Raw: p.Raw + o.Raw} }
func (p Price) Sub(o Price) Price { return Price{Raw: p.Raw - o.Raw} }
func (p Price) Neg() Price        { return Price{Raw: -p.Raw} }

func (p Price) GreaterThan(o Price) bool        { return p.Raw > o.Raw }
func (p Price) LessThan(o Price) bool           { return p.Raw < o.Raw }
func (p Price) GreaterThanOrEqual(o Price) bool { return p.Raw >= o.Raw }
func (p Price) LessThanOrEqual(o Price) bool    { return p.Raw <= o.Raw }
func (p Price) Equal(o Price) bool              { return p.Raw == o.Raw }

// MulQty scales the price by an integer quantity, returning the cost
// as a Price in the same fixed-point scale (cost.Raw = price.Raw *
// qty) — used for balance bookkeeping.
func (p Price) MulQty(qty int64) Price {
	return Price{Raw: p.Raw * qty}
}

// Mid returns the midpoint of two prices.
func Mid(a, b Price) Price {
	return Price{Raw: (a.Raw + b.Raw) / 2}
}

// WithSlippage adjusts a fill price by fixedBps, adverse to the trader:
// higher for a buy, lower for a sell.
func (p Price) WithSlippage(fixedBps float64, isBuy bool) Price {
	if fixedBps == 0 {
		return p
	}
	slip := fixedBps / 10000.0
	if isBuy {
		return FromDouble(p.ToDouble() * (1 + slip))
	}
	return FromDouble(p.ToDouble() * (1 - slip))
}

func (p Price) String() string {
	return fmt.Sprintf("%.6f", p.ToDouble())
}
