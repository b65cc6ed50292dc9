package algo

import (
	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

// refPrice computes the Peg/MarketMaker reference price: Mid requires
// both sides present, Bid/Ask read the one side from GetDepth. Returns
// zero if the required side(s) are unavailable.
func refPrice(eng Engine, m market.ID, ref order.PriceRef) price.Price {
	switch ref {
	case order.RefBid:
		return eng.GetDepth(m, true)
	case order.RefAsk:
		return eng.GetDepth(m, false)
	case order.RefMid:
		bid := eng.GetDepth(m, true)
		ask := eng.GetDepth(m, false)
		if bid.IsZero() || ask.IsZero() {
			return price.Zero
		}
		return price.Mid(bid, ask)
	default:
		return price.Zero
	}
}
