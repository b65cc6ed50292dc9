// Package backend defines the venue abstraction every execution
// surface (paper, backtest, streaming live) implements, plus the
// tolerant positions-JSON parser shared by all of them.
package backend

import (
	"encoding/json"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

// ErrorID is the sentinel create_order returns on venue rejection.
const ErrorID = "error"

// Backend is the venue trait the core consumes. Every method must be
// safe for concurrent use; each backend owns its own internal mutex.
type Backend interface {
	Name() string
	GetPrice(m market.ID, outcomeYes bool) price.Price
	GetDepth(m market.ID, isBid bool) price.Price
	GetVolume(m market.ID) price.Price
	GetBalance() price.Price
	GetPositions() (string, error)
	CreateOrder(o order.Order) (string, error)
	CancelOrder(id string) (bool, error)
	CreateBatch(orders []order.Order) ([]string, error)
}

// Position is one parsed row from any of the three accepted
// positions-JSON shapes.
type Position struct {
	MarketHash uint32
	Ticker     string
	Size       int64
}

type positionsArrayRow struct {
	AssetID string `json:"asset_id"`
	TokenID string `json:"token_id"`
	Size    string `json:"size"`
}

type marketPositionsRow struct {
	Ticker   string `json:"ticker"`
	Position int64  `json:"position"`
}

type positionsWrapperRow struct {
	MarketTicker string `json:"market_ticker"`
	TokenID      string `json:"token_id"`
	Ticker       string `json:"ticker"`
	Quantity     int64  `json:"quantity"`
	Position     int64  `json:"position"`
	Size         int64  `json:"size"`
}

type marketPositionsShape struct {
	MarketPositions []marketPositionsRow `json:"market_positions"`
}

type positionsWrapperShape struct {
	Positions []positionsWrapperRow `json:"positions"`
}

// ParsePositions tolerates all three documented shapes:
//  1. a top-level array of {asset_id|token_id, size}
//  2. {"market_positions": [{ticker, position}]}
//  3. {"positions": [{market_ticker|token_id|ticker, quantity|position|size}]}
//
// An unrecognized shape yields an empty, non-error result — per spec,
// a venue returning something nobody taught us to parse is treated as
// "no positions", not a failure.
func ParsePositions(raw string) []Position {
	raw = trimSpace(raw)
	if raw == "" {
		return nil
	}

	if len(raw) > 0 && raw[0] == '[' {
		var rows []positionsArrayRow
		if err := json.Unmarshal([]byte(raw), &rows); err != nil {
			return nil
		}
		out := make([]Position, 0, len(rows))
		for _, r := range rows {
			ticker := r.AssetID
			if ticker == "" {
				ticker = r.TokenID
			}
			if ticker == "" {
				continue
			}
			sz := parseIntOrZero(r.Size)
			out = append(out, Position{MarketHash: market.FNV1a(ticker), Ticker: ticker, Size: sz})
		}
		return out
	}

	var mp marketPositionsShape
	if err := json.Unmarshal([]byte(raw), &mp); err == nil && mp.MarketPositions != nil {
		out := make([]Position, 0, len(mp.MarketPositions))
		for _, r := range mp.MarketPositions {
			if r.Ticker == "" {
				continue
			}
			out = append(out, Position{MarketHash: market.FNV1a(r.Ticker), Ticker: r.Ticker, Size: r.Position})
		}
		return out
	}

	var pw positionsWrapperShape
	if err := json.Unmarshal([]byte(raw), &pw); err == nil && pw.Positions != nil {
		out := make([]Position, 0, len(pw.Positions))
		for _, r := range pw.Positions {
			ticker := r.MarketTicker
			if ticker == "" {
				ticker = r.TokenID
			}
			if ticker == "" {
				ticker = r.Ticker
			}
			if ticker == "" {
				continue
			}
			size := r.Quantity
			if size == 0 {
				size = r.Position
			}
			if size == 0 {
				size = r.Size
			}
			out = append(out, Position{MarketHash: market.FNV1a(ticker), Ticker: ticker, Size: size})
		}
		return out
	}

	return nil
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func parseIntOrZero(s string) int64 {
	var n int64
	neg := false
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	if i == len(s) {
		return 0
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n
}
