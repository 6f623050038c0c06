package feeds

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// PriceLevel is one price level of a token's book
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Orderbook holds the current book for one outcome token. It is fed by
// websocket snapshots and incremental price changes and queried for the
// best bid/ask.
type Orderbook struct {
	mu      sync.RWMutex
	Market  string // condition id
	TokenID string
	Bids    []PriceLevel
	Asks    []PriceLevel
}

// NewOrderbook creates an empty book for a token
func NewOrderbook(market, tokenID string) *Orderbook {
	return &Orderbook{Market: market, TokenID: tokenID}
}

// ApplySnapshot replaces the book with a full websocket snapshot
func (ob *Orderbook) ApplySnapshot(bids, asks []WSPriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.Bids = parseLevels(bids)
	ob.Asks = parseLevels(asks)

	sort.Slice(ob.Bids, func(i, j int) bool {
		return ob.Bids[i].Price.GreaterThan(ob.Bids[j].Price)
	})
	sort.Slice(ob.Asks, func(i, j int) bool {
		return ob.Asks[i].Price.LessThan(ob.Asks[j].Price)
	})
}

// ApplyChange updates a single level from a price_change event. Size 0
// removes the level.
func (ob *Orderbook) ApplyChange(side string, price, size decimal.Decimal) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	levels := &ob.Asks
	if side == "BUY" {
		levels = &ob.Bids
	}

	for i := range *levels {
		if (*levels)[i].Price.Equal(price) {
			if size.IsPositive() {
				(*levels)[i].Size = size
			} else {
				*levels = append((*levels)[:i], (*levels)[i+1:]...)
			}
			return
		}
	}

	if !size.IsPositive() {
		return
	}
	*levels = append(*levels, PriceLevel{Price: price, Size: size})
	if side == "BUY" {
		sort.Slice(*levels, func(i, j int) bool {
			return (*levels)[i].Price.GreaterThan((*levels)[j].Price)
		})
	} else {
		sort.Slice(*levels, func(i, j int) bool {
			return (*levels)[i].Price.LessThan((*levels)[j].Price)
		})
	}
}

// BestBid returns the highest bid, zero when the side is empty
func (ob *Orderbook) BestBid() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if len(ob.Bids) == 0 {
		return decimal.Zero
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask, zero when the side is empty
func (ob *Orderbook) BestAsk() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if len(ob.Asks) == 0 {
		return decimal.Zero
	}
	return ob.Asks[0].Price
}

func parseLevels(raw []WSPriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err1 := decimal.NewFromString(lvl.Price)
		size, err2 := decimal.NewFromString(lvl.Size)
		if err1 != nil || err2 != nil || !size.IsPositive() {
			continue
		}
		out = append(out, PriceLevel{Price: price, Size: size})
	}
	return out
}
