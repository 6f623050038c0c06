package strategy

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICE HISTORY - Dump detection over a short ask-price window
// ═══════════════════════════════════════════════════════════════════════════════

const (
	// historyCapacity bounds the per-outcome series; oldest point is
	// evicted first.
	historyCapacity = 10

	// dumpRefAge is how far back (seconds) the "old" reference must sit.
	dumpRefAge = 3

	// A qualifying move must span between dumpMinSpan and dumpMaxSpan
	// seconds, inclusive. Shorter is jitter, longer is drift.
	dumpMinSpan = 1
	dumpMaxSpan = 5
)

// PricePoint is one observed ask price at a whole-second timestamp
type PricePoint struct {
	Timestamp int64
	Price     decimal.Decimal
}

// PriceHistory is a bounded FIFO series of recent ask prices for one
// outcome token
type PriceHistory struct {
	points []PricePoint
}

// NewPriceHistory creates an empty history
func NewPriceHistory() *PriceHistory {
	return &PriceHistory{points: make([]PricePoint, 0, historyCapacity)}
}

// Observe appends a point, evicting the oldest once capacity is hit
func (h *PriceHistory) Observe(timestamp int64, price decimal.Decimal) {
	h.points = append(h.points, PricePoint{Timestamp: timestamp, Price: price})
	if len(h.points) > historyCapacity {
		copy(h.points, h.points[1:])
		h.points = h.points[:historyCapacity]
	}
}

// Len returns the number of stored points
func (h *PriceHistory) Len() int {
	return len(h.points)
}

// IsDump reports whether the series shows a sharp one-sided drop: the
// newest point sits 1-5 seconds after an "old" reference (the latest
// point at least dumpRefAge seconds old, or the earliest point when
// none qualifies) and the relative drop meets the threshold.
func (h *PriceHistory) IsDump(now int64, threshold decimal.Decimal) bool {
	if len(h.points) < 2 {
		return false
	}

	cutoff := now - dumpRefAge
	var oldPt, newPt *PricePoint
	for i := range h.points {
		p := &h.points[i]
		if p.Timestamp <= cutoff && (oldPt == nil || p.Timestamp > oldPt.Timestamp) {
			oldPt = p
		}
		if newPt == nil || p.Timestamp > newPt.Timestamp {
			newPt = p
		}
	}
	if oldPt == nil {
		oldPt = &h.points[0]
	}
	if newPt == nil || !oldPt.Price.IsPositive() {
		return false
	}

	span := newPt.Timestamp - oldPt.Timestamp
	if span < dumpMinSpan || span > dumpMaxSpan {
		return false
	}

	drop := oldPt.Price.Sub(newPt.Price)
	if !drop.IsPositive() {
		return false
	}
	return drop.Div(oldPt.Price).GreaterThanOrEqual(threshold)
}
