package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceHistoryCapacity(t *testing.T) {
	h := NewPriceHistory()
	for i := int64(0); i < 15; i++ {
		h.Observe(100+i, d("0.5"))
	}

	assert.Equal(t, 10, h.Len())
	// Oldest points were evicted first
	assert.Equal(t, int64(105), h.points[0].Timestamp)
	assert.Equal(t, int64(114), h.points[9].Timestamp)
}

func TestIsDumpDetectsSharpDrop(t *testing.T) {
	h := NewPriceHistory()
	h.Observe(100, d("0.50"))
	h.Observe(103, d("0.40"))

	// 20% drop over 3 seconds
	assert.True(t, h.IsDump(103, d("0.15")))
}

func TestIsDumpNeedsTwoPoints(t *testing.T) {
	h := NewPriceHistory()
	assert.False(t, h.IsDump(100, d("0.15")))

	h.Observe(100, d("0.50"))
	assert.False(t, h.IsDump(100, d("0.15")))
}

func TestIsDumpRejectsSlowDrift(t *testing.T) {
	h := NewPriceHistory()
	h.Observe(100, d("0.50"))
	h.Observe(106, d("0.40"))

	// Same 20% drop but spread over 6 seconds
	assert.False(t, h.IsDump(106, d("0.15")))
}

func TestIsDumpRejectsSameSecondMove(t *testing.T) {
	h := NewPriceHistory()
	h.Observe(100, d("0.50"))
	h.Observe(100, d("0.40"))

	assert.False(t, h.IsDump(100, d("0.15")))
}

func TestIsDumpIgnoresRises(t *testing.T) {
	h := NewPriceHistory()
	h.Observe(100, d("0.40"))
	h.Observe(103, d("0.50"))

	assert.False(t, h.IsDump(103, d("0.15")))
}

func TestIsDumpBelowThreshold(t *testing.T) {
	h := NewPriceHistory()
	h.Observe(100, d("0.50"))
	h.Observe(103, d("0.45"))

	// 10% drop, threshold 15%
	assert.False(t, h.IsDump(103, d("0.15")))
	// Exactly at threshold qualifies
	assert.True(t, h.IsDump(103, d("0.10")))
}

func TestIsDumpFallsBackToEarliestReference(t *testing.T) {
	h := NewPriceHistory()
	// All points younger than the 3s reference age
	h.Observe(100, d("0.50"))
	h.Observe(101, d("0.48"))
	h.Observe(102, d("0.40"))

	// Earliest point becomes the reference: 20% over 2 seconds
	assert.True(t, h.IsDump(102, d("0.15")))
}

func TestIsDumpPicksLatestQualifyingReference(t *testing.T) {
	h := NewPriceHistory()
	h.Observe(90, d("0.80"))
	h.Observe(100, d("0.50"))
	h.Observe(103, d("0.45"))

	// Reference is the point at 100 (latest one >= 3s old), not 90:
	// the drop from 0.50 is only 10%
	assert.False(t, h.IsDump(103, d("0.15")))
	assert.True(t, h.IsDump(103, d("0.10")))
}
