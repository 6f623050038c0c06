package feeds

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func snapshotLevels() ([]WSPriceLevel, []WSPriceLevel) {
	bids := []WSPriceLevel{
		{Price: "0.40", Size: "100"},
		{Price: "0.44", Size: "50"},
		{Price: "0.42", Size: "10"},
	}
	asks := []WSPriceLevel{
		{Price: "0.50", Size: "20"},
		{Price: "0.46", Size: "5"},
	}
	return bids, asks
}

func TestApplySnapshotSortsBook(t *testing.T) {
	ob := NewOrderbook("0xabc", "token-up")
	bids, asks := snapshotLevels()
	ob.ApplySnapshot(bids, asks)

	assert.True(t, ob.BestBid().Equal(decimal.RequireFromString("0.44")))
	assert.True(t, ob.BestAsk().Equal(decimal.RequireFromString("0.46")))
}

func TestApplySnapshotDropsEmptyAndBadLevels(t *testing.T) {
	ob := NewOrderbook("0xabc", "token-up")
	ob.ApplySnapshot(
		[]WSPriceLevel{{Price: "0.40", Size: "0"}, {Price: "bogus", Size: "10"}},
		nil,
	)

	assert.True(t, ob.BestBid().IsZero())
	assert.True(t, ob.BestAsk().IsZero())
}

func TestApplyChangeUpdatesLevels(t *testing.T) {
	ob := NewOrderbook("0xabc", "token-up")
	bids, asks := snapshotLevels()
	ob.ApplySnapshot(bids, asks)

	// New better ask
	ob.ApplyChange("SELL", decimal.RequireFromString("0.45"), decimal.RequireFromString("10"))
	assert.True(t, ob.BestAsk().Equal(decimal.RequireFromString("0.45")))

	// Size 0 removes it again
	ob.ApplyChange("SELL", decimal.RequireFromString("0.45"), decimal.Zero)
	assert.True(t, ob.BestAsk().Equal(decimal.RequireFromString("0.46")))

	// Best bid resized in place
	ob.ApplyChange("BUY", decimal.RequireFromString("0.44"), decimal.RequireFromString("75"))
	assert.True(t, ob.BestBid().Equal(decimal.RequireFromString("0.44")))
	assert.True(t, ob.Bids[0].Size.Equal(decimal.RequireFromString("75")))
}

func TestBestPriceRequiresAsk(t *testing.T) {
	f := NewPriceFeed()

	_, ok := f.BestPrice("token-up")
	assert.False(t, ok)

	ob := f.book("0xabc", "token-up")
	bids, asks := snapshotLevels()
	ob.ApplySnapshot(bids, asks)

	price, ok := f.BestPrice("token-up")
	assert.True(t, ok)
	assert.True(t, price.Ask.Equal(decimal.RequireFromString("0.46")))
	assert.True(t, price.Bid.Equal(decimal.RequireFromString("0.44")))
}
