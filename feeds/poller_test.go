package feeds

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/hedgebot/internal/history"
	"github.com/web3guy0/hedgebot/types"
)

type fakeCLOB struct {
	details    *types.MarketDetails
	detailsErr error
	prices     map[string]decimal.Decimal // "tokenID/side" -> price
	priceErr   error
	getMarkets int
}

func (f *fakeCLOB) GetMarket(conditionID string) (*types.MarketDetails, error) {
	f.getMarkets++
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details, nil
}

func (f *fakeCLOB) GetPrice(tokenID, side string) (decimal.Decimal, error) {
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	return f.prices[tokenID+"/"+side], nil
}

type captureHandler struct {
	snaps []types.MarketSnapshot
}

func (c *captureHandler) ProcessSnapshot(snap types.MarketSnapshot) error {
	c.snaps = append(c.snaps, snap)
	return nil
}

func testMarket() *types.Market {
	return &types.Market{
		ConditionID: "0xabc",
		Slug:        "btc-updown-15m-1700000000",
		Active:      true,
	}
}

func testCLOB() *fakeCLOB {
	return &fakeCLOB{
		details: &types.MarketDetails{
			ConditionID: "0xabc",
			Tokens: []types.MarketToken{
				{TokenID: "token-up", Outcome: "Up"},
				{TokenID: "token-down", Outcome: "Down"},
			},
		},
		prices: map[string]decimal.Decimal{
			"token-up/BUY":    decimal.RequireFromString("0.44"),
			"token-up/SELL":   decimal.RequireFromString("0.46"),
			"token-down/BUY":  decimal.RequireFromString("0.53"),
			"token-down/SELL": decimal.RequireFromString("0.55"),
		},
	}
}

func TestPollAssemblesSnapshot(t *testing.T) {
	clob := testCLOB()
	handler := &captureHandler{}
	p := NewPoller("btc", testMarket(), clob, nil, handler, history.Nop(), time.Second)

	p.poll()

	require.Len(t, handler.snaps, 1)
	snap := handler.snaps[0]
	assert.Equal(t, "BTC", snap.MarketName)
	assert.Equal(t, "0xabc", snap.ConditionID)
	assert.Equal(t, int64(1700000000), snap.PeriodTimestamp)
	require.NotNil(t, snap.Up)
	require.NotNil(t, snap.Down)
	assert.True(t, snap.Up.Ask.Equal(decimal.RequireFromString("0.46")))
	assert.True(t, snap.Down.Bid.Equal(decimal.RequireFromString("0.53")))
}

func TestPollRefreshesTokensOncePerPeriod(t *testing.T) {
	clob := testCLOB()
	handler := &captureHandler{}
	p := NewPoller("btc", testMarket(), clob, nil, handler, history.Nop(), time.Second)

	p.poll()
	p.poll()
	p.poll()

	assert.Equal(t, 1, clob.getMarkets)
	assert.Len(t, handler.snaps, 3)
}

func TestUpdateMarketForcesRefresh(t *testing.T) {
	clob := testCLOB()
	handler := &captureHandler{}
	p := NewPoller("btc", testMarket(), clob, nil, handler, history.Nop(), time.Second)

	p.poll()
	next := testMarket()
	next.Slug = "btc-updown-15m-1700000900"
	p.UpdateMarket(next)
	p.poll()

	assert.Equal(t, 2, clob.getMarkets)
	require.Len(t, handler.snaps, 2)
	assert.Equal(t, int64(1700000900), handler.snaps[1].PeriodTimestamp)
}

func TestPollSkipsWhenDetailsUnavailable(t *testing.T) {
	clob := testCLOB()
	clob.detailsErr = errors.New("clob down")
	handler := &captureHandler{}
	p := NewPoller("btc", testMarket(), clob, nil, handler, history.Nop(), time.Second)

	p.poll()

	assert.Empty(t, handler.snaps)
}

func TestPollHandlesNumericOutcomes(t *testing.T) {
	clob := testCLOB()
	clob.details.Tokens = []types.MarketToken{
		{TokenID: "token-up", Outcome: "1"},
		{TokenID: "token-down", Outcome: "0"},
	}
	handler := &captureHandler{}
	p := NewPoller("btc", testMarket(), clob, nil, handler, history.Nop(), time.Second)

	p.poll()

	require.Len(t, handler.snaps, 1)
	assert.Equal(t, "token-up", handler.snaps[0].Up.TokenID)
	assert.Equal(t, "token-down", handler.snaps[0].Down.TokenID)
}

func TestPollNilTokenPriceOnFetchFailure(t *testing.T) {
	clob := testCLOB()
	clob.priceErr = errors.New("timeout")
	handler := &captureHandler{}
	p := NewPoller("btc", testMarket(), clob, nil, handler, history.Nop(), time.Second)

	p.poll()

	require.Len(t, handler.snaps, 1)
	assert.Nil(t, handler.snaps[0].Up)
	assert.Nil(t, handler.snaps[0].Down)
}

func TestSlugFor(t *testing.T) {
	assert.Equal(t, "btc-updown-15m-1700000000", SlugFor("btc", 1700000000))
	assert.Equal(t, "eth-updown-15m-900", SlugFor("eth", 900))
}

func TestPeriodFromSlug(t *testing.T) {
	assert.Equal(t, int64(1700000000), PeriodFromSlug("btc-updown-15m-1700000000"))
	assert.Equal(t, int64(0), PeriodFromSlug("no-trailing-timestamp"))
	assert.Equal(t, int64(0), PeriodFromSlug("nodashes"))
}

func TestDurationFromSlug(t *testing.T) {
	assert.Equal(t, int64(900), DurationFromSlug("btc-updown-15m-1700000000"))
	assert.Equal(t, int64(3600), DurationFromSlug("btc-updown-1h-1700000000"))
	assert.Equal(t, int64(900), DurationFromSlug("btc-weird-series"))
}
