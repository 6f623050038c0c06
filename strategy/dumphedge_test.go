package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/hedgebot/internal/history"
	"github.com/web3guy0/hedgebot/ledger"
	"github.com/web3guy0/hedgebot/types"
)

const (
	testCondition = "0xabc"
	testPeriod    = int64(1_700_000_100) // not a multiple of 10, keeps wait-log throttling out of the way
	upToken       = "token-up"
	downToken     = "token-down"
)

type placedOrder struct {
	TokenID string
	Size    decimal.Decimal
	Side    string
}

type fakeExecutor struct {
	orders []placedOrder
	err    error
}

func (f *fakeExecutor) PlaceMarketOrder(tokenID string, size decimal.Decimal, side string) (types.OrderResult, error) {
	if f.err != nil {
		return types.OrderResult{}, f.err
	}
	f.orders = append(f.orders, placedOrder{TokenID: tokenID, Size: size, Side: side})
	return types.OrderResult{OrderID: "order-1", Status: "matched"}, nil
}

func testConfig() Config {
	return Config{
		Shares:             decimal.NewFromInt(10),
		SumTarget:          d("0.95"),
		MoveThreshold:      d("0.15"),
		WindowMinutes:      2,
		StopLossMaxWaitMin: 5,
	}
}

func newTestTrader(t *testing.T) (*Trader, *fakeExecutor, *ledger.Ledger) {
	t.Helper()
	executor := &fakeExecutor{}
	book := ledger.New()
	trader := NewTrader(testConfig(), executor, book, history.Nop())
	return trader, executor, book
}

func snapshotAt(tr *Trader, offset int64, upAsk, downAsk string) types.MarketSnapshot {
	now := testPeriod + offset
	tr.now = func() time.Time { return time.Unix(now, 0) }
	return types.MarketSnapshot{
		MarketName:      "BTC",
		ConditionID:     testCondition,
		Up:              &types.TokenPrice{TokenID: upToken, Bid: d(upAsk), Ask: d(upAsk)},
		Down:            &types.TokenPrice{TokenID: downToken, Bid: d(downAsk), Ask: d(downAsk)},
		PeriodTimestamp: testPeriod,
		TimeRemaining:   900 - offset,
		FetchedAt:       time.Unix(now, 0),
	}
}

// driveToLeg1 walks the trader through a 25% Up dump (0.60 -> 0.45)
func driveToLeg1(t *testing.T, tr *Trader) {
	t.Helper()
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 10, "0.60", "0.40")))
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 13, "0.45", "0.40")))
}

func TestDumpTriggersFirstLeg(t *testing.T) {
	tr, executor, _ := newTestTrader(t)

	driveToLeg1(t, tr)

	require.Len(t, executor.orders, 1)
	assert.Equal(t, upToken, executor.orders[0].TokenID)
	assert.Equal(t, "BUY", executor.orders[0].Side)
	assert.True(t, executor.orders[0].Size.Equal(decimal.NewFromInt(10)))

	phase, ok := tr.PhaseFor(testCondition)
	require.True(t, ok)
	waiting, ok := phase.(WaitingForHedge)
	require.True(t, ok)
	assert.Equal(t, types.SideUp, waiting.Leg1Side)
	assert.True(t, waiting.Leg1EntryPrice.Equal(d("0.45")))
}

func TestNoDumpNoTrade(t *testing.T) {
	tr, executor, _ := newTestTrader(t)

	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 10, "0.60", "0.40")))
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 13, "0.55", "0.42")))

	assert.Empty(t, executor.orders)
	phase, _ := tr.PhaseFor(testCondition)
	assert.IsType(t, WatchingForDump{}, phase)
}

func TestUpCheckedBeforeDown(t *testing.T) {
	tr, executor, _ := newTestTrader(t)

	// Both sides dump in the same tick
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 10, "0.60", "0.60")))
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 13, "0.45", "0.45")))

	require.Len(t, executor.orders, 1)
	assert.Equal(t, upToken, executor.orders[0].TokenID)
}

func TestHedgeWhenSumTargetMet(t *testing.T) {
	tr, executor, book := newTestTrader(t)

	driveToLeg1(t, tr)

	// Down ask 0.55: 0.45 + 0.55 = 1.00 > 0.95, no hedge yet
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 21, "0.45", "0.55")))
	require.Len(t, executor.orders, 1)

	// Down ask 0.50: 0.45 + 0.50 = 0.95 <= 0.95
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 27, "0.45", "0.50")))
	require.Len(t, executor.orders, 2)
	assert.Equal(t, downToken, executor.orders[1].TokenID)

	phase, _ := tr.PhaseFor(testCondition)
	complete, ok := phase.(CycleComplete)
	require.True(t, ok)
	assert.True(t, complete.TotalCost.Equal(d("9.5")))

	// expected profit: 10 shares paying $1 minus $9.50 total cost
	trade, ok := book.Get(types.CycleKey{ConditionID: testCondition, PeriodTimestamp: testPeriod})
	require.True(t, ok)
	assert.True(t, trade.ExpectedProfit.Equal(d("0.5")), "got %s", trade.ExpectedProfit)
	assert.True(t, book.TotalProfit().Equal(d("0.5")))
}

func TestStopLossForcesHedge(t *testing.T) {
	tr, executor, book := newTestTrader(t)

	driveToLeg1(t, tr)

	// Five minutes later the hedge is still unaffordable
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 13+301, "0.45", "0.80")))

	require.Len(t, executor.orders, 2)
	assert.Equal(t, downToken, executor.orders[1].TokenID)
	// Stop-loss hedges the leg-1 share count
	assert.True(t, executor.orders[1].Size.Equal(decimal.NewFromInt(10)))

	phase, _ := tr.PhaseFor(testCondition)
	assert.IsType(t, CycleComplete{}, phase)

	trade, ok := book.Get(types.CycleKey{ConditionID: testCondition, PeriodTimestamp: testPeriod})
	require.True(t, ok)
	// 10 - (4.50 + 8.00): a guaranteed loss, but bounded
	assert.True(t, trade.ExpectedProfit.Equal(d("-2.5")), "got %s", trade.ExpectedProfit)
}

func TestWindowExpiryEndsTheCycle(t *testing.T) {
	tr, executor, _ := newTestTrader(t)

	// First snapshot arrives after the 2-minute watch window
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 200, "0.60", "0.40")))
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 203, "0.45", "0.40")))

	assert.Empty(t, executor.orders)
	phase, _ := tr.PhaseFor(testCondition)
	assert.IsType(t, CycleComplete{}, phase)
}

func TestDumpInsideWindowButActedOnlyWithinWindow(t *testing.T) {
	tr, executor, _ := newTestTrader(t)

	// Window is open at first sight, but the dump completes after it ends
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 118, "0.60", "0.40")))
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 121, "0.45", "0.40")))

	assert.Empty(t, executor.orders)
	phase, _ := tr.PhaseFor(testCondition)
	assert.IsType(t, WatchingForDump{}, phase)
}

func TestOrderFailureKeepsPhase(t *testing.T) {
	tr, executor, book := newTestTrader(t)
	executor.err = errors.New("insufficient balance")

	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 10, "0.60", "0.40")))
	err := tr.ProcessSnapshot(snapshotAt(tr, 13, "0.45", "0.40"))
	require.Error(t, err)

	// Phase did not advance, nothing was booked
	phase, _ := tr.PhaseFor(testCondition)
	assert.IsType(t, WatchingForDump{}, phase)
	_, ok := book.Get(types.CycleKey{ConditionID: testCondition, PeriodTimestamp: testPeriod})
	assert.False(t, ok)

	// Once the gateway recovers the same dump can still fire
	executor.err = nil
	require.NoError(t, tr.ProcessSnapshot(snapshotAt(tr, 14, "0.44", "0.40")))
	assert.Len(t, executor.orders, 1)
}

func TestMissingAskSkipsTick(t *testing.T) {
	tr, executor, _ := newTestTrader(t)

	snap := snapshotAt(tr, 10, "0.60", "0.40")
	snap.Down = nil
	require.NoError(t, tr.ProcessSnapshot(snap))

	snap = snapshotAt(tr, 13, "0.45", "0.40")
	require.NoError(t, tr.ProcessSnapshot(snap))

	// The first tick never entered the history, so only one Up point exists
	assert.Empty(t, executor.orders)
}

func TestNewPeriodReplacesState(t *testing.T) {
	tr, executor, _ := newTestTrader(t)

	driveToLeg1(t, tr)

	// Next period shows up on the same condition id
	next := snapshotAt(tr, 910, "0.50", "0.50")
	next.PeriodTimestamp = testPeriod + 900
	require.NoError(t, tr.ProcessSnapshot(next))

	phase, ok := tr.PhaseFor(testCondition)
	require.True(t, ok)
	assert.IsType(t, WatchingForDump{}, phase)
	assert.Len(t, executor.orders, 1)
}

func TestResetPeriodClearsCycles(t *testing.T) {
	tr, _, book := newTestTrader(t)

	driveToLeg1(t, tr)
	assert.Equal(t, 1, tr.ActiveCycles())

	tr.ResetPeriod()
	assert.Equal(t, 0, tr.ActiveCycles())
	_, ok := tr.PhaseFor(testCondition)
	assert.False(t, ok)

	// Ledger entries survive the reset for settlement
	_, ok = book.Get(types.CycleKey{ConditionID: testCondition, PeriodTimestamp: testPeriod})
	assert.True(t, ok)
}

func TestSettlementCheckFlags(t *testing.T) {
	tr, _, _ := newTestTrader(t)

	driveToLeg1(t, tr)

	assert.False(t, tr.SettlementChecked(testCondition))
	tr.MarkSettlementChecked(testCondition)
	assert.True(t, tr.SettlementChecked(testCondition))
}
