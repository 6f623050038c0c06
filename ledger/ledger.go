// Package ledger tracks executed hedge-cycle legs and profit totals.
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/types"
)

// CycleTrade accumulates the executed legs of one market-period.
// Each side carries a running share count and weighted-average entry
// price; ExpectedProfit is what the trader locked in when the cycle
// completed (zero when no hedge cycle ever completed).
type CycleTrade struct {
	ConditionID     string
	PeriodTimestamp int64
	UpTokenID       string
	DownTokenID     string
	UpShares        decimal.Decimal
	DownShares      decimal.Decimal
	UpAvgPrice      decimal.Decimal
	DownAvgPrice    decimal.Decimal
	ExpectedProfit  decimal.Decimal
}

// Key returns the composite map key for this trade
func (t *CycleTrade) Key() types.CycleKey {
	return types.CycleKey{ConditionID: t.ConditionID, PeriodTimestamp: t.PeriodTimestamp}
}

// Ledger is the in-memory position book. A trade enters on the first
// executed leg and leaves only when settlement reconciliation is done
// with it.
type Ledger struct {
	mu     sync.Mutex
	trades map[types.CycleKey]*CycleTrade

	totalProfit  decimal.Decimal
	periodProfit decimal.Decimal
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{trades: make(map[types.CycleKey]*CycleTrade)}
}

// RecordTrade folds an executed fill into the market-period's running
// position. Repeated calls accumulate; history is never replaced.
func (l *Ledger) RecordTrade(conditionID string, period int64, side types.Side, tokenID string, shares, price decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := types.CycleKey{ConditionID: conditionID, PeriodTimestamp: period}
	trade, ok := l.trades[key]
	if !ok {
		trade = &CycleTrade{ConditionID: conditionID, PeriodTimestamp: period}
		l.trades[key] = trade
	}

	switch side {
	case types.SideUp:
		trade.UpShares, trade.UpAvgPrice = fold(trade.UpShares, trade.UpAvgPrice, shares, price)
		trade.UpTokenID = tokenID
	case types.SideDown:
		trade.DownShares, trade.DownAvgPrice = fold(trade.DownShares, trade.DownAvgPrice, shares, price)
		trade.DownTokenID = tokenID
	}
}

// fold recomputes the weighted-average entry price:
// newAvg = (oldShares*oldAvg + shares*price) / (oldShares+shares).
// The zero-share case collapses to the fill price, so no division by
// zero can occur.
func fold(oldShares, oldAvg, shares, price decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	oldCost := oldShares.Mul(oldAvg)
	total := oldShares.Add(shares)
	if !total.IsPositive() {
		return total, price
	}
	return total, oldCost.Add(shares.Mul(price)).Div(total)
}

// SetExpectedProfit marks a completed cycle's locked-in profit and
// credits it to the running totals.
func (l *Ledger) SetExpectedProfit(key types.CycleKey, expected decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if trade, ok := l.trades[key]; ok {
		trade.ExpectedProfit = expected
	}
	l.periodProfit = l.periodProfit.Add(expected)
	l.totalProfit = l.totalProfit.Add(expected)
}

// ApplyActualProfit corrects the totals once settlement is known. When
// an expected profit was recorded it is replaced by the actual figure;
// otherwise the actual profit is simply added (covers cycles that never
// completed a hedge).
func (l *Ledger) ApplyActualProfit(key types.CycleKey, actual decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expected := decimal.Zero
	if trade, ok := l.trades[key]; ok {
		expected = trade.ExpectedProfit
	}

	if !expected.IsZero() {
		l.totalProfit = l.totalProfit.Sub(expected).Add(actual)
		l.periodProfit = l.periodProfit.Sub(expected).Add(actual)
	} else {
		l.totalProfit = l.totalProfit.Add(actual)
		l.periodProfit = l.periodProfit.Add(actual)
	}
}

// Remove drops a trade after settlement reconciliation processed it
func (l *Ledger) Remove(key types.CycleKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.trades, key)
}

// Get returns a copy of one trade
func (l *Ledger) Get(key types.CycleKey) (CycleTrade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if trade, ok := l.trades[key]; ok {
		return *trade, true
	}
	return CycleTrade{}, false
}

// Trades returns a copy of all tracked trades, for the settlement sweep
func (l *Ledger) Trades() []CycleTrade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]CycleTrade, 0, len(l.trades))
	for _, trade := range l.trades {
		out = append(out, *trade)
	}
	return out
}

// TotalProfit returns the running all-time profit
func (l *Ledger) TotalProfit() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalProfit
}

// PeriodProfit returns the running profit for the current period
func (l *Ledger) PeriodProfit() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.periodProfit
}
