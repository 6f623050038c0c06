// Package settlement reconciles closed market-periods against their
// on-chain resolution: redeem winners, correct profit accounting,
// retire completed cycles.
package settlement

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/history"
	"github.com/web3guy0/hedgebot/ledger"
	"github.com/web3guy0/hedgebot/types"
)

const periodSeconds = 900

// dustShares below this are rounding noise and carry no economics
var dustShares = decimal.NewFromFloat(0.001)

// MarketFetcher fetches current market details from the CLOB
type MarketFetcher interface {
	GetMarket(conditionID string) (*types.MarketDetails, error)
}

// Redeemer issues the on-chain redemption for a winning position
type Redeemer interface {
	Redeem(conditionID, tokenID string, outcome types.Side) (types.RedeemResult, error)
}

// CycleStates is the trader's view of which market cycles were already
// reconciled
type CycleStates interface {
	SettlementChecked(conditionID string) bool
	MarkSettlementChecked(conditionID string)
}

// SettlementNotifier receives settlement outcome notifications
type SettlementNotifier interface {
	NotifySettlement(conditionID string, actualProfit, totalProfit decimal.Decimal)
}

// SettlementStore persists settlement outcomes
type SettlementStore interface {
	LogSettlement(conditionID string, period int64, winningSide string, expected, actual decimal.Decimal) error
}

// Reconciler sweeps the ledger for market-periods past their end and
// settles them once the market reports closed.
type Reconciler struct {
	markets    MarketFetcher
	redeemer   Redeemer // used in live mode only
	book       *ledger.Ledger
	states     CycleStates
	hist       *history.Log
	notifier   SettlementNotifier
	store      SettlementStore
	simulation bool
	interval   time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	now func() time.Time
}

// NewReconciler creates the settlement sweeper
func NewReconciler(markets MarketFetcher, redeemer Redeemer, book *ledger.Ledger, states CycleStates, hist *history.Log, simulation bool, interval time.Duration) *Reconciler {
	return &Reconciler{
		markets:    markets,
		redeemer:   redeemer,
		book:       book,
		states:     states,
		hist:       hist,
		simulation: simulation,
		interval:   interval,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// SetNotifier sets the settlement notification sink
func (r *Reconciler) SetNotifier(n SettlementNotifier) { r.notifier = n }

// SetStore sets the settlement persistence sink
func (r *Reconciler) SetStore(s SettlementStore) { r.store = s }

// Start runs the sweep loop on its own timer
func (r *Reconciler) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.sweepLoop()
	log.Info().Dur("interval", r.interval).Msg("Settlement sweep started")
}

// Stop halts the sweep loop
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	close(r.stopCh)
}

func (r *Reconciler) sweepLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Sweep()

			total := r.book.TotalProfit()
			period := r.book.PeriodProfit()
			if !total.IsZero() || !period.IsZero() {
				r.hist.Printf("Current Profit - Period: $%s | Total: $%s",
					period.StringFixed(2), total.StringFixed(2))
			}
		}
	}
}

// Sweep runs one reconciliation pass over every tracked trade whose
// period has ended. Markets that have not resolved yet are simply
// retried on the next sweep.
func (r *Reconciler) Sweep() {
	trades := r.book.Trades()
	if len(trades) == 0 {
		return
	}

	now := r.now().Unix()

	for _, trade := range trades {
		periodEnd := trade.PeriodTimestamp + periodSeconds
		if now < periodEnd {
			continue
		}
		if r.states.SettlementChecked(trade.ConditionID) {
			continue
		}

		sinceClose := now - periodEnd
		r.hist.Printf("Market %s closed %dm %ds ago | Checking resolution...",
			shortID(trade.ConditionID), sinceClose/60, sinceClose%60)

		details, err := r.markets.GetMarket(trade.ConditionID)
		if err != nil {
			log.Warn().Err(err).Str("condition", shortID(trade.ConditionID)).Msg("Failed to fetch market")
			continue
		}
		if !details.Closed {
			r.hist.Printf("Market %s not yet closed, will retry", shortID(trade.ConditionID))
			continue
		}
		r.hist.Printf("Market %s is closed and resolved", shortID(trade.ConditionID))

		r.settle(trade, details)
	}
}

// settle credits/debits both sides of one trade against the resolved
// winner, corrects the running totals and retires the trade.
func (r *Reconciler) settle(trade ledger.CycleTrade, details *types.MarketDetails) {
	upWinner := trade.UpTokenID != "" && isWinner(details.Tokens, trade.UpTokenID)
	downWinner := trade.DownTokenID != "" && isWinner(details.Tokens, trade.DownTokenID)

	actual := decimal.Zero
	winningSide := ""

	if trade.UpShares.GreaterThan(dustShares) {
		actual = actual.Add(r.settleSide(trade.ConditionID, types.SideUp, trade.UpTokenID, trade.UpShares, trade.UpAvgPrice, upWinner))
		if upWinner {
			winningSide = string(types.SideUp)
		}
	}
	if trade.DownShares.GreaterThan(dustShares) {
		actual = actual.Add(r.settleSide(trade.ConditionID, types.SideDown, trade.DownTokenID, trade.DownShares, trade.DownAvgPrice, downWinner))
		if downWinner {
			winningSide = string(types.SideDown)
		}
	}

	key := trade.Key()
	r.book.ApplyActualProfit(key, actual)

	total := r.book.TotalProfit()
	r.hist.Printf("Period Profit: $%s | Total Profit: $%s",
		r.book.PeriodProfit().StringFixed(2), total.StringFixed(2))

	if r.store != nil {
		if err := r.store.LogSettlement(trade.ConditionID, trade.PeriodTimestamp, winningSide, trade.ExpectedProfit, actual); err != nil {
			log.Warn().Err(err).Msg("Failed to persist settlement")
		}
	}
	if r.notifier != nil {
		r.notifier.NotifySettlement(trade.ConditionID, actual, total)
	}

	r.states.MarkSettlementChecked(trade.ConditionID)
	r.book.Remove(key)
	r.hist.Printf("Trade removed from tracking")
}

// settleSide returns the realized profit contribution of one side.
// Redemption failures are logged and swallowed: the position was
// economically won and stays credited; the on-chain claim can be
// retried by hand.
func (r *Reconciler) settleSide(conditionID string, side types.Side, tokenID string, shares, avgPrice decimal.Decimal, winner bool) decimal.Decimal {
	cost := avgPrice.Mul(shares)

	if !winner {
		r.hist.Printf("Market Closed - %s Lost: %s @ $%s", side, shares.StringFixed(2), avgPrice.StringFixed(4))
		return cost.Neg()
	}

	if !r.simulation && r.redeemer != nil && tokenID != "" {
		if result, err := r.redeemer.Redeem(conditionID, tokenID, side); err != nil {
			log.Warn().Err(err).Str("side", string(side)).Msg("Failed to redeem token")
		} else {
			r.hist.Printf("Redeemed %s position | Tx: %s", side, result.TxHash)
		}
	}

	profit := shares.Sub(cost) // winning share pays out 1
	r.hist.Printf("Market Closed - %s Winner: %s @ $%s | Profit: $%s",
		side, shares.StringFixed(2), avgPrice.StringFixed(4), profit.StringFixed(2))
	return profit
}

func isWinner(tokens []types.MarketToken, tokenID string) bool {
	for _, tok := range tokens {
		if tok.TokenID == tokenID && tok.Winner {
			return true
		}
	}
	return false
}

func shortID(conditionID string) string {
	if len(conditionID) > 8 {
		return conditionID[:8]
	}
	return conditionID
}
