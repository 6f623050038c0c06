package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/history"
	"github.com/web3guy0/hedgebot/ledger"
	"github.com/web3guy0/hedgebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DUMP-AND-HEDGE TRADER - Per-market-period trading state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow per 15-minute period:
//   WatchingForDump  -> buy the side whose ask just dumped (leg 1)
//   WaitingForHedge  -> buy the opposite side once leg1 + ask <= sum target,
//                       or force it at the stop-loss deadline
//   CycleComplete    -> hold both legs until settlement
//
// ═══════════════════════════════════════════════════════════════════════════════

// OrderExecutor places market orders with the trading gateway
type OrderExecutor interface {
	PlaceMarketOrder(tokenID string, size decimal.Decimal, side string) (types.OrderResult, error)
}

// TradeNotifier receives fill notifications (Telegram)
type TradeNotifier interface {
	NotifyTrade(action, market string, side types.Side, price, shares decimal.Decimal)
}

// LegStore persists executed legs for later analysis
type LegStore interface {
	LogLeg(conditionID string, period int64, market string, side types.Side, tokenID string, shares, price decimal.Decimal, simulated bool) error
}

// Config are the dump-hedge strategy parameters
type Config struct {
	Shares             decimal.Decimal // shares per leg
	SumTarget          decimal.Decimal // hedge when leg1 entry + opposite ask <= target
	MoveThreshold      decimal.Decimal // fractional ask drop that counts as a dump
	WindowMinutes      int             // watch window after period open
	StopLossMaxWaitMin int             // force the hedge after this many minutes
	Simulation         bool
}

// MarketCycleState is the per-market mutable state for the current
// period. It is replaced wholesale when a new period timestamp shows up
// for the market.
type MarketCycleState struct {
	ConditionID     string
	PeriodTimestamp int64
	UpTokenID       string
	DownTokenID     string
	UpHistory       *PriceHistory
	DownHistory     *PriceHistory
	Phase           Phase
	SettlementDone  bool
}

// Trader runs the dump-and-hedge state machine across all tracked
// markets. Snapshots for one market arrive serialized from its poller;
// the mutex covers the poller/settlement overlap.
type Trader struct {
	mu  sync.Mutex
	cfg Config

	executor OrderExecutor
	book     *ledger.Ledger
	hist     *history.Log
	notifier TradeNotifier
	store    LegStore

	states      map[string]*MarketCycleState // by condition id
	lastWaitLog map[string]int64             // throttle for waiting status lines

	now func() time.Time
}

// NewTrader creates the trader
func NewTrader(cfg Config, executor OrderExecutor, book *ledger.Ledger, hist *history.Log) *Trader {
	return &Trader{
		cfg:         cfg,
		executor:    executor,
		book:        book,
		hist:        hist,
		states:      make(map[string]*MarketCycleState),
		lastWaitLog: make(map[string]int64),
		now:         time.Now,
	}
}

// SetTradeNotifier sets the fill notification sink
func (t *Trader) SetTradeNotifier(n TradeNotifier) { t.notifier = n }

// SetLegStore sets the executed-leg persistence sink
func (t *Trader) SetLegStore(s LegStore) { t.store = s }

// ProcessSnapshot advances the owning market-period's state machine by
// one tick. Order placement failures are returned to the caller; state
// is left untouched so the same condition is re-evaluated next tick.
func (t *Trader) ProcessSnapshot(snap types.MarketSnapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().Unix()
	state := t.resetStateIfNeeded(snap, now)

	if snap.Up != nil {
		state.UpTokenID = snap.Up.TokenID
	}
	if snap.Down != nil {
		state.DownTokenID = snap.Down.TokenID
	}

	upAsk, downAsk := decimal.Zero, decimal.Zero
	if snap.Up != nil {
		upAsk = snap.Up.Ask
	}
	if snap.Down != nil {
		downAsk = snap.Down.Ask
	}
	if !upAsk.IsPositive() || !downAsk.IsPositive() {
		return nil
	}

	state.UpHistory.Observe(now, upAsk)
	state.DownHistory.Observe(now, downAsk)

	switch phase := state.Phase.(type) {
	case WatchingForDump:
		return t.tickWatching(snap, state, phase, now, upAsk, downAsk)
	case WaitingForHedge:
		return t.tickWaiting(snap, state, phase, now, upAsk, downAsk)
	case CycleComplete:
		// Terminal until settlement retires the period
	}
	return nil
}

// resetStateIfNeeded creates or replaces the market's cycle state when
// a new period timestamp is observed
func (t *Trader) resetStateIfNeeded(snap types.MarketSnapshot, now int64) *MarketCycleState {
	state, ok := t.states[snap.ConditionID]
	if ok && state.PeriodTimestamp == snap.PeriodTimestamp {
		return state
	}

	windowEnd := snap.PeriodTimestamp + int64(t.cfg.WindowMinutes)*60
	var phase Phase
	if now <= windowEnd {
		t.hist.Printf("%s: New round started (period: %d) | Watch window: %d minutes (active)",
			snap.MarketName, snap.PeriodTimestamp, t.cfg.WindowMinutes)
		phase = WatchingForDump{RoundStart: snap.PeriodTimestamp, WindowEnd: windowEnd}
	} else {
		t.hist.Printf("%s: New round detected (period: %d) | Watch window already passed",
			snap.MarketName, snap.PeriodTimestamp)
		phase = CycleComplete{}
	}

	state = &MarketCycleState{
		ConditionID:     snap.ConditionID,
		PeriodTimestamp: snap.PeriodTimestamp,
		UpHistory:       NewPriceHistory(),
		DownHistory:     NewPriceHistory(),
		Phase:           phase,
	}
	if snap.Up != nil {
		state.UpTokenID = snap.Up.TokenID
	}
	if snap.Down != nil {
		state.DownTokenID = snap.Down.TokenID
	}
	t.states[snap.ConditionID] = state
	return state
}

// tickWatching looks for a dump on either side. Up is checked before
// Down; when both qualify in the same tick only Up is acted on.
func (t *Trader) tickWatching(snap types.MarketSnapshot, state *MarketCycleState, phase WatchingForDump, now int64, upAsk, downAsk decimal.Decimal) error {
	if now > phase.WindowEnd {
		// Window expired with no dump; the period stays here until
		// rollover replaces it.
		return nil
	}

	if state.UpHistory.IsDump(now, t.cfg.MoveThreshold) && state.UpTokenID != "" {
		t.hist.Printf("%s: UP dump detected! Buying %s shares @ $%s",
			snap.MarketName, t.cfg.Shares.String(), upAsk.StringFixed(4))
		return t.enterLeg1(snap, state, types.SideUp, state.UpTokenID, upAsk, now)
	}

	if state.DownHistory.IsDump(now, t.cfg.MoveThreshold) && state.DownTokenID != "" {
		t.hist.Printf("%s: DOWN dump detected! Buying %s shares @ $%s",
			snap.MarketName, t.cfg.Shares.String(), downAsk.StringFixed(4))
		return t.enterLeg1(snap, state, types.SideDown, state.DownTokenID, downAsk, now)
	}

	return nil
}

func (t *Trader) enterLeg1(snap types.MarketSnapshot, state *MarketCycleState, side types.Side, tokenID string, ask decimal.Decimal, now int64) error {
	if err := t.executeBuy(snap.MarketName, side, tokenID, t.cfg.Shares, ask); err != nil {
		return err
	}
	t.recordLeg(snap, side, tokenID, t.cfg.Shares, ask)
	if t.notifier != nil {
		t.notifier.NotifyTrade("BUY", snap.MarketName, side, ask, t.cfg.Shares)
	}

	state.Phase = WaitingForHedge{
		Leg1Side:       side,
		Leg1TokenID:    tokenID,
		Leg1EntryPrice: ask,
		Leg1Shares:     t.cfg.Shares,
		Leg1Timestamp:  now,
	}
	return nil
}

// tickWaiting hedges the open leg: at the stop-loss deadline it buys
// the opposite side regardless of price, otherwise only once the
// combined cost drops under the sum target.
func (t *Trader) tickWaiting(snap types.MarketSnapshot, state *MarketCycleState, phase WaitingForHedge, now int64, upAsk, downAsk decimal.Decimal) error {
	elapsedMin := (now - phase.Leg1Timestamp) / 60

	oppSide := phase.Leg1Side.Opposite()
	oppAsk := downAsk
	oppTokenID := state.DownTokenID
	if phase.Leg1Side == types.SideDown {
		oppAsk = upAsk
		oppTokenID = state.UpTokenID
	}
	totalPrice := phase.Leg1EntryPrice.Add(oppAsk)

	if elapsedMin >= int64(t.cfg.StopLossMaxWaitMin) {
		if oppTokenID == "" {
			return nil
		}
		t.hist.Printf("%s: STOP LOSS TRIGGERED (Hedge not met after %d minutes) | Buying opposite to hedge",
			snap.MarketName, t.cfg.StopLossMaxWaitMin)
		return t.completeCycle(snap, state, phase, oppSide, oppTokenID, oppAsk, phase.Leg1Shares, true)
	}

	if totalPrice.LessThanOrEqual(t.cfg.SumTarget) && oppTokenID != "" {
		t.hist.Printf("%s: Hedge condition met! Leg1: $%s + Opposite: $%s = $%s <= %s",
			snap.MarketName, phase.Leg1EntryPrice.StringFixed(4), oppAsk.StringFixed(4),
			totalPrice.StringFixed(4), t.cfg.SumTarget.String())
		t.hist.Printf("%s: Buying %s %s shares @ $%s (Leg 2)",
			snap.MarketName, t.cfg.Shares.String(), oppSide, oppAsk.StringFixed(4))
		return t.completeCycle(snap, state, phase, oppSide, oppTokenID, oppAsk, t.cfg.Shares, false)
	}

	// Throttled status line: once per 10 whole seconds, not per tick
	if now%10 == 0 && t.lastWaitLog[snap.ConditionID] != now {
		t.lastWaitLog[snap.ConditionID] = now
		t.hist.Printf("%s: Waiting for hedge... Leg1: $%s + %s: $%s = $%s (need <= %s) | Wait: %dm",
			snap.MarketName, phase.Leg1EntryPrice.StringFixed(4), oppSide, oppAsk.StringFixed(4),
			totalPrice.StringFixed(4), t.cfg.SumTarget.String(), elapsedMin)
	}
	return nil
}

// completeCycle executes the second leg (normal hedge or stop-loss) and
// locks in the expected profit. Stop-loss uses leg-1's share count so
// both legs stay balanced.
func (t *Trader) completeCycle(snap types.MarketSnapshot, state *MarketCycleState, phase WaitingForHedge, oppSide types.Side, oppTokenID string, oppAsk, shares decimal.Decimal, stopLoss bool) error {
	if stopLoss {
		t.hist.Printf("%s: STOP LOSS HEDGE - Buying %s %s shares @ $%s",
			snap.MarketName, shares.String(), oppSide, oppAsk.StringFixed(4))
	}

	if err := t.executeBuy(snap.MarketName, oppSide, oppTokenID, shares, oppAsk); err != nil {
		return err
	}
	t.recordLeg(snap, oppSide, oppTokenID, shares, oppAsk)

	totalCost := phase.Leg1EntryPrice.Mul(phase.Leg1Shares).Add(oppAsk.Mul(shares))
	expectedProfit := shares.Sub(totalCost) // winning share pays out 1
	totalPrice := phase.Leg1EntryPrice.Add(oppAsk)

	profitPercent := decimal.Zero
	if totalPrice.IsPositive() {
		profitPercent = decimal.NewFromInt(1).Sub(totalPrice).Div(totalPrice).Mul(decimal.NewFromInt(100))
	}

	if stopLoss {
		t.hist.Printf("%s: Stop loss hedge complete! Expected profit: $%s (%s%%)",
			snap.MarketName, expectedProfit.StringFixed(2), profitPercent.StringFixed(2))
	} else {
		t.hist.Printf("%s: Cycle complete! Locked in ~%s%% profit | Expected profit: $%s",
			snap.MarketName, profitPercent.StringFixed(2), expectedProfit.StringFixed(2))
	}

	key := types.CycleKey{ConditionID: state.ConditionID, PeriodTimestamp: state.PeriodTimestamp}
	t.book.SetExpectedProfit(key, expectedProfit)

	state.Phase = CycleComplete{
		Leg1Side:       phase.Leg1Side,
		Leg1EntryPrice: phase.Leg1EntryPrice,
		Leg1Shares:     phase.Leg1Shares,
		Leg2Side:       oppSide,
		Leg2EntryPrice: oppAsk,
		Leg2Shares:     shares,
		TotalCost:      totalCost,
	}

	if t.notifier != nil {
		action := "HEDGE"
		if stopLoss {
			action = "STOP_LOSS_HEDGE"
		}
		t.notifier.NotifyTrade(action, snap.MarketName, oppSide, oppAsk, shares)
	}
	return nil
}

// executeBuy places a buy with the gateway, or short-circuits in
// simulation mode
func (t *Trader) executeBuy(marketName string, side types.Side, tokenID string, shares, price decimal.Decimal) error {
	t.hist.Printf("%s BUY %s %s shares @ $%s", marketName, side, shares.String(), price.StringFixed(4))

	if t.cfg.Simulation {
		t.hist.Printf("SIMULATION: Order executed")
		return nil
	}

	size := shares.Round(4)
	result, err := t.executor.PlaceMarketOrder(tokenID, size, "BUY")
	if err != nil {
		log.Warn().Err(err).Str("market", marketName).Str("side", string(side)).Msg("Failed to place order")
		return fmt.Errorf("place %s buy: %w", side, err)
	}
	t.hist.Printf("REAL: Order placed (id: %s)", result.OrderID)
	return nil
}

func (t *Trader) recordLeg(snap types.MarketSnapshot, side types.Side, tokenID string, shares, price decimal.Decimal) {
	t.book.RecordTrade(snap.ConditionID, snap.PeriodTimestamp, side, tokenID, shares, price)

	if t.store != nil {
		if err := t.store.LogLeg(snap.ConditionID, snap.PeriodTimestamp, snap.MarketName, side, tokenID, shares, price, t.cfg.Simulation); err != nil {
			log.Warn().Err(err).Msg("Failed to persist leg")
		}
	}
}

// ResetPeriod clears all per-market cycle state for a fresh period.
// Ledger trades survive; settlement still owns them.
func (t *Trader) ResetPeriod() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]*MarketCycleState)
	t.lastWaitLog = make(map[string]int64)
	t.hist.Printf("Dump-Hedge Trader: Period reset")
}

// SettlementChecked reports whether the market's current cycle state
// was already reconciled
func (t *Trader) SettlementChecked(conditionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[conditionID]
	return ok && state.SettlementDone
}

// MarkSettlementChecked flags the market's current cycle state as
// reconciled
func (t *Trader) MarkSettlementChecked(conditionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.states[conditionID]; ok {
		state.SettlementDone = true
	}
}

// ActiveCycles counts markets whose current period is still trading
func (t *Trader) ActiveCycles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, state := range t.states {
		if _, done := state.Phase.(CycleComplete); !done {
			n++
		}
	}
	return n
}

// PhaseFor returns the current phase for a market, for inspection
func (t *Trader) PhaseFor(conditionID string) (Phase, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.states[conditionID]; ok {
		return state.Phase, true
	}
	return nil, false
}
