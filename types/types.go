package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Side identifies one of the two outcomes of an up/down market
type Side string

const (
	SideUp   Side = "Up"
	SideDown Side = "Down"
)

// Opposite returns the other outcome
func (s Side) Opposite() Side {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// CycleKey identifies one market-period. Used as a map key so that
// condition id and period timestamp can never collide the way
// concatenated strings could.
type CycleKey struct {
	ConditionID     string
	PeriodTimestamp int64
}

// TokenPrice is the current best bid/ask for one outcome token
type TokenPrice struct {
	TokenID string
	Bid     decimal.Decimal
	Ask     decimal.Decimal
}

// MarketSnapshot is one poll of an up/down market, handed to the trader
type MarketSnapshot struct {
	MarketName      string
	ConditionID     string
	Up              *TokenPrice // nil when neither bid nor ask could be fetched
	Down            *TokenPrice
	PeriodTimestamp int64 // unix seconds, start of the settlement period
	TimeRemaining   int64 // seconds until the period ends
	FetchedAt       time.Time
}

// Market is a market discovered through the gamma API
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	Active      bool
	Closed      bool
}

// MarketToken is one resolved outcome token from CLOB market details
type MarketToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Price   string `json:"price"`
	Winner  bool   `json:"winner"`
}

// MarketDetails is the CLOB view of a market, including resolution state
type MarketDetails struct {
	ConditionID     string        `json:"condition_id"`
	Question        string        `json:"question"`
	MarketSlug      string        `json:"market_slug"`
	Active          bool          `json:"active"`
	Closed          bool          `json:"closed"`
	EndDateISO      string        `json:"end_date_iso"`
	MinimumTick     string        `json:"minimum_tick_size"`
	NegRisk         bool          `json:"neg_risk"`
	AcceptingOrders bool          `json:"accepting_orders"`
	Tokens          []MarketToken `json:"tokens"`
}

// OrderResult is the gateway's answer to a placed order
type OrderResult struct {
	OrderID string
	Status  string
}

// RedeemResult is the outcome of an on-chain redemption
type RedeemResult struct {
	Success bool
	TxHash  string
}
