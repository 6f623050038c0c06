package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/types"
)

// Phase is the trading phase of one market-period. Exactly one variant
// is active at a time and transitions run one way only:
// WatchingForDump -> WaitingForHedge -> CycleComplete.
type Phase interface {
	Kind() string
}

// WatchingForDump is the initial phase while the post-open watch window
// is active. A period discovered after its window lapsed skips straight
// to an empty CycleComplete.
type WatchingForDump struct {
	RoundStart int64
	WindowEnd  int64
}

func (WatchingForDump) Kind() string { return "WatchingForDump" }

// WaitingForHedge holds the filled first leg while the opposite side is
// watched for a cheap enough hedge
type WaitingForHedge struct {
	Leg1Side       types.Side
	Leg1TokenID    string
	Leg1EntryPrice decimal.Decimal
	Leg1Shares     decimal.Decimal
	Leg1Timestamp  int64
}

func (WaitingForHedge) Kind() string { return "WaitingForHedge" }

// CycleComplete is terminal for the period; both legs are filled (or
// the period produced no trade at all)
type CycleComplete struct {
	Leg1Side       types.Side
	Leg1EntryPrice decimal.Decimal
	Leg1Shares     decimal.Decimal
	Leg2Side       types.Side
	Leg2EntryPrice decimal.Decimal
	Leg2Shares     decimal.Decimal
	TotalCost      decimal.Decimal
}

func (CycleComplete) Kind() string { return "CycleComplete" }
