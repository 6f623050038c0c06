package feeds

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/history"
	"github.com/web3guy0/hedgebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET POLLER
// ═══════════════════════════════════════════════════════════════════════════════
//
// One poller per asset. Each cycle fetches best bid/ask for both outcome
// tokens, assembles a snapshot and hands it to the trader. The hand-off
// is serialized: the next fetch starts only after the trader returns.
//
// ═══════════════════════════════════════════════════════════════════════════════

const tokenRefreshSeconds = 900

// CLOBClient is the REST surface the poller needs
type CLOBClient interface {
	GetMarket(conditionID string) (*types.MarketDetails, error)
	GetPrice(tokenID, side string) (decimal.Decimal, error)
}

// SnapshotHandler consumes assembled market snapshots
type SnapshotHandler interface {
	ProcessSnapshot(snap types.MarketSnapshot) error
}

// Poller polls one asset's current up/down market
type Poller struct {
	mu sync.Mutex

	name  string // display name, e.g. "BTC"
	asset string // slug asset, e.g. "btc"

	market      *types.Market
	upTokenID   string
	downTokenID string
	lastRefresh int64

	clob    CLOBClient
	feed    *PriceFeed // optional live price cache
	handler SnapshotHandler
	hist    *history.Log

	interval time.Duration
	stopCh   chan struct{}
}

// NewPoller creates a poller for one asset's market
func NewPoller(asset string, market *types.Market, clob CLOBClient, feed *PriceFeed, handler SnapshotHandler, hist *history.Log, interval time.Duration) *Poller {
	return &Poller{
		name:     strings.ToUpper(asset),
		asset:    asset,
		market:   market,
		clob:     clob,
		feed:     feed,
		handler:  handler,
		hist:     hist,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Run polls until Stop is called. Each iteration completes the trader
// hand-off before the next fetch starts.
func (p *Poller) Run() {
	log.Info().
		Str("asset", p.name).
		Dur("interval", p.interval).
		Msg("📊 Poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// Stop halts the poll loop
func (p *Poller) Stop() {
	close(p.stopCh)
}

// UpdateMarket swaps the tracked market after a period rollover and
// forces a token refresh on the next poll
func (p *Poller) UpdateMarket(market *types.Market) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.market = market
	p.upTokenID = ""
	p.downTokenID = ""
	p.lastRefresh = 0
}

func (p *Poller) poll() {
	p.mu.Lock()
	market := p.market
	p.mu.Unlock()

	if market == nil {
		return
	}

	if err := p.refreshTokens(market); err != nil {
		log.Warn().Err(err).Str("asset", p.name).Msg("Token refresh failed")
		return
	}

	p.mu.Lock()
	upID, downID := p.upTokenID, p.downTokenID
	p.mu.Unlock()

	if upID == "" || downID == "" {
		return
	}

	up, down := p.fetchTokenPrice(upID), p.fetchTokenPrice(downID)

	now := time.Now()
	period := PeriodFromSlug(market.Slug)
	remaining := period + DurationFromSlug(market.Slug) - now.Unix()

	snap := types.MarketSnapshot{
		MarketName:      p.name,
		ConditionID:     market.ConditionID,
		Up:              up,
		Down:            down,
		PeriodTimestamp: period,
		TimeRemaining:   remaining,
		FetchedAt:       now,
	}

	if up != nil && down != nil {
		p.hist.Printf("%s Up Token BID:$%.2f ASK:$%.2f Down Token BID:$%.2f ASK:$%.2f remaining time:%dm %ds market_timestamp:%d",
			p.name,
			up.Bid.InexactFloat64(), up.Ask.InexactFloat64(),
			down.Bid.InexactFloat64(), down.Ask.InexactFloat64(),
			remaining/60, remaining%60, period)
	}

	if err := p.handler.ProcessSnapshot(snap); err != nil {
		log.Warn().Err(err).Str("asset", p.name).Msg("Snapshot processing failed")
	}
}

// refreshTokens resolves the outcome token ids from CLOB market
// details, at most once per market period
func (p *Poller) refreshTokens(market *types.Market) error {
	p.mu.Lock()
	fresh := p.upTokenID != "" && p.downTokenID != "" &&
		time.Now().Unix()-p.lastRefresh < tokenRefreshSeconds
	p.mu.Unlock()

	if fresh {
		return nil
	}

	details, err := p.clob.GetMarket(market.ConditionID)
	if err != nil {
		return fmt.Errorf("fetch market details: %w", err)
	}

	var upID, downID string
	for _, tok := range details.Tokens {
		outcome := strings.ToUpper(tok.Outcome)
		switch {
		case strings.Contains(outcome, "UP") || outcome == "1":
			upID = tok.TokenID
		case strings.Contains(outcome, "DOWN") || outcome == "0":
			downID = tok.TokenID
		}
	}
	if upID == "" || downID == "" {
		return fmt.Errorf("up/down tokens not found for %s", market.Slug)
	}

	p.mu.Lock()
	p.upTokenID = upID
	p.downTokenID = downID
	p.lastRefresh = time.Now().Unix()
	p.mu.Unlock()

	if p.feed != nil {
		if err := p.feed.Subscribe([]string{upID, downID}); err != nil {
			log.Warn().Err(err).Str("asset", p.name).Msg("Feed subscribe failed")
		}
	}

	log.Info().
		Str("asset", p.name).
		Str("slug", market.Slug).
		Msg("🔄 Outcome tokens refreshed")
	return nil
}

// fetchTokenPrice returns the best bid/ask for one token: the live feed
// when it has a book, otherwise two concurrent REST quotes. Returns nil
// when neither side could be fetched.
func (p *Poller) fetchTokenPrice(tokenID string) *types.TokenPrice {
	if p.feed != nil {
		if price, ok := p.feed.BestPrice(tokenID); ok {
			return &price
		}
	}

	var (
		wg       sync.WaitGroup
		bid, ask decimal.Decimal
		bidErr   error
		askErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		bid, bidErr = p.clob.GetPrice(tokenID, "BUY")
	}()
	go func() {
		defer wg.Done()
		ask, askErr = p.clob.GetPrice(tokenID, "SELL")
	}()
	wg.Wait()

	if bidErr != nil {
		log.Debug().Err(bidErr).Str("asset", p.name).Msg("Bid fetch failed")
	}
	if askErr != nil {
		log.Debug().Err(askErr).Str("asset", p.name).Msg("Ask fetch failed")
	}
	if bidErr != nil && askErr != nil {
		return nil
	}

	return &types.TokenPrice{TokenID: tokenID, Bid: bid, Ask: ask}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SLUG HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

// SlugFor builds the event slug for an asset and aligned period start
func SlugFor(asset string, periodTimestamp int64) string {
	return fmt.Sprintf("%s-updown-15m-%d", asset, periodTimestamp)
}

// PeriodFromSlug extracts the period start timestamp from a slug like
// btc-updown-15m-1717027200. Returns 0 when the slug has no trailing
// timestamp.
func PeriodFromSlug(slug string) int64 {
	idx := strings.LastIndex(slug, "-")
	if idx < 0 {
		return 0
	}
	ts, err := strconv.ParseInt(slug[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// DurationFromSlug returns the period length in seconds encoded in the
// slug. Unknown formats default to 15 minutes.
func DurationFromSlug(slug string) int64 {
	switch {
	case strings.Contains(slug, "-1h-"):
		return 3600
	case strings.Contains(slug, "-15m-"):
		return 900
	default:
		return 900
	}
}
