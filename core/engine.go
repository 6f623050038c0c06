package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/exec"
	"github.com/web3guy0/hedgebot/feeds"
	"github.com/web3guy0/hedgebot/internal/config"
	"github.com/web3guy0/hedgebot/internal/history"
	"github.com/web3guy0/hedgebot/ledger"
	"github.com/web3guy0/hedgebot/settlement"
	"github.com/web3guy0/hedgebot/strategy"
	"github.com/web3guy0/hedgebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Central orchestrator
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Poller → Trader (dump detection, hedge cycle) → Ledger
//   Reconciler → Redemption → Ledger correction
//   Rollover watcher → rediscovery → period reset
//
// ═══════════════════════════════════════════════════════════════════════════════

// supportedAssets are the up/down series the bot knows how to discover
var supportedAssets = map[string]bool{
	"btc": true,
	"eth": true,
	"sol": true,
	"xrp": true,
}

// discoveryLookback is how many prior periods discovery walks back when
// the aligned slug has no market yet
const discoveryLookback = 3

type Engine struct {
	mu sync.Mutex

	cfg        *config.Config
	gamma      *exec.GammaClient
	clob       *exec.Client
	feed       *feeds.PriceFeed
	trader     *strategy.Trader
	book       *ledger.Ledger
	reconciler *settlement.Reconciler
	hist       *history.Log

	pollers map[string]*feeds.Poller // asset -> poller

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewEngine wires the orchestrator
func NewEngine(cfg *config.Config, gamma *exec.GammaClient, clob *exec.Client, feed *feeds.PriceFeed, trader *strategy.Trader, book *ledger.Ledger, reconciler *settlement.Reconciler, hist *history.Log) *Engine {
	return &Engine{
		cfg:        cfg,
		gamma:      gamma,
		clob:       clob,
		feed:       feed,
		trader:     trader,
		book:       book,
		reconciler: reconciler,
		hist:       hist,
		pollers:    make(map[string]*feeds.Poller),
		stopCh:     make(chan struct{}),
	}
}

// Start discovers the current market for every configured asset and
// launches pollers, the rollover watcher and the settlement sweep.
// Assets whose market cannot be found at startup are fatal.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	if e.feed != nil {
		e.feed.Start()
	}

	for _, asset := range e.cfg.Markets {
		market, err := e.DiscoverMarket(asset)
		if err != nil {
			return fmt.Errorf("discover %s: %w", asset, err)
		}

		poller := feeds.NewPoller(asset, market, e.clob, e.feed, e.trader, e.hist, e.cfg.CheckInterval)
		e.mu.Lock()
		e.pollers[asset] = poller
		e.mu.Unlock()

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			poller.Run()
		}()
	}

	e.reconciler.Start()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.rolloverLoop()
	}()

	log.Info().
		Strs("assets", e.cfg.Markets).
		Msg("🏁 Engine started")
	return nil
}

// Stop shuts down pollers, watcher, sweep and feed, and waits for the
// loops to drain
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	pollers := e.pollers
	e.mu.Unlock()

	close(e.stopCh)
	for _, p := range pollers {
		p.Stop()
	}
	e.reconciler.Stop()
	if e.feed != nil {
		e.feed.Stop()
	}

	e.wg.Wait()
	log.Info().Msg("Engine stopped")
}

// DiscoverMarket resolves the current up/down market for an asset: the
// slug for the aligned period start, then up to 3 prior periods when
// the current one is not listed yet.
func (e *Engine) DiscoverMarket(asset string) (*types.Market, error) {
	if !supportedAssets[asset] {
		return nil, fmt.Errorf("unsupported asset %q", asset)
	}

	now := time.Now().Unix()
	aligned := now - now%900

	var lastErr error
	for i := 0; i <= discoveryLookback; i++ {
		slug := feeds.SlugFor(asset, aligned-int64(i)*900)
		market, err := e.gamma.GetMarketBySlug(slug)
		if err != nil {
			lastErr = err
			continue
		}
		if market.Closed {
			lastErr = fmt.Errorf("market %s already closed", slug)
			continue
		}

		log.Info().
			Str("asset", asset).
			Str("slug", market.Slug).
			Str("condition", market.ConditionID).
			Msg("🔍 Market discovered")
		return market, nil
	}

	return nil, fmt.Errorf("no open market for %s: %w", asset, lastErr)
}

// rolloverLoop sleeps to each period boundary, rediscovers every
// asset's market and resets per-period trader state
func (e *Engine) rolloverLoop() {
	for {
		now := time.Now().Unix()
		next := now - now%900 + 900

		// A couple of seconds of grace so the new market is listed
		wait := time.Duration(next-now+2) * time.Second

		select {
		case <-e.stopCh:
			return
		case <-time.After(wait):
		}

		e.rollover(next)
	}
}

// rollover swaps every poller to the new period's market. A discovery
// that still returns the previous period is retried after a short
// sleep; assets that stay unresolved keep their old market and are
// caught on the next boundary.
func (e *Engine) rollover(period int64) {
	e.hist.Printf("Period rollover: %d", period)

	for _, asset := range e.cfg.Markets {
		market := e.discoverForPeriod(asset, period)
		if market == nil {
			continue
		}

		e.mu.Lock()
		poller := e.pollers[asset]
		e.mu.Unlock()
		if poller != nil {
			poller.UpdateMarket(market)
		}
	}

	e.trader.ResetPeriod()
}

func (e *Engine) discoverForPeriod(asset string, period int64) *types.Market {
	for attempt := 0; attempt < 3; attempt++ {
		select {
		case <-e.stopCh:
			return nil
		default:
		}

		market, err := e.DiscoverMarket(asset)
		if err != nil {
			log.Warn().Err(err).Str("asset", asset).Msg("Rollover discovery failed")
			time.Sleep(10 * time.Second)
			continue
		}
		if feeds.PeriodFromSlug(market.Slug) < period {
			// Still the old period, give the listing a moment
			time.Sleep(5 * time.Second)
			continue
		}
		return market
	}

	log.Warn().Str("asset", asset).Msg("Rollover gave up, keeping previous market")
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATS (Telegram /status and /profit)
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) TotalProfit() decimal.Decimal  { return e.book.TotalProfit() }
func (e *Engine) PeriodProfit() decimal.Decimal { return e.book.PeriodProfit() }
func (e *Engine) ActiveCycles() int             { return e.trader.ActiveCycles() }

func (e *Engine) Mode() string {
	if e.cfg.Simulation {
		return "SIMULATION"
	}
	return "LIVE"
}
