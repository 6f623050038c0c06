package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/hedgebot/bot"
	"github.com/web3guy0/hedgebot/core"
	"github.com/web3guy0/hedgebot/exec"
	"github.com/web3guy0/hedgebot/feeds"
	"github.com/web3guy0/hedgebot/internal/config"
	"github.com/web3guy0/hedgebot/internal/history"
	"github.com/web3guy0/hedgebot/ledger"
	"github.com/web3guy0/hedgebot/settlement"
	"github.com/web3guy0/hedgebot/storage"
	"github.com/web3guy0/hedgebot/strategy"
)

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msg("              HEDGEBOT - DUMP & HEDGE EDITION")
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// INITIALIZE COMPONENTS
	// ═══════════════════════════════════════════════════════════════════════════════

	// 1. History log (append-only trade journal, mirrored to stderr)
	hist, err := history.Open(cfg.HistoryLogPath)
	if err != nil {
		log.Warn().Err(err).Msg("History log unavailable, stderr only")
		hist = history.Nop()
	}
	defer hist.Close()

	// 2. Storage (leg / settlement history)
	dbPath := cfg.DatabaseURL
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	db, err := storage.New(dbPath)
	if err != nil {
		log.Warn().Err(err).Msg("Database connection failed, continuing without persistence")
		db = nil
	} else {
		log.Info().Msg("✅ Storage layer initialized")
	}

	// 3. CLOB client
	clob, err := exec.NewClient(exec.ClientConfig{
		BaseURL:            cfg.CLOBAPIURL,
		APIKey:             cfg.CLOBApiKey,
		APISecret:          cfg.CLOBApiSecret,
		APIPassphrase:      cfg.CLOBPassphrase,
		WalletPrivateKey:   cfg.WalletPrivateKey,
		ProxyWalletAddress: cfg.ProxyWallet,
		SignatureType:      cfg.SignatureType,
		Simulation:         cfg.Simulation,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize CLOB client")
	}

	// 4. Gamma discovery client
	gamma := exec.NewGammaClient(cfg.GammaAPIURL)

	// 5. Live price feed
	feed := feeds.NewPriceFeed()
	log.Info().Msg("✅ Price feed initialized")

	// 6. Ledger + trader
	book := ledger.New()
	trader := strategy.NewTrader(strategy.Config{
		Shares:             cfg.Shares,
		SumTarget:          cfg.SumTarget,
		MoveThreshold:      cfg.MoveThreshold,
		WindowMinutes:      cfg.WindowMinutes,
		StopLossMaxWaitMin: cfg.StopLossMaxWaitMin,
		Simulation:         cfg.Simulation,
	}, clob, book, hist)
	trader.SetLegStore(db)
	log.Info().Msg("✅ Trading layer initialized")

	// 7. On-chain redemption (live mode only)
	var redeemer settlement.Redeemer
	if !cfg.Simulation {
		r, err := exec.NewRedeemer(cfg.PolygonRPCURL, cfg.WalletPrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize redeemer")
		}
		redeemer = r
	}

	// 8. Settlement sweep
	reconciler := settlement.NewReconciler(clob, redeemer, book, trader, hist, cfg.Simulation, cfg.SettlementInterval)
	reconciler.SetStore(db)

	// 9. Orchestrator
	engine := core.NewEngine(cfg, gamma, clob, feed, trader, book, reconciler, hist)

	// 10. Telegram
	tg, err := bot.NewTelegramBot(cfg.TelegramToken, cfg.TelegramChatID, engine, db)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram unavailable, continuing without notifications")
	}
	if tg != nil {
		trader.SetTradeNotifier(tg)
		reconciler.SetNotifier(tg)
		tg.Start()
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// START
	// ═══════════════════════════════════════════════════════════════════════════════

	log.Info().
		Strs("markets", cfg.Markets).
		Str("shares", cfg.Shares.String()).
		Str("sum_target", cfg.SumTarget.String()).
		Str("move_threshold", cfg.MoveThreshold.String()).
		Int("window_min", cfg.WindowMinutes).
		Int("stop_loss_wait_min", cfg.StopLossMaxWaitMin).
		Str("mode", engine.Mode()).
		Msg("Strategy parameters")

	if err := engine.Start(); err != nil {
		log.Fatal().Err(err).Msg("Engine start failed")
	}

	tg.NotifyStartup(engine.Mode(), cfg.Markets, cfg.Shares, cfg.SumTarget, cfg.MoveThreshold)

	// ═══════════════════════════════════════════════════════════════════════════════
	// SHUTDOWN
	// ═══════════════════════════════════════════════════════════════════════════════

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info().Str("signal", sig.String()).Msg("Shutting down...")
	engine.Stop()
	tg.Stop()
	hist.Printf("Final profit: $%s", book.TotalProfit().StringFixed(2))
}
