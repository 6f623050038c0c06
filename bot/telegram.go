package bot

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/storage"
	"github.com/web3guy0/hedgebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT - Trade notifications & control
// ═══════════════════════════════════════════════════════════════════════════════
//
//   💰 Leg / hedge / stop-loss notifications
//   🏁 Settlement results
//   🎛️ /status /profit /trades /ping
//
// ═══════════════════════════════════════════════════════════════════════════════

// StatsProvider supplies the numbers for /status and /profit
type StatsProvider interface {
	TotalProfit() decimal.Decimal
	PeriodProfit() decimal.Decimal
	ActiveCycles() int
	Mode() string
}

// TelegramBot manages the Telegram interface. A nil bot is valid and
// silently drops every call, so wiring stays unconditional.
type TelegramBot struct {
	mu      sync.Mutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	stats StatsProvider
	store *storage.Database
}

// NewTelegramBot creates the bot. An empty token disables it: the
// returned nil bot is safe to call.
func NewTelegramBot(token string, chatID int64, stats StatsProvider, store *storage.Database) (*TelegramBot, error) {
	if token == "" || chatID == 0 {
		log.Info().Msg("Telegram disabled")
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &TelegramBot{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
		stats:  stats,
		store:  store,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")

	return bot, nil
}

// Start begins listening for commands
func (b *TelegramBot) Start() {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

// Stop stops the bot
func (b *TelegramBot) Stop() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	b.running = false
	close(b.stopCh)
	log.Info().Msg("Telegram bot stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// NotifyTrade sends an executed-leg alert
func (b *TelegramBot) NotifyTrade(action, market string, side types.Side, price, shares decimal.Decimal) {
	if b == nil {
		return
	}

	var emoji string
	switch action {
	case "BUY":
		emoji = "✅"
	case "HEDGE":
		emoji = "💰"
	case "STOP_LOSS_HEDGE":
		emoji = "🛑"
	default:
		emoji = "📌"
	}

	msg := fmt.Sprintf(`%s *%s*

📊 %s %s
💵 Price: *%s¢*
📦 Shares: *%s*`,
		emoji, action,
		market, side,
		price.Mul(decimal.NewFromInt(100)).StringFixed(1),
		shares.StringFixed(2),
	)

	b.sendMarkdown(msg)
}

// NotifySettlement sends the resolved outcome of a market-period
func (b *TelegramBot) NotifySettlement(conditionID string, actualProfit, totalProfit decimal.Decimal) {
	if b == nil {
		return
	}

	emoji := "📈"
	sign := "+"
	if actualProfit.IsNegative() {
		emoji = "📉"
		sign = ""
	}

	msg := fmt.Sprintf(`%s *MARKET SETTLED*

🔑 %s
💵 Result: *%s$%s*
💰 Total: *$%s*`,
		emoji,
		shortCondition(conditionID),
		sign, actualProfit.StringFixed(2),
		totalProfit.StringFixed(2),
	)

	b.sendMarkdown(msg)
}

// NotifyStartup announces the configured strategy
func (b *TelegramBot) NotifyStartup(mode string, assets []string, shares, sumTarget, threshold decimal.Decimal) {
	if b == nil {
		return
	}

	msg := fmt.Sprintf(`🚀 *HEDGEBOT STARTED*
━━━━━━━━━━━━━━━━━━━━

📊 Mode: *%s*
🪙 Markets: *%s*
📦 Shares: *%s*
🎯 Sum target: *%s*
📉 Dump threshold: *%s%%*

Use /help for commands`,
		mode,
		strings.ToUpper(strings.Join(assets, ", ")),
		shares.StringFixed(0),
		sumTarget.StringFixed(2),
		threshold.Mul(decimal.NewFromInt(100)).StringFixed(0),
	)

	b.sendMarkdown(msg)
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLING
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			// Only respond to the authorized chat
			if update.Message.Chat.ID != b.chatID {
				continue
			}

			b.handleCommand(update.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	switch strings.ToLower(msg.Command()) {
	case "start", "help":
		b.cmdHelp()
	case "status":
		b.cmdStatus()
	case "profit":
		b.cmdProfit()
	case "trades":
		b.cmdTrades()
	case "ping":
		b.send("🏓 Pong!")
	default:
		b.send("❓ Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp() {
	b.sendMarkdown(`🤖 *HEDGEBOT COMMANDS*
━━━━━━━━━━━━━━━━━━━━

📊 /status — Bot status
💵 /profit — Running profit
📜 /trades — Last 10 legs
🏓 /ping — Test connection`)
}

func (b *TelegramBot) cmdStatus() {
	if b.stats == nil {
		b.send("No stats available")
		return
	}

	b.sendMarkdown(fmt.Sprintf(`📊 *STATUS*

Mode: *%s*
Active cycles: *%d*
Period profit: *$%s*`,
		b.stats.Mode(),
		b.stats.ActiveCycles(),
		b.stats.PeriodProfit().StringFixed(2),
	))
}

func (b *TelegramBot) cmdProfit() {
	if b.stats == nil {
		b.send("No stats available")
		return
	}

	b.sendMarkdown(fmt.Sprintf(`💵 *PROFIT*

Period: *$%s*
Total: *$%s*`,
		b.stats.PeriodProfit().StringFixed(2),
		b.stats.TotalProfit().StringFixed(2),
	))
}

func (b *TelegramBot) cmdTrades() {
	legs, err := b.store.RecentLegs(10)
	if err != nil {
		b.send("⚠️ Failed to load trades")
		return
	}
	if len(legs) == 0 {
		b.send("No trades yet")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 *RECENT LEGS*\n")
	for _, leg := range legs {
		sb.WriteString(fmt.Sprintf("\n%s %s %s @ $%s",
			leg.Market, leg.Side, leg.Shares.StringFixed(2), leg.Price.StringFixed(4)))
	}
	b.sendMarkdown(sb.String())
}

// ═══════════════════════════════════════════════════════════════════════════════
// SENDING
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) send(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}

func (b *TelegramBot) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}

func shortCondition(conditionID string) string {
	if len(conditionID) > 10 {
		return conditionID[:10] + "…"
	}
	return conditionID
}
