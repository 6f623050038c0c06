package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POLYMARKET WEBSOCKET FEED
// ═══════════════════════════════════════════════════════════════════════════════
//
// Maintains live best bid/ask per outcome token from the CLOB market
// channel. The poller prefers these prices and falls back to REST when
// a token has no book yet.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	PolymarketWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	reconnectDelay  = 5 * time.Second
	pingInterval    = 30 * time.Second
)

// PriceFeed manages the WebSocket connection and per-token books
type PriceFeed struct {
	mu sync.RWMutex

	wsURL     string
	conn      *websocket.Conn
	connected bool
	running   bool
	stopCh    chan struct{}

	// Subscriptions survive reconnects
	assetIDs map[string]bool

	orderbooks map[string]*Orderbook // token id -> book
}

// NewPriceFeed creates a feed instance
func NewPriceFeed() *PriceFeed {
	return &PriceFeed{
		wsURL:      PolymarketWSURL,
		stopCh:     make(chan struct{}),
		assetIDs:   make(map[string]bool),
		orderbooks: make(map[string]*Orderbook),
	}
}

// Start connects and begins processing
func (f *PriceFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Msg("📡 Price feed started")
}

// Stop closes the connection
func (f *PriceFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}

	f.running = false
	close(f.stopCh)

	if f.conn != nil {
		f.conn.Close()
	}

	log.Info().Msg("Price feed stopped")
}

// Subscribe adds outcome tokens to the market channel subscription.
// Subscriptions accumulate across period rollovers and are replayed
// after a reconnect.
func (f *PriceFeed) Subscribe(assetIDs []string) error {
	f.mu.Lock()
	for _, id := range assetIDs {
		f.assetIDs[id] = true
	}
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		return nil // sent on connect
	}
	return f.sendSubscribe(conn, assetIDs)
}

// BestPrice returns the live best bid/ask for a token. ok is false when
// no book snapshot has arrived yet.
func (f *PriceFeed) BestPrice(tokenID string) (types.TokenPrice, bool) {
	f.mu.RLock()
	ob := f.orderbooks[tokenID]
	f.mu.RUnlock()

	if ob == nil {
		return types.TokenPrice{}, false
	}

	bid, ask := ob.BestBid(), ob.BestAsk()
	if !ask.IsPositive() {
		return types.TokenPrice{}, false
	}
	return types.TokenPrice{TokenID: tokenID, Bid: bid, Ask: ask}, true
}

func (f *PriceFeed) sendSubscribe(conn *websocket.Conn, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	msg := map[string]interface{}{
		"type":       "market",
		"assets_ids": assetIDs,
	}
	return conn.WriteJSON(msg)
}

// connectionLoop maintains the WebSocket connection
func (f *PriceFeed) connectionLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		if err := f.connect(); err != nil {
			log.Error().Err(err).Msg("Connection failed, retrying...")
			time.Sleep(reconnectDelay)
			continue
		}

		f.readLoop()
		time.Sleep(reconnectDelay)
	}
}

// connect establishes the WebSocket connection and resubscribes
func (f *PriceFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	pending := make([]string, 0, len(f.assetIDs))
	for id := range f.assetIDs {
		pending = append(pending, id)
	}
	f.mu.Unlock()

	log.Info().Msg("🔌 WebSocket connected")

	if err := f.sendSubscribe(conn, pending); err != nil {
		log.Warn().Err(err).Msg("Resubscribe failed")
	}

	go f.pingLoop()

	return nil
}

// pingLoop sends periodic pings to keep the connection alive
func (f *PriceFeed) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			connected := f.connected
			f.mu.RUnlock()

			if connected && conn != nil {
				conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

// readLoop reads messages until the connection drops
func (f *PriceFeed) readLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Read error")
			f.mu.Lock()
			f.connected = false
			f.mu.Unlock()
			return
		}

		f.processMessage(message)
	}
}

// WSPriceLevel is a wire-format book level
type WSPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// WSMessage is one event on the market channel
type WSMessage struct {
	EventType string         `json:"event_type"`
	Market    string         `json:"market"`
	Asset     string         `json:"asset_id"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Changes   []struct {
		Price string `json:"price"`
		Side  string `json:"side"`
		Size  string `json:"size"`
	} `json:"changes"`
}

// processMessage handles incoming WebSocket payloads (the channel sends
// both single events and batches)
func (f *PriceFeed) processMessage(data []byte) {
	var msgs []WSMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		msgs = []WSMessage{msg}
	}

	for _, msg := range msgs {
		switch msg.EventType {
		case "book":
			f.handleBookSnapshot(msg)
		case "price_change":
			f.handlePriceChange(msg)
		}
	}
}

func (f *PriceFeed) book(market, asset string) *Orderbook {
	f.mu.Lock()
	defer f.mu.Unlock()

	ob, exists := f.orderbooks[asset]
	if !exists {
		ob = NewOrderbook(market, asset)
		f.orderbooks[asset] = ob
	}
	return ob
}

func (f *PriceFeed) handleBookSnapshot(msg WSMessage) {
	f.book(msg.Market, msg.Asset).ApplySnapshot(msg.Bids, msg.Asks)
}

func (f *PriceFeed) handlePriceChange(msg WSMessage) {
	ob := f.book(msg.Market, msg.Asset)
	for _, change := range msg.Changes {
		price, err1 := decimal.NewFromString(change.Price)
		size, err2 := decimal.NewFromString(change.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		ob.ApplyChange(change.Side, price, size)
	}
}
