package exec

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POLYMARKET CLOB CLIENT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Market details, best bid/ask quotes and market-order placement against
// the Polymarket CLOB API
//
// ═══════════════════════════════════════════════════════════════════════════════

// Side of a quote or order
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

type Client struct {
	baseURL       string
	privateKey    *ecdsa.PrivateKey
	address       string
	proxyWallet   string
	apiKey        string
	apiSecret     string
	passphrase    string
	signatureType int
	simulation    bool
	httpClient    *http.Client
}

// ClientConfig carries the credentials and mode for the CLOB client
type ClientConfig struct {
	BaseURL            string
	APIKey             string
	APISecret          string
	APIPassphrase      string
	WalletPrivateKey   string
	ProxyWalletAddress string
	SignatureType      int
	Simulation         bool
}

// NewClient creates the CLOB client. In simulation mode no credentials
// are required; live mode needs a private key to sign orders.
func NewClient(cfg ClientConfig) (*Client, error) {
	client := &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		apiSecret:     cfg.APISecret,
		passphrase:    cfg.APIPassphrase,
		proxyWallet:   cfg.ProxyWalletAddress,
		signatureType: cfg.SignatureType,
		simulation:    cfg.Simulation,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}

	if cfg.WalletPrivateKey != "" {
		pk, err := crypto.HexToECDSA(cfg.WalletPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		client.privateKey = pk
		client.address = crypto.PubkeyToAddress(pk.PublicKey).Hex()
	}

	mode := "LIVE"
	if cfg.Simulation {
		mode = "SIMULATION"
	}
	log.Info().
		Str("mode", mode).
		Str("address", client.address).
		Msg("🚀 CLOB client initialized")

	return client, nil
}

// GetMarket fetches market details (tokens, resolution state) by
// condition id
func (c *Client) GetMarket(conditionID string) (*types.MarketDetails, error) {
	resp, err := c.get("/markets/" + conditionID)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", conditionID, err)
	}

	var details types.MarketDetails
	if err := json.Unmarshal(resp, &details); err != nil {
		return nil, fmt.Errorf("parse market %s: %w", conditionID, err)
	}

	return &details, nil
}

// GetPrice fetches the best price for a token on the given book side.
// side "BUY" returns the best bid, "SELL" the best ask.
func (c *Client) GetPrice(tokenID, side string) (decimal.Decimal, error) {
	resp, err := c.get(fmt.Sprintf("/price?side=%s&token_id=%s", side, tokenID))
	if err != nil {
		return decimal.Zero, err
	}

	var result struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return decimal.Zero, fmt.Errorf("parse price: %w", err)
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", result.Price, err)
	}
	return price, nil
}

// PlaceMarketOrder crosses the book at the current best price. A BUY is
// priced off the resting asks (the sell side of the book), a SELL off
// the resting bids.
func (c *Client) PlaceMarketOrder(tokenID string, size decimal.Decimal, side string) (types.OrderResult, error) {
	if c.simulation {
		orderID := fmt.Sprintf("SIM_%d", time.Now().UnixNano())
		log.Info().
			Str("order_id", orderID).
			Str("token", shortToken(tokenID)).
			Str("side", side).
			Str("size", size.StringFixed(2)).
			Msg("📝 SIMULATION: Order would be placed")
		return types.OrderResult{OrderID: orderID, Status: "matched"}, nil
	}

	priceSide := SideBuy
	if side == SideBuy {
		priceSide = SideSell
	}
	price, err := c.GetPrice(tokenID, priceSide)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("fetch market price: %w", err)
	}
	if !price.IsPositive() {
		return types.OrderResult{}, fmt.Errorf("no liquidity for token %s", shortToken(tokenID))
	}

	order := map[string]interface{}{
		"tokenID":       tokenID,
		"price":         price.String(),
		"size":          size.String(),
		"side":          side,
		"maker":         c.proxyWallet,
		"expiration":    "0",
		"nonce":         fmt.Sprintf("%d", time.Now().UnixNano()),
		"feeRateBps":    "0",
		"signatureType": c.signatureType,
		"orderType":     "FOK",
	}

	signature, err := c.signOrder(order)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("signing failed: %w", err)
	}
	order["signature"] = signature

	resp, err := c.post("/order", order)
	if err != nil {
		return types.OrderResult{}, err
	}

	var result struct {
		OrderID string `json:"orderID"`
		Status  string `json:"status"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return types.OrderResult{}, fmt.Errorf("parse response: %w", err)
	}
	if result.Error != "" {
		return types.OrderResult{}, fmt.Errorf("API error: %s", result.Error)
	}

	log.Info().
		Str("order_id", result.OrderID).
		Str("status", result.Status).
		Str("price", price.StringFixed(4)).
		Msg("✅ Order placed")

	return types.OrderResult{OrderID: result.OrderID, Status: result.Status}, nil
}

// IsSimulation reports whether orders are simulated
func (c *Client) IsSimulation() bool {
	return c.simulation
}

// ═══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func (c *Client) get(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.doRequest(req)
}

func (c *Client) post(path string, body interface{}) ([]byte, error) {
	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addAuthHeaders(req)
	return c.doRequest(req)
}

func (c *Client) addAuthHeaders(req *http.Request) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	req.Header.Set("POLY_ADDRESS", c.address)
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)

	if c.apiSecret != "" {
		message := timestamp + req.Method + req.URL.Path
		req.Header.Set("POLY_SIGNATURE", c.hmacSign(message))
	}
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNING
// ═══════════════════════════════════════════════════════════════════════════════

func (c *Client) signOrder(order map[string]interface{}) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("private key not loaded")
	}

	orderBytes, _ := json.Marshal(order)
	hash := crypto.Keccak256(orderBytes)

	sig, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return "", err
	}

	return hexutil.Encode(sig), nil
}

func (c *Client) hmacSign(message string) string {
	hash := crypto.Keccak256([]byte(message + c.apiSecret))
	return hexutil.Encode(hash)
}

func shortToken(tokenID string) string {
	if len(tokenID) > 16 {
		return tokenID[:16] + "..."
	}
	return tokenID
}
