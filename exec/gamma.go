package exec

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/web3guy0/hedgebot/types"
)

// GammaClient resolves market metadata from the Polymarket gamma API
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a gamma API client
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// gammaEvent is the wire shape of /events/slug/{slug}
type gammaEvent struct {
	Markets []struct {
		ConditionID string `json:"conditionId"`
		Question    string `json:"question"`
		Slug        string `json:"slug"`
		Active      bool   `json:"active"`
		Closed      bool   `json:"closed"`
	} `json:"markets"`
}

// GetMarketBySlug resolves one market by its event slug. Slugs that do
// not resolve to an event with at least one market are an error: the
// caller walks back through prior periods on discovery.
func (g *GammaClient) GetMarketBySlug(slug string) (*types.Market, error) {
	url := fmt.Sprintf("%s/events/slug/%s", g.baseURL, slug)

	resp, err := g.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", slug, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read event %s: %w", slug, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d for event %s", resp.StatusCode, slug)
	}

	var event gammaEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("parse event %s: %w", slug, err)
	}
	if len(event.Markets) == 0 {
		return nil, fmt.Errorf("no market for slug %s", slug)
	}

	m := event.Markets[0]
	return &types.Market{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Slug:        m.Slug,
		Active:      m.Active,
		Closed:      m.Closed,
	}, nil
}
