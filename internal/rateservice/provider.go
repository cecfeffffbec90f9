package rateservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moventis/transfer-engine/internal/domain"
)

// HTTPProviderConfig configures the exchangerate-api style feed client.
type HTTPProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPProvider fetches rate tables from an exchangerate-api v6 compatible
// endpoint. The fetch carries a network timeout and never runs on a
// user-request critical path.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// feedResponse is the v6 payload shape: all rates vs. a base currency
// plus the provider's own update timestamp.
type feedResponse struct {
	Result             string                     `json:"result"`
	BaseCode           string                     `json:"base_code"`
	TimeLastUpdateUnix int64                      `json:"time_last_update_unix"`
	ConversionRates    map[string]decimal.Decimal `json:"conversion_rates"`
	ErrorType          string                     `json:"error-type,omitempty"`
}

// NewHTTPProvider returns a rate provider client for the configured feed.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	return &HTTPProvider{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider's name as recorded on snapshots.
func (p *HTTPProvider) Name() string {
	return p.name
}

// FetchLatestRates fetches the current rate table relative to base.
func (p *HTTPProvider) FetchLatestRates(ctx context.Context, base string) (domain.ProviderRates, error) {
	url := fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ProviderRates{}, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ProviderRates{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ProviderRates{}, fmt.Errorf("rate provider returned status %d: %s", resp.StatusCode, body)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return domain.ProviderRates{}, fmt.Errorf("decode rate response: %w", err)
	}

	if feed.Result != "success" {
		return domain.ProviderRates{}, fmt.Errorf("rate provider returned result=%s error=%s", feed.Result, feed.ErrorType)
	}

	return domain.ProviderRates{
		BaseCurrency: feed.BaseCode,
		Rates:        feed.ConversionRates,
		ProviderTime: time.Unix(feed.TimeLastUpdateUnix, 0).UTC(),
	}, nil
}
