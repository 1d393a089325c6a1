package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tezgah/backend/internal/domain"
)

type Provider interface {
	Fetch(ctx context.Context) (*domain.ExchangeRate, error)
}

// HTTPProvider reads the USD base table of an exchangerate-api style endpoint.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(baseURL, apiKey string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type latestResponse struct {
	Result             string                     `json:"result"`
	TimeLastUpdateUnix int64                      `json:"time_last_update_unix"`
	ConversionRates    map[string]decimal.Decimal `json:"conversion_rates"`
}

func (p *HTTPProvider) Fetch(ctx context.Context) (*domain.ExchangeRate, error) {
	url := fmt.Sprintf("%s/%s/latest/USD", p.baseURL, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fx request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fx rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch fx rates: unexpected status %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode fx rates: %w", err)
	}
	if body.Result != "" && body.Result != "success" {
		return nil, fmt.Errorf("fetch fx rates: provider result %q", body.Result)
	}

	usdToTRY, ok := body.ConversionRates[string(domain.CurrencyTRY)]
	if !ok || !usdToTRY.IsPositive() {
		return nil, fmt.Errorf("fetch fx rates: missing or non-positive TRY rate")
	}

	rate := NewRate(usdToTRY)
	rate.Timestamp = time.Now().UTC()
	if body.TimeLastUpdateUnix > 0 {
		rate.Timestamp = time.Unix(body.TimeLastUpdateUnix, 0).UTC()
	}
	return rate, nil
}
