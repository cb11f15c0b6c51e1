package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"insiderlens/internal/config"
)

// Client talks to the EODHD REST API for daily price history and
// fundamentals. All calls share one limiter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eodhd error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, cfg config.EODHDConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://eodhd.com/api"
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.apiKey)
	query.Set("fmt", "json")
	fullURL := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: truncateBody(body)}
	}
	return body, nil
}

// PricePoint is one daily bar. Only the adjusted close is kept; every
// downstream computation is adjusted-close based.
type PricePoint struct {
	Date     string
	AdjClose float64
}

// GetEODPrices returns the daily series for a symbol from the given ISO date
// onward, ascending by date. Symbol takes the vendor form, e.g. "AAPL.US".
func (c *Client) GetEODPrices(ctx context.Context, symbol, fromDate string) ([]PricePoint, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	query := url.Values{}
	query.Set("period", "d")
	query.Set("order", "a")
	if fromDate != "" {
		query.Set("from", fromDate)
	}
	body, err := c.doRequest(ctx, "/eod/"+url.PathEscape(symbol), query)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Date          string  `json:"date"`
		AdjustedClose float64 `json:"adjusted_close"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse eod response: %w", err)
	}
	points := make([]PricePoint, 0, len(raw))
	for _, bar := range raw {
		if bar.Date == "" || bar.AdjustedClose <= 0 {
			continue
		}
		points = append(points, PricePoint{Date: bar.Date, AdjClose: bar.AdjustedClose})
	}
	return points, nil
}

// GetMarketCap returns the latest market capitalization from fundamentals,
// or nil when the vendor has none for the symbol.
func (c *Client) GetMarketCap(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	query := url.Values{}
	query.Set("filter", "Highlights::MarketCapitalization")
	body, err := c.doRequest(ctx, "/fundamentals/"+url.PathEscape(symbol), query)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" || trimmed == "\"NA\"" {
		return nil, nil
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse market cap %q: %w", trimmed, err)
	}
	if value.Sign() <= 0 {
		return nil, nil
	}
	return &value, nil
}

// USSymbol maps a ticker to the vendor's US exchange form.
func USSymbol(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return ""
	}
	if strings.Contains(ticker, ".") {
		return ticker
	}
	return ticker + ".US"
}

// CapBucket maps a market cap in USD to a coarse size bucket.
func CapBucket(capUSD decimal.Decimal) string {
	billions := capUSD.Div(decimal.New(1, 9)).InexactFloat64()
	switch {
	case billions >= 200:
		return "mega"
	case billions >= 10:
		return "large"
	case billions >= 2:
		return "mid"
	case billions >= 0.3:
		return "small"
	case billions >= 0.05:
		return "micro"
	default:
		return "nano"
	}
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
