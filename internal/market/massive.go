package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/contactkeval/option-surface/internal/logger"
)

// DefaultMassiveURL is the root endpoint for Massive APIs.
const DefaultMassiveURL = "https://api.massive.com"

const maxBarsLimit = 50000

// MassiveProvider implements Provider over the Massive aggregates API.
type MassiveProvider struct {
	client *resty.Client
}

var _ Provider = (*MassiveProvider)(nil)

// MassiveOption customizes the underlying client.
type MassiveOption func(*resty.Client)

// WithBaseURL points the provider at another endpoint.
func WithBaseURL(u string) MassiveOption {
	return func(c *resty.Client) {
		if u != "" {
			c.SetBaseURL(strings.TrimRight(u, "/"))
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) MassiveOption {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

// WithRetries sets how often rate-limited and 5xx responses are retried.
func WithRetries(count int, wait time.Duration) MassiveOption {
	return func(c *resty.Client) {
		c.SetRetryCount(count).SetRetryWaitTime(wait)
	}
}

// NewMassiveProvider constructs a Massive-backed provider. Requests
// carry the key both as apiKey query parameter and x-api-key header.
func NewMassiveProvider(apiKey string, opts ...MassiveOption) *MassiveProvider {
	logger.Infof("initializing Massive market data provider")

	c := resty.New().
		SetBaseURL(DefaultMassiveURL).
		SetTimeout(60*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("x-api-key", apiKey).
		SetQueryParam("apiKey", apiKey).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(60 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return false
			}
			code := r.StatusCode()
			if code == http.StatusTooManyRequests {
				logger.Infof("rate limit hit, retrying %s", r.Request.URL)
				return true
			}
			return code >= 500
		})
	for _, opt := range opts {
		opt(c)
	}
	return &MassiveProvider{client: c}
}

// aggResult is one aggregate record in Massive/Polygon style.
type aggResult struct {
	Symbol    string  `json:"T"`
	Open      float64 `json:"o"`
	Close     float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	VWAP      float64 `json:"vw"`
	Volume    float64 `json:"v"`
	Trades    int64   `json:"n"`
	Timestamp int64   `json:"t"` // epoch millis
}

type aggResponse struct {
	Ticker       string      `json:"ticker"`
	Adjusted     bool        `json:"adjusted"`
	ResultsCount int         `json:"resultsCount"`
	Results      []aggResult `json:"results"`
	Status       string      `json:"status"`
	RequestID    string      `json:"request_id"`
}

type apiError struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// Spot returns the previous session's close.
func (p *MassiveProvider) Spot(ctx context.Context, ticker string) (float64, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	logger.Debugf("fetching previous close: %s", ticker)

	var body aggResponse
	if err := p.get(ctx, "/v2/aggs/ticker/{ticker}/prev", map[string]string{"ticker": ticker}, nil, &body); err != nil {
		return 0, fmt.Errorf("massive previous close: %w", err)
	}
	if len(body.Results) == 0 {
		return 0, fmt.Errorf("massive previous close %s: %w", ticker, ErrNoData)
	}
	spot := body.Results[len(body.Results)-1].Close
	logger.Tracef("previous close %s = %.4f", ticker, spot)
	return spot, nil
}

// Bars returns daily bars between from and to inclusive.
func (p *MassiveProvider) Bars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	logger.Debugf("fetching bars: %s from=%s to=%s", ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))

	var body aggResponse
	err := p.get(ctx, "/v2/aggs/ticker/{ticker}/range/1/day/{from}/{to}",
		map[string]string{
			"ticker": ticker,
			"from":   from.Format("2006-01-02"),
			"to":     to.Format("2006-01-02"),
		},
		map[string]string{
			"adjusted": "true",
			"sort":     "asc",
			"limit":    fmt.Sprint(maxBarsLimit),
		},
		&body)
	if err != nil {
		return nil, fmt.Errorf("massive daily bars: %w", err)
	}
	logger.Tracef("bars received: %d records", len(body.Results))
	if len(body.Results) == 0 {
		return nil, fmt.Errorf("massive daily bars %s: %w", ticker, ErrNoData)
	}

	out := make([]Bar, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, Bar{
			Date:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return out, nil
}

func (p *MassiveProvider) get(ctx context.Context, path string, pathParams, query map[string]string, out any) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParams(pathParams).
		SetQueryParams(query).
		SetResult(out).
		ForceContentType("application/json").
		Get(path)
	if err != nil {
		logger.Errorf("massive request %s errored=%v", path, err)
		return err
	}
	if resp.IsError() {
		msg := strings.TrimSpace(string(resp.Body()))
		var apiErr apiError
		if json.Unmarshal(resp.Body(), &apiErr) == nil {
			switch {
			case apiErr.Message != "":
				msg = apiErr.Message
			case apiErr.Error != "":
				msg = apiErr.Error
			}
		}
		return fmt.Errorf("status=%d message=%s", resp.StatusCode(), msg)
	}
	return nil
}
