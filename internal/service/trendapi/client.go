package trendapi

import (
	"context"
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	pkghttp "SigPulse/pkg/http"
)

// Client fetches per-timeframe trend snapshots from the trend aggregation
// service over HTTP. It implements service.TimeframeFetcher.
type Client struct {
	base    string
	apiKey  string
	http    *pkghttp.Client
	retries int
}

type Option func(*Client)

// WithAPIKey sets the bearer token sent with each request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithRetries sets how many times a failed fetch is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = pkghttp.NewClient(pkghttp.WithTimeout(d)) }
}

// New creates a trend API client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    baseURL,
		http:    pkghttp.NewClient(pkghttp.WithTimeout(5 * time.Second)),
		retries: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// trendResponse is the wire shape of the trend service reply.
type trendResponse struct {
	Symbol     string  `json:"symbol"`
	Timeframe  string  `json:"timeframe"`
	Direction  string  `json:"direction"`
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
}

// Fetch retrieves the trend snapshot for one symbol and timeframe.
func (c *Client) Fetch(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error) {
	opts := &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    fmt.Sprintf("%s/v1/trend/%s", c.base, symbol),
		QueryParams: map[string][]string{
			"timeframe": {string(tf)},
		},
	}
	if c.apiKey != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	var resp trendResponse
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
		if err = c.http.SendAndParse(ctx, opts, &resp); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("trend fetch %s %s: %w", symbol, tf, err)
	}

	return &models.TimeframeSnapshot{
		Symbol:     symbol,
		Timeframe:  tf,
		Direction:  models.ParseTrendDirection(resp.Direction),
		Strength:   resp.Strength,
		Confidence: resp.Confidence,
		FetchedAt:  time.Now(),
	}, nil
}

var _ domsvc.TimeframeFetcher = (*Client)(nil)
