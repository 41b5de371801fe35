package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/nieko-nera/core/internal/domain"
)

// Client queries the weather summary endpoint. Requests are rate limited
// because the upstream provider meters calls per API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// ClientOption customises the Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a Client with sane defaults.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		logger:  log.New(log.Writer(), "[weather] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActivityWeather returns the summary bracketing the activity, or nil when
// the activity has no usable coordinates.
func (c *Client) ActivityWeather(ctx context.Context, user *domain.UserData, activity *domain.Activity) (*Summary, error) {
	if activity == nil || !activity.HasLocation() {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.6f", activity.LocationStart.Lat))
	q.Set("lon", fmt.Sprintf("%.6f", activity.LocationStart.Lon))
	q.Set("from", activity.DateStart.UTC().Format(time.RFC3339))
	q.Set("to", activity.DateEnd.UTC().Format(time.RFC3339))
	if user != nil && user.Preferences.Units == domain.UnitsImperial {
		q.Set("units", "imperial")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/summary?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("weather service error: status %d: %s", resp.StatusCode, body)
	}

	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("decode weather summary: %w", err)
	}
	if summary.Empty() {
		return nil, nil
	}
	return &summary, nil
}
