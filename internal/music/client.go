package music

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/nieko-nera/core/internal/domain"
)

// Client talks to the streaming-provider gateway that proxies play history
// for linked accounts.
type Client struct {
	baseURL    string
	httpClient *http.Client
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

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a Client with sane defaults.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.New(log.Writer(), "[music] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecentTracks returns the plays recorded between the activity's start and
// end. Athletes without a linked account get an empty result, not an error.
func (c *Client) RecentTracks(ctx context.Context, user *domain.UserData, activity *domain.Activity) ([]Track, error) {
	if user == nil || !user.HasMusic() || activity == nil {
		return nil, nil
	}

	q := url.Values{}
	q.Set("provider", user.Music.Provider)
	q.Set("from", activity.DateStart.UTC().Format(time.RFC3339))
	q.Set("to", activity.DateEnd.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/users/%s/plays?%s", c.baseURL, url.PathEscape(user.Music.ExternalID), q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if user.Music.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+user.Music.AccessToken)
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
		return nil, fmt.Errorf("music service error: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Tracks []Track `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode play history: %w", err)
	}
	return payload.Tracks, nil
}
