// Package cryptopanic wraps the CryptoPanic news API, the headline
// feed behind sentiment scoring.
package cryptopanic

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/intellidex/cryptobot/internal/domain"
)

const defaultBaseURL = "https://cryptopanic.com/api/v1"

// Config holds client parameters.
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client fetches news posts from CryptoPanic.
type Client struct {
	c     *resty.Client
	token string
}

// postsResponse mirrors the CryptoPanic /posts payload.
type postsResponse struct {
	Results []struct {
		Title       string    `json:"title"`
		PublishedAt time.Time `json:"published_at"`
		Source      struct {
			Title string `json:"title"`
		} `json:"source"`
	} `json:"results"`
}

type errorResponse struct {
	Info string `json:"info"`
}

// New creates a CryptoPanic client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &Client{c: client, token: cfg.AuthToken}
}

// Headlines fetches the latest news posts for the given currency code
// (e.g. "BTC"), newest first.
func (c *Client) Headlines(ctx context.Context, currency string) ([]domain.Headline, error) {
	req := c.c.R().
		SetQueryParams(map[string]string{
			"auth_token": c.token,
			"currencies": currency,
			"public":     "true",
		}).
		SetResult(&postsResponse{}).
		SetError(&errorResponse{}).
		SetContext(ctx)

	resp, err := req.Get("/posts/")
	if err != nil {
		return nil, fmt.Errorf("cryptopanic: get posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		if apiErr, ok := resp.Error().(*errorResponse); ok && apiErr.Info != "" {
			return nil, fmt.Errorf("cryptopanic: %s: %w", apiErr.Info, domain.ErrDataUnavailable)
		}
		return nil, fmt.Errorf("cryptopanic: status %s: %w", resp.Status(), domain.ErrDataUnavailable)
	}

	posts, ok := resp.Result().(*postsResponse)
	if !ok || posts == nil {
		return nil, fmt.Errorf("cryptopanic: empty response: %w", domain.ErrDataUnavailable)
	}

	headlines := make([]domain.Headline, 0, len(posts.Results))
	for _, p := range posts.Results {
		headlines = append(headlines, domain.Headline{
			Title:       p.Title,
			Source:      p.Source.Title,
			PublishedAt: p.PublishedAt,
		})
	}
	return headlines, nil
}

// Close releases the underlying HTTP client resources.
func (c *Client) Close() error {
	return c.c.Close()
}
