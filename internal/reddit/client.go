// Package reddit is a thin client for Reddit's public JSON listing API.
// It covers the two operations the pipeline needs: top listings for a
// subreddit and first-level comment expansion for a post.
package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/redlake/redlake/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "redlake/0.9 (batch ingest)"

	// Reddit rejects bursty unauthenticated traffic well before this, so the
	// limiter is the real throttle for a 100-candidate cycle.
	requestsPerSecond = 1
	requestBurst      = 4

	maxBodyBytes = 8 << 20
)

// Client fetches listings from Reddit. A nil *Client is a valid "source
// unavailable" client: both operations fail immediately.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a Reddit client with a 15s request timeout and a
// 1 req/s rate limiter.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether the client can serve requests.
func (c *Client) Available() bool {
	return c != nil
}

// ListTop returns up to limit posts from r/<subreddit> ranked by Reddit's
// "top within window" ordering. window is one of hour/day/week/month/year/all.
func (c *Client) ListTop(ctx context.Context, subreddit, window string, limit int) ([]model.Candidate, error) {
	if !c.Available() {
		return nil, fmt.Errorf("reddit client not configured")
	}

	q := url.Values{}
	q.Set("t", window)
	q.Set("limit", fmt.Sprintf("%d", limit))
	endpoint := fmt.Sprintf("%s/r/%s/top.json?%s", c.baseURL, url.PathEscape(subreddit), q.Encode())

	var lst listing
	if err := c.getJSON(ctx, endpoint, &lst); err != nil {
		return nil, fmt.Errorf("list top r/%s: %w", subreddit, err)
	}

	candidates := make([]model.Candidate, 0, len(lst.Data.Children))
	for _, child := range lst.Data.Children {
		d := child.Data
		candidates = append(candidates, model.Candidate{
			ID:          d.ID,
			Title:       d.Title,
			Selftext:    d.Selftext,
			Author:      d.Author,
			Subreddit:   d.Subreddit,
			Permalink:   d.Permalink,
			Score:       d.Score,
			NumComments: d.NumComments,
			CreatedUTC:  fromEpoch(d.CreatedUTC),
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

// Comments returns up to max first-level comments for a post. The cap is
// pushed into the request so deeper pages are never fetched.
func (c *Client) Comments(ctx context.Context, subreddit, postID string, max int) ([]model.Comment, error) {
	if !c.Available() {
		return nil, fmt.Errorf("reddit client not configured")
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", max))
	q.Set("depth", "1")
	endpoint := fmt.Sprintf("%s/r/%s/comments/%s.json?%s",
		c.baseURL, url.PathEscape(subreddit), url.PathEscape(postID), q.Encode())

	// The comments endpoint returns a two-element array: [post listing,
	// comment listing].
	var pages []listing
	if err := c.getJSON(ctx, endpoint, &pages); err != nil {
		return nil, fmt.Errorf("comments for %s: %w", postID, err)
	}
	if len(pages) < 2 {
		return nil, nil
	}

	var comments []model.Comment
	for _, child := range pages[1].Data.Children {
		if child.Kind != "t1" {
			continue // trailing "more" stubs
		}
		d := child.Data
		comments = append(comments, model.Comment{
			ID:         d.ID,
			Body:       d.Body,
			Author:     d.Author,
			Score:      d.Score,
			CreatedUTC: fromEpoch(d.CreatedUTC),
		})
		if len(comments) >= max {
			break
		}
	}
	return comments, nil
}

// getJSON performs a rate-limited GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func fromEpoch(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
