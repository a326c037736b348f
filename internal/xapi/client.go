// Package xapi provides a minimal X (Twitter) API v2 client for reading a
// user's recent posts.
package xapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hundredk/challenge-tracker/internal/config"
	"github.com/hundredk/challenge-tracker/internal/metrics"
)

// Page size limits of the timeline endpoint.
const (
	MinResults = 5
	MaxResults = 100
)

// ErrUserNotFound is returned when the handle does not resolve to an account.
var ErrUserNotFound = errors.New("x user not found")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api returned status %d: %s", e.StatusCode, e.Body)
}

// Account is a resolved X account.
type Account struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

// PublicMetrics are the engagement counters of a post.
type PublicMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
}

// Tweet is one post from a user timeline.
type Tweet struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	CreatedAt     time.Time     `json:"created_at"`
	PublicMetrics PublicMetrics `json:"public_metrics"`
}

// Client is the subset of the X API the feed uses.
type Client interface {
	LookupUser(ctx context.Context, username string) (*Account, error)
	UserTweets(ctx context.Context, userID string, maxResults int) ([]Tweet, error)
}

// HTTPClient talks to the X API with an app-only bearer token.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an X API client from the social configuration.
func NewClient(cfg *config.SocialConfig) *HTTPClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.BearerToken,
		TokenType:   "Bearer",
	})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = cfg.SocialTimeout()

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// LookupUser resolves a handle to an account.
func (c *HTTPClient) LookupUser(ctx context.Context, username string) (*Account, error) {
	query := url.Values{}
	query.Set("user.fields", "profile_image_url")

	var resp struct {
		Data   *Account          `json:"data"`
		Errors []json.RawMessage `json:"errors"`
	}
	if err := c.get(ctx, "/2/users/by/username/"+url.PathEscape(username), query, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return resp.Data, nil
}

// UserTweets returns the account's most recent posts. maxResults is clamped
// to the range the API accepts.
func (c *HTTPClient) UserTweets(ctx context.Context, userID string, maxResults int) ([]Tweet, error) {
	if maxResults < MinResults {
		maxResults = MinResults
	}
	if maxResults > MaxResults {
		maxResults = MaxResults
	}

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(maxResults))
	query.Set("tweet.fields", "created_at,public_metrics")

	var resp struct {
		Data []Tweet `json:"data"`
	}
	if err := c.get(ctx, "/2/users/"+url.PathEscape(userID)+"/tweets", query, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []Tweet{}, nil
	}
	return resp.Data, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveSocialAPILatency(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordSocialAPIError("transport")
		return fmt.Errorf("x api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.RecordSocialAPIError("status_" + strconv.Itoa(resp.StatusCode))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.RecordSocialAPIError("decode")
		return fmt.Errorf("failed to decode x api response: %w", err)
	}
	return nil
}
