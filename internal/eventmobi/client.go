// Package eventmobi reads sessions, speakers and sponsors from the Eventmobi
// REST API and maps them onto the model types.
package eventmobi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/maypok86/otter/v2"

	appLog "confguide/internal/log"
)

var (
	ErrUnauthorized = errors.New("eventmobi: unauthorized")
	ErrNotFound     = errors.New("eventmobi: not found")
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	EventID    string
	APIKey     string
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Client is safe for concurrent use. Successful responses are cached per
// path for CacheTTL.
type Client struct {
	baseURL  string
	eventID  string
	apiKey   string
	http     *http.Client
	cache    *otter.Cache[string, []byte]
	attempts uint
	delay    time.Duration
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		eventID: opts.EventID,
		apiKey:  opts.APIKey,
		http:    hc,
		cache: otter.Must(&otter.Options[string, []byte]{
			MaximumSize:      256,
			ExpiryCalculator: otter.ExpiryWriting[string, []byte](ttl),
		}),
		attempts: 4,
		delay:    time.Second,
	}
}

// Invalidate drops every cached response so the next call hits the API.
func (c *Client) Invalidate() {
	c.cache.InvalidateAll()
}

// envelope is the list response wrapper used by every endpoint.
type envelope[T any] struct {
	Data []T `json:"data"`
}

func getList[T any](ctx context.Context, c *Client, resource string) ([]T, error) {
	body, err := c.get(ctx, resource)
	if err != nil {
		return nil, err
	}
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("eventmobi: decode %s: %w", resource, err)
	}
	if env.Data == nil {
		env.Data = []T{}
	}
	return env.Data, nil
}

func (c *Client) get(ctx context.Context, resource string) ([]byte, error) {
	if c.eventID == "" {
		return nil, errors.New("eventmobi: event id is empty")
	}
	endpoint := c.baseURL + "/events/" + url.PathEscape(c.eventID) + "/" + resource

	if body, ok := c.cache.GetIfPresent(endpoint); ok {
		appLog.Debug("eventmobi cache hit", "resource", resource)
		return body, nil
	}

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			if c.apiKey != "" {
				req.Header.Set("X-API-KEY", c.apiKey)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
				b, err := io.ReadAll(resp.Body)
				if err != nil {
					return err
				}
				body = b
				return nil
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return retry.Unrecoverable(ErrUnauthorized)
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrNotFound, resource))
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
				snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
			default:
				return retry.Unrecoverable(fmt.Errorf("eventmobi: unexpected status %d for %s", resp.StatusCode, resource))
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			appLog.Debug("retrying eventmobi request", "attempt", n+1, "resource", resource, "err", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	c.cache.Set(endpoint, body)
	appLog.Info("eventmobi fetch success", "resource", resource, "bytes", len(body))
	return body, nil
}
