package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/codeGROOVE-dev/retry"

	appLog "confguide/internal/log"
)

// Source is a single ICS schedule feed.
type Source struct {
	ID  string
	URL string
}

// FetchResult is the payload of one source, fresh or from the disk cache.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true if the cached body was reused (304 or fallback)
}

// cacheEntry holds HTTP cache metadata for a single feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// statusError is a non-OK HTTP response.
type statusError struct {
	Code   int
	Status string
}

func (e *statusError) Error() string { return "unexpected status " + e.Status }

func transient(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Fetcher fetches ICS feeds with conditional requests (ETag /
// Last-Modified), retries transient failures and keeps the last good body on
// disk so a flaky feed still yields a schedule.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	attempts uint
	delay    time.Duration
}

// NewFetcher creates a Fetcher storing per-URL cache directories under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	return NewFetcherWithClient(cacheDir, &http.Client{Timeout: 15 * time.Second})
}

func NewFetcherWithClient(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client:   client,
		cacheDir: cacheDir,
		attempts: 3,
		delay:    500 * time.Millisecond,
	}
}

// FetchAll fetches every source. Failed sources are logged and reported in
// the error slice; results only contain sources that produced a body.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	errs := make([]error, 0)

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("ics %s: %w", src.ID, err))
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne fetches a single source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	fallback := func(err error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, err
		}
		appLog.Error("ics fetch failed, using cached body", err, "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	appLog.Info("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	var (
		status  int
		body    []byte
		newMeta cacheEntry
	)
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if meta.ETag != "" {
				req.Header.Set("If-None-Match", meta.ETag)
			}
			if meta.LastModified != "" {
				req.Header.Set("If-Modified-Since", meta.LastModified)
			}

			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			status = resp.StatusCode
			switch {
			case resp.StatusCode == http.StatusOK:
				b, err := io.ReadAll(resp.Body)
				if err != nil {
					return err
				}
				body = b
				newMeta = cacheEntry{
					URL:          src.URL,
					ETag:         resp.Header.Get("ETag"),
					LastModified: resp.Header.Get("Last-Modified"),
				}
				return nil
			case resp.StatusCode == http.StatusNotModified:
				return nil
			case transient(resp.StatusCode):
				return &statusError{Code: resp.StatusCode, Status: resp.Status}
			default:
				return retry.Unrecoverable(&statusError{Code: resp.StatusCode, Status: resp.Status})
			}
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			appLog.Debug("retrying ics fetch", "attempt", n+1, "id", src.ID, "err", err)
		}),
	)
	if err != nil {
		return fallback(err)
	}

	if status == http.StatusNotModified {
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	if err := f.saveCache(cachePath, newMeta, body); err != nil {
		appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
	}
	appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))

	return FetchResult{Source: src, Body: body}, nil
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed tokens.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
