// Package social reads recent posts for the event hashtag from X.
package social

import (
	"context"
	"strings"
	"time"

	twitterscraper "github.com/imperatrona/twitter-scraper"
	"github.com/maypok86/otter/v2"

	appLog "confguide/internal/log"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Post is one social post shown next to the agenda.
type Post struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	URL      string    `json:"url"`
	PostedAt time.Time `json:"posted_at"`
}

// searcher is the part of *twitterscraper.Scraper the feed needs.
type searcher interface {
	SearchTweets(ctx context.Context, query string, maxTweetsNbr int) <-chan *twitterscraper.TweetResult
}

type Options struct {
	Hashtag   string
	AuthToken string
	CSRFToken string
	CacheTTL  time.Duration
}

type Feed struct {
	query  string
	search searcher
	cache  *otter.Cache[int, []Post]
}

// New builds a feed for opts.Hashtag. Without a hashtag Recent always
// returns an empty list.
func New(opts Options) *Feed {
	s := twitterscraper.New()
	if opts.AuthToken != "" {
		s.SetAuthToken(twitterscraper.AuthToken{Token: opts.AuthToken, CSRFToken: opts.CSRFToken})
	}
	return newFeed(s, opts)
}

func newFeed(s searcher, opts Options) *Feed {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Feed{
		query:  hashtagQuery(opts.Hashtag),
		search: s,
		cache: otter.Must(&otter.Options[int, []Post]{
			MaximumSize:      16,
			ExpiryCalculator: otter.ExpiryWriting[int, []Post](ttl),
		}),
	}
}

// hashtagQuery turns "gophercon", "#gophercon" or "  #GopherCon " into a
// search for the tag, excluding retweets.
func hashtagQuery(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimLeft(tag, "#")
	if tag == "" || strings.ContainsAny(tag, " \t") {
		return ""
	}
	return "#" + tag + " -filter:retweets"
}

// Recent returns up to limit posts, newest first as delivered by search.
func (f *Feed) Recent(ctx context.Context, limit int) ([]Post, error) {
	if f.query == "" {
		return []Post{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if cached, ok := f.cache.GetIfPresent(limit); ok {
		return cached, nil
	}

	posts := make([]Post, 0, limit)
	skipped := 0
	for res := range f.search.SearchTweets(ctx, f.query, limit) {
		if res.Error != nil {
			skipped++
			appLog.Warn("social: search result error", "query", f.query, "error", res.Error.Error())
			continue
		}
		posts = append(posts, toPost(res.Tweet))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	appLog.Debug("social: feed refreshed", "query", f.query, "posts", len(posts), "skipped", skipped)
	f.cache.Set(limit, posts)
	return posts, nil
}

func toPost(t twitterscraper.Tweet) Post {
	p := Post{
		ID:       t.ID,
		Author:   t.Username,
		Text:     t.Text,
		URL:      t.PermanentURL,
		PostedAt: t.TimeParsed,
	}
	if p.URL == "" && t.Username != "" && t.ID != "" {
		p.URL = "https://x.com/" + t.Username + "/status/" + t.ID
	}
	if p.PostedAt.IsZero() && t.Timestamp > 0 {
		p.PostedAt = time.Unix(t.Timestamp, 0).UTC()
	}
	return p
}
