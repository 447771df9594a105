package social

import (
	"context"
	"errors"
	"testing"
	"time"

	twitterscraper "github.com/imperatrona/twitter-scraper"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	calls   int
	query   string
	results []*twitterscraper.TweetResult
}

func (f *fakeSearch) SearchTweets(_ context.Context, query string, _ int) <-chan *twitterscraper.TweetResult {
	f.calls++
	f.query = query
	ch := make(chan *twitterscraper.TweetResult, len(f.results))
	for _, r := range f.results {
		ch <- r
	}
	close(ch)
	return ch
}

func TestHashtagQuery(t *testing.T) {
	require.Equal(t, "#gophercon -filter:retweets", hashtagQuery("gophercon"))
	require.Equal(t, "#GopherCon -filter:retweets", hashtagQuery("  ##GopherCon "))
	require.Empty(t, hashtagQuery(""))
	require.Empty(t, hashtagQuery("#"))
	require.Empty(t, hashtagQuery("two words"))
}

func TestRecentMapsAndCaches(t *testing.T) {
	posted := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	fs := &fakeSearch{results: []*twitterscraper.TweetResult{
		{Tweet: twitterscraper.Tweet{ID: "1", Username: "gopher", Text: "keynote!", PermanentURL: "https://x.com/gopher/status/1", TimeParsed: posted}},
		{Error: errors.New("rate limited")},
		{Tweet: twitterscraper.Tweet{ID: "2", Username: "ferris", Text: "hi", Timestamp: posted.Unix()}},
	}}
	f := newFeed(fs, Options{Hashtag: "#gophercon"})

	posts, err := f.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, "#gophercon -filter:retweets", fs.query)
	require.Equal(t, []Post{
		{ID: "1", Author: "gopher", Text: "keynote!", URL: "https://x.com/gopher/status/1", PostedAt: posted},
		{ID: "2", Author: "ferris", Text: "hi", URL: "https://x.com/ferris/status/2", PostedAt: posted},
	}, posts)

	_, err = f.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, fs.calls)
}

func TestRecentWithoutHashtag(t *testing.T) {
	fs := &fakeSearch{}
	posts, err := newFeed(fs, Options{}).Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, posts)
	require.Zero(t, fs.calls)
}
