package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"confguide/internal/model"
)

var start = time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		Items: []model.AgendaItem{
			{ID: "s2", SourceID: "eventmobi", Start: start.Add(time.Hour), End: start.Add(2 * time.Hour), Topic: "Lunch"},
			{ID: "s1", SourceID: "eventmobi", Start: start, End: start.Add(time.Hour), Topic: "Keynote", Location: "Hall", SpeakerIDs: []string{"p2", "p1"}},
		},
		Speakers: []model.Speaker{
			{ID: "p1", Name: "Ada"},
			{ID: "p2", Name: "Grace"},
		},
		Sponsors: []model.Sponsor{{ID: "sp1", Name: "Acme", Level: "gold"}},
	}
}

func TestReplaceSnapshotAndRead(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.ReplaceSnapshot(ctx, testSnapshot()))

	items, err := s.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "s2", items[0].ID)
	require.NotNil(t, items[0].SpeakerIDs)
	require.Empty(t, items[0].SpeakerIDs)

	it, err := s.Item(ctx, "s1")
	require.NoError(t, err)
	require.True(t, it.Start.Equal(start))
	require.Equal(t, time.Hour, it.Duration())
	require.Equal(t, []string{"p2", "p1"}, it.SpeakerIDs)

	_, err = s.Item(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	sponsors, err := s.Sponsors(ctx)
	require.NoError(t, err)
	require.Equal(t, "Acme", sponsors[0].Name)

	// A second snapshot replaces the first.
	require.NoError(t, s.ReplaceSnapshot(ctx, model.Snapshot{Items: testSnapshot().Items[:1]}))
	items, err = s.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	speakers, err := s.Speakers(ctx)
	require.NoError(t, err)
	require.Empty(t, speakers)
}

func TestReplaceSnapshotKeepsMarkedParts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	first := testSnapshot()
	first.Items = append(first.Items, model.AgendaItem{
		ID: "w1", SourceID: "workshops", Start: start, End: start.Add(3 * time.Hour), Topic: "Go workshop",
	})
	require.NoError(t, s.ReplaceSnapshot(ctx, first))

	// Speakers, sponsors and the workshops feed failed on this run.
	require.NoError(t, s.ReplaceSnapshot(ctx, model.Snapshot{
		Items: []model.AgendaItem{
			{ID: "s1", SourceID: "eventmobi", Start: start, End: start.Add(time.Hour), Topic: "Keynote v2"},
		},
		Speakers:     []model.Speaker{{ID: "p9", Name: "ignored"}},
		KeepSpeakers: true,
		KeepSponsors: true,
		KeepSources:  []string{"workshops"},
	}))

	items, err := s.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	topics := map[string]string{}
	for _, it := range items {
		topics[it.ID] = it.Topic
	}
	require.Equal(t, map[string]string{"s1": "Keynote v2", "w1": "Go workshop"}, topics)

	speakers, err := s.Speakers(ctx)
	require.NoError(t, err)
	require.Len(t, speakers, 2)
	sponsors, err := s.Sponsors(ctx)
	require.NoError(t, err)
	require.Len(t, sponsors, 1)

	// Nothing kept: the next snapshot replaces everything.
	require.NoError(t, s.ReplaceSnapshot(ctx, model.Snapshot{}))
	items, err = s.Items(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
	speakers, err = s.Speakers(ctx)
	require.NoError(t, err)
	require.Empty(t, speakers)
}

func TestSpeakersByIDsKeepsRequestedOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.ReplaceSnapshot(ctx, testSnapshot()))

	got, err := s.SpeakersByIDs(ctx, []string{"p2", "ghost", "p1", "p2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Grace", got[0].Name)
	require.Equal(t, "Ada", got[1].Name)

	got, err = s.SpeakersByIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.ReplaceSnapshot(ctx, testSnapshot()))

	require.NoError(t, s.AddFavorite(ctx, "s1"))
	require.NoError(t, s.AddFavorite(ctx, "s1"))
	require.NoError(t, s.AddFavorite(ctx, "future-session"))

	ids, err := s.Favorites(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"s1", "future-session"}, ids)

	fav, err := s.IsFavorite(ctx, "s1")
	require.NoError(t, err)
	require.True(t, fav)

	items, err := s.FavoriteItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "s1", items[0].ID)

	require.NoError(t, s.RemoveFavorite(ctx, "s1"))
	fav, err = s.IsFavorite(ctx, "s1")
	require.NoError(t, err)
	require.False(t, fav)

	// Favorites survive a refresh.
	require.NoError(t, s.ReplaceSnapshot(ctx, testSnapshot()))
	ids, err = s.Favorites(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"future-session"}, ids)
}

func TestFeedback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.ReplaceSnapshot(ctx, testSnapshot()))

	fb := &model.Feedback{ItemID: "s1", Rating: 5, Comment: "  great talk "}
	require.NoError(t, s.AddFeedback(ctx, fb))
	require.NotEmpty(t, fb.ID)
	require.False(t, fb.CreatedAt.IsZero())

	require.ErrorIs(t, s.AddFeedback(ctx, &model.Feedback{ItemID: "s1", Rating: 6}), ErrInvalidFeedback)
	require.ErrorIs(t, s.AddFeedback(ctx, &model.Feedback{ItemID: "s1"}), ErrInvalidFeedback)
	require.ErrorIs(t, s.AddFeedback(ctx, &model.Feedback{ItemID: "nope", Rating: 3}), ErrNotFound)

	got, err := s.Feedback(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "great talk", got[0].Comment)
	require.Equal(t, fb.ID, got[0].ID)
	require.True(t, got[0].CreatedAt.Equal(fb.CreatedAt))
}
