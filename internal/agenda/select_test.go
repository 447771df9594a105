package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"confguide/internal/model"
)

func groupIDs(groups []Group) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		for _, it := range g.Items {
			out[i] = append(out[i], it.ID)
		}
	}
	return out
}

func TestSelectionsEmpty(t *testing.T) {
	require.Empty(t, HappeningNow(nil, base))
	require.Empty(t, UpNext(nil, base, time.Hour, time.Hour))

	_, ok := First(nil)
	require.False(t, ok)
}

func TestHappeningNowHalfOpenBoundary(t *testing.T) {
	items := []model.AgendaItem{item("talk", base, time.Hour)}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"at start", base, 1},
		{"last second", base.Add(3599 * time.Second), 1},
		{"at end", base.Add(time.Hour), 0},
		{"before start", base.Add(-time.Second), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, HappeningNow(items, tt.now), tt.want)
		})
	}
}

func TestHappeningNowMostRecentStartFirst(t *testing.T) {
	t1 := base.Add(time.Hour)
	items := []model.AgendaItem{
		item("long", base, 3*time.Hour),
		item("recent", t1, time.Hour),
	}

	got := HappeningNow(items, t1)
	require.Equal(t, [][]string{{"recent"}, {"long"}}, groupIDs(got))

	first, ok := First(got)
	require.True(t, ok)
	require.Equal(t, t1.UnixMilli(), first.Range.Start)
}

func TestHappeningNowShorterFirstOnTie(t *testing.T) {
	items := []model.AgendaItem{
		item("two-hours", base, 2*time.Hour),
		item("one-hour", base, time.Hour),
	}
	got := HappeningNow(items, base.Add(10*time.Minute))
	require.Equal(t, [][]string{{"one-hour"}, {"two-hours"}}, groupIDs(got))
	require.Equal(t, time.Hour, got[0].Range.Duration())
}

func TestHappeningNowBucketsKeepInputOrder(t *testing.T) {
	items := []model.AgendaItem{
		item("room-b", base, time.Hour),
		item("other", base.Add(30*time.Minute), time.Hour),
		item("room-a", base, time.Hour),
	}
	got := HappeningNow(items, base.Add(45*time.Minute))
	require.Equal(t, [][]string{{"other"}, {"room-b", "room-a"}}, groupIDs(got))
}

func TestHappeningNowSkipsInvertedItems(t *testing.T) {
	items := []model.AgendaItem{item("bad", base.Add(time.Hour), -2*time.Hour)}
	require.Empty(t, HappeningNow(items, base.Add(30*time.Minute)))
}

func TestUpNextWindowIsOpen(t *testing.T) {
	now := base
	ahead := 2 * time.Hour
	items := []model.AgendaItem{
		item("at-now", now, time.Hour),
		item("at-edge", now.Add(ahead), time.Hour),
		item("inside", now.Add(30*time.Minute), time.Hour),
	}
	got := UpNext(items, now, ahead, 24*time.Hour)
	require.Equal(t, [][]string{{"inside"}}, groupIDs(got))
}

func TestUpNextTrailingWindow(t *testing.T) {
	now := base
	t0 := now.Add(10 * time.Minute)
	items := []model.AgendaItem{
		item("later", t0.Add(time.Hour), time.Hour),
		item("soon", t0, time.Hour),
	}

	require.Equal(t, [][]string{{"soon"}}, groupIDs(UpNext(items, now, 3*time.Hour, 0)))
	require.Equal(t, [][]string{{"soon"}, {"later"}}, groupIDs(UpNext(items, now, 3*time.Hour, time.Hour)))
}

func TestUpNextBeyondIsMeasuredFromFirstGroup(t *testing.T) {
	now := base
	items := []model.AgendaItem{
		item("first", now.Add(50*time.Minute), 30*time.Minute),
		item("second", now.Add(80*time.Minute), 30*time.Minute),
		item("third", now.Add(200*time.Minute), 30*time.Minute),
	}
	// second is within 30m of first; third is outside look-ahead anyway.
	got := UpNext(items, now, 90*time.Minute, 30*time.Minute)
	require.Equal(t, [][]string{{"first"}, {"second"}}, groupIDs(got))
}

func TestUpNextBeyondNeverExtendsLookAhead(t *testing.T) {
	items := []model.AgendaItem{
		item("soon", base.Add(20*time.Minute), 30*time.Minute),
		item("past-window", base.Add(70*time.Minute), 30*time.Minute),
	}
	got := UpNext(items, base, time.Hour, 2*time.Hour)
	require.Equal(t, [][]string{{"soon"}}, groupIDs(got))
}

func TestTimeRangeAccessors(t *testing.T) {
	it := item("talk", base, 45*time.Minute)
	r := RangeOf(it)
	require.Equal(t, 45*time.Minute, r.Duration())
	require.True(t, r.StartTime().Equal(base))
	require.True(t, r.EndTime().Equal(base.Add(45*time.Minute)))
}

func TestUpNextShorterFirstOnTie(t *testing.T) {
	start := base.Add(15 * time.Minute)
	items := []model.AgendaItem{
		item("long", start, 90*time.Minute),
		item("short", start, 45*time.Minute),
		item("short-2", start, 45*time.Minute),
	}
	got := UpNext(items, base, time.Hour, 0)
	require.Equal(t, [][]string{{"short", "short-2"}, {"long"}}, groupIDs(got))
}

func TestUpNextDegenerateWindows(t *testing.T) {
	items := []model.AgendaItem{item("soon", base.Add(10*time.Minute), time.Hour)}
	require.Empty(t, UpNext(items, base, 0, time.Hour))
	require.Empty(t, UpNext(items, base, -time.Hour, time.Hour))
	require.Empty(t, UpNext(items, base, time.Hour, -time.Minute))
}

func TestSelectionsDoNotMutateInput(t *testing.T) {
	items := []model.AgendaItem{
		item("b", base.Add(20*time.Minute), time.Hour),
		item("a", base.Add(10*time.Minute), time.Hour),
	}
	UpNext(items, base, time.Hour, time.Hour)
	HappeningNow(items, base.Add(30*time.Minute))
	require.Equal(t, "b", items[0].ID)
}
