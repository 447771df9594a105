package agenda

import (
	"cmp"
	"slices"
	"time"

	"confguide/internal/model"
)

// HappeningNow returns the items in progress at now (Start <= now < End),
// grouped by exact time range. Groups are ordered by most recent start
// first; groups starting together are ordered shortest first.
func HappeningNow(items []model.AgendaItem, now time.Time) []Group {
	at := now.UnixMilli()
	g := newGrouper()
	for _, it := range items {
		r := RangeOf(it)
		if r.Start <= at && at < r.End {
			g.add(it)
		}
	}

	groups := g.groups
	slices.SortFunc(groups, func(a, b Group) int {
		if a.Range.Start != b.Range.Start {
			return cmp.Compare(b.Range.Start, a.Range.Start)
		}
		return cmp.Compare(a.Range.End-a.Range.Start, b.Range.End-b.Range.Start)
	})
	return groups
}

// UpNext returns the items starting strictly inside (now, now+lookAhead),
// grouped by exact time range and ordered soonest first (shortest first on
// equal starts). Groups starting more than lookBeyond after the first group
// are dropped, so only the next slot and the ones following closely on it are
// shown.
//
// Non-positive windows are not rejected; they just select less.
func UpNext(items []model.AgendaItem, now time.Time, lookAhead, lookBeyond time.Duration) []Group {
	at := now.UnixMilli()
	limit := now.Add(lookAhead).UnixMilli()

	g := newGrouper()
	for _, it := range items {
		r := RangeOf(it)
		if at < r.Start && r.Start < limit {
			g.add(it)
		}
	}

	groups := g.groups
	if len(groups) == 0 {
		return groups
	}
	slices.SortFunc(groups, func(a, b Group) int {
		if a.Range.Start != b.Range.Start {
			return cmp.Compare(a.Range.Start, b.Range.Start)
		}
		return cmp.Compare(a.Range.End-a.Range.Start, b.Range.End-b.Range.Start)
	})

	cutoff := groups[0].Range.Start + lookBeyond.Milliseconds()
	n := 0
	for _, grp := range groups {
		if grp.Range.Start > cutoff {
			break
		}
		n++
	}
	return groups[:n]
}
