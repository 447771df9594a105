// Package agenda organizes agenda items into render-ready structures: a
// chronological list interleaved with day and time-slot headers, and the
// "happening now" / "up next" selections.
//
// Every function is pure: it copies what it sorts, keeps no state between
// calls, and never returns an error. Malformed items (End before Start) are
// tolerated rather than rejected.
package agenda

import (
	"time"

	"confguide/internal/model"
)

// TimeRange is the grouping key for items: start and end in epoch
// milliseconds. Two items belong to the same group iff their ranges are equal.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// RangeOf derives the grouping key of an item.
func RangeOf(it model.AgendaItem) TimeRange {
	return TimeRange{Start: it.Start.UnixMilli(), End: it.End.UnixMilli()}
}

// Duration is the length of the range.
func (r TimeRange) Duration() time.Duration {
	return time.Duration(r.End-r.Start) * time.Millisecond
}

// StartTime converts Start to a time.Time in the local zone.
func (r TimeRange) StartTime() time.Time { return time.UnixMilli(r.Start) }

// EndTime converts End to a time.Time in the local zone.
func (r TimeRange) EndTime() time.Time { return time.UnixMilli(r.End) }

// Group is one bucket of items sharing a TimeRange, in first-seen order.
type Group struct {
	Range TimeRange          `json:"range"`
	Items []model.AgendaItem `json:"items"`
}

// First returns the anchor group callers use for navigation.
func First(groups []Group) (Group, bool) {
	if len(groups) == 0 {
		return Group{}, false
	}
	return groups[0], true
}

// grouper collects items into groups keyed by their range; the slice keeps
// insertion order and index maps a range to its position in it.
type grouper struct {
	groups []Group
	index  map[TimeRange]int
}

func newGrouper() *grouper {
	return &grouper{groups: []Group{}, index: make(map[TimeRange]int)}
}

func (g *grouper) add(it model.AgendaItem) {
	key := RangeOf(it)
	if i, ok := g.index[key]; ok {
		g.groups[i].Items = append(g.groups[i].Items, it)
		return
	}
	g.index[key] = len(g.groups)
	g.groups = append(g.groups, Group{Range: key, Items: []model.AgendaItem{it}})
}
