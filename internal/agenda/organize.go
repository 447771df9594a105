package agenda

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"confguide/internal/model"
)

type EntryKind int

const (
	KindDate EntryKind = iota
	KindTimeGroup
	KindItem
)

func (k EntryKind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindTimeGroup:
		return "time_group"
	case KindItem:
		return "item"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

func (k EntryKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// DateHeader marks the start of a local calendar day. Date is local midnight
// in epoch milliseconds.
type DateHeader struct {
	Date int64 `json:"date"`
}

// TimeGroupHeader marks the start of a run of items sharing one time slot.
type TimeGroupHeader struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Entry is one row of an organized agenda. Exactly one of Date, Group, Item
// is set, matching Kind.
type Entry struct {
	Kind  EntryKind         `json:"kind"`
	Date  *DateHeader       `json:"date,omitempty"`
	Group *TimeGroupHeader  `json:"group,omitempty"`
	Item  *model.AgendaItem `json:"item,omitempty"`
}

// organizeState is the fold accumulator of Organize.
type organizeState struct {
	started bool
	date    int64
	rng     TimeRange
	inDay   bool // a time group header was emitted for the current day
}

// Organize sorts items by start time and interleaves a DateHeader whenever
// the local day (in loc) changes and a TimeGroupHeader whenever the exact
// (start, end) pair changes. Items with equal starts keep their input order.
// A nil loc means UTC.
func Organize(items []model.AgendaItem, loc *time.Location) []Entry {
	if loc == nil {
		loc = time.UTC
	}
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b model.AgendaItem) int {
		return a.Start.Compare(b.Start)
	})

	out := make([]Entry, 0, len(sorted)*2)
	var st organizeState
	for i := range sorted {
		it := sorted[i]
		day := localMidnight(it.Start, loc)
		if !st.started || day != st.date {
			out = append(out, Entry{Kind: KindDate, Date: &DateHeader{Date: day}})
			st.started = true
			st.date = day
			st.inDay = false
		}

		rng := RangeOf(it)
		if !st.inDay || rng != st.rng {
			out = append(out, Entry{Kind: KindTimeGroup, Group: &TimeGroupHeader{Start: rng.Start, End: rng.End}})
			st.rng = rng
			st.inDay = true
		}

		out = append(out, Entry{Kind: KindItem, Item: &it})
	}
	return out
}

// localMidnight zeroes the clock fields of t in loc.
func localMidnight(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UnixMilli()
}
