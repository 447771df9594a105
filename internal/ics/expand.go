package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "confguide/internal/log"
	"confguide/internal/model"
)

const defaultMaxInstancesPerSession = 500

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone items are converted into; nil means UTC.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the instances produced (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxInstancesPerSession caps a single RRULE. Zero means the default.
	MaxInstancesPerSession int
}

type ExpandResult struct {
	Items []model.AgendaItem
	// Truncated lists UIDs that hit MaxInstancesPerSession.
	Truncated []string
}

// ExpandSessions turns parsed sessions into agenda items inside the
// configured range. Recurring sessions (a daily keynote, a repeating
// workshop slot) become one item per instance with ID "UID@start";
// RECURRENCE-ID overrides replace the matching instance and EXDATEs remove
// instances. Items are not sorted.
func ExpandSessions(sessions []ParsedSession, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxInstancesPerSession <= 0 {
		cfg.MaxInstancesPerSession = defaultMaxInstancesPerSession
	}

	// Keep first-seen UID order so results are deterministic.
	var uids []string
	baseByUID := make(map[string][]ParsedSession)
	overridesByUID := make(map[string][]ParsedSession)
	for _, s := range sessions {
		if s.IsOverride && s.Recurrence != nil {
			overridesByUID[s.UID] = append(overridesByUID[s.UID], s)
			continue
		}
		if _, seen := baseByUID[s.UID]; !seen {
			uids = append(uids, s.UID)
		}
		baseByUID[s.UID] = append(baseByUID[s.UID], s)
	}

	items := make([]model.AgendaItem, 0, len(sessions))
	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false
		for _, s := range baseByUID[uid] {
			expanded, hitCap := expandSession(s, ov, cfg)
			truncated = truncated || hitCap
			items = append(items, expanded...)
		}
		if truncated {
			result.Truncated = append(result.Truncated, uid)
			appLog.Warn("expand: truncated instances for UID", "uid", uid, "cap", cfg.MaxInstancesPerSession)
		}
	}

	result.Items = items
	return result, nil
}

func expandSession(s ParsedSession, overrides []ParsedSession, cfg ExpandConfig) ([]model.AgendaItem, bool) {
	if s.RawRRule == "" {
		if !overlaps(s.Start, s.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []model.AgendaItem{makeItem(s, s.UID, s.Start, s.End, cfg.DisplayLocation)}, false
	}
	return expandRecurring(s, overrides, cfg)
}

func expandRecurring(s ParsedSession, overrides []ParsedSession, cfg ExpandConfig) ([]model.AgendaItem, bool) {
	r, err := rrule.StrToRRule(s.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", s.UID, "rrule", s.RawRRule)
		return nil, false
	}
	r.DTStart(s.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range s.ExDates {
		set.ExDate(ex.In(s.Start.Location()))
	}

	starts := set.Between(cfg.RangeStart.In(s.Start.Location()), cfg.RangeEnd.In(s.Start.Location()), true)
	hitCap := false
	if len(starts) > cfg.MaxInstancesPerSession {
		starts = starts[:cfg.MaxInstancesPerSession]
		hitCap = true
	}

	dur := s.End.Sub(s.Start)
	out := make([]model.AgendaItem, 0, len(starts))
	for _, start := range starts {
		end := start.Add(dur)
		if s.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, 1)
		}
		id := s.UID + "@" + start.UTC().Format(time.RFC3339)

		src := s
		if o, ok := findOverride(overrides, start); ok {
			src = o
			start, end = o.Start, o.End
		}
		out = append(out, makeItem(src, id, start, end, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride finds the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedSession, start time.Time) (ParsedSession, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedSession{}, false
}

func makeItem(s ParsedSession, id string, start, end time.Time, loc *time.Location) model.AgendaItem {
	speakers := make([]string, len(s.Speakers))
	copy(speakers, s.Speakers)
	return model.AgendaItem{
		ID:          id,
		SourceID:    s.Source.ID,
		Start:       start.In(loc),
		End:         end.In(loc),
		SpeakerIDs:  speakers,
		Topic:       s.Summary,
		Location:    s.Location,
		Description: s.Description,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
