package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "confguide/internal/log"
)

// ParsedSession is a VEVENT from a schedule feed before recurrence
// expansion.
type ParsedSession struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	// Speakers are ORGANIZER and ATTENDEE;ROLE=CHAIR addresses, mailto: stripped.
	Speakers []string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if this VEVENT overrides one instance
	IsOverride bool
}

// ParseICS parses one ICS payload. Events that cannot be parsed are logged
// and skipped; only an unreadable calendar is an error.
func ParseICS(src Source, body []byte) ([]ParsedSession, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	sessions := make([]ParsedSession, 0)
	for _, comp := range cal.Events() {
		s, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		sessions = append(sessions, s)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "session_count", len(sessions))
	return sessions, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedSession, error) {
	out := ParsedSession{Source: src, Speakers: []string{}}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		// DTEND is optional; a missing one means a zero-length session.
		end = start
	}
	out.Start = start
	out.End = end

	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt != nil {
		if vs := dt.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dt.Value, "T") {
			out.AllDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		out.Speakers = appendSpeaker(out.Speakers, p.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		roles := p.ICalParameters["ROLE"]
		if len(roles) > 0 && strings.EqualFold(roles[0], "CHAIR") {
			out.Speakers = appendSpeaker(out.Speakers, p.Value)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if t, err := parseICSTime(rid.Value, start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func appendSpeaker(speakers []string, value string) []string {
	v := strings.TrimSpace(value)
	if len(v) >= len("mailto:") && strings.EqualFold(v[:len("mailto:")], "mailto:") {
		v = v[len("mailto:"):]
	}
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return speakers
	}
	for _, s := range speakers {
		if s == v {
			return speakers
		}
	}
	return append(speakers, v)
}

// parseICSTime parses the basic DATE / DATE-TIME / UTC forms used by EXDATE
// and RECURRENCE-ID. Floating values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
