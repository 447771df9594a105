package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const scheduleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//confguide//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:keynote\r\n" +
	"DTSTAMP:20250601T000000Z\r\n" +
	"DTSTART:20250612T090000Z\r\n" +
	"DTEND:20250612T100000Z\r\n" +
	"SUMMARY:Opening keynote\r\n" +
	"LOCATION:Main hall\r\n" +
	"ORGANIZER;CN=Ada:mailto:ADA@example.org\r\n" +
	"ATTENDEE;ROLE=CHAIR;CN=Grace:mailto:grace@example.org\r\n" +
	"ATTENDEE;ROLE=REQ-PARTICIPANT:mailto:someone@example.org\r\n" +
	"RRULE:FREQ=DAILY;COUNT=3\r\n" +
	"EXDATE:20250613T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:keynote\r\n" +
	"DTSTAMP:20250601T000000Z\r\n" +
	"RECURRENCE-ID:20250614T090000Z\r\n" +
	"DTSTART:20250614T100000Z\r\n" +
	"DTEND:20250614T110000Z\r\n" +
	"SUMMARY:Closing keynote\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:workshop\r\n" +
	"DTSTAMP:20250601T000000Z\r\n" +
	"DTSTART:20250612T130000Z\r\n" +
	"DTEND:20250612T150000Z\r\n" +
	"SUMMARY:Go workshop\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20250601T000000Z\r\n" +
	"DTSTART:20250612T130000Z\r\n" +
	"SUMMARY:No UID\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

var testSource = Source{ID: "main", URL: "https://example.test/schedule.ics?token=secret"}

func TestParseICS(t *testing.T) {
	sessions, err := ParseICS(testSource, []byte(scheduleICS))
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	keynote := sessions[0]
	require.Equal(t, "keynote", keynote.UID)
	require.Equal(t, "Opening keynote", keynote.Summary)
	require.Equal(t, "Main hall", keynote.Location)
	require.Equal(t, []string{"ada@example.org", "grace@example.org"}, keynote.Speakers)
	require.Equal(t, "FREQ=DAILY;COUNT=3", keynote.RawRRule)
	require.Len(t, keynote.ExDates, 1)
	require.False(t, keynote.AllDay)

	override := sessions[1]
	require.True(t, override.IsOverride)
	require.NotNil(t, override.Recurrence)

	require.Empty(t, sessions[2].Speakers)
	require.NotNil(t, sessions[2].Speakers)
}

func TestParseICSEmptyBody(t *testing.T) {
	_, err := ParseICS(testSource, nil)
	require.Error(t, err)
}

func TestExpandSessions(t *testing.T) {
	sessions, err := ParseICS(testSource, []byte(scheduleICS))
	require.NoError(t, err)

	berlin := time.FixedZone("CEST", 2*3600)
	res, err := ExpandSessions(sessions, ExpandConfig{
		DisplayLocation: berlin,
		RangeStart:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Empty(t, res.Truncated)
	require.Len(t, res.Items, 3)

	first := res.Items[0]
	require.Equal(t, "keynote@2025-06-12T09:00:00Z", first.ID)
	require.Equal(t, "main", first.SourceID)
	require.Equal(t, berlin, first.Start.Location())
	require.True(t, first.Start.Equal(time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)))
	require.Equal(t, []string{"ada@example.org", "grace@example.org"}, first.SpeakerIDs)

	moved := res.Items[1]
	require.Equal(t, "keynote@2025-06-14T09:00:00Z", moved.ID)
	require.Equal(t, "Closing keynote", moved.Topic)
	require.True(t, moved.Start.Equal(time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)))
	require.Equal(t, time.Hour, moved.Duration())

	require.Equal(t, "workshop", res.Items[2].ID)
}

func TestExpandSessionsRangeAndCap(t *testing.T) {
	sessions, err := ParseICS(testSource, []byte(scheduleICS))
	require.NoError(t, err)

	res, err := ExpandSessions(sessions, ExpandConfig{
		RangeStart:             time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		MaxInstancesPerSession: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"keynote"}, res.Truncated)
	require.Len(t, res.Items, 2)

	_, err = ExpandSessions(sessions, ExpandConfig{
		RangeStart: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func newTestFetcher(t *testing.T) *Fetcher {
	f := NewFetcherWithClient(t.TempDir(), &http.Client{Timeout: 5 * time.Second})
	f.delay = time.Millisecond
	return f
}

func TestFetchOneUsesETagCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(scheduleICS))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	src := Source{ID: "main", URL: srv.URL + "/schedule.ics"}

	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	require.False(t, res.FromCache)

	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	require.True(t, res.FromCache)
	require.Equal(t, scheduleICS, string(res.Body))
	require.EqualValues(t, 2, hits.Load())
}

func TestFetchOneRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(scheduleICS))
	}))
	defer srv.Close()

	res, err := newTestFetcher(t).FetchOne(context.Background(), Source{ID: "main", URL: srv.URL})
	require.NoError(t, err)
	require.False(t, res.FromCache)
	require.EqualValues(t, 2, hits.Load())
}

func TestFetchAllFallsBackToCacheAndReportsFailures(t *testing.T) {
	var broken atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() || strings.HasSuffix(r.URL.Path, "/missing.ics") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(scheduleICS))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	good := Source{ID: "good", URL: srv.URL + "/good.ics"}
	_, err := f.FetchOne(context.Background(), good)
	require.NoError(t, err)

	broken.Store(true)
	results, errs := f.FetchAll(context.Background(), []Source{good, {ID: "missing", URL: srv.URL + "/missing.ics"}})
	require.Len(t, results, 1)
	require.True(t, results[0].FromCache)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "missing")
}

func TestRedactURL(t *testing.T) {
	require.Equal(t, "https://example.test/...(redacted)", redactURL(testSource.URL))
	require.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
