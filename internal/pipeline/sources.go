package pipeline

import (
	"context"
	"errors"
	"fmt"

	"confguide/internal/eventmobi"
	"confguide/internal/ics"
	appLog "confguide/internal/log"
	"confguide/internal/model"
)

// EventmobiSessions adapts an Eventmobi client to SessionProvider. The API
// returns the whole event, so the window is not applied.
type EventmobiSessions struct {
	Client *eventmobi.Client
}

func (EventmobiSessions) Name() string { return "eventmobi" }

func (EventmobiSessions) SourceIDs() []string { return []string{"eventmobi"} }

func (e EventmobiSessions) Sessions(ctx context.Context, _ Window) ([]model.AgendaItem, error) {
	return e.Client.Sessions(ctx)
}

// ICSFeeds fetches, parses and expands a set of ICS schedule feeds.
type ICSFeeds struct {
	Fetcher *ics.Fetcher
	Sources []ics.Source
}

func (ICSFeeds) Name() string { return "ics" }

func (f ICSFeeds) SourceIDs() []string {
	ids := make([]string, 0, len(f.Sources))
	for _, src := range f.Sources {
		ids = append(ids, src.ID)
	}
	return ids
}

// Sessions fails only when no feed produced a usable body. Feeds that could
// not be fetched or parsed are reported in a *PartialError next to the items
// of the others.
func (f ICSFeeds) Sessions(ctx context.Context, w Window) ([]model.AgendaItem, error) {
	results, fetchErrs := f.Fetcher.FetchAll(ctx, f.Sources)
	if len(results) == 0 && len(fetchErrs) > 0 {
		return nil, errors.Join(fetchErrs...)
	}

	loaded := make(map[string]bool, len(results))
	var parsed []ics.ParsedSession
	for _, res := range results {
		sessions, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("pipeline: ics parse failed", err, "id", res.Source.ID)
			fetchErrs = append(fetchErrs, fmt.Errorf("ics %s: %w", res.Source.ID, err))
			continue
		}
		loaded[res.Source.ID] = true
		parsed = append(parsed, sessions...)
	}
	if len(loaded) == 0 {
		return nil, errors.Join(fetchErrs...)
	}

	expanded, err := ics.ExpandSessions(parsed, ics.ExpandConfig{
		DisplayLocation: w.Location,
		RangeStart:      w.Start,
		RangeEnd:        w.End,
	})
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, src := range f.Sources {
		if !loaded[src.ID] {
			missing = append(missing, src.ID)
		}
	}
	if len(missing) > 0 {
		return expanded.Items, &PartialError{Sources: missing, Err: errors.Join(fetchErrs...)}
	}
	return expanded.Items, nil
}
