// Package pipeline loads event data from every configured source in
// dependency order, composes it into one snapshot and persists it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	appLog "confguide/internal/log"
	"confguide/internal/model"
)

var (
	ErrNoSources = errors.New("pipeline: no sources configured")
	// ErrAllSourcesFailed means nothing was stored by the run.
	ErrAllSourcesFailed = errors.New("pipeline: every session source failed")
)

// PartialError is returned by a provider that loaded some of its sources.
// The items it returns alongside are used; the stored items of Sources are
// kept.
type PartialError struct {
	Sources []string
	Err     error
}

func (e *PartialError) Error() string { return e.Err.Error() }
func (e *PartialError) Unwrap() error { return e.Err }

// Window is the period and display zone providers load sessions for.
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// Directory provides the reference data sessions point at.
type Directory interface {
	Speakers(ctx context.Context) ([]model.Speaker, error)
	Sponsors(ctx context.Context) ([]model.Sponsor, error)
}

// SessionProvider loads agenda items from one source. SourceIDs lists the
// AgendaItem.SourceID values its items carry, so a failed provider's items
// can be kept from the previous run.
type SessionProvider interface {
	Name() string
	SourceIDs() []string
	Sessions(ctx context.Context, w Window) ([]model.AgendaItem, error)
}

// Sink persists a composed snapshot.
type Sink interface {
	ReplaceSnapshot(ctx context.Context, snap model.Snapshot) error
}

type Pipeline struct {
	Directory Directory // optional
	Providers []SessionProvider
	Sink      Sink

	Location *time.Location
	Horizon  time.Duration // how far ahead recurring sessions are expanded
	Backfill time.Duration // how far back

	Now func() time.Time

	mu sync.Mutex // one run at a time
}

// Run executes one sync. Source failures are logged and joined into the
// returned error. Whatever loaded is persisted and the stored data of the
// failed parts is kept, unless every session provider failed, in which case
// nothing is written and the error wraps ErrAllSourcesFailed.
func (p *Pipeline) Run(ctx context.Context) (model.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Directory == nil && len(p.Providers) == 0 {
		return model.Snapshot{}, ErrNoSources
	}

	started := time.Now()
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	w := Window{Start: now.Add(-p.Backfill), End: now.Add(p.Horizon), Location: loc}

	var errs []error

	// Stage 1: reference data.
	var snap model.Snapshot
	speakersOK := false
	if p.Directory != nil {
		speakers, err := p.Directory.Speakers(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("speakers: %w", err))
			snap.KeepSpeakers = true
		} else {
			snap.Speakers = speakers
			speakersOK = true
		}
		sponsors, err := p.Directory.Sponsors(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("sponsors: %w", err))
			snap.KeepSponsors = true
		} else {
			snap.Sponsors = sponsors
		}
	}

	// Stage 2: sessions, all providers concurrently.
	batches, loaded, failed, keep := p.loadSessions(ctx, w)
	errs = append(errs, failed...)
	if len(p.Providers) > 0 && loaded == 0 {
		err := fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
		appLog.Error("pipeline: every session source failed; keeping previous snapshot", err)
		return model.Snapshot{}, err
	}
	snap.KeepSources = keep

	// Stage 3: compose.
	var known map[string]bool
	if speakersOK {
		known = make(map[string]bool, len(snap.Speakers))
		for _, sp := range snap.Speakers {
			known[sp.ID] = true
		}
	}
	snap.Items = compose(batches, known, loc)
	if snap.Speakers == nil {
		snap.Speakers = []model.Speaker{}
	}
	if snap.Sponsors == nil {
		snap.Sponsors = []model.Sponsor{}
	}

	// Stage 4: persist.
	if p.Sink != nil {
		if err := p.Sink.ReplaceSnapshot(ctx, snap); err != nil {
			return snap, errors.Join(append(errs, fmt.Errorf("persist: %w", err))...)
		}
	}

	appLog.Info("pipeline run completed",
		"items", len(snap.Items),
		"speakers", len(snap.Speakers),
		"sponsors", len(snap.Sponsors),
		"errors", len(errs),
		"kept_sources", len(snap.KeepSources),
		"elapsed", time.Since(started).String(),
	)
	return snap, errors.Join(errs...)
}

// loadSessions runs every provider concurrently. It returns the batches in
// provider order, how many providers loaded at least partially, one error
// per failed provider and the source IDs whose stored items must be kept.
func (p *Pipeline) loadSessions(ctx context.Context, w Window) (batches [][]model.AgendaItem, loaded int, errs []error, keep []string) {
	batches = make([][]model.AgendaItem, len(p.Providers))
	perr := make([]error, len(p.Providers))

	var wg sync.WaitGroup
	for i, prov := range p.Providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := prov.Sessions(ctx, w)
			if err != nil {
				perr[i] = fmt.Errorf("%s: %w", prov.Name(), err)
				appLog.Error("pipeline: session source failed", err, "source", prov.Name())
				var partial *PartialError
				if !errors.As(err, &partial) {
					return
				}
			}
			batches[i] = items
		}()
	}
	wg.Wait()

	for i, err := range perr {
		if err == nil {
			loaded++
			continue
		}
		errs = append(errs, err)
		var partial *PartialError
		if errors.As(err, &partial) {
			loaded++
			keep = append(keep, partial.Sources...)
		} else {
			keep = append(keep, p.Providers[i].SourceIDs()...)
		}
	}
	return batches, loaded, errs, keep
}

// compose merges batches in provider order. The first item with a given ID
// wins. Invalid records are dropped, speaker IDs normalized and times moved
// into loc. known, when non-nil, is the speaker directory used to count
// dangling references.
func compose(batches [][]model.AgendaItem, known map[string]bool, loc *time.Location) []model.AgendaItem {
	seen := make(map[string]bool)
	out := make([]model.AgendaItem, 0)
	dangling := 0

	for _, batch := range batches {
		for _, it := range batch {
			if it.ID == "" {
				appLog.Warn("pipeline: dropping item without id", "topic", it.Topic, "source", it.SourceID)
				continue
			}
			if seen[it.ID] {
				appLog.Debug("pipeline: duplicate item id", "id", it.ID, "source", it.SourceID)
				continue
			}
			if it.Start.IsZero() || it.End.Before(it.Start) {
				appLog.Warn("pipeline: dropping item with invalid time range",
					"id", it.ID, "source", it.SourceID, "start", it.Start, "end", it.End)
				continue
			}
			seen[it.ID] = true

			it.SpeakerIDs = normalizeSpeakers(it.SpeakerIDs)
			if known != nil {
				for _, id := range it.SpeakerIDs {
					if !known[id] {
						dangling++
					}
				}
			}
			it.Start = it.Start.In(loc)
			it.End = it.End.In(loc)
			out = append(out, it)
		}
	}

	if dangling > 0 {
		appLog.Info("pipeline: speaker references not in directory", "count", dangling)
	}
	return out
}

func normalizeSpeakers(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}
