package model

import "time"

// AgendaItem is a single scheduled session. The interval is half-open:
// [Start, End). Nothing here enforces Start <= End; the sync pipeline drops
// inverted records before they are stored.
type AgendaItem struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"` // config source that produced the item

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// SpeakerIDs is never nil once the item has passed through the pipeline.
	SpeakerIDs []string `json:"speaker_ids"`

	Topic       string `json:"topic"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (a AgendaItem) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

type Speaker struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Company  string `json:"company"`
	Bio      string `json:"bio"`
	ImageURL string `json:"image_url"`
}

type Sponsor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Level   string `json:"level"` // e.g. "gold", "silver"
	URL     string `json:"url"`
	LogoURL string `json:"logo_url"`
}

// Feedback is one attendee rating of a session.
type Feedback struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Rating    int       `json:"rating"` // 1..5
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is everything one sync run produced. The Keep fields mark parts
// that failed to load; the store leaves their previously stored rows alone.
type Snapshot struct {
	Items    []AgendaItem
	Speakers []Speaker
	Sponsors []Sponsor

	KeepSpeakers bool
	KeepSponsors bool
	// KeepSources lists item source IDs whose stored items are kept.
	KeepSources []string
}
