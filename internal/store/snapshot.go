package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"confguide/internal/model"
)

// ReplaceSnapshot swaps the stored items, speakers and sponsors for snap in
// one transaction. Favorites and feedback are kept, and so are the parts snap
// marks with its Keep fields.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	clearItems := "DELETE FROM items"
	var keepArgs []any
	if len(snap.KeepSources) > 0 {
		clearItems += " WHERE source_id NOT IN (" + placeholders(len(snap.KeepSources)) + ")"
		for _, src := range snap.KeepSources {
			keepArgs = append(keepArgs, src)
		}
	}
	if _, err := tx.ExecContext(ctx, clearItems, keepArgs...); err != nil {
		return fmt.Errorf("store: clear items: %w", err)
	}
	if !snap.KeepSpeakers {
		if _, err := tx.ExecContext(ctx, "DELETE FROM speakers"); err != nil {
			return fmt.Errorf("store: clear speakers: %w", err)
		}
	}
	if !snap.KeepSponsors {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sponsors"); err != nil {
			return fmt.Errorf("store: clear sponsors: %w", err)
		}
	}

	// Kept rows may share an ID with a fresh one; the fresh row wins.
	for _, it := range snap.Items {
		ids, err := encodeIDs(it.SpeakerIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO items (id, source_id, start_ms, end_ms, topic, location, description, speaker_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.SourceID, it.Start.UnixMilli(), it.End.UnixMilli(),
			it.Topic, it.Location, it.Description, ids,
		); err != nil {
			return fmt.Errorf("store: insert item %s: %w", it.ID, err)
		}
	}

	speakers := snap.Speakers
	if snap.KeepSpeakers {
		speakers = nil
	}
	for _, sp := range speakers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO speakers (id, name, title, company, bio, image_url)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sp.ID, sp.Name, sp.Title, sp.Company, sp.Bio, sp.ImageURL,
		); err != nil {
			return fmt.Errorf("store: insert speaker %s: %w", sp.ID, err)
		}
	}

	sponsors := snap.Sponsors
	if snap.KeepSponsors {
		sponsors = nil
	}
	for _, sp := range sponsors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sponsors (id, name, level, url, logo_url)
			VALUES (?, ?, ?, ?, ?)`,
			sp.ID, sp.Name, sp.Level, sp.URL, sp.LogoURL,
		); err != nil {
			return fmt.Errorf("store: insert sponsor %s: %w", sp.ID, err)
		}
	}

	return tx.Commit()
}

const itemColumns = `id, source_id, start_ms, end_ms, topic, location, description, speaker_ids`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (model.AgendaItem, error) {
	var (
		it             model.AgendaItem
		startMs, endMs int64
		ids            string
	)
	if err := row.Scan(&it.ID, &it.SourceID, &startMs, &endMs, &it.Topic, &it.Location, &it.Description, &ids); err != nil {
		return it, err
	}
	it.Start = time.UnixMilli(startMs).UTC()
	it.End = time.UnixMilli(endMs).UTC()
	it.SpeakerIDs = decodeIDs(ids)
	return it, nil
}

// Items returns every stored item in sync order. Times are UTC.
func (s *Store) Items(ctx context.Context) ([]model.AgendaItem, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM items ORDER BY rowid`)
}

// FavoriteItems returns the stored items that are marked as favorites.
func (s *Store) FavoriteItems(ctx context.Context) ([]model.AgendaItem, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE id IN (SELECT item_id FROM favorites)
		ORDER BY rowid`)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]model.AgendaItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.AgendaItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) Item(ctx context.Context, id string) (model.AgendaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return it, ErrNotFound
	}
	return it, err
}

func (s *Store) Speakers(ctx context.Context) ([]model.Speaker, error) {
	return s.querySpeakers(ctx, `SELECT id, name, title, company, bio, image_url FROM speakers ORDER BY name, id`)
}

// SpeakersByIDs resolves ids in one query and returns the speakers in the
// order requested. Unknown and repeated IDs are skipped.
func (s *Store) SpeakersByIDs(ctx context.Context, ids []string) ([]model.Speaker, error) {
	if len(ids) == 0 {
		return []model.Speaker{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	found, err := s.querySpeakers(ctx,
		`SELECT id, name, title, company, bio, image_url FROM speakers WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Speaker, len(found))
	for _, sp := range found {
		byID[sp.ID] = sp
	}
	out := make([]model.Speaker, 0, len(found))
	for _, id := range ids {
		if sp, ok := byID[id]; ok {
			out = append(out, sp)
			delete(byID, id)
		}
	}
	return out, nil
}

func (s *Store) querySpeakers(ctx context.Context, query string, args ...any) ([]model.Speaker, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Speaker{}
	for rows.Next() {
		var sp model.Speaker
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Title, &sp.Company, &sp.Bio, &sp.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Store) Sponsors(ctx context.Context) ([]model.Sponsor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, level, url, logo_url FROM sponsors ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Sponsor{}
	for rows.Next() {
		var sp model.Sponsor
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Level, &sp.URL, &sp.LogoURL); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}
