package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"confguide/internal/model"
)

// AddFavorite marks itemID. Favorites outlive snapshot replacement, so the
// item does not have to exist yet.
func (s *Store) AddFavorite(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (item_id, created_at) VALUES (?, ?)`,
		itemID, formatTime(time.Now()))
	return err
}

func (s *Store) RemoveFavorite(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE item_id = ?`, itemID)
	return err
}

// Favorites lists favorite item IDs, oldest first.
func (s *Store) Favorites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id FROM favorites ORDER BY created_at, item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) IsFavorite(ctx context.Context, itemID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM favorites WHERE item_id = ?`, itemID).Scan(&n)
	return n > 0, err
}

// AddFeedback validates fb, assigns ID and CreatedAt, and stores it. The
// item must exist.
func (s *Store) AddFeedback(ctx context.Context, fb *model.Feedback) error {
	if fb == nil || fb.ItemID == "" || fb.Rating < 1 || fb.Rating > 5 {
		return ErrInvalidFeedback
	}
	if _, err := s.Item(ctx, fb.ItemID); err != nil {
		return err
	}

	fb.ID = uuid.New().String()
	fb.Comment = strings.TrimSpace(fb.Comment)
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, item_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		fb.ID, fb.ItemID, fb.Rating, fb.Comment, formatTime(fb.CreatedAt))
	return err
}

// Feedback returns the feedback for itemID, oldest first.
func (s *Store) Feedback(ctx context.Context, itemID string) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, rating, comment, created_at FROM feedback WHERE item_id = ? ORDER BY created_at, id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Feedback{}
	for rows.Next() {
		var (
			fb      model.Feedback
			created string
		)
		if err := rows.Scan(&fb.ID, &fb.ItemID, &fb.Rating, &fb.Comment, &created); err != nil {
			return nil, err
		}
		fb.CreatedAt = parseTime(created)
		out = append(out, fb)
	}
	return out, rows.Err()
}
