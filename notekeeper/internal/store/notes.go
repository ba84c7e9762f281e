package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Goldenmist00/WebMark/anchor"
	"github.com/Goldenmist00/WebMark/dbopen"
)

// Note is a saved annotation: user content plus the locator that pins it
// to a place in the page.
type Note struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Content   string         `json:"content"`
	AudioData string         `json:"audio_data,omitempty"` // base64 data URL, optional
	Locator   anchor.Locator `json:"dom_locator"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
	Version   int            `json:"version"`
}

// Put inserts or updates a note. On insert, version starts at 1. On update,
// content and audio_data are replaced, version and updated_at are bumped,
// and the locator columns are left untouched — the anchor never moves once
// it is written.
func (s *Store) Put(ctx context.Context, n *Note) error {
	now := time.Now().UnixMilli()

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		var version int
		var createdAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT version, created_at FROM notes WHERE id = ?`, n.ID,
		).Scan(&version, &createdAt)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if n.CreatedAt == 0 {
				n.CreatedAt = now
			}
			n.UpdatedAt = now
			n.Version = 1
			_, err = tx.ExecContext(ctx, `
				INSERT INTO notes
					(id, url, content, audio_data, start_path, end_path,
					 start_offset, end_offset, text_snippet, created_at, updated_at, version)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
				n.ID, n.URL, n.Content, nullStr(n.AudioData),
				n.Locator.StartPath, n.Locator.EndPath,
				n.Locator.StartOffset, n.Locator.EndOffset, n.Locator.TextSnippet,
				n.CreatedAt, n.UpdatedAt, n.Version,
			)
			return err

		case err != nil:
			return err

		default:
			n.CreatedAt = createdAt
			n.UpdatedAt = now
			n.Version = version + 1
			_, err = tx.ExecContext(ctx, `
				UPDATE notes SET content=?, audio_data=?, updated_at=?, version=?
				WHERE id=?`,
				n.Content, nullStr(n.AudioData), n.UpdatedAt, n.Version, n.ID,
			)
			return err
		}
	})
}

// Get retrieves a note by ID. Returns (nil, nil) when the note is absent.
func (s *Store) Get(ctx context.Context, id string) (*Note, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, url, content, audio_data, start_path, end_path,
		       start_offset, end_offset, text_snippet, created_at, updated_at, version
		FROM notes WHERE id = ?`, id)

	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ListByURL returns all notes for a page, oldest first. Restore order
// matters: earlier notes were anchored against an earlier page state, so
// they are re-applied in creation order.
func (s *Store) ListByURL(ctx context.Context, url string) ([]*Note, error) {
	return s.list(ctx, `
		SELECT id, url, content, audio_data, start_path, end_path,
		       start_offset, end_offset, text_snippet, created_at, updated_at, version
		FROM notes WHERE url = ? ORDER BY created_at ASC`, url)
}

// List returns all notes across all pages, newest first.
func (s *Store) List(ctx context.Context) ([]*Note, error) {
	return s.list(ctx, `
		SELECT id, url, content, audio_data, start_path, end_path,
		       start_offset, end_offset, text_snippet, created_at, updated_at, version
		FROM notes ORDER BY updated_at DESC`)
}

// Remove deletes a note by ID. Deleting an absent note is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	return err
}

// RemoveByURL deletes all notes for a page and returns how many were removed.
func (s *Store) RemoveByURL(ctx context.Context, url string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM notes WHERE url = ?`, url)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Note, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*Note, error) {
	n := &Note{}
	var audio sql.NullString
	err := row.Scan(
		&n.ID, &n.URL, &n.Content, &audio,
		&n.Locator.StartPath, &n.Locator.EndPath,
		&n.Locator.StartOffset, &n.Locator.EndOffset, &n.Locator.TextSnippet,
		&n.CreatedAt, &n.UpdatedAt, &n.Version,
	)
	if err != nil {
		return nil, err
	}
	n.AudioData = audio.String
	return n, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
