package store

// Schema contains the complete DDL for the notekeeper tables.
const Schema = `
-- Notes: one row per annotation, keyed by the page URL it belongs to.
-- Locator columns pin the annotated text inside the page; they are written
-- once at creation and never touched by content updates.
CREATE TABLE IF NOT EXISTS notes (
    id           TEXT PRIMARY KEY,
    url          TEXT NOT NULL,
    content      TEXT NOT NULL DEFAULT '',
    audio_data   TEXT,
    start_path   TEXT NOT NULL,
    end_path     TEXT NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset   INTEGER NOT NULL,
    text_snippet TEXT NOT NULL,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    version      INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_notes_url ON notes(url);
CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at DESC);
`
