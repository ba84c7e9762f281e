// Package notekeeper is the annotation engine behind WebMark.
//
// It owns note persistence, anchoring, and highlight rendering. A note is
// a piece of user content pinned to a text selection on a web page; the
// pin (a structural locator plus the selected text) survives page changes
// through a resolve-verify-fallback chain.
//
// Usage:
//
//	k, err := notekeeper.New(cfg, logger)
//	defer k.Close()
//	k.Start(ctx)
//	k.RegisterMCP(mcpServer)
//	out, note, err := k.AnnotateHTML(ctx, url, pageHTML, "selected text", "my note", "")
package notekeeper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/Goldenmist00/WebMark/anchor"
	"github.com/Goldenmist00/WebMark/highlight"
	"github.com/Goldenmist00/WebMark/idgen"
	"github.com/Goldenmist00/WebMark/notekeeper/internal/store"
	"github.com/Goldenmist00/WebMark/watch"
)

// Keeper is the main notekeeper orchestrator.
type Keeper struct {
	store     *store.Store
	renderer  *highlight.Renderer
	logger    *slog.Logger
	config    *Config
	newID     idgen.Generator
	sanitizer *bluemonday.Policy
	watcher   *watch.Watcher

	mu       sync.Mutex
	sessions map[string]*Session
	subs     map[chan struct{}]struct{}
}

// New creates a Keeper instance. Opens the SQLite database and initialises
// the highlight renderer and ID generator.
func New(cfg *Config, logger *slog.Logger) (*Keeper, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	return &Keeper{
		store:     s,
		renderer:  highlight.New(logger),
		logger:    logger,
		config:    cfg,
		newID:     idgen.Prefixed("note_", idgen.UUIDv7()),
		sanitizer: bluemonday.StrictPolicy(),
		sessions:  make(map[string]*Session),
		subs:      make(map[chan struct{}]struct{}),
	}, nil
}

// Start launches the storage watcher when enabled. On every write to the
// notes database, open sessions are reconciled against storage and
// subscribers are notified.
func (k *Keeper) Start(ctx context.Context) {
	if k.config.Watch.Enabled {
		k.watcher = watch.New(k.store.DB, watch.Options{
			Interval: k.config.Watch.Interval,
			Debounce: k.config.Watch.Debounce,
			Logger:   k.logger,
		})
		go k.watcher.OnChange(ctx, func() error {
			k.refreshSessions(ctx)
			k.notify()
			return nil
		})
	}
	k.logger.Info("notekeeper: started", "db", k.config.DBPath, "watch", k.config.Watch.Enabled)
}

// Close shuts down the keeper and closes the database.
func (k *Keeper) Close() error {
	return k.store.Close()
}

// Store returns the underlying store for direct access (testing, admin).
func (k *Keeper) Store() *store.Store {
	return k.store
}

// WatchStats returns the storage watcher counters, or zero stats when the
// watcher is disabled.
func (k *Keeper) WatchStats() watch.Stats {
	if k.watcher == nil {
		return watch.Stats{}
	}
	return k.watcher.Stats()
}

// Subscribe registers a channel that receives a signal whenever the notes
// database changes. The caller must Unsubscribe when done.
func (k *Keeper) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	k.mu.Lock()
	k.subs[ch] = struct{}{}
	k.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel registered with Subscribe.
func (k *Keeper) Unsubscribe(ch chan struct{}) {
	k.mu.Lock()
	delete(k.subs, ch)
	k.mu.Unlock()
}

func (k *Keeper) refreshSessions(ctx context.Context) {
	k.mu.Lock()
	sessions := make([]*Session, 0, len(k.sessions))
	for _, s := range k.sessions {
		sessions = append(sessions, s)
	}
	k.mu.Unlock()

	for _, s := range sessions {
		if _, err := s.Refresh(ctx); err != nil {
			k.logger.Warn("notekeeper: session refresh failed", "session", s.ID, "error", err)
		}
	}
}

func (k *Keeper) notify() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for ch := range k.subs {
		select {
		case ch <- struct{}{}:
		default: // subscriber is behind; it will catch up on the next signal
		}
	}
}

// ---------- Storage operations ----------

// SaveNote validates and persists a note. Content is sanitized to plain
// text before storage. On update the locator is preserved by the store.
func (k *Keeper) SaveNote(ctx context.Context, n *Note) error {
	if err := validateURL(n.URL); err != nil {
		return err
	}
	n.Content = k.sanitizer.Sanitize(n.Content)
	return k.store.Put(ctx, n)
}

// GetNote retrieves a note by ID.
func (k *Keeper) GetNote(ctx context.Context, id string) (*Note, error) {
	if err := validateNoteID(id); err != nil {
		return nil, err
	}
	n, err := k.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

// Notes returns all notes for a page, oldest first.
func (k *Keeper) Notes(ctx context.Context, pageURL string) ([]*Note, error) {
	if err := validateURL(pageURL); err != nil {
		return nil, err
	}
	return k.store.ListByURL(ctx, pageURL)
}

// AllNotes returns every note across all pages, newest first.
func (k *Keeper) AllNotes(ctx context.Context) ([]*Note, error) {
	return k.store.List(ctx)
}

// UpdateNote replaces a note's content. The stored locator is untouched.
func (k *Keeper) UpdateNote(ctx context.Context, id, content string) (*Note, error) {
	n, err := k.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Content = k.sanitizer.Sanitize(content)
	if err := k.store.Put(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteNote removes a note by ID. Deleting an absent note is a no-op;
// a malformed ID is rejected.
func (k *Keeper) DeleteNote(ctx context.Context, id string) error {
	if err := validateNoteID(id); err != nil {
		return err
	}
	return k.store.Remove(ctx, id)
}

// DeleteByURL removes all notes for a page and returns the count removed.
func (k *Keeper) DeleteByURL(ctx context.Context, pageURL string) (int64, error) {
	if err := validateURL(pageURL); err != nil {
		return 0, err
	}
	return k.store.RemoveByURL(ctx, pageURL)
}

// ---------- Stateless HTML operations ----------

// AnnotateHTML locates snippet in the page, saves a note anchored to it,
// and returns the page with the highlight rendered plus the saved note.
// The note is persisted before rendering: a render failure never loses
// user content.
func (k *Keeper) AnnotateHTML(ctx context.Context, pageURL, pageHTML, snippet, content, audio string) (string, *Note, error) {
	if err := validateURL(pageURL); err != nil {
		return "", nil, err
	}
	if err := validateSelection(snippet); err != nil {
		return "", nil, err
	}

	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return "", nil, fmt.Errorf("%w: parse html: %v", ErrInvalidInput, err)
	}

	r, ok := anchor.Find(doc, snippet)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrSnippetNotFound, truncate(snippet, 80))
	}

	n := &Note{
		ID:        k.newID(),
		URL:       pageURL,
		Content:   k.sanitizer.Sanitize(content),
		AudioData: audio,
		Locator:   anchor.Encode(r),
	}
	if err := k.store.Put(ctx, n); err != nil {
		return "", nil, err
	}

	if err := k.renderer.Create(doc, r, n.ID, n.Content, nil); err != nil {
		// Note is already saved; it will render on the next restore.
		k.logger.Warn("notekeeper: render after save failed", "note_id", n.ID, "error", err)
	}

	out, err := renderHTML(doc)
	if err != nil {
		return "", nil, err
	}
	return out, n, nil
}

// RestoreHTML re-applies all of a page's saved highlights and returns the
// annotated page plus how many notes were restored. Notes whose anchors
// no longer resolve are skipped silently — the page may have changed.
func (k *Keeper) RestoreHTML(ctx context.Context, pageURL, pageHTML string) (string, int, error) {
	if err := validateURL(pageURL); err != nil {
		return "", 0, err
	}

	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return "", 0, fmt.Errorf("%w: parse html: %v", ErrInvalidInput, err)
	}

	notes, err := k.store.ListByURL(ctx, pageURL)
	if err != nil {
		return "", 0, err
	}

	restored := k.restoreInto(doc, notes, nil)

	out, err := renderHTML(doc)
	if err != nil {
		return "", 0, err
	}
	return out, restored, nil
}

// restoreInto resolves each note's anchor against doc and renders the
// surviving highlights, in creation order.
func (k *Keeper) restoreInto(doc *html.Node, notes []*Note, in highlight.Interactor) int {
	restored := 0
	for _, n := range notes {
		r, ok := anchor.Decode(doc, n.Locator)
		if !ok {
			k.logger.Debug("notekeeper: anchor did not resolve", "note_id", n.ID, "url", n.URL)
			continue
		}
		if err := k.renderer.Create(doc, r, n.ID, n.Content, in); err != nil {
			k.logger.Debug("notekeeper: render failed", "note_id", n.ID, "error", err)
			continue
		}
		restored++
	}
	return restored
}

func renderHTML(doc *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", fmt.Errorf("notekeeper: render html: %w", err)
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
