package notekeeper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/Goldenmist00/WebMark/anchor"
	"github.com/Goldenmist00/WebMark/highlight"
	"github.com/Goldenmist00/WebMark/idgen"
)

// Session is a stateful view of one page: a parsed document that
// accumulates highlights as the client selects, annotates, edits, and
// deletes. It mirrors the lifetime of an open browser tab.
type Session struct {
	ID string

	keeper     *Keeper
	url        string
	interactor highlight.Interactor

	mu        sync.Mutex
	doc       *html.Node
	selection *anchor.Range
	restored  int
}

// OpenSession parses the page, restores its saved highlights, and
// registers a new session. The interactor (optional) receives highlight
// click callbacks.
func (k *Keeper) OpenSession(ctx context.Context, pageURL, pageHTML string, in highlight.Interactor) (*Session, error) {
	if err := validateURL(pageURL); err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrInvalidInput, err)
	}

	notes, err := k.store.ListByURL(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	restored := k.restoreInto(doc, notes, in)

	s := &Session{
		ID:         idgen.Prefixed("sess_", idgen.NanoID(12))(),
		keeper:     k,
		url:        pageURL,
		interactor: in,
		doc:        doc,
		restored:   restored,
	}

	k.mu.Lock()
	k.sessions[s.ID] = s
	k.mu.Unlock()

	k.logger.Info("notekeeper: session opened", "session", s.ID, "url", pageURL, "restored", restored)
	return s, nil
}

// Session returns a registered session by ID.
func (k *Keeper) Session(id string) (*Session, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.sessions[id]
	return s, ok
}

// CloseSession unregisters a session. The document is discarded; notes
// live in storage.
func (k *Keeper) CloseSession(id string) {
	k.mu.Lock()
	delete(k.sessions, id)
	k.mu.Unlock()
}

// URL returns the page URL this session is bound to.
func (s *Session) URL() string { return s.url }

// Restored returns how many saved notes resolved when the session opened.
func (s *Session) Restored() int { return s.restored }

// Select locates text in the document and makes it the active selection.
func (s *Session) Select(snippet string) error {
	if err := validateSelection(snippet); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := anchor.Find(s.doc, snippet)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSnippetNotFound, truncate(snippet, 80))
	}
	s.selection = r
	return nil
}

// SelectLocator resolves a full locator against the document and makes it
// the active selection. Used by clients that track exact positions.
func (s *Session) SelectLocator(loc anchor.Locator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := anchor.Decode(s.doc, loc)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSnippetNotFound, truncate(loc.TextSnippet, 80))
	}
	s.selection = r
	return nil
}

// Annotate saves a note anchored to the active selection and renders its
// highlight. The note is persisted before the document is touched; the
// selection is consumed either way.
func (s *Session) Annotate(ctx context.Context, content, audio string) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selection == nil {
		return nil, ErrNoSelection
	}
	r := s.selection
	s.selection = nil

	n := &Note{
		ID:        s.keeper.newID(),
		URL:       s.url,
		Content:   s.keeper.sanitizer.Sanitize(content),
		AudioData: audio,
		Locator:   anchor.Encode(r),
	}
	if err := s.keeper.store.Put(ctx, n); err != nil {
		return nil, err
	}

	if err := s.keeper.renderer.Create(s.doc, r, n.ID, n.Content, s.interactor); err != nil {
		s.keeper.logger.Warn("notekeeper: render after save failed",
			"session", s.ID, "note_id", n.ID, "error", err)
	}
	return n, nil
}

// UpdateNote replaces a note's content and refreshes its marker in place.
// The highlight is never re-wrapped: only the badge and tooltip change.
func (s *Session) UpdateNote(ctx context.Context, id, content string) (*Note, error) {
	n, err := s.keeper.UpdateNote(ctx, id, content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.keeper.renderer.Update(s.doc, id, n.Content)
	s.mu.Unlock()
	return n, nil
}

// DeleteNote removes a note from storage and unwraps its highlight,
// restoring the original document structure.
func (s *Session) DeleteNote(ctx context.Context, id string) error {
	if err := s.keeper.DeleteNote(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.keeper.renderer.Remove(s.doc, id)
	s.mu.Unlock()
	return nil
}

// DeleteAll removes every note for this page and strips all highlights.
func (s *Session) DeleteAll(ctx context.Context) (int64, error) {
	removed, err := s.keeper.DeleteByURL(ctx, s.url)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.keeper.renderer.RemoveAll(s.doc)
	s.mu.Unlock()
	return removed, nil
}

// Refresh reconciles the document with storage: markers whose notes were
// deleted elsewhere are unwrapped, notes added elsewhere are rendered,
// and edited content is rewritten in place. Returns how many highlights
// were newly rendered. The storage watcher calls this on every change so
// external writes show up in live sessions.
func (s *Session) Refresh(ctx context.Context) (int, error) {
	notes, err := s.keeper.store.ListByURL(ctx, s.url)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]*Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	for _, m := range highlight.Markers(s.doc) {
		id := highlight.MarkerID(m)
		n, ok := byID[id]
		if !ok {
			s.keeper.renderer.Remove(s.doc, id)
			continue
		}
		s.keeper.renderer.Update(s.doc, id, n.Content)
	}

	// Create is idempotent, so surviving markers are skipped and only
	// notes added since the last pass render.
	added := 0
	for _, n := range notes {
		if highlight.FindMarker(s.doc, n.ID) != nil {
			continue
		}
		r, ok := anchor.Decode(s.doc, n.Locator)
		if !ok {
			continue
		}
		if err := s.keeper.renderer.Create(s.doc, r, n.ID, n.Content, s.interactor); err != nil {
			continue
		}
		added++
	}
	return added, nil
}

// Click simulates a click on a highlight, forwarding the note to the
// session interactor. Returns false when the marker does not exist.
func (s *Session) Click(noteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keeper.renderer.Click(s.doc, noteID)
}

// HTML renders the session document in its current state.
func (s *Session) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return renderHTML(s.doc)
}
