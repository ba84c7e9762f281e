package notekeeper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Goldenmist00/WebMark/anchor"
)

// Message actions understood by HandleMessage. The vocabulary matches the
// browser-side client so either end can drive the other.
const (
	ActionShowNoteInput       = "showNoteInput"
	ActionHighlightOnly       = "highlightOnly"
	ActionUpdateNote          = "updateNote"
	ActionDeleteNote          = "deleteNote"
	ActionGetNoteForHighlight = "getNoteForHighlight"
)

// Message is a client request bound to a session.
type Message struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Reply is the response to a Message. Handled is false for unknown
// actions: the client learns its message was received but meant nothing,
// instead of hanging on a dropped request.
type Reply struct {
	OK      bool    `json:"ok"`
	Handled bool    `json:"handled"`
	Error   string  `json:"error,omitempty"`
	Note    *Note   `json:"note,omitempty"`
	Notes   []*Note `json:"notes,omitempty"`
}

type annotateData struct {
	Snippet string          `json:"snippet,omitempty"`
	Locator *anchor.Locator `json:"locator,omitempty"`
	Content string          `json:"content"`
	Audio   string          `json:"audio_data,omitempty"`
}

type noteRefData struct {
	NoteID  string `json:"note_id"`
	Content string `json:"content,omitempty"`
}

// HandleMessage dispatches a client message against a session. Every
// message gets a reply; unknown actions are acknowledged, not erred.
func (k *Keeper) HandleMessage(ctx context.Context, sessionID string, msg Message) Reply {
	s, ok := k.Session(sessionID)
	if !ok {
		return errReply(fmt.Errorf("%w: unknown session %q", ErrInvalidInput, sessionID))
	}

	switch msg.Action {
	case ActionShowNoteInput, ActionHighlightOnly:
		var d annotateData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return errReply(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		if msg.Action == ActionHighlightOnly {
			// A bare highlight is a note with no content.
			d.Content = ""
		}
		if err := k.selectFor(s, d); err != nil {
			return errReply(err)
		}
		n, err := s.Annotate(ctx, d.Content, d.Audio)
		if err != nil {
			return errReply(err)
		}
		return Reply{OK: true, Handled: true, Note: n}

	case ActionUpdateNote:
		var d noteRefData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return errReply(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		n, err := s.UpdateNote(ctx, d.NoteID, d.Content)
		if err != nil {
			return errReply(err)
		}
		return Reply{OK: true, Handled: true, Note: n}

	case ActionDeleteNote:
		var d noteRefData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return errReply(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		if err := s.DeleteNote(ctx, d.NoteID); err != nil {
			return errReply(err)
		}
		return Reply{OK: true, Handled: true}

	case ActionGetNoteForHighlight:
		var d noteRefData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return errReply(fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		n, err := k.GetNote(ctx, d.NoteID)
		if err != nil {
			return errReply(err)
		}
		return Reply{OK: true, Handled: true, Note: n}

	default:
		return Reply{OK: true, Handled: false}
	}
}

// selectFor applies the message's selection to the session: an exact
// locator when the client has one, a fuzzy snippet otherwise.
func (k *Keeper) selectFor(s *Session, d annotateData) error {
	if d.Locator != nil {
		return s.SelectLocator(*d.Locator)
	}
	return s.Select(d.Snippet)
}

func errReply(err error) Reply {
	return Reply{Handled: true, Error: err.Error()}
}
