package notekeeper

import "errors"

// ErrNotFound is returned when a note ID does not exist.
var ErrNotFound = errors.New("notekeeper: note not found")

// ErrInvalidInput is returned when note input fails validation.
var ErrInvalidInput = errors.New("notekeeper: invalid input")

// ErrNoSelection is returned when an annotate operation runs without an
// active selection.
var ErrNoSelection = errors.New("notekeeper: no active selection")

// ErrSnippetNotFound is returned when the requested text cannot be located
// in the document.
var ErrSnippetNotFound = errors.New("notekeeper: text not found in document")
