package notekeeper

import "github.com/Goldenmist00/WebMark/notekeeper/internal/store"

// Note is a saved annotation. Alias of the storage type so callers can
// work with notes without importing the internal store.
type Note = store.Note
