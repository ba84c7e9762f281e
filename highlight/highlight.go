// Package highlight renders resolved annotation ranges as marker
// elements in a parsed document and keeps them editable and removable
// without corrupting the tree.
//
// A marker is a span carrying the annotation id and content as data
// attributes. Annotations with non-empty content additionally carry a
// badge child that reveals the content on demand; highlight-only
// annotations are distinguished purely by content emptiness. All
// operations take the document handle explicitly so the renderer can be
// tested against a synthetic tree in isolation.
package highlight

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Goldenmist00/WebMark/anchor"
)

const (
	// MarkerClass marks the wrapper element of one annotation.
	MarkerClass = "webmark-highlight"
	// BadgeClass marks the note affordance inside a marker.
	BadgeClass = "webmark-badge"
	// TooltipClass marks the revealed note text inside a badge.
	TooltipClass = "webmark-tooltip"

	attrNoteID      = "data-note-id"
	attrNoteContent = "data-note-content"

	markerStyle = "background-color:#fef08a;text-decoration:underline;text-decoration-color:#facc15;cursor:pointer"
)

// ErrBadRange is returned when a range cannot be wrapped: boundaries are
// not text nodes, offsets are out of bounds, or the boundaries do not
// share a document.
var ErrBadRange = errors.New("highlight: range is not wrappable")

// Interactor receives edit and delete intents raised from a marker's
// affordances and forwards them to the orchestrator.
type Interactor interface {
	OnEdit(noteID, content, selectedText string)
	OnDelete(noteID string)
}

// Renderer creates, updates and removes visual markers. It owns the
// per-annotation interactor registry; the DOM itself carries only ids
// and content. One Renderer serves every open document, so the registry
// has its own lock — callers synchronize access to each document tree,
// not to the Renderer.
type Renderer struct {
	logger *slog.Logger

	mu          sync.Mutex
	interactors map[string]Interactor
}

// New creates a Renderer.
func New(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		logger:      logger,
		interactors: make(map[string]Interactor),
	}
}

// Create wraps r in a marker for noteID. Idempotent: if a marker for
// noteID already exists in doc this is a no-op. A badge affordance is
// attached only when content is non-empty.
func (rd *Renderer) Create(doc *html.Node, r *anchor.Range, noteID, content string, in Interactor) error {
	if FindMarker(doc, noteID) != nil {
		rd.logger.Debug("highlight: marker exists, skipping", "note_id", noteID)
		return nil
	}

	marker := newMarker(noteID, content)
	if err := wrap(r, marker); err != nil {
		return err
	}
	if content != "" {
		attachBadge(marker, content)
	}
	if in != nil {
		rd.mu.Lock()
		rd.interactors[noteID] = in
		rd.mu.Unlock()
	}
	return nil
}

// Update rewrites the stored content and badge of an existing marker in
// place. The marker element itself — and with it the wrapped text and
// its position — is never replaced. Missing markers are a no-op: the
// annotation may simply be unresolved this load.
func (rd *Renderer) Update(doc *html.Node, noteID, content string) {
	marker := FindMarker(doc, noteID)
	if marker == nil {
		rd.logger.Debug("highlight: no marker to update", "note_id", noteID)
		return
	}
	setAttr(marker, attrNoteContent, content)

	badge := findChildByClass(marker, BadgeClass)
	switch {
	case content == "" && badge != nil:
		marker.RemoveChild(badge)
	case content != "" && badge == nil:
		attachBadge(marker, content)
	case content != "" && badge != nil:
		setTooltipText(badge, content)
	}
}

// Remove unwraps the marker for noteID: the marker is replaced by its
// own wrapped children in exact order. The replacement is prepared
// before any splice so the document is never observed partially
// unwrapped. Missing markers are a no-op.
func (rd *Renderer) Remove(doc *html.Node, noteID string) {
	marker := FindMarker(doc, noteID)
	if marker == nil || marker.Parent == nil {
		return
	}
	rd.mu.Lock()
	delete(rd.interactors, noteID)
	rd.mu.Unlock()

	// The badge is renderer chrome, not wrapped content.
	if badge := findChildByClass(marker, BadgeClass); badge != nil {
		marker.RemoveChild(badge)
	}

	parent := marker.Parent
	var children []*html.Node
	for c := marker.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		marker.RemoveChild(c)
		parent.InsertBefore(c, marker)
	}
	parent.RemoveChild(marker)
}

// RemoveAll unwraps every marker in doc.
func (rd *Renderer) RemoveAll(doc *html.Node) {
	for _, m := range Markers(doc) {
		rd.Remove(doc, getAttr(m, attrNoteID))
	}
}

// Click simulates activating the marker for noteID, forwarding an edit
// intent to its registered interactor. Returns false when no marker or
// no interactor is present.
func (rd *Renderer) Click(doc *html.Node, noteID string) bool {
	marker := FindMarker(doc, noteID)
	if marker == nil {
		return false
	}
	rd.mu.Lock()
	in, ok := rd.interactors[noteID]
	rd.mu.Unlock()
	if !ok {
		return false
	}
	in.OnEdit(noteID, getAttr(marker, attrNoteContent), MarkerText(marker))
	return true
}

// FindMarker returns the marker element for noteID, or nil.
func FindMarker(doc *html.Node, noteID string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && getAttr(n, attrNoteID) == noteID {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if doc != nil && noteID != "" {
		walk(doc)
	}
	return found
}

// Markers returns every marker element in doc, in document order.
func Markers(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, MarkerClass) {
			out = append(out, n)
			// Markers never nest inside each other.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if doc != nil {
		walk(doc)
	}
	return out
}

// MarkerID returns the annotation id a marker carries.
func MarkerID(marker *html.Node) string {
	return getAttr(marker, attrNoteID)
}

// MarkerText returns the wrapped text of a marker, excluding badge chrome.
func MarkerText(marker *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, BadgeClass) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if marker != nil {
		walk(marker)
	}
	return sb.String()
}

func newMarker(noteID, content string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: "class", Val: MarkerClass},
			{Key: attrNoteID, Val: noteID},
			{Key: attrNoteContent, Val: content},
			{Key: "style", Val: markerStyle},
		},
	}
}

func attachBadge(marker *html.Node, content string) {
	badge := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: "class", Val: BadgeClass}},
	}
	tooltip := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: "class", Val: TooltipClass}},
	}
	tooltip.AppendChild(&html.Node{Type: html.TextNode, Data: content})
	badge.AppendChild(tooltip)
	marker.AppendChild(badge)
}

func setTooltipText(badge *html.Node, content string) {
	tooltip := findChildByClass(badge, TooltipClass)
	if tooltip == nil {
		setAttr(badge, "title", content)
		return
	}
	for tooltip.FirstChild != nil {
		tooltip.RemoveChild(tooltip.FirstChild)
	}
	tooltip.AppendChild(&html.Node{Type: html.TextNode, Data: content})
}

func findChildByClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
