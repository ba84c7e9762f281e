// Package anchor maps text selections to durable locators and back.
//
// A live selection is encoded into a Locator: structural paths to both
// boundary text nodes, rune offsets within them, and the exact text of
// the span. Resolution runs an ordered strategy chain:
//
//	structural decode → snippet verification → fuzzy text search → none
//
// Structural paths are fast but brittle; the verification gate prevents
// a stale path that still resolves from anchoring to the wrong text; the
// fuzzy search keeps annotations useful across minor page mutations. A
// locator that survives none of the strategies is reported as unresolved,
// never as an error.
package anchor

import "golang.org/x/net/html"

// Locator is the portable, serializable description of a text span.
// TextSnippet equals the live range's text at the moment of creation and
// doubles as ground truth for the fuzzy fallback. A Locator is immutable
// once created for a given version of an annotation.
type Locator struct {
	StartPath   string `json:"start_path"`
	EndPath     string `json:"end_path"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	TextSnippet string `json:"text_snippet"`
}

// Encode captures r into a Locator. Any live range is encodable; there
// is no failure path.
func Encode(r *Range) Locator {
	return Locator{
		StartPath:   EncodePath(r.StartNode),
		EndPath:     EncodePath(r.EndNode),
		StartOffset: r.StartOffset,
		EndOffset:   r.EndOffset,
		TextSnippet: r.Text(),
	}
}

// resolveStrategy attempts one way of mapping a locator onto doc.
type resolveStrategy func(doc *html.Node, loc Locator) (*Range, bool)

// Ordered: each strategy runs only if the previous one failed.
var strategies = []resolveStrategy{resolveStructural, resolveFuzzy}

// Decode maps loc back onto doc. A false result means the annotation is
// currently unresolved on this document — not deleted, not an error.
func Decode(doc *html.Node, loc Locator) (*Range, bool) {
	for _, try := range strategies {
		if r, ok := try(doc, loc); ok {
			return r, true
		}
	}
	return nil, false
}

// resolveStructural follows the stored paths and verifies the candidate
// range's text against the stored snippet. A resolving path whose text
// no longer matches must never produce a mis-anchored span, so any
// mismatch fails the strategy as a whole.
func resolveStructural(doc *html.Node, loc Locator) (*Range, bool) {
	if loc.TextSnippet == "" {
		return nil, false
	}
	start, ok := DecodePath(doc, loc.StartPath)
	if !ok || start.Type != html.TextNode {
		return nil, false
	}
	end, ok := DecodePath(doc, loc.EndPath)
	if !ok || end.Type != html.TextNode {
		return nil, false
	}
	r := &Range{
		StartNode:   start,
		StartOffset: loc.StartOffset,
		EndNode:     end,
		EndOffset:   loc.EndOffset,
	}
	if r.Text() != loc.TextSnippet {
		return nil, false
	}
	return r, true
}

func resolveFuzzy(doc *html.Node, loc Locator) (*Range, bool) {
	return Find(doc, loc.TextSnippet)
}
