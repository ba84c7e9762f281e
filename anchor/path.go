package anchor

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// EncodePath returns the structural path from the document root to n.
// Text nodes are addressed by ordinal among sibling text nodes, elements
// by tag name plus ordinal among same-tag element siblings:
//
//	/html[1]/body[1]/p[2]/text()[1]
//
// The document root encodes as "/". The path is purely positional —
// cheap and exact while the tree is unchanged, brittle once siblings are
// inserted or removed before the target. Encoding a detached node
// returns ""; such a path resolves to nothing and the caller must treat
// that as a resolution failure, not a codec error.
func EncodePath(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.DocumentNode {
		return "/"
	}
	parent := n.Parent
	if parent == nil {
		return ""
	}
	parentPath := EncodePath(parent)
	if parentPath == "" {
		return ""
	}
	prefix := parentPath
	if prefix == "/" {
		prefix = ""
	}

	switch n.Type {
	case html.TextNode:
		ord := 0
		for s := parent.FirstChild; s != nil; s = s.NextSibling {
			if s.Type == html.TextNode {
				ord++
			}
			if s == n {
				return fmt.Sprintf("%s/text()[%d]", prefix, ord)
			}
		}
		return ""
	case html.ElementNode:
		ord := 0
		for s := parent.FirstChild; s != nil; s = s.NextSibling {
			if s.Type == html.ElementNode && s.Data == n.Data {
				ord++
			}
			if s == n {
				return fmt.Sprintf("%s/%s[%d]", prefix, n.Data, ord)
			}
		}
		return ""
	default:
		// Comments, doctypes and friends collapse onto their parent.
		return parentPath
	}
}

// DecodePath walks doc along a path produced by EncodePath and returns
// the addressed node. It returns (nil, false) on malformed paths, paths
// naming tags that no longer exist, and ordinals past the current
// sibling count — this is the channel through which structural drift
// manifests as failure.
func DecodePath(doc *html.Node, path string) (*html.Node, bool) {
	if doc == nil {
		return nil, false
	}
	path = strings.TrimSpace(path)
	if path == "" || path[0] != '/' {
		return nil, false
	}
	if path == "/" {
		return doc, true
	}

	current := doc
	for _, step := range strings.Split(path[1:], "/") {
		name, ord, ok := parsePathStep(step)
		if !ok {
			return nil, false
		}
		var next *html.Node
		count := 0
		for c := current.FirstChild; c != nil; c = c.NextSibling {
			if name == "text()" {
				if c.Type != html.TextNode {
					continue
				}
			} else if c.Type != html.ElementNode || c.Data != name {
				continue
			}
			count++
			if count == ord {
				next = c
				break
			}
		}
		if next == nil {
			return nil, false
		}
		current = next
	}
	return current, true
}

// parsePathStep parses "div[2]" or "text()[1]". A missing ordinal means 1.
func parsePathStep(step string) (name string, ord int, ok bool) {
	if step == "" {
		return "", 0, false
	}
	idx := strings.IndexByte(step, '[')
	if idx < 0 {
		return step, 1, true
	}
	name = step[:idx]
	rest := step[idx+1:]
	if name == "" || !strings.HasSuffix(rest, "]") {
		return "", 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(rest, "]"))
	if err != nil || n < 1 {
		return "", 0, false
	}
	return name, n, true
}
