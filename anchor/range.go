package anchor

import (
	"strings"

	"golang.org/x/net/html"
)

// Range is a transient reference to a text span in a parsed document.
// Both boundaries are text nodes; offsets are rune offsets into the
// node's data. A Range is never persisted and never outlives the
// document it points into.
type Range struct {
	StartNode   *html.Node
	StartOffset int
	EndNode     *html.Node
	EndOffset   int
}

// Text returns the exact text content of the range: the concatenation of
// text-node data between the two boundaries in document order, with the
// boundary nodes sliced at their offsets. Invalid ranges (offsets out of
// bounds, end before start, detached boundaries) return "".
func (r *Range) Text() string {
	if r == nil || r.StartNode == nil || r.EndNode == nil {
		return ""
	}
	if r.StartNode == r.EndNode {
		data := []rune(r.StartNode.Data)
		if r.StartOffset < 0 || r.EndOffset > len(data) || r.StartOffset > r.EndOffset {
			return ""
		}
		return string(data[r.StartOffset:r.EndOffset])
	}

	var sb strings.Builder
	in := false
	for _, tn := range textNodes(docRoot(r.StartNode)) {
		switch tn {
		case r.StartNode:
			data := []rune(tn.Data)
			if r.StartOffset < 0 || r.StartOffset > len(data) {
				return ""
			}
			sb.WriteString(string(data[r.StartOffset:]))
			in = true
		case r.EndNode:
			// End before start in document order is not a span.
			if !in {
				return ""
			}
			data := []rune(tn.Data)
			if r.EndOffset < 0 || r.EndOffset > len(data) {
				return ""
			}
			sb.WriteString(string(data[:r.EndOffset]))
			return sb.String()
		default:
			if in {
				sb.WriteString(tn.Data)
			}
		}
	}
	// End node never seen — boundaries live in different trees.
	return ""
}

// textNodes returns every text node reachable from root, in document order.
func textNodes(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// docRoot climbs to the topmost ancestor of n.
func docRoot(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}
