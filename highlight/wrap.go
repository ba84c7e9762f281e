package highlight

import (
	"golang.org/x/net/html"

	"github.com/Goldenmist00/WebMark/anchor"
)

// wrap moves the contents of r into marker and inserts marker at the
// range's original position. A range inside a single text node is
// wrapped directly by splitting the node. Ranges crossing element
// boundaries take the extract-and-reinsert path: the boundary text nodes
// and any partially covered ancestors are split first, then the fully
// covered nodes between the boundaries move into the marker as one
// fragment. Markers therefore never nest illegally across element
// boundaries and content order is preserved exactly.
func wrap(r *anchor.Range, marker *html.Node) error {
	if r == nil || r.StartNode == nil || r.EndNode == nil ||
		r.StartNode.Type != html.TextNode || r.EndNode.Type != html.TextNode ||
		r.StartNode.Parent == nil || r.EndNode.Parent == nil {
		return ErrBadRange
	}

	// A boundary sitting on the edge of its text node covers none of
	// it: the range really begins at the next text run, or ends at the
	// previous one. Normalize before dispatch so cross-node ranges with
	// edge boundaries wrap instead of erroring.
	start, startOff := r.StartNode, r.StartOffset
	if start != r.EndNode && startOff == len([]rune(start.Data)) {
		if start = nextTextNode(start); start == nil {
			return ErrBadRange
		}
		startOff = 0
	}
	end, endOff := r.EndNode, r.EndOffset
	if end != start && endOff == 0 {
		if end = prevTextNode(end); end == nil {
			return ErrBadRange
		}
		endOff = len([]rune(end.Data))
	}
	if start != r.StartNode || end != r.EndNode {
		r = &anchor.Range{StartNode: start, StartOffset: startOff, EndNode: end, EndOffset: endOff}
	}

	if r.StartNode == r.EndNode {
		return wrapSingle(r, marker)
	}
	return wrapAcross(r, marker)
}

func wrapSingle(r *anchor.Range, marker *html.Node) error {
	tn := r.StartNode
	parent := tn.Parent
	data := []rune(tn.Data)
	if r.StartOffset < 0 || r.EndOffset > len(data) || r.StartOffset >= r.EndOffset {
		return ErrBadRange
	}

	before := string(data[:r.StartOffset])
	mid := string(data[r.StartOffset:r.EndOffset])
	after := string(data[r.EndOffset:])

	if before != "" {
		parent.InsertBefore(textNode(before), tn)
	}
	marker.AppendChild(textNode(mid))
	parent.InsertBefore(marker, tn)
	if after != "" {
		parent.InsertBefore(textNode(after), tn)
	}
	parent.RemoveChild(tn)
	return nil
}

func wrapAcross(r *anchor.Range, marker *html.Node) error {
	start, err := splitTextAfter(r.StartNode, r.StartOffset)
	if err != nil {
		return err
	}
	end, err := splitTextBefore(r.EndNode, r.EndOffset)
	if err != nil {
		return err
	}
	common := commonAncestor(start, end)
	if common == nil {
		return ErrBadRange
	}

	startTop := severFollowing(start, common)
	endTop := severPreceding(end, common)

	// Every sibling of common from startTop through endTop is now fully
	// covered by the range. Reinsert them, in order, under the marker at
	// the range's original position.
	common.InsertBefore(marker, startTop)
	for n := startTop; n != nil; {
		next := n.NextSibling
		common.RemoveChild(n)
		marker.AppendChild(n)
		if n == endTop {
			break
		}
		n = next
	}
	return nil
}

// splitTextAfter splits tn at off and returns the node holding the text
// from off onward. off == 0 returns tn unchanged.
func splitTextAfter(tn *html.Node, off int) (*html.Node, error) {
	data := []rune(tn.Data)
	if off < 0 || off >= len(data) {
		return nil, ErrBadRange
	}
	if off == 0 {
		return tn, nil
	}
	rest := textNode(string(data[off:]))
	tn.Data = string(data[:off])
	tn.Parent.InsertBefore(rest, tn.NextSibling)
	return rest, nil
}

// splitTextBefore splits tn at off and returns the node holding the text
// up to off. off == len returns tn unchanged.
func splitTextBefore(tn *html.Node, off int) (*html.Node, error) {
	data := []rune(tn.Data)
	if off <= 0 || off > len(data) {
		return nil, ErrBadRange
	}
	if off == len(data) {
		return tn, nil
	}
	head := textNode(string(data[:off]))
	tn.Data = string(data[off:])
	tn.Parent.InsertBefore(head, tn)
	return head, nil
}

// severFollowing splits the ancestor chain of n below common so that n
// and everything after it within each partially covered ancestor end up
// in a clone inserted after that ancestor. Returns the child of common
// whose subtree starts at n.
func severFollowing(n, common *html.Node) *html.Node {
	for n.Parent != common {
		p := n.Parent
		clone := shallowClone(p)
		for s := n; s != nil; {
			next := s.NextSibling
			p.RemoveChild(s)
			clone.AppendChild(s)
			s = next
		}
		p.Parent.InsertBefore(clone, p.NextSibling)
		n = clone
	}
	return n
}

// severPreceding is the mirror image: n and everything before it within
// each partially covered ancestor move into a clone inserted before that
// ancestor. Returns the child of common whose subtree ends at n.
func severPreceding(n, common *html.Node) *html.Node {
	for n.Parent != common {
		p := n.Parent
		clone := shallowClone(p)
		for s := p.FirstChild; s != nil; {
			next := s.NextSibling
			p.RemoveChild(s)
			clone.AppendChild(s)
			if s == n {
				break
			}
			s = next
		}
		p.Parent.InsertBefore(clone, p)
		n = clone
	}
	return n
}

// nextTextNode returns the first text node after n in document order.
func nextTextNode(n *html.Node) *html.Node {
	for cur := docNext(n); cur != nil; cur = docNext(cur) {
		if cur.Type == html.TextNode {
			return cur
		}
	}
	return nil
}

// prevTextNode returns the last text node before n in document order.
func prevTextNode(n *html.Node) *html.Node {
	for cur := docPrev(n); cur != nil; cur = docPrev(cur) {
		if cur.Type == html.TextNode {
			return cur
		}
	}
	return nil
}

// docNext is the document-order successor: first child, else the next
// sibling of n or of its nearest ancestor that has one.
func docNext(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// docPrev is the document-order predecessor: the previous sibling's
// deepest last descendant, else the parent.
func docPrev(n *html.Node) *html.Node {
	if n.PrevSibling == nil {
		return n.Parent
	}
	n = n.PrevSibling
	for n.LastChild != nil {
		n = n.LastChild
	}
	return n
}

func commonAncestor(a, b *html.Node) *html.Node {
	seen := make(map[*html.Node]bool)
	for n := a.Parent; n != nil; n = n.Parent {
		seen[n] = true
	}
	for n := b.Parent; n != nil; n = n.Parent {
		if seen[n] {
			return n
		}
	}
	return nil
}

func shallowClone(n *html.Node) *html.Node {
	return &html.Node{
		Type:     n.Type,
		Data:     n.Data,
		DataAtom: n.DataAtom,
		Attr:     append([]html.Attribute(nil), n.Attr...),
	}
}

func textNode(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}
