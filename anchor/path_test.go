package anchor

import (
	"testing"

	"golang.org/x/net/html"
)

func TestEncodePath_TextAndElementOrdinals(t *testing.T) {
	// WHAT: path segments for mixed text/element siblings.
	// WHY: ordinals count within node kind, not raw child position.
	doc := parseDoc(t, `<p>a<b>x</b>c</p>`)

	first := findTextRun(t, doc, "a")
	if got := EncodePath(first); got != "/html[1]/body[1]/p[1]/text()[1]" {
		t.Errorf("first text: got %q", got)
	}
	second := findTextRun(t, doc, "c")
	if got := EncodePath(second); got != "/html[1]/body[1]/p[1]/text()[2]" {
		t.Errorf("second text: got %q", got)
	}
	inner := findTextRun(t, doc, "x")
	if got := EncodePath(inner); got != "/html[1]/body[1]/p[1]/b[1]/text()[1]" {
		t.Errorf("nested text: got %q", got)
	}
}

func TestEncodePath_SameTagSiblings(t *testing.T) {
	// WHAT: two <p> siblings get distinct ordinals.
	// WHY: ordinals are scoped per tag name.
	doc := parseDoc(t, `<div><p>one</p><span>mid</span><p>two</p></div>`)

	if got := EncodePath(findTextRun(t, doc, "two").Parent); got != "/html[1]/body[1]/div[1]/p[2]" {
		t.Errorf("second p: got %q", got)
	}
	if got := EncodePath(findTextRun(t, doc, "mid").Parent); got != "/html[1]/body[1]/div[1]/span[1]" {
		t.Errorf("span: got %q", got)
	}
}

func TestDecodePath_RoundTrip(t *testing.T) {
	// WHAT: decode(encode(n)) == n for every text node of a nested doc.
	// WHY: the codec must be exact while the tree is unchanged.
	doc := parseDoc(t, `<div><p>a<b>x</b>c</p><ul><li>i1</li><li>i2</li></ul></div>`)
	for _, tn := range textNodes(doc) {
		path := EncodePath(tn)
		got, ok := DecodePath(doc, path)
		if !ok {
			t.Fatalf("decode %q failed", path)
		}
		if got != tn {
			t.Errorf("decode %q: wrong node (%q)", path, got.Data)
		}
	}
}

func TestDecodePath_Failures(t *testing.T) {
	// WHAT: malformed paths, missing tags, out-of-range ordinals.
	// WHY: drift must surface as (nil, false), never as a wrong node.
	doc := parseDoc(t, `<p>solo</p>`)

	for _, path := range []string{
		"",
		"relative/p[1]",
		"/html[1]/body[1]/p[2]/text()[1]", // ordinal past sibling count
		"/html[1]/body[1]/article[1]",     // tag not present
		"/html[1]/body[1]/p[0]",           // ordinals are 1-based
		"/html[1]/body[1]/p[x]",
		"/html[1]/body[1]/p[1]/text()[2]",
		"/html[1]//p[1]",
	} {
		if n, ok := DecodePath(doc, path); ok {
			t.Errorf("path %q: expected failure, got node %q", path, n.Data)
		}
	}
}

func TestDecodePath_Root(t *testing.T) {
	// WHAT: "/" addresses the document node.
	// WHY: root is the recursion anchor for every encoded path.
	doc := parseDoc(t, `<p>x</p>`)
	n, ok := DecodePath(doc, "/")
	if !ok || n != doc {
		t.Fatal("root path should decode to the document node")
	}
	if got := EncodePath(doc); got != "/" {
		t.Errorf("root encode: got %q", got)
	}
}

func TestEncodePath_DetachedNode(t *testing.T) {
	// WHAT: encoding a node with no parent chain to a document.
	// WHY: detached nodes have no meaningful path; callers treat the
	// empty path as a resolution failure.
	orphan := &html.Node{Type: html.TextNode, Data: "adrift"}
	if got := EncodePath(orphan); got != "" {
		t.Errorf("detached: got %q, want empty", got)
	}
}
