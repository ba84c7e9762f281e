package anchor

import "testing"

func TestFind_SingleNodeDeterminism(t *testing.T) {
	// WHAT: duplicate text in two nodes; find always hits the first.
	// WHY: document order is the deterministic tie-break.
	doc := parseDoc(t, `<div><p>hello world</p><p>hello world</p></div>`)
	first := findTextRun(t, doc, "hello")

	for i := 0; i < 5; i++ {
		r, ok := Find(doc, "hello")
		if !ok {
			t.Fatal("find failed")
		}
		if r.StartNode != first {
			t.Fatal("match should be in the first node in document order")
		}
		if r.Text() != "hello" {
			t.Errorf("text: got %q", r.Text())
		}
	}
}

func TestFind_CrossNodeStitching(t *testing.T) {
	// WHAT: "bar baz" split across the second and third text runs.
	// WHY: the sliding-buffer pass must stitch runs with exact offsets.
	doc := parseDoc(t, `<p><span>foo </span><span>bar </span><span>baz</span></p>`)

	r, ok := Find(doc, "bar baz")
	if !ok {
		t.Fatal("cross-node find failed")
	}
	if r.StartNode != findTextRun(t, doc, "bar") {
		t.Error("start should be in the second run")
	}
	if r.EndNode != findTextRun(t, doc, "baz") {
		t.Error("end should be in the third run")
	}
	if r.StartOffset != 0 || r.EndOffset != 3 {
		t.Errorf("offsets: got (%d,%d), want (0,3)", r.StartOffset, r.EndOffset)
	}
	if r.Text() != "bar baz" {
		t.Errorf("text: got %q, want %q", r.Text(), "bar baz")
	}
}

func TestFind_CrossNodeMidRunStart(t *testing.T) {
	// WHAT: a match starting mid-run and ending two runs later.
	// WHY: the recorded start offset feeds the forward consume walk.
	doc := parseDoc(t, `<p>intro <b>middle</b> outro</p>`)

	r, ok := Find(doc, "tro middle out")
	if !ok {
		t.Fatal("find failed")
	}
	if r.Text() != "tro middle out" {
		t.Errorf("text: got %q", r.Text())
	}
	if r.StartNode != findTextRun(t, doc, "intro") || r.StartOffset != 2 {
		t.Errorf("start: node %q offset %d", r.StartNode.Data, r.StartOffset)
	}
}

func TestFind_NoMatch(t *testing.T) {
	// WHAT: snippet absent from the document.
	// WHY: not-found is a clean (nil, false), never a partial range.
	doc := parseDoc(t, `<p>nothing relevant here</p>`)
	if _, ok := Find(doc, "absent snippet"); ok {
		t.Fatal("expected no match")
	}
}

func TestFind_EmptySnippet(t *testing.T) {
	// WHAT: empty snippet input.
	// WHY: empty snippets are invalid by contract; never match.
	doc := parseDoc(t, `<p>text</p>`)
	if _, ok := Find(doc, ""); ok {
		t.Fatal("empty snippet must not match")
	}
}

func TestFind_SingleNodeWinsOverCrossNode(t *testing.T) {
	// WHAT: snippet present whole in a later node and split earlier.
	// WHY: the single-node pass runs to completion before stitching.
	doc := parseDoc(t, `<div><p><span>wh</span><span>ole</span></p><p>whole</p></div>`)
	r, ok := Find(doc, "whole")
	if !ok {
		t.Fatal("find failed")
	}
	if r.StartNode != r.EndNode {
		t.Error("direct single-node match should win over stitching")
	}
	if r.Text() != "whole" {
		t.Errorf("text: got %q", r.Text())
	}
}

func TestFind_CrossNodeStaleStartUnverified(t *testing.T) {
	// WHAT: the buffer first contains the snippet past the seeded start
	// candidate; the result begins at the stale start and its text
	// differs from the snippet.
	// WHY: the stitcher never re-seeds or verifies — this pins the
	// contract so the behavior is not "fixed" without realizing callers
	// like the resolver chain rely on its exact shape.
	doc := parseDoc(t, `<p>a-<b>ab</b>c</p>`)

	r, ok := Find(doc, "abc")
	if !ok {
		t.Fatal("expected a (stale) cross-node match")
	}
	if r.StartNode != findTextRun(t, doc, "a-") || r.StartOffset != 0 {
		t.Errorf("start: node %q offset %d, want seeded first candidate", r.StartNode.Data, r.StartOffset)
	}
	if r.Text() != "a-a" {
		t.Errorf("text: got %q, want %q (len(snippet) runes from the stale start)", r.Text(), "a-a")
	}
}
