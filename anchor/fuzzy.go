package anchor

import "golang.org/x/net/html"

// Find locates snippet in doc by text content alone and returns a range
// over the first match in document order. It is the expensive fallback
// used when structural paths fail to resolve: worst case linear in the
// document's total text length. An empty snippet never matches — the
// caller guards against annotating empty selections.
func Find(doc *html.Node, snippet string) (*Range, bool) {
	if snippet == "" {
		return nil, false
	}
	runs := textNodes(doc)
	want := []rune(snippet)

	// Single-node pass: a direct substring hit in one text run wins
	// immediately. Document order is the tie-break.
	for _, tn := range runs {
		if at := runeIndex([]rune(tn.Data), want); at >= 0 {
			return &Range{StartNode: tn, StartOffset: at, EndNode: tn, EndOffset: at + len(want)}, true
		}
	}

	return findAcrossRuns(runs, want)
}

// findAcrossRuns stitches a match across consecutive text runs. The start
// candidate is seeded at the first occurrence of the snippet's first rune
// in any run; subsequent runs accumulate into a buffer until it contains
// the snippet, then the end position is computed by consuming exactly
// len(want) runes forward from the recorded start. The search never
// re-seeds a later start candidate, so a failed continuation can shadow
// a valid match further down the document — and when the buffer first
// contains the snippet at an index past the seeded start, the returned
// range begins at that stale start and its text differs from the
// snippet. Callers must not assume cross-node results are verified.
func findAcrossRuns(runs []*html.Node, want []rune) (*Range, bool) {
	var (
		startNode   *html.Node
		startIdx    int
		startOff    int
		accumulated []rune
	)

	for i, tn := range runs {
		data := []rune(tn.Data)
		if startNode == nil {
			off := indexRune(data, want[0])
			if off < 0 {
				continue
			}
			startNode, startIdx, startOff = tn, i, off
			accumulated = append(accumulated[:0], data[off:]...)
		} else {
			accumulated = append(accumulated, data...)
		}

		if runeIndex(accumulated, want) < 0 {
			continue
		}

		remaining := len(want)
		for j := startIdx; j < len(runs); j++ {
			off := 0
			if j == startIdx {
				off = startOff
			}
			available := len([]rune(runs[j].Data)) - off
			if remaining <= available {
				return &Range{StartNode: startNode, StartOffset: startOff, EndNode: runs[j], EndOffset: off + remaining}, true
			}
			remaining -= available
		}
	}
	return nil, false
}

// runeIndex returns the index of the first occurrence of needle in
// haystack, in runes, or -1.
func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

// indexRune returns the index of the first occurrence of r, or -1.
func indexRune(haystack []rune, r rune) int {
	for i, h := range haystack {
		if h == r {
			return i
		}
	}
	return -1
}
