package notekeeper

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "webmark-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*Keeper, *mcp.ClientSession) {
	t.Helper()
	k := newTestKeeper(t)
	srv := mcp.NewServer(testMCPImpl, nil)
	k.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return k, session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_AnnotateAndList(t *testing.T) {
	// WHAT: An agent annotates a page, then lists the page's notes.
	// WHY: The MCP surface must expose the full annotate flow.
	_, session := mcpSession(t)

	text := mcpCallTool(t, session, "webmark_annotate", map[string]any{
		"url":     testURL,
		"html":    testPage,
		"snippet": "quick brown fox",
		"content": "from an agent",
	})

	var created annotateResp
	if err := json.Unmarshal([]byte(text), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Note == nil || created.Note.Content != "from an agent" {
		t.Fatalf("note = %+v", created.Note)
	}
	if !strings.Contains(created.HTML, "webmark-highlight") {
		t.Error("annotated HTML missing marker")
	}

	text = mcpCallTool(t, session, "webmark_list_notes", map[string]any{"url": testURL})
	var listed listResp
	if err := json.Unmarshal([]byte(text), &listed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if listed.Count != 1 || listed.Notes[0].ID != created.Note.ID {
		t.Fatalf("list = %+v", listed)
	}
}

func TestMCP_Restore(t *testing.T) {
	// WHAT: webmark_restore re-applies a saved highlight.
	// WHY: Agents re-annotate fetched pages without a browser session.
	k, session := mcpSession(t)

	if _, _, err := k.AnnotateHTML(context.Background(), testURL, testPage, "Cats and dogs", "x", ""); err != nil {
		t.Fatal(err)
	}

	text := mcpCallTool(t, session, "webmark_restore", map[string]any{
		"url":  testURL,
		"html": testPage,
	})
	var resp restoreResp
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Restored != 1 {
		t.Fatalf("restored = %d, want 1", resp.Restored)
	}
}

func TestMCP_UpdateAndDelete(t *testing.T) {
	// WHAT: Update then delete a note through the tools.
	// WHY: The full note lifecycle must be reachable from MCP.
	k, session := mcpSession(t)
	ctx := context.Background()

	_, n, err := k.AnnotateHTML(ctx, testURL, testPage, "lazy dog", "v1", "")
	if err != nil {
		t.Fatal(err)
	}

	text := mcpCallTool(t, session, "webmark_update_note", map[string]any{
		"note_id": n.ID,
		"content": "v2",
	})
	var up updateResp
	if err := json.Unmarshal([]byte(text), &up); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if up.Note.Content != "v2" || up.Note.Version != 2 {
		t.Fatalf("updated = %+v", up.Note)
	}

	mcpCallTool(t, session, "webmark_delete_note", map[string]any{"note_id": n.ID})
	if _, err := k.GetNote(ctx, n.ID); err == nil {
		t.Fatal("note still present after MCP delete")
	}
}

func TestMCP_Export(t *testing.T) {
	// WHAT: webmark_export returns Markdown with the notes section.
	// WHY: Archiving is an agent workflow too.
	k, session := mcpSession(t)

	if _, _, err := k.AnnotateHTML(context.Background(), testURL, testPage, "quick brown fox", "fox note", ""); err != nil {
		t.Fatal(err)
	}

	text := mcpCallTool(t, session, "webmark_export", map[string]any{
		"url":  testURL,
		"html": testPage,
	})
	var resp exportResp
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(resp.Markdown, "## Notes") {
		t.Error("export missing notes section")
	}
}

func TestMCP_AnnotateMissingSnippet(t *testing.T) {
	// WHAT: A snippet absent from the page surfaces as a tool error.
	// WHY: Agents need the failure, not a silent empty result.
	_, session := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "webmark_annotate",
		Arguments: map[string]any{
			"url":     testURL,
			"html":    testPage,
			"snippet": "unicorns",
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	// GetError always returns nil on clients; IsError carries the tool
	// error across the wire.
	if !result.IsError {
		t.Fatal("expected tool error for missing snippet")
	}
}
