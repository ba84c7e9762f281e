package notekeeper

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers notekeeper tools on an MCP server, exposing the
// annotation engine to agents: list, annotate, restore, update, delete,
// export.
func (k *Keeper) RegisterMCP(srv *mcp.Server) {
	k.registerListTool(srv)
	k.registerAnnotateTool(srv)
	k.registerRestoreTool(srv)
	k.registerUpdateTool(srv)
	k.registerDeleteTool(srv)
	k.registerExportTool(srv)
}

// --- list ---

type listReq struct {
	URL string `json:"url,omitempty" jsonschema:"page URL; when empty, lists notes across all pages"`
}

type listResp struct {
	Notes []*Note `json:"notes"`
	Count int     `json:"count"`
}

func (k *Keeper) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webmark_list_notes",
		Description: "List saved annotations, optionally filtered to one page URL.",
	}
	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in listReq) (*mcp.CallToolResult, listResp, error) {
		var (
			notes []*Note
			err   error
		)
		if in.URL == "" {
			notes, err = k.AllNotes(ctx)
		} else {
			notes, err = k.Notes(ctx, in.URL)
		}
		if err != nil {
			return nil, listResp{}, err
		}
		return nil, listResp{Notes: notes, Count: len(notes)}, nil
	})
}

// --- annotate ---

type annotateReq struct {
	URL     string `json:"url" jsonschema:"page URL the note belongs to"`
	HTML    string `json:"html" jsonschema:"full page HTML"`
	Snippet string `json:"snippet" jsonschema:"exact text to annotate"`
	Content string `json:"content,omitempty" jsonschema:"note text; empty creates a bare highlight"`
	Audio   string `json:"audio_data,omitempty" jsonschema:"optional base64 audio data URL"`
}

type annotateResp struct {
	HTML string `json:"html"`
	Note *Note  `json:"note"`
}

func (k *Keeper) registerAnnotateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webmark_annotate",
		Description: "Anchor a note to a text snippet in a page and return the page with the highlight rendered.",
	}
	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in annotateReq) (*mcp.CallToolResult, annotateResp, error) {
		out, n, err := k.AnnotateHTML(ctx, in.URL, in.HTML, in.Snippet, in.Content, in.Audio)
		if err != nil {
			return nil, annotateResp{}, err
		}
		return nil, annotateResp{HTML: out, Note: n}, nil
	})
}

// --- restore ---

type restoreReq struct {
	URL  string `json:"url" jsonschema:"page URL"`
	HTML string `json:"html" jsonschema:"current page HTML"`
}

type restoreResp struct {
	HTML     string `json:"html"`
	Restored int    `json:"restored"`
}

func (k *Keeper) registerRestoreTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webmark_restore",
		Description: "Re-apply all saved highlights for a page against its current HTML.",
	}
	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in restoreReq) (*mcp.CallToolResult, restoreResp, error) {
		out, restored, err := k.RestoreHTML(ctx, in.URL, in.HTML)
		if err != nil {
			return nil, restoreResp{}, err
		}
		return nil, restoreResp{HTML: out, Restored: restored}, nil
	})
}

// --- update ---

type updateReq struct {
	NoteID  string `json:"note_id" jsonschema:"ID of the note to update"`
	Content string `json:"content" jsonschema:"replacement note text"`
}

type updateResp struct {
	Note *Note `json:"note"`
}

func (k *Keeper) registerUpdateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webmark_update_note",
		Description: "Replace a note's content. The note's anchor is never moved.",
	}
	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in updateReq) (*mcp.CallToolResult, updateResp, error) {
		n, err := k.UpdateNote(ctx, in.NoteID, in.Content)
		if err != nil {
			return nil, updateResp{}, err
		}
		return nil, updateResp{Note: n}, nil
	})
}

// --- delete ---

type deleteReq struct {
	NoteID string `json:"note_id" jsonschema:"ID of the note to delete"`
}

type deleteResp struct {
	Deleted bool `json:"deleted"`
}

func (k *Keeper) registerDeleteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webmark_delete_note",
		Description: "Delete a saved note by ID.",
	}
	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in deleteReq) (*mcp.CallToolResult, deleteResp, error) {
		if err := k.DeleteNote(ctx, in.NoteID); err != nil {
			return nil, deleteResp{}, err
		}
		return nil, deleteResp{Deleted: true}, nil
	})
}

// --- export ---

type exportReq struct {
	URL  string `json:"url" jsonschema:"page URL"`
	HTML string `json:"html" jsonschema:"current page HTML"`
}

type exportResp struct {
	Markdown string `json:"markdown"`
}

func (k *Keeper) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webmark_export",
		Description: "Export an annotated page as Markdown with a trailing notes section.",
	}
	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in exportReq) (*mcp.CallToolResult, exportResp, error) {
		md, err := k.ExportMarkdown(ctx, in.URL, in.HTML)
		if err != nil {
			return nil, exportResp{}, err
		}
		return nil, exportResp{Markdown: md}, nil
	})
}
