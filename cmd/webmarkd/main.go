// Command webmarkd is the WebMark annotation daemon: an HTTP API (and
// optional MCP endpoint) over the notekeeper engine.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/Goldenmist00/WebMark/notekeeper"
	"github.com/Goldenmist00/WebMark/shield"
)

func main() {
	port := env("PORT", "8090")
	configPath := env("CONFIG", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Config: file when given, env/defaults otherwise.
	cfg := &notekeeper.Config{}
	if configPath != "" {
		loaded, err := notekeeper.LoadConfigFile(configPath)
		if err != nil {
			slog.Error("load config", "path", configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if p := os.Getenv("DB_PATH"); p != "" {
		cfg.DBPath = p
	}

	keeper, err := notekeeper.New(cfg, logger)
	if err != nil {
		slog.Error("notekeeper", "error", err)
		os.Exit(1)
	}
	defer keeper.Close()
	keeper.Start(ctx)

	// Router.
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Notes.
	r.Get("/api/notes", func(w http.ResponseWriter, r *http.Request) {
		var (
			notes []*notekeeper.Note
			err   error
		)
		if url := r.URL.Query().Get("url"); url != "" {
			notes, err = keeper.Notes(r.Context(), url)
		} else {
			notes, err = keeper.AllNotes(r.Context())
		}
		if err != nil {
			writeKeeperError(w, r, err)
			return
		}
		if notes == nil {
			notes = []*notekeeper.Note{}
		}
		writeJSON(w, 200, notes)
	})

	r.Delete("/api/notes", func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			writeError(w, r, 400, fmt.Errorf("url query parameter required"))
			return
		}
		removed, err := keeper.DeleteByURL(r.Context(), url)
		if err != nil {
			writeKeeperError(w, r, err)
			return
		}
		writeJSON(w, 200, map[string]any{"status": "deleted", "removed": removed})
	})

	r.Get("/api/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		n, err := keeper.GetNote(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeKeeperError(w, r, err)
			return
		}
		writeJSON(w, 200, n)
	})

	r.Patch("/api/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, 400, err)
			return
		}
		n, err := keeper.UpdateNote(r.Context(), chi.URLParam(r, "id"), req.Content)
		if err != nil {
			writeKeeperError(w, r, err)
			return
		}
		writeJSON(w, 200, n)
	})

	r.Delete("/api/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := keeper.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeKeeperError(w, r, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	})

	// Stateless page operations.
	r.Post("/api/annotate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL     string `json:"url"`
			HTML    string `json:"html"`
			Snippet string `json:"snippet"`
			Content string `json:"content"`
			Audio   string `json:"audio_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, 400, err)
			return
		}
		out, n, err := keeper.AnnotateHTML(r.Context(), req.URL, req.HTML, req.Snippet, req.Content, req.Audio)
		if err != nil {
			writeKeeperError(w, r, err)
			return
		}
		writeJSON(w, 201, map[string]any{"html": out, "note": n})
	})

	r.Post("/api/restore", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL  string `json:"url"`
			HTML string `json:"html"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, 400, err)
			return
		}
		out, restored, err := keeper.RestoreHTML(r.Context(), req.URL, req.HTML)
		if err != nil {
			writeKeeperError(w, r, err)
			return
		}
		writeJSON(w, 200, map[string]any{"html": out, "restored": restored})
	})

	r.Post("/api/export", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL  string `json:"url"`
			HTML string `json:"html"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, 400, err)
			return
		}
		md, err := keeper.ExportMarkdown(r.Context(), req.URL, req.HTML)
		if err != nil {
			writeKeeperError(w, r, err)
			return
		}
		writeJSON(w, 200, map[string]string{"markdown": md})
	})

	// Sessions: stateful per-tab documents driven by messages.
	r.Post("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL  string `json:"url"`
			HTML string `json:"html"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, 400, err)
			return
		}
		s, err := keeper.OpenSession(r.Context(), req.URL, req.HTML, nil)
		if err != nil {
			writeKeeperError(w, r, err)
			return
		}
		writeJSON(w, 201, map[string]any{"session_id": s.ID, "restored": s.Restored()})
	})

	r.Post("/api/sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var msg notekeeper.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeError(w, r, 400, err)
			return
		}
		reply := keeper.HandleMessage(r.Context(), chi.URLParam(r, "id"), msg)
		writeJSON(w, 200, reply)
	})

	r.Get("/api/sessions/{id}/html", func(w http.ResponseWriter, r *http.Request) {
		s, ok := keeper.Session(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, r, 404, fmt.Errorf("session not found"))
			return
		}
		out, err := s.HTML()
		if err != nil {
			writeError(w, r, 500, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(out))
	})

	r.Delete("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		keeper.CloseSession(chi.URLParam(r, "id"))
		writeJSON(w, 200, map[string]string{"status": "closed"})
	})

	// Change feed: one SSE event per (debounced) database change.
	r.Get("/api/notes/watch", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, r, 500, fmt.Errorf("streaming unsupported"))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(200)
		flusher.Flush()

		ch := keeper.Subscribe()
		defer keeper.Unsubscribe(ch)

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ch:
				fmt.Fprint(w, "event: change\ndata: {}\n\n")
				flusher.Flush()
			}
		}
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"watch": keeper.WatchStats()})
	})

	// Optional MCP over HTTP.
	if env("MCP_TRANSPORT", "") == "http" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "webmark",
			Version: "1.0.0",
		}, nil)
		keeper.RegisterMCP(mcpSrv)
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return mcpSrv
		}, nil)
		r.Handle("/mcp", handler)
		slog.Info("MCP endpoint enabled", "path", "/mcp")
	}

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError logs through the per-request logger and echoes the trace ID
// so a client-reported failure can be matched to its log line.
func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	log := shield.GetLogger(r.Context())
	if code >= 500 {
		log.Error("request failed", "status", code, "error", err)
	} else {
		log.Debug("request rejected", "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{
		"error":    err.Error(),
		"trace_id": shield.GetTraceID(r.Context()),
	})
}

// writeKeeperError maps notekeeper sentinel errors to HTTP status codes.
func writeKeeperError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notekeeper.ErrNotFound):
		writeError(w, r, 404, err)
	case errors.Is(err, notekeeper.ErrInvalidInput), errors.Is(err, notekeeper.ErrNoSelection):
		writeError(w, r, 400, err)
	case errors.Is(err, notekeeper.ErrSnippetNotFound):
		writeError(w, r, 422, err)
	default:
		writeError(w, r, 500, err)
	}
}
