package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lthms/sitewise-mcp/internal/journal"
	"github.com/lthms/sitewise-mcp/internal/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const shutdownTimeout = 5 * time.Second

// StdioCmd serves MCP over stdin/stdout.
type StdioCmd struct{}

// ServeCmd runs the HTTP daemon.
type ServeCmd struct {
	Addr string `help:"Listen address (default 127.0.0.1:8000)."`
}

// newMCPServer creates an MCP server with the configured tools. The HTTP
// handlers call it once per session.
func newMCPServer(app *App) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)
	if err := app.tools.Register(server, app.cfg.Tools...); err != nil {
		// Tool names are checked when the config is loaded.
		panic(err)
	}
	return server
}

// Run serves a single MCP session on stdio until the client disconnects.
func (cmd *StdioCmd) Run(cfg *Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	slog.Info("serving mcp on stdio", "available", app.available(), "region", app.region)
	if err := newMCPServer(app).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

// Run serves until interrupted, then shuts down gracefully.
func (cmd *ServeCmd) Run(cfg *Config) error {
	if cmd.Addr != "" {
		cfg.Server.Addr = cmd.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}

	srv := &http.Server{Handler: setupHTTPMux(app)}
	errc := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String(), "available", app.available())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down http server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// setupHTTPMux creates an http.ServeMux with all routes registered.
func setupHTTPMux(app *App) *http.ServeMux {
	getServer := func(*http.Request) *mcp.Server { return newMCPServer(app) }

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(getServer, nil))
	mux.Handle("/sse", sseWithKeepalive(mcp.NewSSEHandler(getServer, nil), app.cfg.Server.Keepalive))
	mux.HandleFunc("GET /{$}", handleInfo(app))
	mux.HandleFunc("GET /health", handleHealth(app))
	mux.HandleFunc("GET /api/calls", handleCalls(app))
	mux.HandleFunc("GET /api/logs", handleLogs(logRing))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func handleInfo(app *App) http.HandlerFunc {
	enabled := len(app.cfg.Tools)
	if enabled == 0 {
		enabled = len(tools.Names())
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "SiteWise Measurement MCP Server",
			"protocol": "Model Context Protocol",
			"version":  version,
			"endpoints": map[string]string{
				"mcp":    "/mcp",
				"sse":    "/sse",
				"health": "GET /health",
				"calls":  "GET /api/calls",
				"logs":   "GET /api/logs",
			},
			"tools_available": enabled,
			"timestamp":       time.Now().UTC(),
		})
	}
}

func handleHealth(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":    "healthy",
			"sitewise":  "available",
			"region":    app.region,
			"server":    serverName,
			"version":   version,
			"timestamp": time.Now().UTC(),
		}
		if !app.available() {
			body["sitewise"] = "unavailable"
			body["error"] = app.initErr.Error()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleCalls(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := journal.Query{Tool: r.URL.Query().Get("tool")}
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			q.Limit = n
		}

		if app.journal == nil {
			writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "calls": []journal.Entry{}})
			return
		}
		entries, err := app.journal.Recent(r.Context(), q)
		if err != nil {
			slog.Warn("read journal", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "calls": entries})
	}
}

func handleLogs(buf *ringBuffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"lines": buf.Lines(),
			"total": buf.Count(),
		})
	}
}
