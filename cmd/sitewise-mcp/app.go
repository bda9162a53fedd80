package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lthms/sitewise-mcp/internal/journal"
	"github.com/lthms/sitewise-mcp/internal/sitewise"
	"github.com/lthms/sitewise-mcp/internal/tools"
)

// telemetry is a tools.Source that can also report who it authenticates as.
type telemetry interface {
	tools.Source
	Identity(ctx context.Context) (*sitewise.Identity, error)
}

// App holds the long-lived dependencies shared by every tool call.
type App struct {
	cfg     *Config
	source  telemetry
	region  string
	initErr error          // why source is sitewise.Unavailable, if it is
	journal *journal.Store // nil when disabled or unavailable
	tools   *tools.Toolset
}

// newApp connects to the telemetry service once. A failed connection is
// logged and replaced by sitewise.Unavailable so that tools still answer.
func newApp(ctx context.Context, cfg *Config) (*App, error) {
	app := &App{cfg: cfg, region: cfg.AWS.Region}

	client, err := sitewise.New(ctx, cfg.AWS.client())
	if err != nil {
		slog.Error("sitewise client unavailable, tools will report service_unavailable", "error", err)
		app.source = sitewise.Unavailable{Reason: err}
		app.initErr = err
	} else {
		app.source = client
		app.region = client.Region()
	}

	var rec journal.Recorder = journal.Nop{}
	if j, err := openJournal(cfg.Journal); err != nil {
		slog.Warn("call journal disabled", "path", cfg.Journal.Path, "error", err)
	} else if j != nil {
		app.journal = j
		rec = j
	}

	ts, err := tools.New(tools.Config{Source: app.source, Journal: rec})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.tools = ts
	return app, nil
}

// openJournal returns nil, nil when the journal is disabled.
func openJournal(cfg JournalConfig) (*journal.Store, error) {
	if cfg.Disabled || cfg.Path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return journal.Open(cfg.Path)
}

func (a *App) available() bool { return a.initErr == nil }

// Close releases the journal.
func (a *App) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			slog.Warn("close journal", "error", err)
		}
	}
}
