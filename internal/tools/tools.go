// Package tools exposes the telemetry operations as MCP tools.
//
// Every tool answers with a single JSON text block. Successful calls carry
// "success": true plus their fields; failures carry "success": false, the
// error text and an error_kind tag (see sitewise.Kind) and set IsError.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lthms/sitewise-mcp/internal/journal"
	"github.com/lthms/sitewise-mcp/internal/sitewise"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Source is the telemetry backend the tools read from. *sitewise.Client and
// sitewise.Unavailable both satisfy it.
type Source interface {
	ListAssetModels(ctx context.Context) ([]sitewise.AssetModel, error)
	ListAssets(ctx context.Context, q sitewise.AssetQuery) ([]sitewise.Asset, error)
	DescribeAsset(ctx context.Context, assetID string) (*sitewise.AssetDetail, error)
	CurrentValue(ctx context.Context, ref sitewise.PropertyRef) (*sitewise.Value, error)
	ValueHistory(ctx context.Context, q sitewise.HistoryQuery) (*sitewise.HistoryPage, error)
}

// Config holds Toolset parameters.
type Config struct {
	Source  Source
	Journal journal.Recorder // nil = journal.Nop
	Now     func() time.Time // nil = time.Now
}

// Toolset is the set of telemetry tools bound to one Source. It is safe to
// register on any number of servers.
type Toolset struct {
	src     Source
	journal journal.Recorder
	now     func() time.Time
}

// New builds a Toolset.
func New(cfg Config) (*Toolset, error) {
	if cfg.Source == nil {
		return nil, errors.New("tools: Source must not be nil")
	}
	t := &Toolset{src: cfg.Source, journal: cfg.Journal, now: cfg.Now}
	if t.journal == nil {
		t.journal = journal.Nop{}
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

type toolDef struct {
	name string
	add  func(t *Toolset, s *mcp.Server)
}

var registry = []toolDef{
	{"list_asset_models", func(t *Toolset, s *mcp.Server) {
		addTool(t, s, &mcp.Tool{
			Name:        "list_asset_models",
			Description: "List every asset model (machine type) with its id, name, description and creation date.",
		}, t.listAssetModels)
	}},
	{"list_assets", func(t *Toolset, s *mcp.Server) {
		addTool(t, s, &mcp.Tool{
			Name:        "list_assets",
			Description: "List assets with their measurable properties. By default only assets that have properties are returned.",
		}, t.listAssets)
	}},
	{"list_all_assets_hierarchy", func(t *Toolset, s *mcp.Server) {
		addTool(t, s, &mcp.Tool{
			Name:        "list_all_assets_hierarchy",
			Description: "Return every asset organized as a parent/child hierarchy (plants, lines, machines), either nested or as a flat list annotated with level and parent_id.",
		}, t.listAllAssetsHierarchy)
	}},
	{"get_asset", func(t *Toolset, s *mcp.Server) {
		addTool(t, s, &mcp.Tool{
			Name:        "get_asset",
			Description: "Describe one asset: name, model, status, dates, child hierarchies and properties.",
		}, t.getAsset)
	}},
	{"get_asset_properties", func(t *Toolset, s *mcp.Server) {
		addTool(t, s, &mcp.Tool{
			Name:        "get_asset_properties",
			Description: "List every measurable property of an asset with id, alias, data type and unit.",
		}, t.getAssetProperties)
	}},
	{"get_current_value", func(t *Toolset, s *mcp.Server) {
		addTool(t, s, &mcp.Tool{
			Name:        "get_current_value",
			Description: "Get the latest value of a property, addressed by property_alias or by asset_id and property_id.",
		}, t.getCurrentValue)
	}},
	{"get_historical_data", func(t *Toolset, s *mcp.Server) {
		addTool(t, s, &mcp.Tool{
			Name:        "get_historical_data",
			Description: "Get property values between start_date and end_date (RFC 3339 such as 2024-01-01T00:00:00Z, or a plain date). Pass next_token from a previous answer to continue.",
		}, t.getHistoricalData)
	}},
	{"get_latest_values", func(t *Toolset, s *mcp.Server) {
		addTool(t, s, &mcp.Tool{
			Name:        "get_latest_values",
			Description: "Get the most recent N values of a property, newest first, looking back lookback_hours (default 24).",
		}, t.getLatestValues)
	}},
}

// Names lists every tool in registration order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, d := range registry {
		names = append(names, d.name)
	}
	return names
}

// Register adds the named tools to s, or every tool when enabled is empty.
func (t *Toolset) Register(s *mcp.Server, enabled ...string) error {
	for _, name := range enabled {
		if !slices.Contains(Names(), name) {
			return fmt.Errorf("unknown tool %q", name)
		}
	}
	for _, d := range registry {
		if len(enabled) > 0 && !slices.Contains(enabled, d.name) {
			continue
		}
		d.add(t, s)
	}
	return nil
}

// result is what a tool handler produces on success. count is the number
// of items returned, recorded in the journal.
type result struct {
	fields map[string]any
	count  int
}

func addTool[A any](t *Toolset, s *mcp.Server, tool *mcp.Tool, h func(context.Context, A) (*result, error)) {
	mcp.AddTool(s, tool, func(ctx context.Context, req *mcp.CallToolRequest, args A) (*mcp.CallToolResult, any, error) {
		slog.Debug("tool called", "tool", tool.Name)
		start := time.Now()

		res, err := h(ctx, args)
		t.record(ctx, tool.Name, args, res, err, time.Since(start))
		if err != nil {
			slog.Warn("tool failed", "tool", tool.Name, "kind", sitewise.Kind(err), "error", err)
			return failure(err), nil, nil
		}
		return success(res.fields), nil, nil
	})
}

func (t *Toolset) record(ctx context.Context, tool string, args any, res *result, err error, elapsed time.Duration) {
	e := journal.Entry{
		Tool:       tool,
		Outcome:    journal.OutcomeOK,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  t.now(),
	}
	if raw, merr := json.Marshal(args); merr == nil {
		e.Args = string(raw)
	}
	if err != nil {
		e.Outcome = sitewise.Kind(err)
		e.Error = err.Error()
	} else if res != nil {
		e.ResultCount = res.count
	}

	if jerr := t.journal.Record(context.WithoutCancel(ctx), e); jerr != nil {
		slog.Warn("journal record failed", "tool", tool, "error", jerr)
	}
}

func success(fields map[string]any) *mcp.CallToolResult {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["success"] = true

	raw, err := json.Marshal(out)
	if err != nil {
		return failure(fmt.Errorf("encode result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}
}

func failure(err error) *mcp.CallToolResult {
	raw, _ := json.Marshal(map[string]any{
		"success":    false,
		"error":      err.Error(),
		"error_kind": sitewise.Kind(err),
	})
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
		IsError: true,
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
