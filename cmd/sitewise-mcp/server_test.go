package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lthms/sitewise-mcp/internal/journal"
	"github.com/lthms/sitewise-mcp/internal/sitewise"
	"github.com/lthms/sitewise-mcp/internal/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// stubTelemetry serves a fixed two-asset fleet.
type stubTelemetry struct{}

func (stubTelemetry) ListAssetModels(context.Context) ([]sitewise.AssetModel, error) {
	return []sitewise.AssetModel{{ID: "m1", Name: "Mill"}}, nil
}

func (stubTelemetry) ListAssets(context.Context, sitewise.AssetQuery) ([]sitewise.Asset, error) {
	return []sitewise.Asset{
		{ID: "plant", Name: "Plant", ModelID: "m1", ModelName: "Mill"},
		{ID: "mill", Name: "Mill 1", ModelID: "m1", ModelName: "Mill", ParentID: "plant"},
	}, nil
}

func (stubTelemetry) DescribeAsset(_ context.Context, id string) (*sitewise.AssetDetail, error) {
	return &sitewise.AssetDetail{Asset: sitewise.Asset{ID: id, Name: "Mill 1"}}, nil
}

func (stubTelemetry) CurrentValue(context.Context, sitewise.PropertyRef) (*sitewise.Value, error) {
	return &sitewise.Value{Value: 1.5, DataType: "double"}, nil
}

func (stubTelemetry) ValueHistory(context.Context, sitewise.HistoryQuery) (*sitewise.HistoryPage, error) {
	return &sitewise.HistoryPage{}, nil
}

func (stubTelemetry) Identity(context.Context) (*sitewise.Identity, error) {
	return &sitewise.Identity{Account: "123456789012", Region: "eu-west-1"}, nil
}

func testApp(t *testing.T, src telemetry, initErr error) *App {
	t.Helper()
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "state", "calls.db")

	j, err := openJournal(cfg.Journal)
	if err != nil {
		t.Fatal(err)
	}
	ts, err := tools.New(tools.Config{Source: src, Journal: j})
	if err != nil {
		t.Fatal(err)
	}
	app := &App{cfg: cfg, source: src, region: "eu-west-1", initErr: initErr, journal: j, tools: ts}
	t.Cleanup(app.Close)
	return app
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		src     telemetry
		initErr error
		want    string
	}{
		{"available", stubTelemetry{}, nil, "available"},
		{"unavailable", sitewise.Unavailable{}, errors.New("no region"), "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(setupHTTPMux(testApp(t, tt.src, tt.initErr)))
			defer srv.Close()

			var body map[string]any
			if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if body["status"] != "healthy" || body["sitewise"] != tt.want {
				t.Errorf("unexpected health: %v", body)
			}
			if tt.initErr != nil && body["error"] != "no region" {
				t.Errorf("error = %v", body["error"])
			}
		})
	}
}

func TestInfo(t *testing.T) {
	srv := httptest.NewServer(setupHTTPMux(testApp(t, stubTelemetry{}, nil)))
	defer srv.Close()

	var body map[string]any
	getJSON(t, srv.URL+"/", &body)
	if body["version"] != version || body["tools_available"] != float64(len(tools.Names())) {
		t.Errorf("unexpected info: %v", body)
	}

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamableSessionIsJournaled(t *testing.T) {
	app := testApp(t, stubTelemetry{}, nil)
	srv := httptest.NewServer(setupHTTPMux(app))
	defer srv.Close()

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.URL + "/mcp"}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_all_assets_hierarchy",
		Arguments: map[string]any{"format": "flat"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool failed: %v", res.Content)
	}

	var calls struct {
		Enabled bool            `json:"enabled"`
		Calls   []journal.Entry `json:"calls"`
	}
	getJSON(t, srv.URL+"/api/calls?tool=list_all_assets_hierarchy", &calls)
	if !calls.Enabled || len(calls.Calls) != 1 {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if c := calls.Calls[0]; c.Outcome != journal.OutcomeOK || c.ResultCount != 2 {
		t.Errorf("unexpected entry: %+v", c)
	}
}

func TestCallsEndpoint(t *testing.T) {
	app := testApp(t, stubTelemetry{}, nil)
	srv := httptest.NewServer(setupHTTPMux(app))
	defer srv.Close()

	var errBody map[string]string
	if code := getJSON(t, srv.URL+"/api/calls?limit=abc", &errBody); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}

	app.journal.Close()
	app.journal = nil
	var body map[string]any
	getJSON(t, srv.URL+"/api/calls", &body)
	if body["enabled"] != false {
		t.Errorf("unexpected body without journal: %v", body)
	}
}

func TestLogsEndpoint(t *testing.T) {
	logRing.Write("12:00:00 INFO marker line")

	srv := httptest.NewServer(setupHTTPMux(testApp(t, stubTelemetry{}, nil)))
	defer srv.Close()

	var body struct {
		Lines []string `json:"lines"`
		Total int      `json:"total"`
	}
	getJSON(t, srv.URL+"/api/logs", &body)
	if body.Total < 1 || body.Lines[len(body.Lines)-1] != "12:00:00 INFO marker line" {
		t.Errorf("unexpected logs: %+v", body)
	}
}
