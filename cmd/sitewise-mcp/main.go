package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

const (
	serverName = "sitewise-mcp"
	version    = "1.0.0"
)

// Globals are flags shared by every command. Non-empty values override the
// config file.
type Globals struct {
	Config   string `type:"path" env:"SITEWISE_MCP_CONFIG" help:"Config file (default ~/.config/sitewise-mcp/config.yaml)."`
	Debug    bool   `env:"SITEWISE_MCP_DEBUG" help:"Enable debug logging."`
	LogLevel string `name:"log-level" env:"LOG_LEVEL" help:"Log level: debug, info, warn or error."`
	Region   string `help:"AWS region."`
	Profile  string `help:"AWS shared config profile."`
	Endpoint string `help:"SiteWise endpoint override."`
	Journal  string `type:"path" help:"Call journal database."`
}

// CLI is the top-level command structure for sitewise-mcp.
type CLI struct {
	Globals

	Stdio     StdioCmd     `cmd:"" default:"1" help:"Serve MCP over stdin/stdout."`
	Serve     ServeCmd     `cmd:"" help:"Serve MCP over HTTP (streamable and SSE) with health and journal endpoints."`
	Hierarchy HierarchyCmd `cmd:"" help:"Print the asset hierarchy."`
	Whoami    WhoamiCmd    `cmd:"" help:"Print the AWS identity the server authenticates as."`
	Calls     CallsCmd     `cmd:"" help:"Print recent tool calls from the journal."`
}

// load reads the config file and applies flag overrides.
func (g *Globals) load() (*Config, error) {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.Debug {
		cfg.LogLevel = "debug"
	}
	if g.Region != "" {
		cfg.AWS.Region = g.Region
	}
	if g.Profile != "" {
		cfg.AWS.Profile = g.Profile
	}
	if g.Endpoint != "" {
		cfg.AWS.Endpoint = g.Endpoint
	}
	if g.Journal != "" {
		cfg.Journal.Path = g.Journal
		cfg.Journal.Disabled = false
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cli := CLI{}
	parser, err := kong.New(&cli,
		kong.Name(serverName),
		kong.Description("Read-only MCP server for AWS IoT SiteWise asset hierarchies and measurements."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			os.Exit(code)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serverName, err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cfg, err := cli.Globals.load()
	ctx.FatalIfErrorf(err)

	level, _ := parseLevel(cfg.LogLevel)
	setupLogger(level)
	slog.Debug("config loaded", "region", cfg.AWS.Region, "journal", cfg.Journal.Path, "journal_disabled", cfg.Journal.Disabled)

	err = ctx.Run(cfg)
	ctx.FatalIfErrorf(err)
}
