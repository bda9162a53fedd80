package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lthms/sitewise-mcp/internal/journal"
	"github.com/lthms/sitewise-mcp/internal/tools"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const commandTimeout = 5 * time.Minute

// HierarchyCmd prints the asset forest.
type HierarchyCmd struct {
	Format     string `enum:"auto,text,json,yaml,flat" default:"auto" help:"Output format: text, json, yaml or flat (auto = text on a terminal, json otherwise)."`
	Properties bool   `help:"Fetch property definitions for every asset."`
}

// Run fetches every asset, builds the forest and prints it.
func (cmd *HierarchyCmd) Run(cfg *Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	forest, err := app.tools.Forest(ctx, cmd.Properties)
	if err != nil {
		return fmt.Errorf("build hierarchy: %w", err)
	}

	format := cmd.Format
	width := 0
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if format == "auto" {
			format = "text"
		}
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
	} else if format == "auto" {
		format = "json"
	}

	switch format {
	case "text":
		return printTree(os.Stdout, tools.NestedView(forest), width)
	case "flat":
		return printJSON(os.Stdout, tools.FlatView(forest))
	case "yaml":
		return printYAML(os.Stdout, tools.NestedView(forest))
	default:
		return printJSON(os.Stdout, tools.NestedView(forest))
	}
}

// printTree draws the forest with box-drawing guides, truncating lines to
// width when width > 0.
func printTree(w io.Writer, roots []*tools.NestedAsset, width int) error {
	type frame struct {
		node   *tools.NestedAsset
		prefix string
		last   bool
		root   bool
	}

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i], last: true, root: true})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		branch, childPrefix := "", ""
		if !f.root {
			branch, childPrefix = "├── ", f.prefix+"│   "
			if f.last {
				branch, childPrefix = "└── ", f.prefix+"    "
			}
		}

		line := fmt.Sprintf("%s%s%s (%s) [%s]", f.prefix, branch, f.node.Name, f.node.ModelName, f.node.ID)
		if f.node.PropertiesCount > 0 {
			line += fmt.Sprintf(" %d properties", f.node.PropertiesCount)
		}
		if width > 0 {
			line = truncateRunes(line, width)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				node:   f.node.Children[i],
				prefix: childPrefix,
				last:   i == len(f.node.Children)-1,
			})
		}
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML renders v through its JSON form so that field names and order
// match the JSON output.
func printYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle clears the flow and quoting styles JSON input leaves on every
// node. The encoder still quotes strings that would not round-trip.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle | yaml.DoubleQuotedStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// WhoamiCmd prints the caller identity.
type WhoamiCmd struct {
	JSON bool `name:"json" help:"Print as JSON."`
}

// Run checks credentials against STS.
func (cmd *WhoamiCmd) Run(cfg *Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := app.source.Identity(ctx)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if cmd.JSON {
		return printJSON(os.Stdout, id)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "account\t%s\n", id.Account)
	fmt.Fprintf(tw, "arn\t%s\n", id.ARN)
	fmt.Fprintf(tw, "user_id\t%s\n", id.UserID)
	fmt.Fprintf(tw, "region\t%s\n", id.Region)
	return tw.Flush()
}

// CallsCmd prints recent journal entries.
type CallsCmd struct {
	Tool  string `help:"Only show calls to this tool."`
	Limit int    `default:"20" help:"Maximum number of calls."`
	JSON  bool   `name:"json" help:"Print as JSON."`
}

// Run reads the journal without contacting AWS.
func (cmd *CallsCmd) Run(cfg *Config) error {
	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if j == nil {
		return errors.New("call journal is disabled")
	}
	defer j.Close()

	entries, err := j.Recent(context.Background(), journal.Query{Tool: cmd.Tool, Limit: cmd.Limit})
	if err != nil {
		return err
	}
	if cmd.JSON {
		return printJSON(os.Stdout, entries)
	}
	return printCalls(os.Stdout, entries)
}

func printCalls(w io.Writer, entries []journal.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no calls recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tOUTCOME\tRESULTS\tDURATION\tARGS")
	for _, e := range entries {
		outcome := e.Outcome
		if e.Error != "" {
			outcome += ": " + firstLine(e.Error)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%dms\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Tool, outcome, e.ResultCount, e.DurationMs, e.Args)
	}
	return tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
