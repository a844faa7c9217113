// Package server exposes the checker as MCP tools.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/reflguard/internal/check"
	"github.com/phobologic/reflguard/internal/config"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/ranking"
	"github.com/phobologic/reflguard/internal/toon"
	"github.com/phobologic/reflguard/internal/typename"
)

// Handlers serves the tools. The zero value logs nowhere.
type Handlers struct {
	Logger *slog.Logger
}

func (h *Handlers) options(cfg *config.Config) check.Options {
	return check.Options{Config: cfg, Logger: h.Logger}
}

// checkSourceHandler handles requests for the 'check_source' tool.
func (h *Handlers) checkSourceHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := request.GetString("path", "Input.cs")

	report, err := check.Sources(ctx, "source", []check.Source{{Path: path, Data: []byte(source)}}, h.options(nil))
	if err != nil {
		return mcp.NewToolResultError("Failed to check source: " + err.Error()), nil
	}
	return render(report, request.GetString("format", "toon"))
}

// checkRepoHandler handles requests for the 'check_repo' tool.
func (h *Handlers) checkRepoHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !filepath.IsAbs(root) {
		return mcp.NewToolResultError(fmt.Sprintf("project must be an absolute path, got %q", root)), nil
	}

	cfg, err := config.Load(request.GetString("config", ""), root)
	if err != nil {
		return mcp.NewToolResultError("Failed to load config: " + err.Error()), nil
	}
	report, err := check.Repo(ctx, root, h.options(cfg))
	if err != nil {
		return mcp.NewToolResultError("Failed to check project: " + err.Error()), nil
	}

	if rules := request.GetString("rules", ""); rules != "" {
		report = ranking.FilterByRule(report, strings.Split(rules, ","))
	}
	report = ranking.WithDiagnostics(report)
	maxFiles := request.GetInt("max_files", cfg.MaxFiles)
	report = ranking.SelectFiles(report, maxFiles)
	return render(report, request.GetString("format", "toon"))
}

// typeNameResult describes a parsed assembly-qualified type name.
type typeNameResult struct {
	Canonical string   `yaml:"canonical"`
	Name      string   `yaml:"name"`
	Arity     int      `yaml:"arity"`
	Open      bool     `yaml:"open"`
	Suffix    string   `yaml:"suffix,omitempty"`
	Assembly  string   `yaml:"assembly,omitempty"`
	Args      []string `yaml:"args,omitempty"`
}

// parseTypeNameHandler handles requests for the 'parse_type_name' tool.
func (h *Handlers) parseTypeNameHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := typename.Parse(text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := typeNameResult{
		Canonical: n.String(),
		Name:      n.Name,
		Arity:     n.Arity(),
		Open:      n.IsOpen(),
		Suffix:    n.Suffix,
		Assembly:  n.Assembly,
	}
	for _, a := range n.Args {
		res.Args = append(res.Args, a.String())
	}
	out, err := yaml.Marshal(res)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func render(report *model.Report, format string) (*mcp.CallToolResult, error) {
	switch format {
	case "toon":
		return mcp.NewToolResultText(toon.Encode(report)), nil
	case "yaml":
		out, err := yaml.Marshal(report)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("unknown format %q (want toon or yaml)", format)), nil
}

// RegisterTools defines all tools on the server and registers their handlers.
func (h *Handlers) RegisterTools(s *server.MCPServer) {
	checkSourceTool := mcp.NewTool("check_source",
		mcp.WithDescription("Check the reflection calls in a single C# source text. Finds GetMethod/GetProperty/GetField lookups, Invoke, MakeGenericType/MakeGenericMethod, Activator.CreateInstance and Type.GetType calls that would fail or misbehave at run time, using only the types declared in the text."),
		mcp.WithString("source", mcp.Required(), mcp.Description("C# source code to check")),
		mcp.WithString("path", mcp.Description("File name to report diagnostics against (default 'Input.cs')")),
		mcp.WithString("format", mcp.Description("Output format: 'toon' (default) or 'yaml'")),
	)
	s.AddTool(checkSourceTool, h.checkSourceHandler)

	checkRepoTool := mcp.NewTool("check_repo",
		mcp.WithDescription("Check every C# file of a repository as one program and report reflection call sites that cannot succeed, ranked by severity. Honours the repository's .reflguard.yaml and .gitignore."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Absolute path to the repository root (e.g., '/home/user/shop')")),
		mcp.WithString("config", mcp.Description("Path to a config file; defaults to .reflguard.yaml in the project root")),
		mcp.WithString("rules", mcp.Description("Comma-separated rule ids to report (e.g., 'RG001,RG004'); default all")),
		mcp.WithNumber("max_files", mcp.Description("Report only the top N files")),
		mcp.WithString("format", mcp.Description("Output format: 'toon' (default) or 'yaml'")),
	)
	s.AddTool(checkRepoTool, h.checkRepoHandler)

	parseTypeNameTool := mcp.NewTool("parse_type_name",
		mcp.WithDescription("Parse a .NET type name as Type.GetType accepts it, e.g. 'System.Collections.Generic.Dictionary`2[[System.String],[System.Int32]], mscorlib', and return its canonical form and parts."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The type name string")),
	)
	s.AddTool(parseTypeNameTool, h.parseTypeNameHandler)
}
