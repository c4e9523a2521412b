// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/repohealth/core/checks"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Runner lints a single registered repository.
type Runner interface {
	RunOnce(ctx context.Context, repositoryID string) (*schema.Report, error)
}

// Deps are the collaborators the tools need. Store may be nil when persistence is disabled.
type Deps struct {
	Runner   Runner
	Store    contract.ReportStore
	Registry *checks.Registry
	Weights  schema.WeightTable
	Version  string
}

// NewMCPServer initializes and configures the repohealth MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"Repository Health Server",
		deps.Version,
		server.WithLogging(),
	)

	h := &toolHandler{deps: deps}

	// --- 1. Tool: run_repository ---
	s.AddTool(mcp.NewTool("run_repository",
		mcp.WithDescription("Fetch, lint and score one registered repository, storing the result."),
		mcp.WithString("repository_id", mcp.Description("Repository id in the form <project>/<repository>."), mcp.Required()),
	), h.handleRunRepository)

	// --- 2. Tool: get_report ---
	s.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Return the current stored report and score of a repository."),
		mcp.WithString("repository_id", mcp.Description("Repository id in the form <project>/<repository>."), mcp.Required()),
	), h.handleGetReport)

	// --- 3. Tool: list_checks ---
	s.AddTool(mcp.NewTool("list_checks",
		mcp.WithDescription("List the checks in the registry with their category, weight and check sets."),
		mcp.WithString("check_set", mcp.Description("Only list checks of this check set."), mcp.Enum("code", "code-lite", "community", "docs")),
		mcp.WithString("category", mcp.Description("Only list checks of this category."),
			mcp.Enum("documentation", "license", "best_practices", "security", "legal")),
	), h.handleListChecks)

	// --- 4. Tool: get_history ---
	s.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Return archived score snapshots of a repository, newest first."),
		mcp.WithString("repository_id", mcp.Description("Repository id in the form <project>/<repository>."), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum number of snapshots. Defaults to 10.")),
	), h.handleGetHistory)

	// --- 5. Tool: rank_repositories ---
	s.AddTool(mcp.NewTool("rank_repositories",
		mcp.WithDescription("Return the stored reports with the highest global scores."),
		mcp.WithNumber("limit", mcp.Description("Number of repositories to return. Defaults to 10; 0 returns all.")),
	), h.handleRankRepositories)

	return s
}

// StartMCPServer serves the tools over stdio until the client disconnects.
func StartMCPServer(_ context.Context, deps Deps) error {
	s := NewMCPServer(deps)
	return server.ServeStdio(s)
}
