package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/huangsam/repohealth/core/algo"
	"github.com/huangsam/repohealth/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

const defaultHistoryLimit = 10

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	deps Deps
}

// scoredReport is the payload of run_repository and get_report.
type scoredReport struct {
	Report        schema.Report `json:"report"`
	Score         schema.Score  `json:"score"`
	Inconsistency []string      `json:"inconsistencies,omitempty"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *toolHandler) handleRunRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("repository_id", "")
	if id == "" {
		return mcp.NewToolResultError("repository_id is required"), nil
	}
	if h.deps.Runner == nil {
		return mcp.NewToolResultError("running repositories is not configured"), nil
	}

	report, err := h.deps.Runner.RunOnce(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}
	score, issues := algo.Score(report, h.deps.Weights)
	out := scoredReport{Report: *report, Score: score}
	for _, i := range issues {
		out.Inconsistency = append(out.Inconsistency, i.String())
	}
	return jsonResult(out)
}

func (h *toolHandler) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("repository_id", "")
	if id == "" {
		return mcp.NewToolResultError("repository_id is required"), nil
	}
	if h.deps.Store == nil {
		return mcp.NewToolResultError("report store is disabled"), nil
	}

	rec, err := h.deps.Store.GetReport(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read report: %v", err)), nil
	}
	if rec == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no report stored for %s", id)), nil
	}
	return jsonResult(rec)
}

func (h *toolHandler) handleListChecks(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.deps.Registry == nil {
		return mcp.NewToolResultError("check registry is not configured"), nil
	}
	checkSet := schema.CheckSet(request.GetString("check_set", ""))
	category := schema.Category(request.GetString("category", ""))

	defs := h.deps.Registry.Definitions()
	out := make([]schema.CheckDefinition, 0, len(defs))
	for _, d := range defs {
		if checkSet != "" && !slices.Contains(d.CheckSets, checkSet) {
			continue
		}
		if category != "" && d.Category != category {
			continue
		}
		if w := h.deps.Weights.CheckWeight(d.ID); w > 0 {
			d.Weight = w
		}
		out = append(out, d)
	}
	return jsonResult(map[string]any{
		"version": h.deps.Registry.Version(),
		"checks":  out,
	})
}

func (h *toolHandler) handleGetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("repository_id", "")
	if id == "" {
		return mcp.NewToolResultError("repository_id is required"), nil
	}
	limit := request.GetInt("limit", defaultHistoryLimit)
	if limit < 1 {
		return mcp.NewToolResultError("limit must be at least 1"), nil
	}
	if h.deps.Store == nil {
		return mcp.NewToolResultError("report store is disabled"), nil
	}

	snaps, err := h.deps.Store.ListSnapshots(ctx, id, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read history: %v", err)), nil
	}
	if snaps == nil {
		snaps = []schema.Snapshot{}
	}
	return jsonResult(snaps)
}

func (h *toolHandler) handleRankRepositories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultHistoryLimit)
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}
	if h.deps.Store == nil {
		return mcp.NewToolResultError("report store is disabled"), nil
	}

	records, err := h.deps.Store.ListReports(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read reports: %v", err)), nil
	}
	type ranked struct {
		RepositoryID string       `json:"repository_id"`
		Commit       string       `json:"commit"`
		Score        schema.Score `json:"score"`
	}
	out := []ranked{}
	for _, rec := range algo.RankRecords(records, limit) {
		out = append(out, ranked{RepositoryID: rec.RepositoryID, Commit: rec.Report.Commit, Score: rec.Score})
	}
	return jsonResult(out)
}
