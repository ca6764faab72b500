// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/ckscan/core"
	"github.com/huangsam/ckscan/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the ckscan MCP server without starting it.
// A nil analyzer is replaced by one built from baseCfg.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager, analyzer core.Analyzer) *server.MCPServer {
	s := server.NewMCPServer(
		"ckscan Analysis Server",
		"1.0.0",
		server.WithLogging(),
	)

	if analyzer == nil {
		analyzer = core.NewRepoAnalyzer(baseCfg, contract.NewLocalGitClient(), contract.NewExecRunner())
	}
	h := &toolHandler{
		baseCfg:  baseCfg,
		mgr:      mgr,
		analyzer: analyzer,
	}

	// --- 1. Tool: summarize_class_table ---
	s.AddTool(mcp.NewTool("summarize_class_table",
		mcp.WithDescription("Summarize a CK class.csv file into CBO, DIT and LCOM mean/median plus LOC and class count."),
		mcp.WithString("path", mcp.Description("Path to the class-level CSV written by CK."), mcp.Required()),
	), h.handleSummarizeClassTable)

	// --- 2. Tool: read_checkpoint ---
	s.AddTool(mcp.NewTool("read_checkpoint",
		mcp.WithDescription("Read the progress or final checkpoint of the last analysis batch."),
		mcp.WithString("which", mcp.Description("Checkpoint to read. Defaults to 'final'."), mcp.Enum("progress", "final")),
		mcp.WithString("data_dir", mcp.Description("Directory holding checkpoints (defaults to the configured data-dir).")),
	), h.handleReadCheckpoint)

	// --- 3. Tool: batch_stats ---
	s.AddTool(mcp.NewTool("batch_stats",
		mcp.WithDescription("Min/mean/max of stars, CBO, DIT and LCOM over a checkpoint."),
		mcp.WithString("which", mcp.Description("Checkpoint to summarize. Defaults to 'final'."), mcp.Enum("progress", "final")),
		mcp.WithString("data_dir", mcp.Description("Directory holding checkpoints.")),
	), h.handleBatchStats)

	// --- 4. Tool: list_runs ---
	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded batch runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Limit the number of runs returned.")),
	), h.handleListRuns)

	// --- 5. Tool: analyze_repository ---
	s.AddTool(mcp.NewTool("analyze_repository",
		mcp.WithDescription("Clone one repository, run CK against it and return the metric summary."),
		mcp.WithString("full_name", mcp.Description("Repository in owner/name form."), mcp.Required()),
		mcp.WithString("clone_url", mcp.Description("Clone URL (defaults to https://github.com/<full_name>.git).")),
	), h.handleAnalyzeRepository)

	return s
}

// StartMCPServer starts the ckscan MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr, nil)
	return server.ServeStdio(s)
}
