package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/huangsam/ckscan/core"
	"github.com/huangsam/ckscan/core/ckparse"
	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/internal/outwriter"
	"github.com/huangsam/ckscan/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg  *contract.Config
	mgr      contract.CacheManager
	analyzer core.Analyzer
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleSummarizeClassTable(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	summary, err := ckparse.ParseFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("summary failed: %v", err)), nil
	}
	return jsonResult(summary)
}

// checkpointPath resolves the which/data_dir arguments to a checkpoint file.
func (h *toolHandler) checkpointPath(request mcp.CallToolRequest) (string, error) {
	dir := request.GetString("data_dir", h.baseCfg.DataDir)
	switch which := request.GetString("which", "final"); which {
	case "final":
		return filepath.Join(dir, outwriter.FinalFileName), nil
	case "progress":
		return filepath.Join(dir, outwriter.ProgressFileName), nil
	default:
		return "", fmt.Errorf("unknown checkpoint %q: must be progress or final", which)
	}
}

func (h *toolHandler) readCheckpoint(request mcp.CallToolRequest) ([]schema.AnalysisOutcome, error) {
	path, err := h.checkpointPath(request)
	if err != nil {
		return nil, err
	}
	outcomes, err := outwriter.ReadCheckpoint(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no checkpoint at %s", path)
	}
	return outcomes, err
}

func (h *toolHandler) handleReadCheckpoint(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outcomes, err := h.readCheckpoint(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read failed: %v", err)), nil
	}
	return jsonResult(outcomes)
}

func (h *toolHandler) handleBatchStats(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outcomes, err := h.readCheckpoint(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read failed: %v", err)), nil
	}
	stats, ok := core.ComputeBatchStats(outcomes)
	if !ok {
		return mcp.NewToolResultError("no repositories were analyzed successfully"), nil
	}
	return jsonResult(stats)
}

func (h *toolHandler) handleListRuns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var store contract.RunStore
	if h.mgr != nil {
		store = h.mgr.GetRunStore()
	}
	if store == nil {
		return mcp.NewToolResultError("run history is disabled; set analysis-backend to enable it"), nil
	}

	runs, err := store.GetAllRuns()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing runs failed: %v", err)), nil
	}
	slices.Reverse(runs)
	if l := request.GetInt("limit", 0); l > 0 && l < len(runs) {
		runs = runs[:l]
	}
	return jsonResult(runs)
}

func (h *toolHandler) handleAnalyzeRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fullName := request.GetString("full_name", "")
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return mcp.NewToolResultError("full_name must look like owner/name"), nil
	}
	cloneURL := request.GetString("clone_url", "")
	if cloneURL == "" {
		cloneURL = fmt.Sprintf("https://github.com/%s.git", fullName)
	}

	outcome := h.analyzer.Analyze(ctx, schema.RepositoryDescriptor{
		FullName: fullName,
		Owner:    owner,
		Name:     name,
		CloneURL: cloneURL,
	})
	if !outcome.Succeeded() {
		return mcp.NewToolResultError(fmt.Sprintf("analysis skipped during %s: %s", outcome.Stage, outcome.Reason)), nil
	}
	return jsonResult(outcome)
}
