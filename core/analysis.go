// Package core has the analysis pipeline: per-repository analysis, batching and the collect/analyze phases.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/huangsam/ckscan/core/ckparse"
	"github.com/huangsam/ckscan/core/invoke"
	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
)

// Analyzer turns one repository descriptor into an outcome.
// Implementations must never panic or return partial outcomes.
type Analyzer interface {
	Analyze(ctx context.Context, repo schema.RepositoryDescriptor) schema.AnalysisOutcome
}

// RepoAnalyzer drives a repository through clone, analyze, parse and cleanup.
type RepoAnalyzer struct {
	Git       contract.GitClient
	Invoker   *invoke.Invoker
	ReposDir  string
	OutputDir string

	// Parse summarizes a class table; defaults to ckparse.ParseFile.
	Parse func(path string) (schema.MetricSummary, error)
}

var _ Analyzer = &RepoAnalyzer{} // Compile-time check

// NewRepoAnalyzer wires a RepoAnalyzer from validated configuration.
func NewRepoAnalyzer(cfg *contract.Config, git contract.GitClient, runner contract.ProcessRunner) *RepoAnalyzer {
	return &RepoAnalyzer{
		Git:       git,
		Invoker:   invoke.New(runner, cfg),
		ReposDir:  cfg.ReposDir,
		OutputDir: cfg.OutputDir,
		Parse:     ckparse.ParseFile,
	}
}

// Analyze implements the Analyzer interface. The clone directory is removed
// on every path out of this function, including panics.
func (a *RepoAnalyzer) Analyze(ctx context.Context, repo schema.RepositoryDescriptor) (outcome schema.AnalysisOutcome) {
	start := time.Now()
	outcome = schema.AnalysisOutcome{Repository: repo, Stage: schema.StageAcquiring}
	clonePath := filepath.Join(a.ReposDir, contract.ArtifactName(repo.FullName))

	defer func() {
		if r := recover(); r != nil {
			outcome.Summary = nil
			outcome.Reason = fmt.Sprintf("panic during %s: %v", outcome.Stage, r)
		}
		if err := os.RemoveAll(clonePath); err != nil {
			contract.LogWarn(fmt.Sprintf("Failed to remove clone of %s", repo.FullName), err)
		}
		if outcome.Summary != nil && outcome.Reason == "" {
			outcome.Stage = schema.StageDone
		}
		outcome.Duration = time.Since(start)
	}()

	skip := func(stage schema.Stage, err error) schema.AnalysisOutcome {
		outcome.Stage = stage
		outcome.Summary = nil
		outcome.Reason = err.Error()
		return outcome
	}

	// --- 1. Acquire ---
	if err := ctx.Err(); err != nil {
		return skip(schema.StageAcquiring, fmt.Errorf("cancelled before clone: %w", err))
	}
	if repo.CloneURL == "" {
		return skip(schema.StageAcquiring, errors.New("repository has no clone url"))
	}
	if err := os.MkdirAll(a.ReposDir, 0o755); err != nil {
		return skip(schema.StageAcquiring, fmt.Errorf("failed to create repos directory: %w", err))
	}
	if err := os.RemoveAll(clonePath); err != nil {
		return skip(schema.StageAcquiring, fmt.Errorf("failed to remove stale clone: %w", err))
	}
	if err := a.Git.ShallowClone(ctx, repo.CloneURL, clonePath); err != nil {
		return skip(schema.StageAcquiring, err)
	}
	if sha, err := a.Git.GetRepoHash(ctx, clonePath); err == nil {
		outcome.CommitSHA = sha
	}

	// --- 2. Invoke ---
	outcome.Stage = schema.StageInvoking
	result, err := a.Invoker.Invoke(ctx, clonePath, a.OutputDir, repo.FullName)
	if err != nil {
		return skip(schema.StageInvoking, err)
	}

	// --- 3. Parse ---
	outcome.Stage = schema.StageParsing
	parse := a.Parse
	if parse == nil {
		parse = ckparse.ParseFile
	}
	summary, err := parse(result.ClassTable)
	if err != nil {
		return skip(schema.StageParsing, err)
	}

	// --- 4. Cleanup happens in the deferred function ---
	outcome.Stage = schema.StageCleaningUp
	outcome.Summary = &summary
	return outcome
}
