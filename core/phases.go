package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/internal/outwriter"
	"github.com/huangsam/ckscan/schema"
)

// ErrNoRepositories is returned when discovery finds nothing to analyze.
var ErrNoRepositories = errors.New("discovery returned no repositories")

// Collect discovers repositories and writes the manifest into the data directory.
// When a smoke analyzer is given, the top repository is analyzed once and
// the result is written next to the manifest. Smoke test failures are logged only.
func Collect(ctx context.Context, cfg *contract.Config, discoverer contract.Discoverer, smoke Analyzer, out io.Writer) ([]schema.RepositoryDescriptor, error) {
	start := time.Now()
	if !shouldSuppressHeader(ctx) {
		outwriter.PrintBanner(out, cfg.UseColors, "🔎 Discovering up to %d repositories for %q", cfg.DiscoveryLimit, cfg.DiscoveryQuery)
	}

	repos, err := discoverer.Discover(ctx, cfg.DiscoveryQuery, cfg.DiscoveryLimit)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}
	if len(repos) == 0 {
		return nil, ErrNoRepositories
	}
	_, _ = fmt.Fprintf(out, "Found %d repositories in %s\n", len(repos), time.Since(start).Round(time.Millisecond))

	if err := outwriter.WriteManifest(cfg.DataDir, repos); err != nil {
		return nil, err
	}

	if smoke != nil {
		runSmokeTest(ctx, cfg, smoke, repos[0], out)
	}
	return repos, nil
}

// runSmokeTest analyzes one repository to verify the toolchain end to end.
func runSmokeTest(ctx context.Context, cfg *contract.Config, smoke Analyzer, repo schema.RepositoryDescriptor, out io.Writer) {
	_, _ = fmt.Fprintf(out, "🧪 Smoke test on %s\n", repo.FullName)
	outcome := smoke.Analyze(ctx, repo)
	outwriter.PrintOutcomeLine(out, 1, 1, outcome, cfg.UseColors, outwriter.GetMaxNameWidth())
	if !outcome.Succeeded() {
		contract.LogWarn("Smoke test failed", fmt.Errorf("%s at %s: %s", repo.FullName, outcome.Stage, outcome.Reason))
		return
	}
	path := filepath.Join(cfg.DataDir, outwriter.SmokeTestFileName)
	if err := outwriter.WriteSmokeTest(path, outcome); err != nil {
		contract.LogWarn("Failed to write smoke test result", err)
	}
}

// AnalyzeBatch reads the manifest and runs the batch over it.
func AnalyzeBatch(ctx context.Context, cfg *contract.Config, analyzer Analyzer, store contract.RunStore, out io.Writer) (schema.BatchProgress, error) {
	start := time.Now()
	repos, err := outwriter.ReadManifest(cfg.DataDir)
	if err != nil {
		return schema.BatchProgress{}, err
	}

	checkpoints := outwriter.NewCheckpointWriter(cfg.DataDir)
	var prior []schema.AnalysisOutcome
	if cfg.Resume {
		prior, err = outwriter.ReadCheckpoint(checkpoints.ProgressPath())
		switch {
		case errors.Is(err, os.ErrNotExist):
			prior = nil
		case err != nil:
			return schema.BatchProgress{}, fmt.Errorf("failed to resume: %w", err)
		}
	}

	limit := min(cfg.AnalyzeLimit, len(repos))
	if !shouldSuppressHeader(ctx) {
		outwriter.PrintBanner(out, cfg.UseColors, "🔬 Analyzing up to %d of %d repositories", limit, len(repos))
		if len(prior) > 0 {
			_, _ = fmt.Fprintf(out, "Resuming with %d repositories from %s\n", len(prior), checkpoints.ProgressPath())
		}
	}

	nameWidth := outwriter.GetMaxNameWidth()
	runner := &BatchRunner{
		Analyzer:    analyzer,
		Checkpoints: checkpoints,
		Interval:    cfg.CheckpointInterval,
		Store:       store,
		Params:      cfg.Params(),
		Prior:       prior,
		Report: func(attempt, limit int, outcome schema.AnalysisOutcome) {
			outwriter.PrintOutcomeLine(out, attempt, limit, outcome, cfg.UseColors, nameWidth)
		},
	}
	progress := runner.Run(ctx, repos, limit)

	outwriter.PrintBatchSummary(out, &progress, time.Since(start))
	_, _ = fmt.Fprintf(out, "💾 Final checkpoint at %s\n", checkpoints.FinalPath())

	all := append(append([]schema.AnalysisOutcome{}, prior...), progress.Outcomes...)
	if batchStats, ok := ComputeBatchStats(all); ok {
		if err := outwriter.PrintBatchStats(out, batchStats); err != nil {
			contract.LogWarn("Failed to print batch statistics", err)
		}
	} else {
		_, _ = fmt.Fprintln(out, "No repositories were analyzed successfully")
	}
	return progress, nil
}
