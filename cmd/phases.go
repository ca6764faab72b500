package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/huangsam/ckscan/core"
	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/internal/gateway"
	"github.com/spf13/cobra"
)

// phase is one step of the pipeline that can be selected on the command line.
type phase struct {
	name    string
	aliases []string
	run     func(ctx context.Context, out io.Writer) error
}

// pipeline lists the phases in the order a bare invocation runs them.
var pipeline = []phase{
	{name: "collect", aliases: []string{"s01"}, run: runCollect},
	{name: "analyze", aliases: []string{"s02"}, run: runAnalyze},
}

// selectPhases resolves the mode argument. No argument selects every phase;
// an unknown one selects nothing.
func selectPhases(args []string) ([]phase, bool) {
	if len(args) == 0 {
		return pipeline, true
	}
	for _, p := range pipeline {
		if args[0] == p.name || slices.Contains(p.aliases, args[0]) {
			return []phase{p}, true
		}
	}
	return nil, false
}

// runPhases is the root command: validate the mode first so that an unknown
// one prints usage without touching config, GitHub or the disk.
func runPhases(cmd *cobra.Command, args []string) error {
	selected, ok := selectPhases(args)
	if !ok {
		_ = cmd.Usage()
		return nil
	}
	if err := sharedSetup(); err != nil {
		return err
	}

	ctx := rootCtx
	if cfg.Quiet {
		ctx = core.WithSuppressHeader(ctx)
	}
	out := cmd.OutOrStdout()
	for _, p := range selected {
		if err := p.run(ctx, out); err != nil {
			return fmt.Errorf("%s phase failed: %w", p.name, err)
		}
	}
	return nil
}

// newAnalyzer wires the per-repository pipeline to git and the JVM.
func newAnalyzer() core.Analyzer {
	return core.NewRepoAnalyzer(cfg, contract.NewLocalGitClient(), contract.NewExecRunner())
}

func runCollect(ctx context.Context, out io.Writer) error {
	var releases contract.CacheStore
	if cacheManager != nil {
		releases = cacheManager.GetReleaseStore()
	}
	discoverer, err := gateway.NewGitHubGateway(cfg, releases)
	if err != nil {
		return err
	}

	var smoke core.Analyzer
	if cfg.SmokeTest {
		smoke = newAnalyzer()
	}
	if _, err := core.Collect(ctx, cfg, discoverer, smoke, out); err != nil {
		return err
	}
	return ctx.Err()
}

func runAnalyze(ctx context.Context, out io.Writer) error {
	var store contract.RunStore
	if cacheManager != nil {
		store = cacheManager.GetRunStore()
	}
	if _, err := core.AnalyzeBatch(ctx, cfg, newAnalyzer(), store, out); err != nil {
		return err
	}
	// The final checkpoint is written even when interrupted
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}
	return nil
}
