package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
)

// Checkpointer persists batch snapshots. Implementations keep only the
// successful outcomes and replace the previous snapshot atomically.
type Checkpointer interface {
	WriteProgress(outcomes []schema.AnalysisOutcome) error
	WriteFinal(outcomes []schema.AnalysisOutcome) error
}

// BatchRunner analyzes repositories one at a time in input order.
type BatchRunner struct {
	Analyzer    Analyzer
	Checkpoints Checkpointer
	Interval    int // attempts between progress checkpoints

	// Store records run history when set.
	Store  contract.RunStore
	Params map[string]any

	// Prior holds successes from an earlier progress checkpoint. Those
	// repositories are not attempted again and are carried into every snapshot.
	Prior []schema.AnalysisOutcome

	// Report is called after every attempt when set.
	Report func(attempt, limit int, outcome schema.AnalysisOutcome)
}

// Run attempts at most limit repositories. Successes and skips both count
// toward limit; resumed repositories do not. A final snapshot is always
// written, including when ctx is cancelled mid-batch.
func (b *BatchRunner) Run(ctx context.Context, repos []schema.RepositoryDescriptor, limit int) schema.BatchProgress {
	progress := schema.BatchProgress{Resumed: len(b.Prior)}
	interval := b.Interval
	if interval <= 0 {
		interval = contract.DefaultCheckpointInterval
	}

	done := make(map[string]struct{}, len(b.Prior))
	for _, o := range b.Prior {
		done[o.Repository.FullName] = struct{}{}
	}

	runID := b.beginRun()

	for _, repo := range repos {
		if progress.Attempted >= limit {
			break
		}
		if ctx.Err() != nil {
			contract.LogWarn("Batch interrupted", ctx.Err())
			break
		}
		if _, ok := done[repo.FullName]; ok {
			continue
		}

		outcome := b.Analyzer.Analyze(ctx, repo)
		progress.Outcomes = append(progress.Outcomes, outcome)
		progress.Attempted++

		if b.Report != nil {
			b.Report(progress.Attempted, limit, outcome)
		}
		b.recordOutcome(runID, outcome)

		if progress.Attempted%interval == 0 {
			if err := b.Checkpoints.WriteProgress(b.snapshot(progress)); err != nil {
				contract.LogWarn("Failed to write progress checkpoint", err)
			}
		}
	}

	if err := b.Checkpoints.WriteFinal(b.snapshot(progress)); err != nil {
		contract.LogWarn("Failed to write final checkpoint", err)
	}
	b.endRun(runID, progress)

	return progress
}

// snapshot merges resumed outcomes with this run's outcomes.
func (b *BatchRunner) snapshot(progress schema.BatchProgress) []schema.AnalysisOutcome {
	out := make([]schema.AnalysisOutcome, 0, len(b.Prior)+len(progress.Outcomes))
	out = append(out, b.Prior...)
	return append(out, progress.Outcomes...)
}

func (b *BatchRunner) beginRun() int64 {
	if b.Store == nil {
		return 0
	}
	runID, err := b.Store.BeginRun(time.Now(), b.Params)
	if err != nil {
		contract.LogWarn("Run history initialization failed", err)
		return 0
	}
	return runID
}

func (b *BatchRunner) recordOutcome(runID int64, outcome schema.AnalysisOutcome) {
	if b.Store == nil || runID == 0 {
		return
	}
	if err := b.Store.RecordOutcome(runID, outcome); err != nil {
		contract.LogWarn(fmt.Sprintf("Failed to record outcome for %s", outcome.Repository.FullName), err)
	}
}

func (b *BatchRunner) endRun(runID int64, progress schema.BatchProgress) {
	if b.Store == nil || runID == 0 {
		return
	}
	succeeded := len(progress.Successes())
	if err := b.Store.EndRun(runID, time.Now(), progress.Attempted, succeeded); err != nil {
		contract.LogWarn("Failed to finalize run history", err)
	}
}
