package iocache

import (
	"errors"
	"fmt"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/internal/parquet"
)

// ErrRunsDisabled is returned when a runs command needs a store that is not configured.
var ErrRunsDisabled = errors.New("run history is disabled; set analysis-backend to enable it")

// ExecuteRunsExport writes the run history to <outputFile>.batch_runs.parquet
// and <outputFile>.repo_outcomes.parquet.
func ExecuteRunsExport(store contract.RunStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("an output file is required for export")
	}
	if store == nil {
		return ErrRunsDisabled
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run history found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total batch runs: %d\n", status.TotalRuns)
	fmt.Printf("Total repository outcomes: %d\n", status.TableSizes[repoOutcomesTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve batch runs: %w", err)
	}
	outcomes, err := store.GetAllOutcomes()
	if err != nil {
		return fmt.Errorf("failed to retrieve repository outcomes: %w", err)
	}

	runsFile := outputFile + ".batch_runs.parquet"
	parquetRuns := parquet.ConvertBatchRunRecords(runs)
	if err := parquet.WriteBatchRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write batch runs: %w", err)
	}
	fmt.Printf("Exported %d batch runs to: %s\n", len(parquetRuns), runsFile)

	outcomesFile := outputFile + ".repo_outcomes.parquet"
	parquetOutcomes := parquet.ConvertRepoOutcomeRecords(outcomes)
	if err := parquet.WriteRepoOutcomesParquet(parquetOutcomes, outcomesFile); err != nil {
		return fmt.Errorf("failed to write repository outcomes: %w", err)
	}
	fmt.Printf("Exported %d repository outcomes to: %s\n", len(parquetOutcomes), outcomesFile)

	return nil
}
