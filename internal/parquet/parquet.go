// Package parquet provides data structures and functions for exporting ckscan
// run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/ckscan/schema"
	"github.com/parquet-go/parquet-go"
)

// BatchRun represents a single batch run with metadata.
// This struct maps to the ckscan_batch_runs database table.
type BatchRun struct {
	// RunID is the unique identifier for this batch run
	RunID int64 `parquet:"run_id,snappy"`

	// StartTime is when the batch began
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the batch completed (nullable while running or after a crash)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the wall time of the batch in milliseconds (nullable)
	RunDurationMs *int64 `parquet:"run_duration_ms,optional,snappy"`

	// Attempted counts repositories the batch tried to analyze
	Attempted int32 `parquet:"attempted,snappy"`

	// Succeeded counts repositories that produced metrics
	Succeeded int32 `parquet:"succeeded,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// RepoOutcome is the result of one attempted repository.
// This struct maps to the ckscan_repo_outcomes database table.
// Metric columns are null for skipped repositories.
type RepoOutcome struct {
	RunID        int64     `parquet:"run_id,snappy"`
	FullName     string    `parquet:"full_name,snappy"`
	AnalysisTime time.Time `parquet:"analysis_time,snappy"`
	Stage        string    `parquet:"stage,snappy"`
	Reason       *string   `parquet:"reason,optional,snappy"`
	CommitSHA    *string   `parquet:"commit_sha,optional,snappy"`
	Stars        int32     `parquet:"stars,snappy"`
	CBOMean      *float64  `parquet:"cbo_mean,optional,snappy"`
	CBOMedian    *float64  `parquet:"cbo_median,optional,snappy"`
	DITMean      *float64  `parquet:"dit_mean,optional,snappy"`
	DITMedian    *float64  `parquet:"dit_median,optional,snappy"`
	LCOMMean     *float64  `parquet:"lcom_mean,optional,snappy"`
	LCOMMedian   *float64  `parquet:"lcom_median,optional,snappy"`
	LOC          *int64    `parquet:"loc,optional,snappy"`
	ClassesCount *int32    `parquet:"classes_count,optional,snappy"`
	DurationMs   int64     `parquet:"duration_ms,snappy"`
}

// writeParquet writes rows to outputPath with the schema inferred from T.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	// Close flushes the footer; without it the file is unreadable
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteBatchRunsParquet writes a slice of BatchRun structs to a Parquet file.
func WriteBatchRunsParquet(data []BatchRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteRepoOutcomesParquet writes a slice of RepoOutcome structs to a Parquet file.
func WriteRepoOutcomesParquet(data []RepoOutcome, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ConvertBatchRunRecords converts store records into Parquet rows.
func ConvertBatchRunRecords(records []schema.BatchRunRecord) []BatchRun {
	out := make([]BatchRun, len(records))
	for i, r := range records {
		out[i] = BatchRun{
			RunID:         r.RunID,
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			RunDurationMs: r.RunDurationMs,
			Attempted:     r.Attempted,
			Succeeded:     r.Succeeded,
			ConfigParams:  r.ConfigParams,
		}
	}
	return out
}

// ConvertRepoOutcomeRecords converts store records into Parquet rows.
func ConvertRepoOutcomeRecords(records []schema.RepoOutcomeRecord) []RepoOutcome {
	out := make([]RepoOutcome, len(records))
	for i, r := range records {
		out[i] = RepoOutcome{
			RunID:        r.RunID,
			FullName:     r.FullName,
			AnalysisTime: r.AnalysisTime,
			Stage:        r.Stage,
			Reason:       r.Reason,
			CommitSHA:    r.CommitSHA,
			Stars:        r.Stars,
			CBOMean:      r.CBOMean,
			CBOMedian:    r.CBOMedian,
			DITMean:      r.DITMean,
			DITMedian:    r.DITMedian,
			LCOMMean:     r.LCOMMean,
			LCOMMedian:   r.LCOMMedian,
			LOC:          r.LOC,
			ClassesCount: r.ClassesCount,
			DurationMs:   r.DurationMs,
		}
	}
	return out
}
