package schema

import "time"

// BatchRunRecord represents a row from the ckscan_batch_runs table.
type BatchRunRecord struct {
	RunID         int64
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int64
	Attempted     int32
	Succeeded     int32
	ConfigParams  *string
}

// RepoOutcomeRecord represents a row from the ckscan_repo_outcomes table.
type RepoOutcomeRecord struct {
	RunID        int64
	FullName     string
	AnalysisTime time.Time
	Stage        string
	Reason       *string
	CommitSHA    *string
	Stars        int32
	CBOMean      *float64
	CBOMedian    *float64
	DITMean      *float64
	DITMedian    *float64
	LCOMMean     *float64
	LCOMMedian   *float64
	LOC          *int64
	ClassesCount *int32
	DurationMs   int64
}
