package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
)

// Table names for run history.
const (
	batchRunsTable    = "ckscan_batch_runs"
	repoOutcomesTable = "ckscan_repo_outcomes"
)

// runTables lists the run history tables in creation order.
var runTables = []string{batchRunsTable, repoOutcomesTable}

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled tracking
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, contract.GetRunsDBFilePath())
	if err != nil {
		return nil, err
	}

	for _, table := range runTables {
		if _, err := db.Exec(getCreateRunTableQuery(table, backend)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}

	return &RunStoreImpl{db: db, backend: backend}, nil
}

// getCreateRunTableQuery returns the CREATE TABLE query for one run history table.
func getCreateRunTableQuery(table string, backend schema.DatabaseBackend) string {
	quoted := quoteTableName(table, backend)

	if table == batchRunsTable {
		switch backend {
		case schema.MySQLBackend:
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
					start_time DATETIME(6) NOT NULL,
					end_time DATETIME(6),
					run_duration_ms BIGINT,
					attempted INT NOT NULL DEFAULT 0,
					succeeded INT NOT NULL DEFAULT 0,
					config_params TEXT
				);
			`, quoted)
		case schema.PostgreSQLBackend:
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id BIGSERIAL PRIMARY KEY,
					start_time TIMESTAMPTZ NOT NULL,
					end_time TIMESTAMPTZ,
					run_duration_ms BIGINT,
					attempted INT NOT NULL DEFAULT 0,
					succeeded INT NOT NULL DEFAULT 0,
					config_params TEXT
				);
			`, quoted)
		default: // SQLite
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id INTEGER PRIMARY KEY AUTOINCREMENT,
					start_time TEXT NOT NULL,
					end_time TEXT,
					run_duration_ms INTEGER,
					attempted INTEGER NOT NULL DEFAULT 0,
					succeeded INTEGER NOT NULL DEFAULT 0,
					config_params TEXT
				);
			`, quoted)
		}
	}

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				full_name VARCHAR(255) NOT NULL,
				analysis_time DATETIME(6) NOT NULL,
				stage VARCHAR(32) NOT NULL,
				reason TEXT,
				commit_sha VARCHAR(64),
				stars INT NOT NULL,
				cbo_mean DOUBLE,
				cbo_median DOUBLE,
				dit_mean DOUBLE,
				dit_median DOUBLE,
				lcom_mean DOUBLE,
				lcom_median DOUBLE,
				loc BIGINT,
				classes_count INT,
				duration_ms BIGINT NOT NULL,
				PRIMARY KEY (run_id, full_name)
			);
		`, quoted)
	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				full_name TEXT NOT NULL,
				analysis_time TIMESTAMPTZ NOT NULL,
				stage TEXT NOT NULL,
				reason TEXT,
				commit_sha TEXT,
				stars INT NOT NULL,
				cbo_mean DOUBLE PRECISION,
				cbo_median DOUBLE PRECISION,
				dit_mean DOUBLE PRECISION,
				dit_median DOUBLE PRECISION,
				lcom_mean DOUBLE PRECISION,
				lcom_median DOUBLE PRECISION,
				loc BIGINT,
				classes_count INT,
				duration_ms BIGINT NOT NULL,
				PRIMARY KEY (run_id, full_name)
			);
		`, quoted)
	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				full_name TEXT NOT NULL,
				analysis_time TEXT NOT NULL,
				stage TEXT NOT NULL,
				reason TEXT,
				commit_sha TEXT,
				stars INTEGER NOT NULL,
				cbo_mean REAL,
				cbo_median REAL,
				dit_mean REAL,
				dit_median REAL,
				lcom_mean REAL,
				lcom_median REAL,
				loc INTEGER,
				classes_count INTEGER,
				duration_ms INTEGER NOT NULL,
				PRIMARY KEY (run_id, full_name)
			);
		`, quoted)
	}
}

// disabled reports whether the store is a no-op.
func (rs *RunStoreImpl) disabled() bool {
	return rs.backend == schema.NoneBackend || rs.db == nil
}

// BeginRun creates a new batch run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, configParams map[string]any) (int64, error) {
	if rs.disabled() {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quoted := quoteTableName(batchRunsTable, rs.backend)
	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (start_time, config_params) VALUES ($1, $2) RETURNING run_id`, quoted)
		err = rs.db.QueryRow(query, startTime, string(configJSON)).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (start_time, config_params) VALUES (?, ?)`, quoted)
		var result sql.Result
		result, err = rs.db.Exec(query, formatTime(startTime, rs.backend), string(configJSON))
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch run: %w", err)
	}
	return runID, nil
}

// EndRun updates the batch run with completion data.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, attempted int, succeeded int) error {
	if rs.disabled() {
		return nil
	}

	quoted := quoteTableName(batchRunsTable, rs.backend)
	start := timeScanner{backend: rs.backend}
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quoted, placeholder(rs.backend, 1))
	if err := rs.db.QueryRow(query, runID).Scan(start.dest()); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	startTime, err := start.value()
	if err != nil {
		return err
	}
	if startTime == nil {
		return fmt.Errorf("run %d has no start_time", runID)
	}

	durationMs := endTime.Sub(*startTime).Milliseconds()
	p := func(i int) string { return placeholder(rs.backend, i) }
	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, attempted = %s, succeeded = %s WHERE run_id = %s`,
		quoted, p(1), p(2), p(3), p(4), p(5))
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, attempted, succeeded, runID); err != nil {
		return fmt.Errorf("failed to update batch run: %w", err)
	}
	return nil
}

// RecordOutcome stores the outcome of one attempted repository.
// Metric columns are NULL for skipped repositories.
func (rs *RunStoreImpl) RecordOutcome(runID int64, outcome schema.AnalysisOutcome) error {
	if rs.disabled() {
		return nil
	}

	columns := []string{
		"run_id", "full_name", "analysis_time", "stage", "reason", "commit_sha", "stars",
		"cbo_mean", "cbo_median", "dit_mean", "dit_median", "lcom_mean", "lcom_median",
		"loc", "classes_count", "duration_ms",
	}
	values := []any{
		runID,
		outcome.Repository.FullName,
		formatTime(time.Now(), rs.backend),
		string(outcome.Stage),
		nullString(outcome.Reason),
		nullString(outcome.CommitSHA),
		outcome.Repository.Stars,
	}

	var metrics [6]sql.NullFloat64
	var loc sql.NullInt64
	var classes sql.NullInt32
	if s := outcome.Summary; s != nil {
		for i, v := range []float64{s.CBOMean, s.CBOMedian, s.DITMean, s.DITMedian, s.LCOMMean, s.LCOMMedian} {
			metrics[i] = sql.NullFloat64{Float64: v, Valid: true}
		}
		loc = sql.NullInt64{Int64: s.LOC, Valid: true}
		classes = sql.NullInt32{Int32: int32(s.ClassesCount), Valid: true}
	}
	for _, m := range metrics {
		values = append(values, m)
	}
	values = append(values, loc, classes, outcome.Duration.Milliseconds())

	binds := make([]string, len(columns))
	for i := range binds {
		binds[i] = placeholder(rs.backend, i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteTableName(repoOutcomesTable, rs.backend), strings.Join(columns, ", "), strings.Join(binds, ", "))

	if _, err := rs.db.Exec(query, values...); err != nil {
		return fmt.Errorf("failed to insert outcome for %s: %w", outcome.Repository.FullName, err)
	}
	return nil
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.disabled() {
		return status, nil
	}

	quoted := quoteTableName(batchRunsTable, rs.backend)
	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoted)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		last := timeScanner{backend: rs.backend}
		row := rs.db.QueryRow(fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1", quoted))
		if err := row.Scan(&status.LastRunID, last.dest()); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		if t, err := last.value(); err != nil {
			return status, err
		} else if t != nil {
			status.LastRunTime = *t
		}

		oldest := timeScanner{backend: rs.backend}
		row = rs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", quoted))
		if err := row.Scan(oldest.dest()); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		if t, err := oldest.value(); err != nil {
			return status, err
		} else if t != nil {
			status.OldestRunTime = *t
		}

		row = rs.db.QueryRow(fmt.Sprintf("SELECT COALESCE(SUM(attempted), 0) FROM %s", quoted))
		if err := row.Scan(&status.TotalAttempted); err != nil {
			return status, fmt.Errorf("failed to get total attempted: %w", err)
		}
	}

	for _, table := range runTables {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, rs.backend))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}

	return status, nil
}

// GetAllRuns retrieves all batch runs from the store.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.BatchRunRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT run_id, start_time, end_time, run_duration_ms, attempted, succeeded, config_params FROM %s ORDER BY run_id",
		quoteTableName(batchRunsTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.BatchRunRecord
	for rows.Next() {
		var record schema.BatchRunRecord
		start := timeScanner{backend: rs.backend}
		end := timeScanner{backend: rs.backend}
		if err := rows.Scan(&record.RunID, start.dest(), end.dest(), &record.RunDurationMs,
			&record.Attempted, &record.Succeeded, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan batch run: %w", err)
		}
		startTime, err := start.value()
		if err != nil {
			return nil, err
		}
		if startTime != nil {
			record.StartTime = *startTime
		}
		if record.EndTime, err = end.value(); err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch runs: %w", err)
	}
	return results, nil
}

// GetAllOutcomes retrieves all recorded repository outcomes from the store.
func (rs *RunStoreImpl) GetAllOutcomes() ([]schema.RepoOutcomeRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, full_name, analysis_time, stage, reason, commit_sha, stars,
		cbo_mean, cbo_median, dit_mean, dit_median, lcom_mean, lcom_median, loc, classes_count, duration_ms
		FROM %s ORDER BY run_id, full_name`, quoteTableName(repoOutcomesTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RepoOutcomeRecord
	for rows.Next() {
		var record schema.RepoOutcomeRecord
		analyzed := timeScanner{backend: rs.backend}
		if err := rows.Scan(&record.RunID, &record.FullName, analyzed.dest(), &record.Stage,
			&record.Reason, &record.CommitSHA, &record.Stars,
			&record.CBOMean, &record.CBOMedian, &record.DITMean, &record.DITMedian,
			&record.LCOMMean, &record.LCOMMedian, &record.LOC, &record.ClassesCount,
			&record.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan repository outcome: %w", err)
		}
		t, err := analyzed.value()
		if err != nil {
			return nil, err
		}
		if t != nil {
			record.AnalysisTime = *t
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repository outcomes: %w", err)
	}
	return results, nil
}
