package iocache

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/ckscan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunStore(t *testing.T) *RunStoreImpl {
	t.Helper()
	store, err := NewRunStore(schema.SQLiteBackend, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*RunStoreImpl)
}

func succeededOutcome(name string) schema.AnalysisOutcome {
	return schema.AnalysisOutcome{
		Repository: schema.RepositoryDescriptor{FullName: name, Stars: 1500},
		Stage:      schema.StageDone,
		CommitSHA:  "abc123",
		Summary: &schema.MetricSummary{
			CBOMean: 4, CBOMedian: 3, DITMean: 1.5, DITMedian: 1,
			LCOMMean: 12.25, LCOMMedian: 2, LOC: 5400, ClassesCount: 48,
		},
		Duration: 2500 * time.Millisecond,
	}
}

func TestRunStoreLifecycle(t *testing.T) {
	store := newTestRunStore(t)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	runID, err := store.BeginRun(start, map[string]any{"analyze-limit": 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), runID)

	require.NoError(t, store.RecordOutcome(runID, succeededOutcome("apache/commons-lang")))
	require.NoError(t, store.RecordOutcome(runID, schema.AnalysisOutcome{
		Repository: schema.RepositoryDescriptor{FullName: "acme/broken", Stars: 900},
		Stage:      schema.StageInvoking,
		Reason:     "analyzer timed out after 5m0s",
		Duration:   5 * time.Minute,
	}))

	end := start.Add(90 * time.Second)
	require.NoError(t, store.EndRun(runID, end, 2, 1))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, runID, run.RunID)
	assert.True(t, start.Equal(run.StartTime))
	require.NotNil(t, run.EndTime)
	assert.True(t, end.Equal(*run.EndTime))
	require.NotNil(t, run.RunDurationMs)
	assert.Equal(t, int64(90000), *run.RunDurationMs)
	assert.Equal(t, int32(2), run.Attempted)
	assert.Equal(t, int32(1), run.Succeeded)
	require.NotNil(t, run.ConfigParams)
	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(*run.ConfigParams), &params))
	assert.InDelta(t, 100, params["analyze-limit"], 0)

	outcomes, err := store.GetAllOutcomes()
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	// Ordered by full name
	skipped, done := outcomes[0], outcomes[1]
	assert.Equal(t, "acme/broken", skipped.FullName)
	assert.Equal(t, "invoking", skipped.Stage)
	require.NotNil(t, skipped.Reason)
	assert.Contains(t, *skipped.Reason, "timed out")
	assert.Nil(t, skipped.CommitSHA)
	assert.Nil(t, skipped.CBOMean)
	assert.Nil(t, skipped.LOC)
	assert.Equal(t, int64(300000), skipped.DurationMs)

	assert.Equal(t, "apache/commons-lang", done.FullName)
	assert.Equal(t, "done", done.Stage)
	assert.Nil(t, done.Reason)
	require.NotNil(t, done.CommitSHA)
	assert.Equal(t, "abc123", *done.CommitSHA)
	require.NotNil(t, done.LCOMMean)
	assert.InDelta(t, 12.25, *done.LCOMMean, 1e-9)
	require.NotNil(t, done.LOC)
	assert.Equal(t, int64(5400), *done.LOC)
	require.NotNil(t, done.ClassesCount)
	assert.Equal(t, int32(48), *done.ClassesCount)
	assert.Equal(t, int32(1500), done.Stars)
	assert.False(t, done.AnalysisTime.IsZero())
}

func TestRunStoreStatus(t *testing.T) {
	store := newTestRunStore(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, 0, status.TotalRuns)
	assert.Equal(t, int64(0), status.TableSizes[batchRunsTable])

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 2 {
		start := first.Add(time.Duration(i) * time.Hour)
		runID, err := store.BeginRun(start, nil)
		require.NoError(t, err)
		require.NoError(t, store.RecordOutcome(runID, succeededOutcome("org/repo")))
		require.NoError(t, store.EndRun(runID, start.Add(time.Minute), 10, 1))
	}

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, int64(2), status.LastRunID)
	assert.True(t, first.Add(time.Hour).Equal(status.LastRunTime))
	assert.True(t, first.Equal(status.OldestRunTime))
	assert.Equal(t, 20, status.TotalAttempted)
	assert.Equal(t, int64(2), status.TableSizes[batchRunsTable])
	assert.Equal(t, int64(2), status.TableSizes[repoOutcomesTable])
}

func TestRunStoreEndRunUnknown(t *testing.T) {
	store := newTestRunStore(t)
	err := store.EndRun(99, time.Now(), 0, 0)
	assert.ErrorContains(t, err, "failed to get start_time for run 99")
}

func TestRunStoreDuplicateOutcome(t *testing.T) {
	store := newTestRunStore(t)
	runID, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)

	require.NoError(t, store.RecordOutcome(runID, succeededOutcome("org/repo")))
	err = store.RecordOutcome(runID, succeededOutcome("org/repo"))
	assert.ErrorContains(t, err, "failed to insert outcome for org/repo")
}

func TestRunStoreNoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)
	assert.Zero(t, runID)
	assert.NoError(t, store.RecordOutcome(runID, succeededOutcome("org/repo")))
	assert.NoError(t, store.EndRun(runID, time.Now(), 1, 1))

	runs, err := store.GetAllRuns()
	assert.NoError(t, err)
	assert.Empty(t, runs)
	outcomes, err := store.GetAllOutcomes()
	assert.NoError(t, err)
	assert.Empty(t, outcomes)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}
