// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/ckscan/schema"
)

// GitClient defines the git operations needed to acquire a repository.
// This allows the analysis pipeline to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command inside repoPath and returns the combined output.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// ShallowClone clones url into dest with a history depth of one commit.
	ShallowClone(ctx context.Context, url string, dest string) error

	// GetRepoHash returns the current HEAD commit hash of the repository.
	GetRepoHash(ctx context.Context, repoPath string) (string, error)
}

// Discoverer finds candidate repositories through a code-search API.
// Results are ordered by stars descending and never exceed limit.
type Discoverer interface {
	Discover(ctx context.Context, query string, limit int) ([]schema.RepositoryDescriptor, error)
}

// ProcessRunner launches an external program and waits for it to terminate,
// killing it once timeout elapses. It never returns an error: every way the
// process can end is expressed by the result state.
type ProcessRunner interface {
	RunProcess(ctx context.Context, timeout time.Duration, name string, args ...string) schema.ProcessInvocationResult
}

// CacheManager defines the interface for managing stores.
// This allows the persistence layer to be mocked for testing.
type CacheManager interface {
	GetReleaseStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore defines the interface for tracking batch runs and their per-repository outcomes.
type RunStore interface {
	// BeginRun creates a new batch run and returns its unique ID
	BeginRun(startTime time.Time, configParams map[string]any) (int64, error)

	// RecordOutcome stores the outcome of one attempted repository
	RecordOutcome(runID int64, outcome schema.AnalysisOutcome) error

	// EndRun updates the batch run with completion data
	EndRun(runID int64, endTime time.Time, attempted int, succeeded int) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// GetAllRuns returns every batch run ordered by ID
	GetAllRuns() ([]schema.BatchRunRecord, error)

	// GetAllOutcomes returns every recorded outcome ordered by run and name
	GetAllOutcomes() ([]schema.RepoOutcomeRecord, error)

	// Close closes the underlying connection
	Close() error
}
