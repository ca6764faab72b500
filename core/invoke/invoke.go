// Package invoke runs the CK analyzer jar against a repository checkout.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
)

// Artifact names written by CK.
const (
	ClassTableName  = "class.csv"
	MethodTableName = "method.csv"
)

// outputTailBytes is how much analyzer output is kept in error messages.
const outputTailBytes = 512

var (
	// ErrPrecondition means the checkout or the analyzer jar is missing.
	ErrPrecondition = errors.New("analyzer precondition failed")

	// ErrLaunch means the analyzer process could not be started.
	ErrLaunch = errors.New("analyzer could not be launched")

	// ErrTimeout means the analyzer was killed after exceeding its time budget.
	ErrTimeout = errors.New("analyzer timed out")

	// ErrInterrupted means the analyzer was killed because the batch was cancelled.
	// The invocation state is still timed_out.
	ErrInterrupted = errors.New("analyzer interrupted")

	// ErrNonZeroExit means the analyzer finished with a failure status.
	ErrNonZeroExit = errors.New("analyzer exited with non-zero status")

	// ErrMissingOutput means the analyzer finished cleanly but wrote no class table.
	ErrMissingOutput = errors.New("analyzer produced no class table")
)

// Invoker launches CK with a fixed argument layout.
type Invoker struct {
	Runner      contract.ProcessRunner
	JavaBin     string
	JarPath     string
	Timeout     time.Duration
	Concurrency int
}

// Result locates the relocated artifacts of a successful run.
type Result struct {
	ClassTable  string
	MethodTable string // empty when CK wrote no method table
	Process     schema.ProcessInvocationResult
}

// New builds an Invoker from validated configuration.
func New(runner contract.ProcessRunner, cfg *contract.Config) *Invoker {
	return &Invoker{
		Runner:      runner,
		JavaBin:     cfg.JavaBin,
		JarPath:     cfg.AnalyzerJar,
		Timeout:     cfg.AnalyzerTimeout,
		Concurrency: cfg.AnalyzerConcurrency,
	}
}

// Args returns the command-line arguments passed to the java binary.
// CK treats the last argument as a prefix and appends the table names to it.
func (inv *Invoker) Args(repoPath, outputPrefix string) []string {
	return []string{
		"-jar", inv.JarPath,
		repoPath,
		"true",
		strconv.Itoa(inv.Concurrency),
		"false",
		outputPrefix,
	}
}

// Invoke analyzes repoPath and leaves the tables in <outputDir>/<sanitized name>/.
// Re-running for the same name overwrites the previous tables.
func (inv *Invoker) Invoke(ctx context.Context, repoPath, outputDir, name string) (Result, error) {
	if err := inv.checkPreconditions(repoPath); err != nil {
		return Result{}, err
	}

	safeName := contract.ArtifactName(name)
	// The prefix doubles as the per-repository directory: CK writes
	// <prefix>class.csv beside it and the table is then moved inside.
	prefix := filepath.Join(outputDir, safeName)
	destDir := prefix
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create output directory %s: %w", destDir, err)
	}
	for _, table := range []string{ClassTableName, MethodTableName} {
		if err := removeIfExists(prefix + table); err != nil {
			return Result{}, err
		}
		if err := removeIfExists(filepath.Join(destDir, table)); err != nil {
			return Result{}, err
		}
	}

	proc := inv.Runner.RunProcess(ctx, inv.Timeout, inv.JavaBin, inv.Args(repoPath, prefix)...)
	result := Result{Process: proc}

	switch {
	case proc.State == schema.InvocationLaunchFailed:
		return result, fmt.Errorf("%w: %s", ErrLaunch, tail(proc.Output))
	case !proc.Completed() && ctx.Err() != nil:
		return result, fmt.Errorf("%w: %v", ErrInterrupted, context.Cause(ctx))
	case !proc.Completed():
		return result, fmt.Errorf("%w after %s", ErrTimeout, inv.Timeout)
	case proc.ExitCode != 0:
		return result, fmt.Errorf("%w: exit code %d: %s", ErrNonZeroExit, proc.ExitCode, tail(proc.Output))
	}

	classTable, err := relocate(prefix+ClassTableName, filepath.Join(destDir, ClassTableName))
	if err != nil {
		return result, err
	}
	if classTable == "" {
		return result, fmt.Errorf("%w in %s", ErrMissingOutput, outputDir)
	}
	methodTable, err := relocate(prefix+MethodTableName, filepath.Join(destDir, MethodTableName))
	if err != nil {
		return result, err
	}

	result.ClassTable = classTable
	result.MethodTable = methodTable
	return result, nil
}

// checkPreconditions verifies the checkout directory and the jar exist.
func (inv *Invoker) checkPreconditions(repoPath string) error {
	info, err := os.Stat(repoPath)
	if err != nil {
		return fmt.Errorf("%w: repository path %s: %v", ErrPrecondition, repoPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: repository path %s is not a directory", ErrPrecondition, repoPath)
	}
	info, err = os.Stat(inv.JarPath)
	if err != nil {
		return fmt.Errorf("%w: analyzer jar %s: %v", ErrPrecondition, inv.JarPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: analyzer jar %s is a directory", ErrPrecondition, inv.JarPath)
	}
	return nil
}

// relocate moves src to dest and returns dest. Some CK builds treat the
// prefix as a directory and write straight into dest; that copy is kept.
// An empty path means neither location holds the table.
func relocate(src, dest string) (string, error) {
	if _, err := os.Stat(src); err == nil {
		if err := removeIfExists(dest); err != nil {
			return "", err
		}
		if err := os.Rename(src, dest); err != nil {
			return "", fmt.Errorf("failed to move %s to %s: %w", src, dest, err)
		}
		return dest, nil
	}
	if info, err := os.Stat(dest); err == nil && !info.IsDir() {
		return dest, nil
	}
	return "", nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale %s: %w", path, err)
	}
	return nil
}

// tail keeps the end of the analyzer output, where Java stack traces end up.
func tail(output string) string {
	if len(output) <= outputTailBytes {
		return output
	}
	return "..." + output[len(output)-outputTailBytes:]
}
