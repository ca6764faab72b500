package contract

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/huangsam/ckscan/schema"
)

// processWaitDelay bounds how long Wait blocks on output pipes after the
// process has been killed.
const processWaitDelay = 5 * time.Second

// ExecRunner implements ProcessRunner on top of os/exec.
type ExecRunner struct{}

var _ ProcessRunner = &ExecRunner{} // Compile-time check

// NewExecRunner creates a new subprocess runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// RunProcess implements the ProcessRunner interface.
// Stdout and stderr share one buffer that os/exec drains in the background,
// so a chatty child can never block on a full pipe.
func (r *ExecRunner) RunProcess(ctx context.Context, timeout time.Duration, name string, args ...string) schema.ProcessInvocationResult {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = processWaitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return schema.ProcessInvocationResult{
			State:    schema.InvocationLaunchFailed,
			ExitCode: -1,
			Output:   err.Error(),
			Duration: time.Since(start),
		}
	}

	err := cmd.Wait()
	result := schema.ProcessInvocationResult{
		State:    schema.InvocationCompleted,
		Output:   output.String(),
		Duration: time.Since(start),
	}

	if err != nil && runCtx.Err() != nil {
		result.State = schema.InvocationTimedOut
		result.ExitCode = -1
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err != nil:
		result.ExitCode = -1
		result.Output += err.Error()
	}
	return result
}
